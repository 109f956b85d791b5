package transport

import (
	"encoding/json"
	"fmt"

	"github.com/avolkov/geochat/internal/domain"
)

// ServerFrame is one inbound frame from the assistant stream.
type ServerFrame struct {
	Data         string `json:"data,omitempty"`
	TurnComplete bool   `json:"turn_complete,omitempty"`
}

// DecodeServerFrame parses a raw inbound frame. The wire format is not
// assumed well-formed on every frame: anything that fails to parse as the
// envelope is carried through as literal text.
func DecodeServerFrame(raw []byte) ServerFrame {
	var frame ServerFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return ServerFrame{Data: string(raw)}
	}
	return frame
}

// PayloadMimeType is the mime type of every outbound user message.
const PayloadMimeType = "text/plain"

// Payload is the wire form of one outbound user message. Lat/Lon are
// attached only when the user's position is known; they are never sent as
// null or zero placeholders.
type Payload struct {
	MimeType string   `json:"mime_type"`
	Data     string   `json:"data"`
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
}

// NewPayload builds the payload for a user message, attaching the last
// known coordinate when one is available.
func NewPayload(text string, coord *domain.Coordinate) Payload {
	p := Payload{MimeType: PayloadMimeType, Data: text}
	if coord != nil {
		lat, lon := coord.Lat, coord.Lon
		p.Lat = &lat
		p.Lon = &lon
	}
	return p
}

// Encode serializes the payload to a single text frame.
func (p Payload) Encode() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return data, nil
}
