package gateway

import (
	"encoding/json"

	"github.com/avolkov/geochat/internal/domain"
)

// clientMessage is one inbound frame from a UI client.
type clientMessage struct {
	Type string   `json:"type"`
	Text string   `json:"text,omitempty"`
	Lat  *float64 `json:"lat,omitempty"`
	Lon  *float64 `json:"lon,omitempty"`
}

// wsEvent is the outbound wire form of a core event. A single flat shape
// keeps the UI decoder trivial; unused fields are omitted per event type.
type wsEvent struct {
	Type      string                  `json:"type"`
	State     string                  `json:"state,omitempty"`
	Error     string                  `json:"error,omitempty"`
	TurnID    string                  `json:"turn_id,omitempty"`
	Sender    string                  `json:"sender,omitempty"`
	Delta     string                  `json:"delta,omitempty"`
	Text      string                  `json:"text,omitempty"`
	Locations []domain.ParsedLocation `json:"locations,omitempty"`
	Markers   []domain.Marker         `json:"markers,omitempty"`
	Reason    string                  `json:"reason,omitempty"`
}

func encodeEvent(ev domain.Event) []byte {
	frame := wsEvent{Type: ev.EventType()}

	switch e := ev.(type) {
	case domain.StateChanged:
		frame.State = e.State.String()
		if e.Err != nil {
			frame.Error = e.Err.Error()
		}
	case domain.TurnAppended:
		frame.TurnID = e.TurnID
		frame.Sender = e.Sender
		frame.Delta = e.Delta
		frame.Text = e.Text
	case domain.TurnCompleted:
		frame.TurnID = e.TurnID
		frame.Text = e.Text
		frame.Locations = e.Locations
	case domain.MarkersUpdated:
		frame.Markers = e.Markers
	case domain.SendRejected:
		frame.Reason = e.Reason
	}

	data, err := json.Marshal(frame)
	if err != nil {
		// wsEvent contains only marshalable fields.
		return []byte(`{"type":"` + ev.EventType() + `"}`)
	}
	return data
}
