package domain

// Event is a discrete notification emitted by the session core for the
// presentation layer. The core holds no UI references; consumers subscribe
// to the event stream instead.
type Event interface {
	EventType() string
}

// StateChanged reports a connection state transition. Err carries the
// failure that caused the transition, if any.
type StateChanged struct {
	State ConnectionState `json:"state"`
	Err   error           `json:"-"`
}

// EventType implements Event.
func (StateChanged) EventType() string { return "state_changed" }

// TurnAppended reports new text on a turn. Delta is the fragment just
// appended; Text is the full accumulated turn text.
type TurnAppended struct {
	TurnID string `json:"turn_id"`
	Sender string `json:"sender"`
	Delta  string `json:"delta"`
	Text   string `json:"text"`
}

// EventType implements Event.
func (TurnAppended) EventType() string { return "turn_appended" }

// TurnCompleted reports a closed server turn together with any locations
// the extractor recovered from it. Text is the final visible text, which
// may differ from the accumulated raw payload for structured replies.
type TurnCompleted struct {
	TurnID    string           `json:"turn_id"`
	Text      string           `json:"text"`
	Locations []ParsedLocation `json:"locations,omitempty"`
}

// EventType implements Event.
func (TurnCompleted) EventType() string { return "turn_completed" }

// MarkersUpdated carries the replacement marker set after geocoding a
// completed turn's locations. The set is always replaced whole.
type MarkersUpdated struct {
	Markers []Marker `json:"markers"`
}

// EventType implements Event.
func (MarkersUpdated) EventType() string { return "markers_updated" }

// SendRejected reports a user message that could not be submitted.
type SendRejected struct {
	Reason string `json:"reason"`
}

// EventType implements Event.
func (SendRejected) EventType() string { return "send_rejected" }
