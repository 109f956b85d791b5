package domain

import "strings"

// Sender identifies who produced a chat turn.
type Sender int

const (
	// SenderUser is a message typed by the user.
	SenderUser Sender = iota
	// SenderServer is a reply streamed from the assistant.
	SenderServer
)

// String returns the string representation of a Sender.
func (s Sender) String() string {
	switch s {
	case SenderUser:
		return "user"
	case SenderServer:
		return "server"
	default:
		return "unknown"
	}
}

// ChatTurn is one logical unit of conversation output. A server turn may
// accumulate text across multiple streamed fragments before it is marked
// complete; a user turn is complete on creation.
type ChatTurn struct {
	ID       string
	Sender   Sender
	Complete bool

	text strings.Builder
}

// NewTurn creates a turn with the given id, sender and initial text.
func NewTurn(id string, sender Sender, text string) *ChatTurn {
	t := &ChatTurn{ID: id, Sender: sender}
	t.text.WriteString(text)
	return t
}

// Append adds a streamed fragment to an open turn. Appending to a completed
// turn is a programming error and is ignored.
func (t *ChatTurn) Append(fragment string) {
	if t.Complete {
		return
	}
	t.text.WriteString(fragment)
}

// Text returns the accumulated turn text.
func (t *ChatTurn) Text() string {
	return t.text.String()
}

// SetText replaces the accumulated text. Used when a structured reply
// carries a dedicated spoken response that supersedes the raw payload.
func (t *ChatTurn) SetText(text string) {
	t.text.Reset()
	t.text.WriteString(text)
}
