package session

import (
	"github.com/avolkov/geochat/internal/domain"
	"github.com/avolkov/geochat/internal/transport"
	"github.com/google/uuid"
)

// Accumulator assembles streamed inbound frames into logical chat turns.
// At most one server turn is open at a time; frames append to it until the
// end-of-turn marker closes it. The accumulator is not safe for concurrent
// use; the owning session serializes access.
type Accumulator struct {
	turns   []*domain.ChatTurn
	current *domain.ChatTurn // open server turn, nil when none

	onAppend   func(turn *domain.ChatTurn, delta string)
	onComplete func(turn *domain.ChatTurn)
}

// NewAccumulator creates an Accumulator. onAppend fires for every text
// append (server fragments and user messages); onComplete fires exactly
// once per completed server turn.
func NewAccumulator(onAppend func(*domain.ChatTurn, string), onComplete func(*domain.ChatTurn)) *Accumulator {
	return &Accumulator{onAppend: onAppend, onComplete: onComplete}
}

// ProcessFrame consumes one inbound frame. Empty non-final fragments are
// dropped silently so the UI sees no spurious updates.
func (a *Accumulator) ProcessFrame(frame transport.ServerFrame) {
	if frame.Data == "" && !frame.TurnComplete {
		return
	}

	if frame.Data != "" {
		if a.current == nil {
			a.current = domain.NewTurn(uuid.NewString(), domain.SenderServer, frame.Data)
			a.turns = append(a.turns, a.current)
		} else {
			a.current.Append(frame.Data)
		}
		if a.onAppend != nil {
			a.onAppend(a.current, frame.Data)
		}
	}

	if frame.TurnComplete && a.current != nil {
		turn := a.current
		turn.Complete = true
		a.current = nil
		if a.onComplete != nil {
			a.onComplete(turn)
		}
	}
}

// UserTurn records a user message. Any open server turn is detached: it
// never completes, so no extraction fires for it, and the next server
// fragment starts a fresh turn.
func (a *Accumulator) UserTurn(text string) *domain.ChatTurn {
	a.current = nil

	turn := domain.NewTurn(uuid.NewString(), domain.SenderUser, text)
	turn.Complete = true
	a.turns = append(a.turns, turn)
	if a.onAppend != nil {
		a.onAppend(turn, text)
	}
	return turn
}

// Open returns the currently open server turn, or nil.
func (a *Accumulator) Open() *domain.ChatTurn {
	return a.current
}

// Turns returns all turns recorded this session, in order.
func (a *Accumulator) Turns() []*domain.ChatTurn {
	return a.turns
}
