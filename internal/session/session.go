// Package session owns the chat session core: connection lifecycle with
// bounded exponential-backoff reconnection, ordered assembly of streamed
// reply fragments into turns, location extraction on turn completion, and
// the typed event stream the presentation layer subscribes to.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/avolkov/geochat/internal/auth"
	"github.com/avolkov/geochat/internal/config"
	"github.com/avolkov/geochat/internal/domain"
	"github.com/avolkov/geochat/internal/extract"
	"github.com/avolkov/geochat/internal/geo"
	"github.com/avolkov/geochat/internal/transport"
)

const eventBufferSize = 128

// Session ties the controller, accumulator, extractor and resolver
// together for one logical device session.
type Session struct {
	ctrl      *Controller
	extractor *extract.Extractor
	resolver  *geo.Resolver
	logger    *slog.Logger
	events    chan domain.Event

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	acc     *Accumulator
	userLoc *domain.Coordinate
	markers []domain.Marker
	// markerGen invalidates in-flight geocode fan-outs: each send bumps
	// it, and a resolve only lands if its captured generation still
	// matches.
	markerGen uint64
}

// New creates a Session. The connection is not established until Connect.
func New(dialer transport.Dialer, tokens auth.TokenProvider, reconnect config.ReconnectConfig, extractor *extract.Extractor, resolver *geo.Resolver, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		extractor: extractor,
		resolver:  resolver,
		logger:    logger,
		events:    make(chan domain.Event, eventBufferSize),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.acc = NewAccumulator(s.turnAppended, s.turnCompleted)
	s.ctrl = NewController(dialer, tokens, reconnect, logger, s.handleFrame, s.stateChanged)
	return s
}

// Events returns the stream of UI-facing events. The channel is never
// closed; consumers stop reading when they tear down.
func (s *Session) Events() <-chan domain.Event {
	return s.events
}

// Connect establishes the assistant connection.
func (s *Session) Connect(ctx context.Context) error {
	return s.ctrl.Connect(ctx)
}

// Reset zeroes the retry budget and reconnects, e.g. after the user asks
// to retry from the exhausted state.
func (s *Session) Reset(ctx context.Context) error {
	return s.ctrl.Reset(ctx)
}

// State returns the current connection state.
func (s *Session) State() domain.ConnectionState {
	return s.ctrl.State()
}

// Close tears the session down: pending reconnects are cancelled, the
// transport is closed and in-flight geocode lookups are abandoned.
func (s *Session) Close() {
	s.cancel()
	s.ctrl.Close()
}

// UpdateUserLocation records the device position attached to outbound
// messages and shown as the user marker.
func (s *Session) UpdateUserLocation(coord domain.Coordinate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userLoc = &coord
}

// Markers returns a snapshot of the current marker set.
func (s *Session) Markers() []domain.Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Marker, len(s.markers))
	copy(out, s.markers)
	return out
}

// Send submits a user message. A dispatched message invalidates the prior
// map state, both the current marker set and any geocode fan-out still in
// flight. The last known user coordinate is attached when available and
// omitted entirely otherwise. A message that never reaches the wire leaves
// the transcript and map untouched.
func (s *Session) Send(ctx context.Context, text string) error {
	if s.ctrl.State() != domain.StateConnected {
		s.emit(domain.SendRejected{Reason: "not connected"})
		return ErrNotConnected
	}

	s.mu.Lock()
	payload := transport.NewPayload(text, s.userLoc)
	s.mu.Unlock()

	data, err := payload.Encode()
	if err != nil {
		s.emit(domain.SendRejected{Reason: err.Error()})
		return err
	}
	if err := s.ctrl.Send(ctx, data); err != nil {
		s.emit(domain.SendRejected{Reason: err.Error()})
		return err
	}

	s.mu.Lock()
	s.markerGen++
	s.markers = nil
	s.acc.UserTurn(text)
	s.mu.Unlock()

	s.emit(domain.MarkersUpdated{Markers: nil})
	return nil
}

// handleFrame consumes one raw inbound frame. Frames are decoded with the
// literal-text fallback and fed to the accumulator in arrival order.
func (s *Session) handleFrame(raw []byte) {
	frame := transport.DecodeServerFrame(raw)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.acc.ProcessFrame(frame)
}

func (s *Session) stateChanged(state domain.ConnectionState, err error) {
	s.emit(domain.StateChanged{State: state, Err: err})
}

func (s *Session) turnAppended(turn *domain.ChatTurn, delta string) {
	s.emit(domain.TurnAppended{
		TurnID: turn.ID,
		Sender: turn.Sender.String(),
		Delta:  delta,
		Text:   turn.Text(),
	})
}

// turnCompleted runs extraction exactly once per completed server turn and
// kicks off the geocode fan-out when locations were found. Called with the
// session lock held via the accumulator.
func (s *Session) turnCompleted(turn *domain.ChatTurn) {
	result := s.extractor.Extract(turn.Text())
	if result.Structured {
		turn.SetText(result.Text)
	}

	s.emit(domain.TurnCompleted{
		TurnID:    turn.ID,
		Text:      turn.Text(),
		Locations: result.Locations,
	})

	if len(result.Locations) == 0 {
		return
	}

	userLoc := s.userLoc
	go s.resolveMarkers(s.markerGen, userLoc, result.Locations)
}

// resolveMarkers geocodes a completed turn's locations concurrently and
// replaces the marker set whole after the joint await. Results are
// discarded if the session was torn down meanwhile, or if a newer query
// superseded the turn while the lookups were in flight.
func (s *Session) resolveMarkers(gen uint64, userLoc *domain.Coordinate, locations []domain.ParsedLocation) {
	markers := s.resolver.Resolve(s.ctx, userLoc, locations)
	if s.ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	if gen != s.markerGen {
		s.mu.Unlock()
		return
	}
	s.markers = markers
	s.mu.Unlock()

	s.emit(domain.MarkersUpdated{Markers: markers})
}

// emit publishes an event without ever blocking the core. A full buffer
// means the consumer fell behind; the event is dropped with a warning.
func (s *Session) emit(ev domain.Event) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("event dropped, consumer too slow", "type", ev.EventType())
	}
}
