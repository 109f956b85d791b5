package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/avolkov/geochat/internal/domain"
	"github.com/avolkov/geochat/internal/extract"
	"github.com/avolkov/geochat/internal/geo"
)

type fakeGeocoder struct {
	coords map[string]domain.Coordinate
}

func (g fakeGeocoder) Geocode(_ context.Context, address string) (domain.Coordinate, error) {
	if c, ok := g.coords[address]; ok {
		return c, nil
	}
	return domain.Coordinate{}, errors.New("no result")
}

func newTestSession(t *testing.T, dialer *fakeDialer, coords map[string]domain.Coordinate) *Session {
	t.Helper()
	resolver := geo.NewResolver(fakeGeocoder{coords: coords}, nil)
	s := New(dialer, testTokens(), testReconnect(5), extract.New(nil), resolver, nil)
	t.Cleanup(s.Close)
	return s
}

func awaitEvent(t *testing.T, events <-chan domain.Event, what string, match func(domain.Event) bool) domain.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
			return nil
		}
	}
}

func connectSession(t *testing.T, s *Session, dialer *fakeDialer) *fakeConn {
	t.Helper()
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitFor(t, "connected state", func() bool {
		return s.State() == domain.StateConnected
	})
	return dialer.lastConn()
}

func TestSessionCompletesTurnAndResolvesMarkers(t *testing.T) {
	t.Parallel()

	dialer := &fakeDialer{}
	s := newTestSession(t, dialer, map[string]domain.Coordinate{
		"5 Oak Ave": {Lat: 10, Lon: 20},
	})
	conn := connectSession(t, s, dialer)

	s.UpdateUserLocation(domain.Coordinate{Lat: 1, Lon: 2})

	conn.frames <- []byte(`{"data":"**Joe's Diner:** Located at 5 Oak Ave. It has a rating of 4.0 stars"}`)
	conn.frames <- []byte(`{"turn_complete":true}`)

	ev := awaitEvent(t, s.Events(), "turn completion", func(ev domain.Event) bool {
		_, ok := ev.(domain.TurnCompleted)
		return ok
	})
	completed := ev.(domain.TurnCompleted)
	if len(completed.Locations) != 1 {
		t.Fatalf("expected 1 extracted location, got %d", len(completed.Locations))
	}
	if completed.Locations[0].Address != "5 Oak Ave" {
		t.Errorf("unexpected address %q", completed.Locations[0].Address)
	}

	ev = awaitEvent(t, s.Events(), "marker update", func(ev domain.Event) bool {
		mu, ok := ev.(domain.MarkersUpdated)
		return ok && len(mu.Markers) > 0
	})
	markers := ev.(domain.MarkersUpdated).Markers
	if len(markers) != 2 {
		t.Fatalf("expected user marker + 1 place marker, got %d", len(markers))
	}
	if markers[0].Kind != domain.MarkerUser {
		t.Errorf("expected user marker first, got %v", markers[0].Kind)
	}
	if markers[1].Kind != domain.MarkerPlace || markers[1].Coordinate != (domain.Coordinate{Lat: 10, Lon: 20}) {
		t.Errorf("unexpected place marker: %+v", markers[1])
	}

	if got := s.Markers(); len(got) != 2 {
		t.Errorf("expected marker snapshot of 2, got %d", len(got))
	}
}

func TestSessionStructuredReplyAcrossFragments(t *testing.T) {
	t.Parallel()

	dialer := &fakeDialer{}
	s := newTestSession(t, dialer, map[string]domain.Coordinate{
		"1 Main St": {Lat: 3, Lon: 4},
	})
	conn := connectSession(t, s, dialer)

	// Structured replies stream in fragments like any other turn.
	conn.frames <- []byte(`{"data":"{\"spoken_response\":\"Try this\",\"map_data\":"}`)
	conn.frames <- []byte(`{"data":"[{\"name\":\"A\",\"address\":\"1 Main St\",\"rating\":4.5}]}"}`)
	conn.frames <- []byte(`{"turn_complete":true}`)

	ev := awaitEvent(t, s.Events(), "turn completion", func(ev domain.Event) bool {
		_, ok := ev.(domain.TurnCompleted)
		return ok
	})
	completed := ev.(domain.TurnCompleted)
	if completed.Text != "Try this" {
		t.Errorf("expected spoken response as visible text, got %q", completed.Text)
	}
	if len(completed.Locations) != 1 || completed.Locations[0].Name != "A" {
		t.Errorf("unexpected locations: %+v", completed.Locations)
	}

	ev = awaitEvent(t, s.Events(), "marker update", func(ev domain.Event) bool {
		mu, ok := ev.(domain.MarkersUpdated)
		return ok && len(mu.Markers) > 0
	})
	markers := ev.(domain.MarkersUpdated).Markers
	// No user location was reported, so only the place marker appears.
	if len(markers) != 1 || markers[0].Kind != domain.MarkerPlace {
		t.Errorf("unexpected markers: %+v", markers)
	}
}

func TestSessionSendEncodesPayloadAndClearsMarkers(t *testing.T) {
	t.Parallel()

	dialer := &fakeDialer{}
	s := newTestSession(t, dialer, nil)
	conn := connectSession(t, s, dialer)

	s.UpdateUserLocation(domain.Coordinate{Lat: 52.52, Lon: 13.405})

	if err := s.Send(context.Background(), "find pizza"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	frames := conn.writtenFrames()
	if len(frames) != 1 {
		t.Fatalf("expected 1 outbound frame, got %d", len(frames))
	}
	var payload struct {
		MimeType string   `json:"mime_type"`
		Data     string   `json:"data"`
		Lat      *float64 `json:"lat"`
		Lon      *float64 `json:"lon"`
	}
	if err := json.Unmarshal(frames[0], &payload); err != nil {
		t.Fatalf("outbound frame is not valid JSON: %v", err)
	}
	if payload.MimeType != "text/plain" || payload.Data != "find pizza" {
		t.Errorf("unexpected payload: %+v", payload)
	}
	if payload.Lat == nil || *payload.Lat != 52.52 || payload.Lon == nil || *payload.Lon != 13.405 {
		t.Errorf("expected user coordinate attached, got %+v", payload)
	}

	// A new query invalidates prior map state.
	awaitEvent(t, s.Events(), "marker clear", func(ev domain.Event) bool {
		mu, ok := ev.(domain.MarkersUpdated)
		return ok && len(mu.Markers) == 0
	})
	if got := s.Markers(); len(got) != 0 {
		t.Errorf("expected empty marker snapshot after send, got %d", len(got))
	}
}

func TestSessionSendWithoutLocationOmitsCoordinate(t *testing.T) {
	t.Parallel()

	dialer := &fakeDialer{}
	s := newTestSession(t, dialer, nil)
	conn := connectSession(t, s, dialer)

	if err := s.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	frames := conn.writtenFrames()
	if len(frames) != 1 {
		t.Fatalf("expected 1 outbound frame, got %d", len(frames))
	}
	if raw := string(frames[0]); strings.Contains(raw, `"lat"`) || strings.Contains(raw, `"lon"`) {
		t.Errorf("expected lat/lon omitted entirely, got %s", raw)
	}
}

func TestSessionSendRejectedWhenDisconnected(t *testing.T) {
	t.Parallel()

	dialer := &fakeDialer{}
	s := newTestSession(t, dialer, nil)

	if err := s.Send(context.Background(), "hello"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}

	awaitEvent(t, s.Events(), "send rejection", func(ev domain.Event) bool {
		_, ok := ev.(domain.SendRejected)
		return ok
	})
}

// blockingGeocoder parks every lookup until released, so a test can hold a
// geocode fan-out in flight across other session operations.
type blockingGeocoder struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingGeocoder() *blockingGeocoder {
	return &blockingGeocoder{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (g *blockingGeocoder) Geocode(ctx context.Context, _ string) (domain.Coordinate, error) {
	g.started <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		return domain.Coordinate{}, ctx.Err()
	}
	return domain.Coordinate{Lat: 9, Lon: 9}, nil
}

func TestSendDiscardsStaleGeocodeResults(t *testing.T) {
	t.Parallel()

	dialer := &fakeDialer{}
	geocoder := newBlockingGeocoder()
	s := New(dialer, testTokens(), testReconnect(5), extract.New(nil), geo.NewResolver(geocoder, nil), nil)
	t.Cleanup(s.Close)
	conn := connectSession(t, s, dialer)

	conn.frames <- []byte(`{"data":"**Old Place:** Located at 9 Old Rd. It has a rating of 4.0 stars"}`)
	conn.frames <- []byte(`{"turn_complete":true}`)

	awaitEvent(t, s.Events(), "turn completion", func(ev domain.Event) bool {
		_, ok := ev.(domain.TurnCompleted)
		return ok
	})

	// Hold the lookup in flight while a new query supersedes the turn.
	select {
	case <-geocoder.started:
	case <-time.After(2 * time.Second):
		t.Fatal("geocode lookup never started")
	}

	if err := s.Send(context.Background(), "something else"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	awaitEvent(t, s.Events(), "marker clear", func(ev domain.Event) bool {
		mu, ok := ev.(domain.MarkersUpdated)
		return ok && len(mu.Markers) == 0
	})

	close(geocoder.release)

	// The released lookup must not repopulate the cleared map state.
	time.Sleep(50 * time.Millisecond)
	if got := s.Markers(); len(got) != 0 {
		t.Errorf("expected stale geocode result discarded, got %+v", got)
	}
	for {
		select {
		case ev := <-s.Events():
			if mu, ok := ev.(domain.MarkersUpdated); ok && len(mu.Markers) > 0 {
				t.Fatalf("stale marker update reached the event stream: %+v", mu.Markers)
			}
		default:
			return
		}
	}
}

func TestSessionFailedWriteRecordsNoUserTurn(t *testing.T) {
	t.Parallel()

	dialer := &fakeDialer{}
	s := newTestSession(t, dialer, nil)
	conn := connectSession(t, s, dialer)

	conn.failWrites(errors.New("broken pipe"))

	if err := s.Send(context.Background(), "lost message"); err == nil {
		t.Fatal("expected Send to surface the write failure")
	}

	awaitEvent(t, s.Events(), "send rejection", func(ev domain.Event) bool {
		_, ok := ev.(domain.SendRejected)
		return ok
	})

	// The failed message never entered the transcript and never cleared
	// the map state.
	for {
		select {
		case ev := <-s.Events():
			switch ev.(type) {
			case domain.TurnAppended:
				t.Fatalf("unsent message appeared in the transcript: %+v", ev)
			case domain.MarkersUpdated:
				t.Fatalf("failed send must not touch map state: %+v", ev)
			}
		default:
			return
		}
	}
}

func TestSessionRawTextFallbackFrames(t *testing.T) {
	t.Parallel()

	dialer := &fakeDialer{}
	s := newTestSession(t, dialer, nil)
	conn := connectSession(t, s, dialer)

	// A garbled frame is carried through as literal text.
	conn.frames <- []byte(`this is not an envelope`)
	conn.frames <- []byte(`{"turn_complete":true}`)

	ev := awaitEvent(t, s.Events(), "turn completion", func(ev domain.Event) bool {
		_, ok := ev.(domain.TurnCompleted)
		return ok
	})
	completed := ev.(domain.TurnCompleted)
	if completed.Text != "this is not an envelope" {
		t.Errorf("expected literal fallback text, got %q", completed.Text)
	}
}
