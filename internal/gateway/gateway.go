// Package gateway exposes the session core to a local UI over HTTP: a
// websocket that streams core events out and accepts user messages in,
// plus snapshot endpoints. The core itself holds no UI references; this is
// the one place events are turned into a wire format.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/avolkov/geochat/internal/config"
	"github.com/avolkov/geochat/internal/domain"
	"github.com/avolkov/geochat/internal/session"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

const sendQueueSize = 64

// Gateway bridges one chat session to any number of UI connections.
type Gateway struct {
	sess   *session.Session
	cfg    *config.Config
	logger *slog.Logger

	mu    sync.Mutex
	conns map[*uiConn]struct{}
}

// uiConn is one connected UI client. Outbound frames go through a buffered
// queue consumed by a single writer goroutine; user sends are rate limited
// per connection.
type uiConn struct {
	ws      *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
}

// New creates a Gateway for the given session.
func New(sess *session.Session, cfg *config.Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		sess:   sess,
		cfg:    cfg,
		logger: logger,
		conns:  make(map[*uiConn]struct{}),
	}
}

// RegisterRoutes mounts the gateway endpoints.
func (g *Gateway) RegisterRoutes(r chi.Router) {
	r.Get("/ws/chat", g.ServeWS)
	r.Get("/api/markers", g.handleMarkers)
	r.Get("/api/state", g.handleState)
}

// Run pumps session events to all connected UI clients until ctx is done.
func (g *Gateway) Run(ctx context.Context) {
	for {
		select {
		case ev := <-g.sess.Events():
			g.broadcast(ev)
		case <-ctx.Done():
			g.logger.Info("gateway event loop shutting down", "reason", ctx.Err())
			return
		}
	}
}

// ServeWS upgrades a UI client connection and services it until it closes.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	if !g.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		g.logger.Error("failed to accept UI websocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			g.logger.Debug("failed to close UI websocket", "error", closeErr)
		}
	}()

	conn := &uiConn{
		ws:      ws,
		send:    make(chan []byte, sendQueueSize),
		limiter: rate.NewLimiter(rate.Limit(g.cfg.SendRate), g.cfg.SendBurst),
	}
	g.register(conn)
	defer g.unregister(conn)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Single writer goroutine per connection.
	go conn.writeLoop(ctx, g.logger)

	// Late joiners still need the current picture.
	conn.enqueue(encodeEvent(domain.StateChanged{State: g.sess.State()}), g.logger)
	if markers := g.sess.Markers(); len(markers) > 0 {
		conn.enqueue(encodeEvent(domain.MarkersUpdated{Markers: markers}), g.logger)
	}

	g.readLoop(ctx, conn)
}

// readLoop consumes UI client messages until the connection drops.
func (g *Gateway) readLoop(ctx context.Context, conn *uiConn) {
	for {
		_, raw, err := conn.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				g.logger.Debug("UI websocket closed by client")
			} else {
				g.logger.Warn("UI websocket read error", "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			g.logger.Debug("ignoring malformed UI message", "error", err)
			continue
		}

		switch msg.Type {
		case "send":
			if msg.Text == "" {
				continue
			}
			if !conn.limiter.Allow() {
				conn.enqueue(encodeEvent(domain.SendRejected{Reason: "rate limited"}), g.logger)
				continue
			}
			if err := g.sess.Send(ctx, msg.Text); err != nil {
				g.logger.Warn("send failed", "error", err)
			}
		case "location":
			if msg.Lat == nil || msg.Lon == nil {
				continue
			}
			g.sess.UpdateUserLocation(domain.Coordinate{Lat: *msg.Lat, Lon: *msg.Lon})
		case "retry":
			if err := g.sess.Reset(ctx); err != nil {
				g.logger.Warn("manual retry failed", "error", err)
			}
		case "ping":
			conn.enqueue([]byte(`{"type":"pong"}`), g.logger)
		}
	}
}

func (g *Gateway) handleMarkers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"markers": g.sess.Markers()}, g.logger)
}

func (g *Gateway) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"state": g.sess.State().String()}, g.logger)
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if g.cfg.IsDevelopment() {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || origin == g.cfg.FrontendURL {
		return true
	}
	g.logger.Warn("UI websocket origin rejected", "origin", origin, "allowed", g.cfg.FrontendURL)
	return false
}

func (g *Gateway) register(conn *uiConn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conns[conn] = struct{}{}
}

func (g *Gateway) unregister(conn *uiConn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.conns, conn)
}

func (g *Gateway) broadcast(ev domain.Event) {
	data := encodeEvent(ev)

	g.mu.Lock()
	defer g.mu.Unlock()
	for conn := range g.conns {
		conn.enqueue(data, g.logger)
	}
}

// enqueue hands a frame to the writer goroutine without blocking the
// broadcaster; a slow client drops frames rather than stalling the rest.
func (c *uiConn) enqueue(data []byte, logger *slog.Logger) {
	select {
	case c.send <- data:
	default:
		logger.Debug("dropping frame for slow UI client")
	}
}

func (c *uiConn) writeLoop(ctx context.Context, logger *slog.Logger) {
	for {
		select {
		case data := <-c.send:
			if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
				logger.Debug("UI websocket write error", "error", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}
