// Package transport owns the physical streaming connection to the
// assistant service and the wire frame codec.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Conn is one physical streaming connection. Raw text frames in, raw
// frames out.
type Conn interface {
	// Read blocks until the next inbound frame or a connection error.
	Read(ctx context.Context) ([]byte, error)
	// Write sends one text frame.
	Write(ctx context.Context, data []byte) error
	// Close tears the connection down.
	Close() error
}

// Dialer establishes connections to the assistant endpoint.
type Dialer interface {
	Dial(ctx context.Context, token string) (Conn, error)
}

// WebsocketDialer dials the assistant over a websocket, carrying the
// credential as a bearer header and a fresh session id per connection.
type WebsocketDialer struct {
	URL string
}

// Dial implements Dialer.
func (d *WebsocketDialer) Dial(ctx context.Context, token string) (Conn, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("parse assistant url: %w", err)
	}
	q := u.Query()
	q.Set("session_id", uuid.NewString())
	u.RawQuery = q.Encode()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	ws, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("dial assistant at %s: %w", d.URL, err)
	}
	return &wsConn{ws: ws}, nil
}

// wsConn adapts *websocket.Conn to Conn.
type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.ws.Read(ctx)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	return c.ws.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "session ended")
}
