package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avolkov/geochat/internal/auth"
	"github.com/avolkov/geochat/internal/config"
	"github.com/avolkov/geochat/internal/domain"
	"github.com/avolkov/geochat/internal/transport"
)

var (
	// ErrRetryExhausted means all retry attempts were consumed. The
	// controller stays down until an explicit Reset.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
	// ErrNotConnected means no live connection exists.
	ErrNotConnected = errors.New("not connected")
	// ErrClosed means the controller was torn down.
	ErrClosed = errors.New("controller closed")
)

// Delay returns the backoff delay scheduled after the failure of attempt
// number attempt: baseDelay * 2^attempt.
func Delay(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<attempt) // exponential backoff
}

// FrameHandler consumes inbound frames in arrival order.
type FrameHandler func(raw []byte)

// StateHandler observes connection state transitions. It is invoked
// synchronously while the controller lock is held and must not call back
// into the controller.
type StateHandler func(state domain.ConnectionState, err error)

// Controller owns the connection lifecycle: it decides when to
// (re)establish the transport, applies exponential backoff between
// attempts, and bounds the retry budget. Exactly one transport is live
// while Connected; none otherwise.
type Controller struct {
	dialer  transport.Dialer
	tokens  auth.TokenProvider
	cfg     config.ReconnectConfig
	logger  *slog.Logger
	onFrame FrameHandler
	onState StateHandler

	mu         sync.Mutex
	state      domain.ConnectionState
	attempts   int
	conn       transport.Conn
	readCancel context.CancelFunc
	retryTimer *time.Timer
	closed     bool
}

// NewController creates a Controller in the Disconnected state.
func NewController(dialer transport.Dialer, tokens auth.TokenProvider, cfg config.ReconnectConfig, logger *slog.Logger, onFrame FrameHandler, onState StateHandler) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		dialer:  dialer,
		tokens:  tokens,
		cfg:     cfg,
		logger:  logger,
		onFrame: onFrame,
		onState: onState,
		state:   domain.StateDisconnected,
	}
}

// State returns the current connection state.
func (c *Controller) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the consecutive failure count.
func (c *Controller) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Connect establishes the connection. A no-op while already connected or
// connecting; cancels any pending scheduled retry first.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == domain.StateConnected || c.state == domain.StateConnecting {
		c.mu.Unlock()
		return nil
	}
	if c.state == domain.StateExhausted {
		// Terminal until an explicit Reset.
		c.mu.Unlock()
		return ErrRetryExhausted
	}
	c.stopRetryLocked()
	c.setStateLocked(domain.StateConnecting, nil)
	c.mu.Unlock()

	return c.attempt(ctx)
}

// Reset zeroes the retry budget and reconnects. This is the external
// trigger that leaves the Exhausted state.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.stopRetryLocked()
	c.attempts = 0
	if c.state == domain.StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.setStateLocked(domain.StateConnecting, nil)
	c.mu.Unlock()

	return c.attempt(ctx)
}

// Send writes one frame to the live connection.
func (c *Controller) Send(ctx context.Context, data []byte) error {
	c.mu.Lock()
	conn := c.conn
	state := c.state
	c.mu.Unlock()

	if state != domain.StateConnected || conn == nil {
		return ErrNotConnected
	}
	return conn.Write(ctx, data)
}

// Close tears the controller down: cancels any pending retry, stops the
// read loop and closes the transport.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopRetryLocked()
	conn := c.conn
	cancel := c.readCancel
	c.conn = nil
	c.readCancel = nil
	c.setStateLocked(domain.StateDisconnected, nil)
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			c.logger.Debug("failed to close transport", "error", err)
		}
	}
}

// attempt performs one connection attempt: credential first, then dial.
func (c *Controller) attempt(ctx context.Context) error {
	token, err := c.tokens.Token(ctx, false)
	if err != nil {
		// Credential failure is not a connectivity failure: it consumes
		// no retry attempt and schedules no backoff.
		wrapped := fmt.Errorf("obtain credential: %w", err)
		c.logger.Error("credential acquisition failed", "error", err)
		c.mu.Lock()
		c.setStateLocked(domain.StateDisconnected, wrapped)
		c.mu.Unlock()
		return wrapped
	}

	conn, err := c.dialer.Dial(ctx, token)
	if err != nil {
		return c.attemptFailed(err)
	}

	readCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		_ = conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.readCancel = cancel
	c.attempts = 0 // a successful connection always resets the budget
	c.setStateLocked(domain.StateConnected, nil)
	c.mu.Unlock()

	go c.readLoop(readCtx, conn)
	return nil
}

// attemptFailed increments the failure count, then either schedules the
// next attempt after the backoff delay or freezes in Exhausted.
func (c *Controller) attemptFailed(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delay := Delay(c.cfg.BaseDelay, c.attempts)
	c.attempts++

	if c.attempts >= c.cfg.MaxAttempts {
		exhausted := fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, c.attempts, err)
		c.logger.Error("connection retries exhausted", "attempts", c.attempts, "error", err)
		c.setStateLocked(domain.StateExhausted, exhausted)
		return exhausted
	}

	c.logger.Warn("connection attempt failed, retrying",
		"attempt", c.attempts,
		"delay", delay,
		"error", err,
	)
	c.setStateLocked(domain.StateReconnecting, err)
	c.scheduleRetryLocked(delay)
	return err
}

// readLoop delivers inbound frames strictly in arrival order.
func (c *Controller) readLoop(ctx context.Context, conn transport.Conn) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			c.connectionLost(conn, err)
			return
		}
		c.onFrame(data)
	}
}

// connectionLost handles an established connection dropping. The
// controller re-enters Reconnecting directly, preserving the attempt
// count: a drop after success is not a failed attempt.
func (c *Controller) connectionLost(conn transport.Conn, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != conn {
		// Stale read loop from a superseded connection.
		return
	}
	c.conn = nil
	c.readCancel = nil

	if c.closed {
		return
	}

	delay := Delay(c.cfg.BaseDelay, c.attempts)
	c.logger.Warn("connection lost, reconnecting", "delay", delay, "error", err)
	c.setStateLocked(domain.StateReconnecting, err)
	c.scheduleRetryLocked(delay)
}

// scheduleRetryLocked arms the single retry timer. The timer body
// re-checks state so a cancelled or superseded retry is a no-op.
func (c *Controller) scheduleRetryLocked(delay time.Duration) {
	c.retryTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if c.closed || c.state != domain.StateReconnecting {
			c.mu.Unlock()
			return
		}
		c.setStateLocked(domain.StateConnecting, nil)
		c.mu.Unlock()

		_ = c.attempt(context.Background())
	})
}

func (c *Controller) stopRetryLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

func (c *Controller) setStateLocked(state domain.ConnectionState, err error) {
	if c.state == state && err == nil {
		return
	}
	c.state = state
	c.logger.Debug("connection state changed", "state", state.String())
	if c.onState != nil {
		c.onState(state, err)
	}
}
