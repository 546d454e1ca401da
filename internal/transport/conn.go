// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport manages the long-lived WebSocket connection to the chat
// backend: connection state, authenticated URL construction, automatic
// reconnection, and ordered delivery of inbound frames.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// =============================================================================
// CONNECTION STATE
// =============================================================================

// State is the lifecycle state of the managed connection.
type State int

const (
	// StateUninstantiated means no connection has been attempted yet.
	StateUninstantiated State = iota
	// StateConnecting means a dial or reconnect cycle is in progress.
	StateConnecting
	// StateOpen means the socket is established and usable.
	StateOpen
	// StateClosing means an orderly shutdown is in progress.
	StateClosing
	// StateClosed means the socket was closed deliberately.
	StateClosed
	// StateError means the connection failed and reconnection was
	// exhausted or never started.
	StateError
)

// String returns the human-readable state name.
func (s State) String() string {
	switch s {
	case StateUninstantiated:
		return "uninstantiated"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// =============================================================================
// ERRORS AND TUNABLES
// =============================================================================

var (
	// ErrNotConnected is returned by Send when the socket could not be
	// made ready within the send readiness window.
	ErrNotConnected = errors.New("transport: socket is not connected")
	// ErrClosed is returned after Close has been called.
	ErrClosed = errors.New("transport: connection manager is closed")
	// ErrAuthToken marks a connection failure caused by token
	// acquisition, surfaced without any dial attempt.
	ErrAuthToken = errors.New("transport: could not obtain access token")
)

const (
	// MaxReconnectAttempts bounds the automatic reconnect cycle.
	MaxReconnectAttempts = 10
	// ReconnectDelay is the fixed pause between reconnect attempts.
	ReconnectDelay = 3000 * time.Millisecond

	// sendPollInterval and sendPollLimit bound how long Send waits for
	// an in-progress connection to become usable.
	sendPollInterval = 250 * time.Millisecond
	sendPollLimit    = 20

	writeTimeout = 10 * time.Second
)

// =============================================================================
// EVENTS
// =============================================================================

// EventKind discriminates Event values.
type EventKind int

const (
	// EventStatus reports a connection state change.
	EventStatus EventKind = iota
	// EventFrame carries a raw inbound message from the backend.
	EventFrame
)

// Event is delivered on the Events channel in the order produced by the
// socket reader and the state machine.
type Event struct {
	Kind  EventKind
	State State
	// Frame is the raw text payload for EventFrame events.
	Frame []byte
	// Err is set on status events that represent a failure.
	Err error
}

// =============================================================================
// CONNECTION MANAGER
// =============================================================================

// URLFactory builds the dial URL for a single connection attempt. It is
// invoked fresh for every attempt so that a rotated access token is picked
// up. A factory error aborts the attempt without dialing.
type URLFactory func(ctx context.Context) (string, error)

// Dialer abstracts websocket dialing for tests.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string) (*websocket.Conn, error)
}

type gorillaDialer struct{}

func (gorillaDialer) DialContext(ctx context.Context, urlStr string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, urlStr, nil)
	return conn, err
}

// Conn is the connection manager. All exported methods are safe for
// concurrent use.
type Conn struct {
	urlFn  URLFactory
	dialer Dialer

	// maxAttempts and retryDelay govern the reconnect cycle. They default
	// to MaxReconnectAttempts and ReconnectDelay.
	maxAttempts int
	retryDelay  time.Duration

	mu     sync.Mutex
	state  State
	ws     *websocket.Conn
	closed bool

	events chan Event

	// readerDone is closed when the goroutine reading the current socket
	// exits, so Close can wait for it.
	readerDone chan struct{}
}

// New creates a connection manager. No connection is attempted until
// Connect is called.
func New(urlFn URLFactory) *Conn {
	return &Conn{
		urlFn:       urlFn,
		dialer:      gorillaDialer{},
		maxAttempts: MaxReconnectAttempts,
		retryDelay:  ReconnectDelay,
		state:       StateUninstantiated,
		events:      make(chan Event, 64),
	}
}

// NewWithDialer creates a connection manager with a custom dialer.
func NewWithDialer(urlFn URLFactory, d Dialer) *Conn {
	c := New(urlFn)
	c.dialer = d
	return c
}

// SetReconnectPolicy overrides the attempt limit and the pause between
// attempts. Call before Connect; zero or negative values are ignored.
func (c *Conn) SetReconnectPolicy(attempts int, delay time.Duration) {
	if attempts > 0 {
		c.maxAttempts = attempts
	}
	if delay > 0 {
		c.retryDelay = delay
	}
}

// Events returns the ordered event stream. The channel is closed when the
// manager is closed.
func (c *Conn) Events() <-chan Event {
	return c.events
}

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// setState transitions the state and emits a status event. The emit stays
// under the mutex so it cannot race the channel close in Close; emit never
// blocks.
func (c *Conn) setState(s State, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.state = s
	c.emit(Event{Kind: EventStatus, State: s, Err: err})
}

func (c *Conn) emit(ev Event) {
	// Drop rather than block if the consumer has fallen far behind.
	select {
	case c.events <- ev:
	default:
		log.Printf("transport: event buffer full, dropping %v event", ev.Kind)
	}
}

// =============================================================================
// CONNECTING
// =============================================================================

// Connect establishes the socket, retrying up to the attempt limit with a
// fixed delay between attempts. It blocks until the socket is open, the
// attempts are exhausted, or ctx is cancelled. A URL factory failure (for
// example no valid token) transitions to StateError immediately, without a
// dial attempt. Exhausting the dial attempts leaves the manager in
// StateClosed; the next Send starts a fresh cycle.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateOpen || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.setState(StateConnecting, nil)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				c.setState(StateError, ctx.Err())
				return ctx.Err()
			}
		}

		urlStr, err := c.urlFn(ctx)
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrAuthToken, err)
			c.setState(StateError, err)
			return err
		}

		ws, err := c.dialer.DialContext(ctx, urlStr)
		if err != nil {
			lastErr = fmt.Errorf("dialing socket: %w", err)
			log.Printf("transport: attempt %d/%d: %v", attempt, c.maxAttempts, lastErr)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			ws.Close()
			return ErrClosed
		}
		c.ws = ws
		c.readerDone = make(chan struct{})
		c.mu.Unlock()

		c.setState(StateOpen, nil)
		go c.readLoop(ws, c.readerDone)
		return nil
	}

	err := fmt.Errorf("connection failed after %d attempts: %w", c.maxAttempts, lastErr)
	c.setState(StateClosed, err)
	return err
}

// readLoop reads frames from the socket until it fails or is closed. Frames
// are forwarded on the event channel in arrival order. An unexpected close
// triggers a reconnect cycle.
func (c *Conn) readLoop(ws *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			deliberate := c.closed || c.state == StateClosing || c.state == StateClosed
			current := c.ws == ws
			c.mu.Unlock()

			if deliberate || !current {
				return
			}

			log.Printf("transport: socket read failed: %v", err)
			c.setState(StateConnecting, err)
			go c.reconnect()
			return
		}
		c.emit(Event{Kind: EventFrame, State: StateOpen, Frame: data})
	}
}

// reconnect runs a fresh connect cycle after an unexpected disconnect.
func (c *Conn) reconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	c.state = StateUninstantiated
	c.mu.Unlock()

	if err := c.Connect(context.Background()); err != nil {
		log.Printf("transport: reconnect failed: %v", err)
	}
}

// =============================================================================
// SENDING
// =============================================================================

// Send writes a text frame. If the socket is idle or closed after an
// exhausted reconnect cycle, Send starts exactly one fresh connection cycle
// in the background and short-polls for readiness; once the poll budget is
// spent it returns ErrNotConnected.
func (c *Conn) Send(ctx context.Context, payload []byte) error {
	kicked := false
	for i := 0; i < sendPollLimit; i++ {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		if c.state == StateOpen && c.ws != nil {
			ws := c.ws
			c.mu.Unlock()
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return fmt.Errorf("writing socket frame: %w", err)
			}
			return nil
		}
		st := c.state
		c.mu.Unlock()

		switch st {
		case StateConnecting:
			// Wait for the in-flight cycle below.
		case StateUninstantiated, StateClosed, StateError:
			if kicked {
				return ErrNotConnected
			}
			kicked = true
			go func() {
				if err := c.Connect(context.Background()); err != nil {
					log.Printf("transport: send-triggered connect failed: %v", err)
				}
			}()
		default:
			return ErrNotConnected
		}

		select {
		case <-time.After(sendPollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ErrNotConnected
}

// =============================================================================
// CLOSING
// =============================================================================

// Close shuts the connection down deliberately. The reader goroutine is
// waited for, the event channel is closed, and no reconnect is attempted.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed || c.state == StateClosing {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosing
	ws := c.ws
	done := c.readerDone
	c.mu.Unlock()

	if ws != nil {
		// Best-effort close handshake before tearing down.
		deadline := time.Now().Add(time.Second)
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		ws.Close()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			log.Printf("transport: reader did not exit in time")
		}
	}

	c.mu.Lock()
	c.state = StateClosed
	c.closed = true
	c.ws = nil
	close(c.events)
	c.mu.Unlock()
	return nil
}
