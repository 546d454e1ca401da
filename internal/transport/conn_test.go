// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/auth"
)

var upgrader = websocket.Upgrader{}

// echoServer upgrades connections and echoes every text frame back.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			mt, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func staticURL(u string) URLFactory {
	return func(ctx context.Context) (string, error) { return u, nil }
}

func waitForFrame(t *testing.T, c *Conn, timeout time.Duration) []byte {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				t.Fatal("event channel closed before frame arrived")
			}
			if ev.Kind == EventFrame {
				return ev.Frame
			}
		case <-deadline:
			t.Fatal("timed out waiting for frame")
		}
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestConnectAndEcho(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := New(staticURL(wsURL(srv)))
	defer c.Close()

	if c.State() != StateUninstantiated {
		t.Fatalf("initial state = %v, want uninstantiated", c.State())
	}

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if c.State() != StateOpen {
		t.Fatalf("state after connect = %v, want open", c.State())
	}

	if err := c.Send(context.Background(), []byte(`{"action":"ping"}`)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	frame := waitForFrame(t, c, 2*time.Second)
	if string(frame) != `{"action":"ping"}` {
		t.Errorf("echoed frame = %q", frame)
	}
}

func TestTokenFailureErrorsWithoutDialing(t *testing.T) {
	var calls atomic.Int32
	factory := func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "", errors.New("token not ready")
	}

	c := New(factory)
	defer c.Close()

	err := c.Connect(context.Background())
	if !errors.Is(err, ErrAuthToken) {
		t.Fatalf("Connect() error = %v, want ErrAuthToken", err)
	}
	if c.State() != StateError {
		t.Errorf("state = %v, want error", c.State())
	}
	if calls.Load() != 1 {
		t.Errorf("factory calls = %d, want 1 (no retry without a token)", calls.Load())
	}
}

func TestFreshTokenPerConnect(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	var calls atomic.Int32
	factory := func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			return "", errors.New("token not ready")
		}
		return wsURL(srv), nil
	}

	c := New(factory)
	defer c.Close()

	if err := c.Connect(context.Background()); !errors.Is(err, ErrAuthToken) {
		t.Fatalf("first Connect() error = %v, want ErrAuthToken", err)
	}
	// A later connect consults the factory again and succeeds with the
	// rotated token.
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}
	if c.State() != StateOpen {
		t.Errorf("state = %v, want open", c.State())
	}
	if calls.Load() != 2 {
		t.Errorf("factory calls = %d, want 2", calls.Load())
	}
}

func TestSendWhenNeverConnected(t *testing.T) {
	c := New(staticURL("ws://127.0.0.1:1"))
	defer c.Close()

	err := c.Send(context.Background(), []byte("x"))
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send() error = %v, want ErrNotConnected", err)
	}
}

func TestSendAfterClose(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := New(staticURL(wsURL(srv)))
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if c.State() != StateClosed {
		t.Errorf("state = %v, want closed", c.State())
	}

	err := c.Send(context.Background(), []byte("x"))
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Send() error = %v, want ErrClosed", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c := New(staticURL("ws://127.0.0.1:1"))
	if err := c.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestDeliberateCloseDoesNotReconnect(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := New(staticURL(wsURL(srv)))
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	c.Close()

	// Drain events; the channel must close without a reconnect status.
	for ev := range c.Events() {
		if ev.Kind == EventStatus && ev.State == StateConnecting && c.State() == StateClosed {
			t.Error("reconnect attempted after deliberate close")
		}
	}
}

func TestReconnectAfterUnexpectedClose(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	var calls atomic.Int32
	factory := func(ctx context.Context) (string, error) {
		calls.Add(1)
		return wsURL(srv), nil
	}

	c := New(factory)
	c.SetReconnectPolicy(3, 5*time.Millisecond)
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	// Drop the socket out from under the client; the manager must dial back
	// in on its own.
	srv.CloseClientConnections()
	waitFor(t, 2*time.Second, func() bool { return calls.Load() >= 2 },
		"no reconnect dial observed")
	waitFor(t, 2*time.Second, func() bool { return c.State() == StateOpen },
		"socket did not reopen after unexpected close")

	if got := calls.Load(); got != 2 {
		t.Errorf("factory calls = %d, want 2 (initial + one reconnect)", got)
	}
}

func TestReconnectExhaustionThenSingleSendCycle(t *testing.T) {
	srv := echoServer(t)

	var calls atomic.Int32
	factory := func(ctx context.Context) (string, error) {
		calls.Add(1)
		return wsURL(srv), nil
	}

	c := New(factory)
	c.SetReconnectPolicy(3, 5*time.Millisecond)
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	// Kill the server for good. The automatic cycle must stop at the
	// attempt limit and settle in the closed state.
	srv.CloseClientConnections()
	srv.Close()

	waitFor(t, 5*time.Second, func() bool { return c.State() == StateClosed },
		"manager never settled in closed state after exhausting attempts")
	if got := calls.Load(); got != 4 {
		t.Errorf("factory calls = %d, want 4 (connect + 3 reconnect attempts)", got)
	}

	// A send from the closed state starts exactly one fresh cycle, then
	// gives up.
	err := c.Send(context.Background(), []byte("x"))
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send() error = %v, want ErrNotConnected", err)
	}
	waitFor(t, 2*time.Second, func() bool { return c.State() == StateClosed },
		"send-triggered cycle never finished")
	if got := calls.Load(); got != 7 {
		t.Errorf("factory calls = %d, want 7 (one send-triggered cycle of 3)", got)
	}
}

func TestAuthenticatedURL(t *testing.T) {
	factory := AuthenticatedURL("wss://chat.example.com/prod", auth.StaticProvider{Value: "tok-123"})
	u, err := factory(context.Background())
	if err != nil {
		t.Fatalf("factory error = %v", err)
	}
	if u != "wss://chat.example.com/prod?Authorization=tok-123" {
		t.Errorf("url = %q", u)
	}
}

func TestAuthenticatedURLNoToken(t *testing.T) {
	factory := AuthenticatedURL("wss://chat.example.com/prod", auth.StaticProvider{})
	if _, err := factory(context.Background()); err == nil {
		t.Error("expected error when no token is available")
	}
}
