// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/notify"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/transport"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/ui/styles"
)

func TestChannelSinkDeliversInOrder(t *testing.T) {
	s := NewChannelSink()
	s.Publish(notify.Notification{Message: "one"})
	s.Publish(notify.Notification{Message: "two"})

	if got := (<-s.C()).Message; got != "one" {
		t.Errorf("first = %q, want one", got)
	}
	if got := (<-s.C()).Message; got != "two" {
		t.Errorf("second = %q, want two", got)
	}
}

func TestChannelSinkDropsOldestWhenFull(t *testing.T) {
	s := NewChannelSink()
	for i := 0; i < 40; i++ {
		s.Publish(notify.Notification{Message: fmt.Sprintf("n%d", i)})
	}

	// The newest notification must survive the overflow.
	var last notify.Notification
	for {
		select {
		case last = <-s.C():
			continue
		default:
		}
		break
	}
	if last.Message != "n39" {
		t.Errorf("newest surviving notification = %q, want n39", last.Message)
	}
}

func TestStatusBarShowsNotificationThenConnectionState(t *testing.T) {
	theme := styles.ForceDark(80, 24)
	bar := NewStatusBar(theme)

	out := bar.View(transport.StateOpen, nil)
	if !strings.Contains(out, "connected") {
		t.Errorf("idle bar should show connection state, got %q", out)
	}

	bar.SetNotification(notify.Notification{
		Level:     notify.LevelSuccess,
		Message:   "Connected to chat service",
		TTL:       notify.ConnectionSuccessTTL,
		CreatedAt: time.Now(),
	})
	out = bar.View(transport.StateOpen, nil)
	if !strings.Contains(out, "Connected to chat service") {
		t.Errorf("bar should show the notification, got %q", out)
	}
}

func TestStatusBarClearsExpired(t *testing.T) {
	theme := styles.ForceDark(80, 24)
	bar := NewStatusBar(theme)

	created := time.Now()
	bar.SetNotification(notify.Notification{
		Level:     notify.LevelSuccess,
		Message:   "done",
		TTL:       2 * time.Second,
		CreatedAt: created,
	})

	if bar.ClearExpired(created.Add(time.Second)) {
		t.Error("notification expired too early")
	}
	if !bar.ClearExpired(created.Add(3 * time.Second)) {
		t.Error("notification should expire after its TTL")
	}
	out := bar.View(transport.StateClosed, nil)
	if !strings.Contains(out, "disconnected") {
		t.Errorf("bar should fall back to connection state, got %q", out)
	}
}

func TestStatusBarPersistentErrorNeverExpires(t *testing.T) {
	theme := styles.ForceDark(80, 24)
	bar := NewStatusBar(theme)
	bar.SetNotification(notify.Notification{
		Level:     notify.LevelError,
		Message:   "Could not acquire an access token.",
		CreatedAt: time.Now(),
	})

	if bar.ClearExpired(time.Now().Add(time.Hour)) {
		t.Error("persistent notifications must not expire")
	}
}

func TestStatusBarHints(t *testing.T) {
	theme := styles.ForceDark(120, 24)
	bar := NewStatusBar(theme)
	out := bar.View(transport.StateOpen, [][2]string{{"enter", "send"}, {"ctrl+c", "quit"}})
	for _, want := range []string{"enter", "send", "ctrl+c", "quit"} {
		if !strings.Contains(out, want) {
			t.Errorf("hint %q missing from %q", want, out)
		}
	}
}

func TestConfirm(t *testing.T) {
	c := NewConfirm(styles.ForceDark(80, 24))
	if c.Visible() {
		t.Error("confirm should start hidden")
	}
	c.Ask("Start a new conversation?")
	if !c.Visible() {
		t.Error("Ask should show the prompt")
	}
	if out := c.View(); !strings.Contains(out, "Start a new conversation?") {
		t.Errorf("question missing from %q", out)
	}
	c.Dismiss()
	if c.Visible() {
		t.Error("Dismiss should hide the prompt")
	}
}
