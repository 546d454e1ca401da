// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package notify defines the notification sink consumed by the session
// engine, transport, and feedback controller.
//
// Components publish human-readable status lines ("Connecting to chat
// service...", "Feedback submitted") without knowing how they are rendered.
// The TUI implements Sink as a toast/status area; tests use Recorder.
package notify

import (
	"sync"
	"time"
)

// =============================================================================
// NOTIFICATION TYPES
// =============================================================================

// Level classifies a notification.
type Level int

const (
	// LevelInfo is a persistent informational notification; it stays
	// visible until superseded.
	LevelInfo Level = iota
	// LevelSuccess is a transient notification that self-clears after TTL.
	LevelSuccess
	// LevelError is a persistent error notification.
	LevelError
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Self-clear durations by notification class.
const (
	// ConnectionSuccessTTL clears connection success notices.
	ConnectionSuccessTTL = 2000 * time.Millisecond

	// FeedbackSuccessTTL clears feedback submission notices.
	FeedbackSuccessTTL = 3000 * time.Millisecond
)

// Notification is one status line published to the sink.
type Notification struct {
	Level     Level
	Message   string
	TTL       time.Duration // 0 = persist until superseded
	CreatedAt time.Time
}

// Expired reports whether a transient notification has outlived its TTL.
func (n Notification) Expired(now time.Time) bool {
	return n.TTL > 0 && now.Sub(n.CreatedAt) >= n.TTL
}

// =============================================================================
// SINK
// =============================================================================

// Sink receives notifications. Implementations must be safe for concurrent
// use; the transport publishes from its reader goroutine.
type Sink interface {
	Publish(n Notification)
}

// Info publishes a persistent informational notification.
func Info(s Sink, message string) {
	if s == nil {
		return
	}
	s.Publish(Notification{Level: LevelInfo, Message: message, CreatedAt: time.Now()})
}

// Success publishes a transient success notification with the given TTL.
func Success(s Sink, message string, ttl time.Duration) {
	if s == nil {
		return
	}
	s.Publish(Notification{Level: LevelSuccess, Message: message, TTL: ttl, CreatedAt: time.Now()})
}

// Error publishes a persistent error notification.
func Error(s Sink, message string) {
	if s == nil {
		return
	}
	s.Publish(Notification{Level: LevelError, Message: message, CreatedAt: time.Now()})
}

// =============================================================================
// RECORDER
// =============================================================================

// Recorder is a Sink that records notifications for inspection in tests.
type Recorder struct {
	mu            sync.Mutex
	notifications []Notification
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Publish records the notification.
func (r *Recorder) Publish(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

// All returns a copy of the recorded notifications in publish order.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.notifications))
	copy(out, r.notifications)
	return out
}

// Last returns the most recent notification, or a zero value if none.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notifications) == 0 {
		return Notification{}, false
	}
	return r.notifications[len(r.notifications)-1], true
}

// Messages returns just the message strings in publish order.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.notifications))
	for i, n := range r.notifications {
		out[i] = n.Message
	}
	return out
}
