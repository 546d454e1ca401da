// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides reusable UI widgets for the chat TUI.
package components

import (
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/notify"
)

// ChannelSink bridges engine notifications into the Bubble Tea event loop.
// Publish never blocks; when the buffer is full the oldest notification is
// dropped in favor of the newest.
type ChannelSink struct {
	ch chan notify.Notification
}

// NewChannelSink creates a sink with a small buffer.
func NewChannelSink() *ChannelSink {
	return &ChannelSink{ch: make(chan notify.Notification, 16)}
}

// Publish implements notify.Sink.
func (s *ChannelSink) Publish(n notify.Notification) {
	for {
		select {
		case s.ch <- n:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}

// C returns the receive side for the UI's wait command.
func (s *ChannelSink) C() <-chan notify.Notification {
	return s.ch
}
