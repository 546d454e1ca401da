// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"
)

// MaxMessages is the maximum number of messages to keep in conversation
// history. When exceeded, old messages are pruned to prevent unbounded
// memory growth.
const MaxMessages = 1000

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds a complete chat conversation.
//
// ID is empty until the backend assigns one on the first response of a
// session; once assigned it is immutable for the session. The message log is
// append-only during a turn: the only in-place mutation permitted is updating
// the content, citations, thinking and tool usage of the single open
// assistant message.
type Conversation struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Messages  []*Message `json:"messages"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewConversation creates an empty conversation with no backend identity.
func NewConversation() *Conversation {
	return &Conversation{
		Messages:  make([]*Message, 0),
		UpdatedAt: time.Now(),
	}
}

// =============================================================================
// TURN MANAGEMENT
// =============================================================================

// AddUserMessage appends a user message and returns it.
func (c *Conversation) AddUserMessage(content string, attachments []AttachmentRef) *Message {
	msg := NewUserMessage(content, attachments)
	c.add(msg)
	return msg
}

// AddAlert appends a client-synthesized alert message and returns it.
func (c *Conversation) AddAlert(content string) *Message {
	msg := NewAlertMessage(content)
	c.add(msg)
	return msg
}

// OpenAssistant appends a new open assistant message and returns it. Any
// previously open message is closed first, preserving the invariant that at
// most one assistant message receives deltas at a time.
func (c *Conversation) OpenAssistant() *Message {
	if open := c.Open(); open != nil {
		open.Close()
	}
	msg := NewAssistantMessage()
	c.add(msg)
	return msg
}

// Open returns the currently open assistant message, or nil when no turn is
// streaming. While streaming, the open message is always the last element.
func (c *Conversation) Open() *Message {
	last := c.LastMessage()
	if last != nil && last.Role == RoleAssistant && last.IsStreaming {
		return last
	}
	return nil
}

// CloseTurn closes the open assistant message, if any.
func (c *Conversation) CloseTurn() {
	if open := c.Open(); open != nil {
		open.Close()
		c.UpdatedAt = time.Now()
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// LastMessage returns the most recent message, or nil if empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// GetName returns the conversation name or a default.
func (c *Conversation) GetName() string {
	if c.Name != "" {
		return c.Name
	}
	return "New Conversation"
}

// =============================================================================
// RESET
// =============================================================================

// Reset clears all messages and the backend-assigned identity. This is
// irreversible; callers are expected to confirm with the user first.
func (c *Conversation) Reset() {
	c.ID = ""
	c.Name = ""
	c.Messages = make([]*Message, 0)
	c.UpdatedAt = time.Now()
}

// =============================================================================
// INTERNAL
// =============================================================================

func (c *Conversation) add(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
	c.updateName()
	c.pruneOldMessages()
}

// updateName derives the conversation name from the first user message.
func (c *Conversation) updateName() {
	if c.Name != "" {
		return
	}
	for _, msg := range c.Messages {
		if msg.Role == RoleUser {
			c.Name = msg.Preview(50)
			return
		}
	}
}

// pruneOldMessages drops the oldest messages once the log exceeds
// MaxMessages. The open assistant message, being last, is never pruned.
func (c *Conversation) pruneOldMessages() {
	if len(c.Messages) <= MaxMessages {
		return
	}
	c.Messages = c.Messages[len(c.Messages)-MaxMessages:]
}

// Clone creates a deep copy of the conversation, safe to read concurrently
// with further mutation of the original. Streamed content is materialized
// into Content; the clone shares no mutable state with the original, so a
// snapshot handed to another goroutine stays stable while the live
// conversation keeps receiving deltas.
func (c *Conversation) Clone() *Conversation {
	clone := &Conversation{
		ID:        c.ID,
		Name:      c.Name,
		UpdatedAt: c.UpdatedAt,
		Messages:  make([]*Message, len(c.Messages)),
	}
	for i, msg := range c.Messages {
		msgCopy := *msg
		msgCopy.Content = msg.GetDisplayContent()
		msgCopy.streamContent.Reset()
		if len(msg.Attachments) > 0 {
			msgCopy.Attachments = append([]AttachmentRef(nil), msg.Attachments...)
		}
		if len(msg.SourceDocuments) > 0 {
			msgCopy.SourceDocuments = append([]SourceDocument(nil), msg.SourceDocuments...)
		}
		if len(msg.ToolUsage) > 0 {
			msgCopy.ToolUsage = append([]ToolUsageEvent(nil), msg.ToolUsage...)
		}
		if msg.Thinking != nil {
			thinkingCopy := *msg.Thinking
			msgCopy.Thinking = &thinkingCopy
		}
		clone.Messages[i] = &msgCopy
	}
	return clone
}
