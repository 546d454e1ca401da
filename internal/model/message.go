// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"

	// RoleAlert marks client-synthesized notices (connection loss, send
	// failures). Alert messages are never sent to the backend.
	RoleAlert Role = "alert"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleAlert:
		return "Notice"
	default:
		return string(r)
	}
}

// =============================================================================
// SOURCE DOCUMENTS
// =============================================================================

// SourceDocument is a retrieval-grounding citation attached to an assistant
// message. Citations accumulate across repeated citation frames for the same
// streaming message; they never mutate message content.
type SourceDocument struct {
	Excerpt       string  `json:"excerpt"`
	Location      string  `json:"location"`
	Score         float64 `json:"score"`
	DocumentTitle string  `json:"document_title,omitempty"`
	DocumentID    string  `json:"document_id,omitempty"`
}

// =============================================================================
// THINKING METADATA
// =============================================================================

// ThinkingMetadata is an incrementally revealed reasoning summary attached to
// an assistant message, distinct from the final answer content.
type ThinkingMetadata struct {
	StartTime       time.Time `json:"start_time"`
	Duration        float64   `json:"duration"` // seconds; 0 while in progress
	StrippedContent string    `json:"stripped_content"`
}

// InProgress reports whether the reasoning trace is still being produced.
// A non-zero duration is the sole completion signal.
func (t *ThinkingMetadata) InProgress() bool {
	return t.Duration == 0
}

// =============================================================================
// TOOL USAGE
// =============================================================================

// ToolUsageEvent is an opaque record of a backend tool invocation performed
// while producing a response. Events are append-only per message and are
// rendered without interpretation.
type ToolUsageEvent map[string]any

// Name returns the tool name if the backend included one.
func (e ToolUsageEvent) Name() string {
	for _, key := range []string{"toolName", "name"} {
		if v, ok := e[key].(string); ok {
			return v
		}
	}
	return ""
}

// Summary returns a one-line description of the event for display.
func (e ToolUsageEvent) Summary() string {
	if name := e.Name(); name != "" {
		if status, ok := e["status"].(string); ok && status != "" {
			return name + " (" + status + ")"
		}
		return name
	}
	data, err := json.Marshal(e)
	if err != nil {
		return "tool invocation"
	}
	return string(data)
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
//
// Exactly one assistant message may be "open" (IsStreaming) at a time; it is
// always the last element of the conversation while a turn is in progress.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content
	Content string `json:"content"`

	// Streaming state (not persisted).
	// strings.Builder avoids quadratic allocations while deltas arrive.
	IsStreaming   bool            `json:"-"`
	streamContent strings.Builder `json:"-"`

	// Attachments (user messages)
	Attachments []AttachmentRef `json:"attachments,omitempty"`

	// Retrieval citations (assistant messages)
	SourceDocuments []SourceDocument `json:"source_documents,omitempty"`

	// Reasoning trace (assistant messages)
	Thinking *ThinkingMetadata `json:"thinking,omitempty"`

	// Tool usage trace (assistant messages)
	ToolUsage []ToolUsageEvent `json:"tool_usage,omitempty"`
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string, attachments []AttachmentRef) *Message {
	return &Message{
		ID:          generateMessageID(),
		Role:        RoleUser,
		Content:     content,
		Attachments: attachments,
		Timestamp:   time.Now(),
	}
}

// NewAssistantMessage creates a new open (streaming) assistant message.
func NewAssistantMessage() *Message {
	return &Message{
		ID:          generateMessageID(),
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
}

// NewAlertMessage creates a client-synthesized alert message.
func NewAlertMessage(content string) *Message {
	return &Message{
		ID:        generateMessageID(),
		Role:      RoleAlert,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendDelta appends a content delta to an open message. Deltas arriving
// after the message has been closed are dropped.
func (m *Message) AppendDelta(delta string) {
	if m.IsStreaming {
		m.streamContent.WriteString(delta)
	}
}

// AttachSource appends a citation to the message.
func (m *Message) AttachSource(doc SourceDocument) {
	m.SourceDocuments = append(m.SourceDocuments, doc)
}

// AppendToolUsage appends a tool usage event to the message.
func (m *Message) AppendToolUsage(event ToolUsageEvent) {
	m.ToolUsage = append(m.ToolUsage, event)
}

// MergeThinking folds a reasoning-trace update into the message. Content
// accumulates; a non-zero duration marks the trace complete.
func (m *Message) MergeThinking(update ThinkingMetadata) {
	if m.Thinking == nil {
		m.Thinking = &ThinkingMetadata{StartTime: update.StartTime}
		if m.Thinking.StartTime.IsZero() {
			m.Thinking.StartTime = time.Now()
		}
	}
	m.Thinking.StrippedContent += update.StrippedContent
	if update.Duration > 0 {
		m.Thinking.Duration = update.Duration
	}
}

// Close finalizes an open message, merging streamed content into Content.
// Closing an already closed message is a no-op.
func (m *Message) Close() {
	if !m.IsStreaming {
		return
	}
	m.Content += m.streamContent.String()
	m.streamContent.Reset()
	m.IsStreaming = false
}

// GetDisplayContent returns the content to display (streaming or final).
func (m *Message) GetDisplayContent() string {
	if m.IsStreaming {
		return m.Content + m.streamContent.String()
	}
	return m.Content
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	return util.TruncateRunes(m.GetDisplayContent(), maxLen)
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0 && m.streamContent.Len() == 0
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateMessageID creates a unique message ID.
func generateMessageID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "msg_" + hex.EncodeToString(bytes)
}
