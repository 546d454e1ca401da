// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/model"
)

// EndConversationToken is the in-band sentinel that closes a streaming turn.
const EndConversationToken = "##END_CONVERSATION##"

// Frame is an inbound backend message. Data and ErrorMessage are pointers
// so an absent key is distinguishable from an empty string.
type Frame struct {
	Data           *string             `json:"data"`
	ErrorMessage   *string             `json:"errorMessage"`
	ConversationID string              `json:"conversationId"`
	SourceDocument *wireSourceDocument `json:"sourceDocument"`
	ToolUsage      map[string]any      `json:"toolUsage"`
	Thinking       *wireThinking       `json:"thinking"`
}

// wireSourceDocument is the citation payload as the backend sends it.
type wireSourceDocument struct {
	Excerpt       string  `json:"excerpt"`
	Location      string  `json:"location"`
	Score         float64 `json:"score"`
	DocumentTitle string  `json:"documentTitle"`
	DocumentID    string  `json:"documentId"`
}

func (w *wireSourceDocument) toModel() model.SourceDocument {
	return model.SourceDocument{
		Excerpt:       w.Excerpt,
		Location:      NormalizeLocation(w.Location),
		Score:         w.Score,
		DocumentTitle: w.DocumentTitle,
		DocumentID:    w.DocumentID,
	}
}

// wireThinking is the reasoning-trace payload as the backend sends it. A
// zero duration means the trace is still in progress.
type wireThinking struct {
	Duration        float64 `json:"duration"`
	StrippedContent string  `json:"strippedContent"`
}

func (w *wireThinking) toModel() model.ThinkingMetadata {
	return model.ThinkingMetadata{
		Duration:        w.Duration,
		StrippedContent: w.StrippedContent,
	}
}

// DecodeFrame parses a raw socket frame.
func DecodeFrame(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	return &f, nil
}

// MutationKind describes what an applied frame did to the conversation.
type MutationKind int

const (
	// MutationNone means the frame changed nothing (post-terminal frame).
	MutationNone MutationKind = iota
	// MutationDelta appended streamed content.
	MutationDelta
	// MutationCitation attached a source document.
	MutationCitation
	// MutationMetadata merged thinking or tool-usage data.
	MutationMetadata
	// MutationClose closed the turn.
	MutationClose
	// MutationError appended upstream error text and closed the turn.
	MutationError
)

// Interpreter applies inbound frames to a conversation. Classification is
// first match wins: upstream error, citation, terminal marker, delta.
type Interpreter struct{}

// Apply mutates conv per the frame and reports what changed. The backend's
// conversation id, when present, is returned so the engine can adopt it.
func (Interpreter) Apply(conv *model.Conversation, f *Frame) (MutationKind, string) {
	// Upstream errors render inline and end the turn. An error frame
	// arriving outside a turn still opens a fresh message so the failure
	// is visible.
	if f.ErrorMessage != nil && *f.ErrorMessage != EndConversationToken {
		open := conv.Open()
		if open == nil {
			open = conv.OpenAssistant()
		}
		open.AppendDelta(formatUpstreamError(*f.ErrorMessage))
		conv.CloseTurn()
		return MutationError, f.ConversationID
	}

	// Citations attach to the open message and never close the turn.
	if f.SourceDocument != nil {
		open := openForTurn(conv)
		if open == nil {
			return MutationNone, f.ConversationID
		}
		open.AttachSource(f.SourceDocument.toModel())
		return MutationCitation, f.ConversationID
	}

	// Thinking traces and tool usage accumulate without closing.
	if f.Thinking != nil || len(f.ToolUsage) > 0 {
		open := openForTurn(conv)
		if open == nil {
			return MutationNone, f.ConversationID
		}
		if f.Thinking != nil {
			open.MergeThinking(f.Thinking.toModel())
		}
		if len(f.ToolUsage) > 0 {
			open.AppendToolUsage(model.ToolUsageEvent(f.ToolUsage))
		}
		return MutationMetadata, f.ConversationID
	}

	// Terminal marker: absent data or the sentinel token in either slot.
	if f.Data == nil || *f.Data == EndConversationToken ||
		(f.ErrorMessage != nil && *f.ErrorMessage == EndConversationToken) {
		if conv.Open() == nil {
			return MutationNone, f.ConversationID
		}
		conv.CloseTurn()
		return MutationClose, f.ConversationID
	}

	// Content delta. Frames after the turn closed change nothing.
	open := openForTurn(conv)
	if open == nil {
		return MutationNone, f.ConversationID
	}
	open.AppendDelta(*f.Data)
	return MutationDelta, f.ConversationID
}

// openForTurn returns the open assistant message, synthesizing one on the
// first frame of a turn (last message is the user's). Frames that arrive
// after the turn closed get nothing back.
func openForTurn(conv *model.Conversation) *model.Message {
	if open := conv.Open(); open != nil {
		return open
	}
	last := conv.LastMessage()
	if last != nil && last.Role == model.RoleUser {
		return conv.OpenAssistant()
	}
	return nil
}

func formatUpstreamError(msg string) string {
	return "\n\n" + strings.TrimSpace(msg)
}

// NormalizeLocation rewrites object-store locations to browsable HTTPS
// URLs. s3://bucket/key becomes https://bucket.s3.amazonaws.com/key; every
// other URI passes through unchanged.
func NormalizeLocation(location string) string {
	const scheme = "s3://"
	if !strings.HasPrefix(location, scheme) {
		return location
	}
	rest := strings.TrimPrefix(location, scheme)
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" {
		return location
	}
	return "https://" + bucket + ".s3.amazonaws.com/" + key
}
