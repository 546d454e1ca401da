// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter renders a transcript as indented JSON for downstream tools.
type JSONExporter struct{}

// FileExtension returns ".json".
func (e *JSONExporter) FileExtension() string { return ".json" }

type jsonDocument struct {
	Title          string           `json:"title"`
	ConversationID string           `json:"conversation_id,omitempty"`
	ExportedAt     time.Time        `json:"exported_at"`
	Generator      string           `json:"generator"`
	Messages       []*model.Message `json:"messages"`
}

// Export converts a conversation to JSON.
func (e *JSONExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}
	if conv.IsEmpty() {
		return nil, fmt.Errorf("conversation has no messages")
	}

	doc := jsonDocument{
		Title:          conv.GetName(),
		ConversationID: conv.ID,
		ExportedAt:     time.Now(),
		Generator:      "gaab-chat",
		Messages:       conv.Messages,
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding export: %w", err)
	}
	return append(out, '\n'), nil
}
