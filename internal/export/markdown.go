// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/model"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/util"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter renders a transcript as a Markdown document with YAML
// frontmatter.
type MarkdownExporter struct{}

// FileExtension returns ".md".
func (e *MarkdownExporter) FileExtension() string { return ".md" }

// Export converts a conversation to Markdown.
func (e *MarkdownExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}
	if conv.IsEmpty() {
		return nil, fmt.Errorf("conversation has no messages")
	}

	var sb strings.Builder

	sb.WriteString("---\n")
	sb.WriteString(fmt.Sprintf("title: %s\n", escapeYAML(conv.GetName())))
	if conv.ID != "" {
		sb.WriteString(fmt.Sprintf("conversation: %s\n", conv.ID))
	}
	sb.WriteString(fmt.Sprintf("messages: %d\n", conv.MessageCount()))
	sb.WriteString(fmt.Sprintf("exported: %s\n", time.Now().Format(time.RFC3339)))
	sb.WriteString("generator: gaab-chat\n")
	sb.WriteString("---\n\n")

	for _, msg := range conv.Messages {
		e.writeMessage(&sb, msg)
	}

	return []byte(sb.String()), nil
}

func (e *MarkdownExporter) writeMessage(sb *strings.Builder, msg *model.Message) {
	switch msg.Role {
	case model.RoleUser:
		sb.WriteString("## You")
	case model.RoleAssistant:
		sb.WriteString("## Assistant")
	case model.RoleAlert:
		sb.WriteString(fmt.Sprintf("> %s\n\n", msg.Content))
		return
	}
	if !msg.Timestamp.IsZero() {
		sb.WriteString(fmt.Sprintf(" (%s)", msg.Timestamp.Format("2006-01-02 15:04")))
	}
	sb.WriteString("\n\n")
	sb.WriteString(msg.GetDisplayContent())
	sb.WriteString("\n\n")

	if len(msg.Attachments) > 0 {
		sb.WriteString("Attachments:\n")
		for _, ref := range msg.Attachments {
			sb.WriteString(fmt.Sprintf("- %s (%s)\n", ref.FileName, util.FormatBytes(ref.FileSize)))
		}
		sb.WriteString("\n")
	}

	if len(msg.SourceDocuments) > 0 {
		sb.WriteString("Sources:\n")
		for i, doc := range msg.SourceDocuments {
			title := doc.DocumentTitle
			if title == "" {
				title = doc.Location
			}
			if doc.Location != "" && title != doc.Location {
				sb.WriteString(fmt.Sprintf("%d. [%s](%s)\n", i+1, title, doc.Location))
			} else {
				sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, title))
			}
		}
		sb.WriteString("\n")
	}
}

// escapeYAML quotes a value when it would break frontmatter parsing.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#\"'\n") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
