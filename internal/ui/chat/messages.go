// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/model"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/ui/styles"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/util"
)

// renderer formats transcript messages for the viewport.
type renderer struct {
	theme          *styles.Theme
	markdown       *glamour.TermRenderer
	renderMarkdown bool
	showSources    bool
	showThinking   bool
	width          int
}

func newRenderer(theme *styles.Theme, width int, renderMarkdown, showSources, showThinking bool) *renderer {
	r := &renderer{
		theme:          theme,
		renderMarkdown: renderMarkdown,
		showSources:    showSources,
		showThinking:   showThinking,
		width:          width,
	}
	if renderMarkdown {
		style := "light"
		if theme.IsDark {
			style = "dark"
		}
		md, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
		)
		if err == nil {
			r.markdown = md
		}
	}
	return r
}

// Conversation renders the whole transcript.
func (r *renderer) Conversation(conv *model.Conversation) string {
	if conv.IsEmpty() {
		return r.theme.InputHint.Render("Type a message to start the conversation.")
	}
	var b strings.Builder
	for i, msg := range conv.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(r.Message(msg))
	}
	return b.String()
}

// Message renders one transcript entry.
func (r *renderer) Message(msg *model.Message) string {
	var b strings.Builder

	switch msg.Role {
	case model.RoleUser:
		b.WriteString(r.theme.UserLabel.Render("You"))
	case model.RoleAssistant:
		b.WriteString(r.theme.AssistantLabel.Render("Assistant"))
	case model.RoleAlert:
		b.WriteString(r.theme.AlertText.Render(msg.Content))
		b.WriteString("\n")
		return b.String()
	}
	b.WriteString(" ")
	b.WriteString(r.theme.Timestamp.Render(msg.Timestamp.Format("15:04")))
	b.WriteString("\n")

	b.WriteString(r.body(msg))
	b.WriteString("\n")

	if len(msg.Attachments) > 0 {
		b.WriteString(r.attachments(msg.Attachments))
	}
	if r.showThinking && msg.Thinking != nil {
		b.WriteString(r.thinking(msg.Thinking))
	}
	if len(msg.ToolUsage) > 0 {
		b.WriteString(r.toolUsage(msg.ToolUsage))
	}
	if r.showSources && len(msg.SourceDocuments) > 0 {
		b.WriteString(r.citations(msg.SourceDocuments))
	}
	return b.String()
}

// body renders the message text. Markdown formatting applies only to
// finalized assistant answers; streaming content stays plain so partial
// markup never flickers.
func (r *renderer) body(msg *model.Message) string {
	content := msg.GetDisplayContent()
	if content == "" && msg.IsStreaming {
		return r.theme.InputHint.Render("...")
	}
	if msg.Role == model.RoleAssistant && !msg.IsStreaming && r.markdown != nil {
		if out, err := r.markdown.Render(content); err == nil {
			return strings.TrimRight(out, "\n")
		}
	}
	return r.theme.MessageBody.Render(content)
}

func (r *renderer) attachments(refs []model.AttachmentRef) string {
	var b strings.Builder
	for _, ref := range refs {
		tag := fmt.Sprintf("[%s %s]", ref.FileName, util.FormatBytes(ref.FileSize))
		b.WriteString(r.theme.AttachmentTag.Render(tag))
		b.WriteString(" ")
	}
	b.WriteString("\n")
	return b.String()
}

func (r *renderer) thinking(t *model.ThinkingMetadata) string {
	label := "thinking..."
	if !t.InProgress() {
		label = fmt.Sprintf("thought for %.1fs", t.Duration)
	}
	line := r.theme.Thinking.Render(label)
	if t.StrippedContent != "" {
		summary := util.TruncateWidth(t.StrippedContent, r.width-6)
		line += "\n" + r.theme.Thinking.Render(summary)
	}
	return line + "\n"
}

func (r *renderer) toolUsage(events []model.ToolUsageEvent) string {
	var b strings.Builder
	for _, ev := range events {
		b.WriteString(r.theme.ToolUsage.Render("tool: " + ev.Summary()))
		b.WriteString("\n")
	}
	return b.String()
}

func (r *renderer) citations(docs []model.SourceDocument) string {
	var b strings.Builder
	b.WriteString(r.theme.CitationTitle.Render(fmt.Sprintf("Sources (%d)", len(docs))))
	b.WriteString("\n")
	for i, doc := range docs {
		title := doc.DocumentTitle
		if title == "" {
			title = doc.Location
		}
		line := fmt.Sprintf("%d. %s", i+1, title)
		b.WriteString(r.theme.Citation.Render(util.TruncateWidth(line, r.width-4)))
		b.WriteString("\n")
		if doc.Excerpt != "" {
			excerpt := util.TruncateWidth(doc.Excerpt, r.width-8)
			b.WriteString(r.theme.Citation.Render("   " + excerpt))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// stagedFiles renders the attachment staging area above the input box.
func (r *renderer) stagedFiles(list []model.UploadedFile) string {
	if len(list) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range list {
		tag := fmt.Sprintf("%s (%s, %s)", f.FileName, util.FormatBytes(f.FileSize), f.UploadStatus)
		if f.UploadStatus == model.UploadStatusErrored {
			b.WriteString(r.theme.AttachmentErr.Render("✗ " + tag))
		} else {
			b.WriteString(r.theme.AttachmentTag.Render("• " + tag))
		}
		b.WriteString("\n")
	}
	return b.String()
}
