// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"

	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/restapi"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/ui/styles"
)

// feedbackForm is the inline overlay for rating the latest assistant
// response. A thumbs-up submits immediately; a thumbs-down opens the form
// for an optional comment.
type feedbackForm struct {
	theme *styles.Theme

	active    bool
	messageID string
	verdict   string
	comment   textinput.Model
}

func newFeedbackForm(theme *styles.Theme, maxComment int) *feedbackForm {
	ti := textinput.New()
	ti.Placeholder = "What went wrong? (optional, enter to submit)"
	ti.CharLimit = maxComment
	ti.Width = 60
	return &feedbackForm{theme: theme, comment: ti}
}

// open shows the form for one message and verdict.
func (f *feedbackForm) open(messageID, verdict string) {
	f.active = true
	f.messageID = messageID
	f.verdict = verdict
	f.comment.SetValue("")
	f.comment.Focus()
}

// dismiss hides the form without submitting.
func (f *feedbackForm) dismiss() {
	f.active = false
	f.comment.Blur()
}

// View renders the form box.
func (f *feedbackForm) View() string {
	if !f.active {
		return ""
	}
	label := "Not helpful"
	if f.verdict == restapi.FeedbackPositive {
		label = "Helpful"
	}
	body := f.theme.FeedbackLabel.Render(label) + "\n\n" +
		f.comment.View() + "\n\n" +
		f.theme.ShortcutKey.Render("enter") + f.theme.ShortcutDesc.Render(" submit   ") +
		f.theme.ShortcutKey.Render("esc") + f.theme.ShortcutDesc.Render(" cancel")
	box := f.theme.FeedbackBox.Render(body)
	return lipgloss.PlaceHorizontal(f.theme.Width, lipgloss.Center, box)
}
