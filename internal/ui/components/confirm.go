// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/ui/styles"
)

// Confirm is a blocking yes/no prompt overlay. Destructive actions route
// through it before executing.
type Confirm struct {
	theme    *styles.Theme
	question string
	visible  bool
}

// NewConfirm creates a hidden confirm prompt.
func NewConfirm(theme *styles.Theme) *Confirm {
	return &Confirm{theme: theme}
}

// Ask shows the prompt with the given question.
func (c *Confirm) Ask(question string) {
	c.question = question
	c.visible = true
}

// Dismiss hides the prompt.
func (c *Confirm) Dismiss() {
	c.visible = false
}

// Visible reports whether the prompt is capturing input.
func (c *Confirm) Visible() bool {
	return c.visible
}

// View renders the prompt box centered in the available width.
func (c *Confirm) View() string {
	if !c.visible {
		return ""
	}
	body := c.question + "\n\n" +
		c.theme.ShortcutKey.Render("y") + c.theme.ShortcutDesc.Render(" confirm   ") +
		c.theme.ShortcutKey.Render("n") + c.theme.ShortcutDesc.Render(" cancel")
	box := c.theme.ConfirmBox.Render(body)
	return lipgloss.PlaceHorizontal(c.theme.Width, lipgloss.Center, box)
}
