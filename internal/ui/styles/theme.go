// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components for the application. It detects the
// terminal's color capability and adjusts accordingly.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	// Header
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderMeta  lipgloss.Style

	// Message rendering
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	AlertText      lipgloss.Style
	MessageBody    lipgloss.Style
	Timestamp      lipgloss.Style
	Citation       lipgloss.Style
	CitationTitle  lipgloss.Style
	Thinking       lipgloss.Style
	ToolUsage      lipgloss.Style
	AttachmentTag  lipgloss.Style
	AttachmentErr  lipgloss.Style

	// Input area
	InputContainer lipgloss.Style
	InputHint      lipgloss.Style

	// Status bar and notifications
	StatusBar     lipgloss.Style
	StatusInfo    lipgloss.Style
	StatusSuccess lipgloss.Style
	StatusError   lipgloss.Style
	ShortcutKey   lipgloss.Style
	ShortcutDesc  lipgloss.Style

	// Overlays
	ConfirmBox    lipgloss.Style
	FeedbackBox   lipgloss.Style
	FeedbackLabel lipgloss.Style

	Spinner lipgloss.Style
}

// NewTheme builds the theme for the current terminal.
func NewTheme(width, height int) *Theme {
	output := termenv.DefaultOutput()
	t := &Theme{
		IsDark:       output.HasDarkBackground(),
		ColorProfile: output.ColorProfile(),
		Width:        width,
		Height:       height,
	}
	t.build()
	return t
}

// ForceDark returns a dark-background theme regardless of detection. Used
// when the config pins the theme.
func ForceDark(width, height int) *Theme {
	t := &Theme{IsDark: true, Width: width, Height: height}
	t.build()
	return t
}

// ForceLight returns a light-background theme regardless of detection.
func ForceLight(width, height int) *Theme {
	t := &Theme{IsDark: false, Width: width, Height: height}
	t.build()
	return t
}

func (t *Theme) build() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1).
		Width(t.Width)
	t.HeaderTitle = lipgloss.NewStyle().Foreground(Indigo).Bold(true)
	t.HeaderMeta = lipgloss.NewStyle().Foreground(TextMuted)

	t.UserLabel = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.AssistantLabel = lipgloss.NewStyle().Foreground(Indigo).Bold(true)
	t.AlertText = lipgloss.NewStyle().Foreground(Rose)
	t.MessageBody = lipgloss.NewStyle().Foreground(Text)
	t.Timestamp = lipgloss.NewStyle().Foreground(TextMuted)
	t.Citation = lipgloss.NewStyle().Foreground(TextMuted).PaddingLeft(2)
	t.CitationTitle = lipgloss.NewStyle().Foreground(Emerald).PaddingLeft(2)
	t.Thinking = lipgloss.NewStyle().Foreground(TextMuted).Italic(true).PaddingLeft(2)
	t.ToolUsage = lipgloss.NewStyle().Foreground(Amber).PaddingLeft(2)
	t.AttachmentTag = lipgloss.NewStyle().Foreground(Cyan)
	t.AttachmentErr = lipgloss.NewStyle().Foreground(Rose)

	t.InputContainer = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(0, 1)
	t.InputHint = lipgloss.NewStyle().Foreground(TextMuted)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1).
		Width(t.Width)
	t.StatusInfo = lipgloss.NewStyle().Foreground(TextMuted)
	t.StatusSuccess = lipgloss.NewStyle().Foreground(Emerald)
	t.StatusError = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.ShortcutKey = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)

	t.ConfirmBox = lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Amber).
		Padding(1, 2)
	t.FeedbackBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Indigo).
		Padding(1, 2)
	t.FeedbackLabel = lipgloss.NewStyle().Foreground(Indigo).Bold(true)

	t.Spinner = lipgloss.NewStyle().Foreground(Indigo)
}

// Resize updates width-dependent styles.
func (t *Theme) Resize(width, height int) {
	t.Width = width
	t.Height = height
	t.Header = t.Header.Width(width)
	t.StatusBar = t.StatusBar.Width(width)
}
