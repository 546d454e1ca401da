// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/notify"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/transport"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/ui/styles"
)

// StatusBar renders the bottom status line: the current notification (or
// the connection state when none is active) and key hints. Transient
// notifications self-clear after their TTL.
type StatusBar struct {
	theme *styles.Theme

	current    notify.Notification
	hasCurrent bool
}

// NewStatusBar creates a status bar.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{theme: theme}
}

// SetNotification replaces the displayed notification.
func (s *StatusBar) SetNotification(n notify.Notification) {
	s.current = n
	s.hasCurrent = true
}

// ClearExpired drops a transient notification whose TTL has elapsed.
// Returns true when the display changed.
func (s *StatusBar) ClearExpired(now time.Time) bool {
	if s.hasCurrent && s.current.Expired(now) {
		s.hasCurrent = false
		return true
	}
	return false
}

// connectionLabel maps a transport state to a short status word.
func connectionLabel(state transport.State) string {
	switch state {
	case transport.StateOpen:
		return "connected"
	case transport.StateConnecting:
		return "connecting"
	case transport.StateError:
		return "connection error"
	case transport.StateClosed:
		return "disconnected"
	default:
		return "offline"
	}
}

// View renders the bar at the theme's width.
func (s *StatusBar) View(state transport.State, hints [][2]string) string {
	var left string
	if s.hasCurrent {
		switch s.current.Level {
		case notify.LevelSuccess:
			left = s.theme.StatusSuccess.Render(s.current.Message)
		case notify.LevelError:
			left = s.theme.StatusError.Render(s.current.Message)
		default:
			left = s.theme.StatusInfo.Render(s.current.Message)
		}
	} else {
		left = s.theme.StatusInfo.Render(connectionLabel(state))
	}

	right := ""
	for i, h := range hints {
		if i > 0 {
			right += "  "
		}
		right += s.theme.ShortcutKey.Render(h[0]) + " " + s.theme.ShortcutDesc.Render(h[1])
	}

	gap := s.theme.Width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return s.theme.StatusBar.Render(left + lipgloss.NewStyle().Width(gap).Render("") + right)
}
