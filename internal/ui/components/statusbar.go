// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley-tui/internal/ui/styles"
)

// =============================================================================
// STATUS BAR
// =============================================================================

// Shortcut is one key hint shown in the status bar.
type Shortcut struct {
	Key  string
	Desc string
}

// StatusBar renders the bottom bar: identity on the left, a pending
// indicator in the middle, and keyboard shortcuts on the right.
type StatusBar struct {
	Username string
	Pending  bool
	Width    int
}

// Render draws the status bar at the configured width.
func (sb *StatusBar) Render(theme *styles.Theme, shortcuts []Shortcut) string {
	left := ""
	if sb.Username != "" {
		left = theme.ShortcutDesc.Render("signed in as ") +
			theme.ShortcutKey.Render(sb.Username)
	}

	middle := ""
	if sb.Pending {
		middle = theme.ThinkingText.Render(styles.StatusIndicators.Pending + " waiting for reply")
	}

	hints := make([]string, 0, len(shortcuts))
	for _, s := range shortcuts {
		hints = append(hints,
			theme.ShortcutKey.Render(s.Key)+" "+theme.ShortcutDesc.Render(s.Desc))
	}
	right := strings.Join(hints, "  ")

	if sb.Width <= 0 {
		return theme.StatusBar.Render(left + "  " + middle + "  " + right)
	}

	used := lipgloss.Width(left) + lipgloss.Width(middle) + lipgloss.Width(right)
	gap := sb.Width - used - 2
	if gap < 2 {
		// Too narrow for everything, drop the hints first.
		right = ""
		gap = sb.Width - lipgloss.Width(left) - lipgloss.Width(middle) - 2
		if gap < 2 {
			gap = 2
		}
	}

	leftGap := gap / 2
	rightGap := gap - leftGap

	line := left +
		strings.Repeat(" ", leftGap) +
		middle +
		strings.Repeat(" ", rightGap) +
		right

	return theme.StatusBar.Width(sb.Width).MaxWidth(sb.Width).Render(line)
}
