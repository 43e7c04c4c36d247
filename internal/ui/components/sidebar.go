// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"time"

	"github.com/jeranaias/parley-tui/internal/model"
	"github.com/jeranaias/parley-tui/internal/ui/styles"
	"github.com/jeranaias/parley-tui/internal/util"
)

// =============================================================================
// SIDEBAR
// =============================================================================

// Sidebar renders the chat list. Cursor tracks keyboard navigation
// through the list and is independent of which chat is actually
// selected in the session; the two converge when the user presses
// enter.
type Sidebar struct {
	Chats         []model.Chat
	CurrentChatID string
	Cursor        int
	Width         int
	Height        int
}

// NewSidebar creates a sidebar with default dimensions.
func NewSidebar() *Sidebar {
	return &Sidebar{Width: 28}
}

// SetChats replaces the chat list and clamps the cursor.
func (s *Sidebar) SetChats(chats []model.Chat, currentID string) {
	s.Chats = chats
	s.CurrentChatID = currentID
	if s.Cursor >= len(chats) {
		s.Cursor = len(chats) - 1
	}
	if s.Cursor < 0 {
		s.Cursor = 0
	}
}

// CursorUp moves the cursor up one chat.
func (s *Sidebar) CursorUp() {
	if s.Cursor > 0 {
		s.Cursor--
	}
}

// CursorDown moves the cursor down one chat.
func (s *Sidebar) CursorDown() {
	if s.Cursor < len(s.Chats)-1 {
		s.Cursor++
	}
}

// CursorChat returns the chat under the cursor, or nil when the list
// is empty.
func (s *Sidebar) CursorChat() *model.Chat {
	if s.Cursor < 0 || s.Cursor >= len(s.Chats) {
		return nil
	}
	c := s.Chats[s.Cursor]
	return &c
}

// SyncCursor moves the cursor to the chat with the given ID, if present.
func (s *Sidebar) SyncCursor(chatID string) {
	for i, c := range s.Chats {
		if c.ID == chatID {
			s.Cursor = i
			return
		}
	}
}

// Render draws the sidebar using the theme, focused controls whether
// the cursor row is highlighted.
func (s *Sidebar) Render(theme *styles.Theme, focused bool) string {
	innerWidth := s.Width - 4
	if innerWidth < 8 {
		innerWidth = 8
	}

	var b strings.Builder
	b.WriteString(theme.SidebarTitle.Render("Chats"))
	b.WriteString("\n\n")

	if len(s.Chats) == 0 {
		b.WriteString(theme.SidebarMeta.Render("No chats yet"))
	}

	visible := s.Height - 4
	if visible < 1 {
		visible = len(s.Chats)
	}
	start := 0
	if s.Cursor >= visible {
		start = s.Cursor - visible + 1
	}

	for i := start; i < len(s.Chats) && i < start+visible; i++ {
		chat := s.Chats[i]

		marker := "  "
		if chat.ID == s.CurrentChatID {
			marker = styles.StatusIndicators.Info + " "
		}

		title := util.TruncateWidth(chat.DisplayTitle(), innerWidth-2)
		line := marker + title

		switch {
		case focused && i == s.Cursor:
			b.WriteString(theme.SidebarItemSelected.Render(util.PadRight(line, innerWidth)))
		case chat.ID == s.CurrentChatID:
			b.WriteString(theme.SidebarItem.Bold(true).Render(line))
		default:
			b.WriteString(theme.SidebarItem.Render(line))
		}
		b.WriteString("\n")

		meta := relativeTime(chat.UpdatedAt)
		if chat.IsArchived {
			meta += " · archived"
		}
		b.WriteString(theme.SidebarMeta.Render("  " + meta))
		b.WriteString("\n")
	}

	return theme.Sidebar.
		Width(s.Width).
		Height(s.Height).
		Render(b.String())
}

// relativeTime formats a timestamp the way the chat list shows it.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return util.IntToString(int(d.Minutes())) + "m ago"
	case d < 24*time.Hour:
		return util.IntToString(int(d.Hours())) + "h ago"
	case d < 48*time.Hour:
		return "yesterday"
	default:
		return t.Format("Jan 2")
	}
}
