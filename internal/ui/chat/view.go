// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley-tui/internal/model"
	"github.com/jeranaias/parley-tui/internal/ui/components"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the full chat screen.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	header := m.renderHeader()
	body := m.renderBody()
	if m.toasts.HasToasts() {
		body = m.withToasts(body)
	}
	input := m.renderInput()
	status := m.statusBar.Render(m.theme, m.shortcuts())

	screen := lipgloss.JoinVertical(lipgloss.Left, header, body, input, status)

	switch m.mode {
	case modeRename:
		return m.overlay(screen, m.renderRenamePrompt())
	case modeConfirmDelete:
		return m.overlay(screen, m.renderDeleteConfirm())
	}

	return screen
}

// withToasts replaces the bottom rows of the body with the toast
// stack, keeping the overall screen height stable.
func (m *Model) withToasts(body string) string {
	stack := components.RenderToastStack(m.toasts.GetToasts(), m.width, 0)
	stackLines := strings.Split(stack, "\n")
	bodyLines := strings.Split(body, "\n")

	keep := len(bodyLines) - len(stackLines)
	if keep < 0 {
		keep = 0
		stackLines = stackLines[len(stackLines)-len(bodyLines):]
	}

	aligned := make([]string, len(stackLines))
	for i, line := range stackLines {
		aligned[i] = lipgloss.PlaceHorizontal(m.width, lipgloss.Right, line)
	}

	return strings.Join(append(bodyLines[:keep], aligned...), "\n")
}

// renderHeader draws the title line for the current chat.
func (m *Model) renderHeader() string {
	title := "parley"
	subtitle := ""
	if m.snapshot.CurrentChat != nil {
		subtitle = m.snapshot.CurrentChat.DisplayTitle()
	}

	line := m.theme.HeaderTitle.Render(title)
	if subtitle != "" {
		line += m.theme.HeaderSubtitle.Render("  │  " + subtitle)
	}
	return m.theme.Header.Width(m.width).Render(line)
}

// renderBody joins the sidebar and the message viewport.
func (m *Model) renderBody() string {
	messages := m.viewport.View()
	if !m.showSidebar {
		return messages
	}
	side := m.sidebar.Render(m.theme, m.focus == focusSidebar)
	return lipgloss.JoinHorizontal(lipgloss.Top, side, messages)
}

// renderInput draws the compose box, with a thinking indicator while a
// reply is pending.
func (m *Model) renderInput() string {
	if m.snapshot.Pending {
		thinking := m.spinner.View() + " " + m.theme.ThinkingText.Render("Assistant is thinking...")
		return m.theme.InputContainer.Width(m.width - 2).Render(thinking + "\n" + m.input.View())
	}
	return m.theme.InputContainer.Width(m.width - 2).Render(m.input.View())
}

// renderMessages renders the current ledger for the viewport.
func (m *Model) renderMessages() string {
	if m.snapshot.CurrentChat == nil {
		return m.renderWelcome()
	}
	if len(m.snapshot.Messages) == 0 {
		return m.theme.MessageMeta.Render("\n  No messages yet. Say hello!")
	}

	width := m.viewport.Width
	if width <= 0 {
		width = 72
	}
	bubbleWidth := width * 3 / 4
	if bubbleWidth < 20 {
		bubbleWidth = 20
	}

	var b strings.Builder
	for _, msg := range m.snapshot.Messages {
		b.WriteString(m.renderMessage(msg, width, bubbleWidth))
		b.WriteString("\n")
	}
	return b.String()
}

// renderMessage draws one message bubble with its meta line. User
// messages align right, assistant and system messages left.
func (m *Model) renderMessage(msg model.Message, width, bubbleWidth int) string {
	meta := msg.Role.DisplayName()
	if m.showTimestamps && !msg.CreatedAt.IsZero() {
		meta += " · " + msg.CreatedAt.Format("15:04")
	}

	content := msg.Content
	var bubble string
	align := lipgloss.Left

	switch msg.Role {
	case model.RoleUser:
		bubble = m.theme.UserBubble.MaxWidth(bubbleWidth).Render(content)
		align = lipgloss.Right
	case model.RoleAssistant:
		bubble = m.theme.AssistantBubble.MaxWidth(bubbleWidth).Render(m.renderMarkdown(content))
	default:
		bubble = m.theme.SystemBubble.MaxWidth(bubbleWidth).Render(content)
	}

	block := lipgloss.JoinVertical(align, m.theme.MessageMeta.Render(meta), bubble)
	return lipgloss.PlaceHorizontal(width, align, block)
}

// renderMarkdown renders assistant content through glamour, falling
// back to the raw text when rendering fails.
func (m *Model) renderMarkdown(content string) string {
	if m.markdown == nil {
		return content
	}
	out, err := m.markdown.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

// renderWelcome fills the viewport when no chat is selected.
func (m *Model) renderWelcome() string {
	logo := m.theme.WelcomeLogo.Render("parley")
	info := m.theme.WelcomeInfo.Render("Press ctrl+n to start a new chat")
	box := m.theme.WelcomeBox.Render(logo + "\n\n" + info)
	return lipgloss.Place(m.viewport.Width, m.viewport.Height, lipgloss.Center, lipgloss.Center, box)
}

// =============================================================================
// MODAL OVERLAYS
// =============================================================================

func (m *Model) renderRenamePrompt() string {
	title := m.theme.PromptTitle.Render("Rename chat")
	hint := m.theme.ShortcutDesc.Render("enter to save · esc to cancel")
	return m.theme.PromptBox.Render(title + "\n\n" + m.renameInput.View() + "\n\n" + hint)
}

func (m *Model) renderDeleteConfirm() string {
	title := m.theme.PromptTitle.Render("Delete chat?")
	body := m.theme.InputText.Render("\"" + m.deleteTitle + "\" and all its messages will be removed.")
	hint := m.theme.ShortcutDesc.Render("y to delete · n to cancel")
	return m.theme.PromptBox.BorderForeground(m.theme.ErrorStyle.GetForeground()).
		Render(title + "\n\n" + body + "\n\n" + hint)
}

// overlay centers a modal box over the screen.
func (m *Model) overlay(_, box string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// shortcuts returns the status bar hints for the current focus.
func (m *Model) shortcuts() []components.Shortcut {
	if m.focus == focusSidebar {
		return []components.Shortcut{
			{Key: "↑/↓", Desc: "navigate"},
			{Key: "enter", Desc: "open"},
			{Key: "ctrl+r", Desc: "rename"},
			{Key: "ctrl+d", Desc: "delete"},
			{Key: "tab", Desc: "compose"},
		}
	}
	return []components.Shortcut{
		{Key: "enter", Desc: "send"},
		{Key: "ctrl+n", Desc: "new chat"},
		{Key: "tab", Desc: "chats"},
		{Key: "ctrl+c", Desc: "quit"},
	}
}
