// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/parley-tui/internal/session"
	"github.com/jeranaias/parley-tui/internal/ui/components"
)

// sidebarWidth is the fixed width of the chat list pane.
const sidebarWidth = 30

// =============================================================================
// UPDATE
// =============================================================================

// Update routes messages to the active pane and modal.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case StateMsg:
		m.applySnapshot(msg.Snapshot)
		return m, nil

	case NoticeMsg:
		switch msg.Notice.Kind {
		case session.NoticeError:
			m.toasts.AddError(msg.Notice.Text)
		default:
			m.toasts.AddStatus(msg.Notice.Text)
		}
		return m, nil

	case OpDoneMsg:
		return m.handleOpDone(msg)

	case components.ToastTickMsg:
		m.toasts.TickToasts()
		return m, components.ToastTickCmd()

	case session.IdleTickMsg:
		if m.idle == nil {
			return m, nil
		}
		return m, m.idle.HandleTick()

	case session.IdleWarningMsg:
		m.idleWarning = "Signing out in " + session.FormatDuration(msg.Remaining) + " due to inactivity"
		m.toasts.AddToast(components.NewWarningToast(m.idleWarning))
		return m, nil

	case session.IdleExpiredMsg:
		return m, m.signOutCmd()

	case SignedOutMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		if !m.snapshot.Pending {
			return m, m.spinner.Tick
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.idle != nil {
			m.idle.RecordActivity()
			m.idleWarning = ""
		}
		return m.handleKey(msg)
	}

	return m, nil
}

// resize recomputes the pane layout after a terminal size change.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)

	contentWidth := width
	if m.showSidebar {
		contentWidth -= sidebarWidth
	}
	if contentWidth < 20 {
		contentWidth = 20
	}

	headerHeight := 1
	inputHeight := 5
	statusHeight := 1
	bodyHeight := height - headerHeight - inputHeight - statusHeight
	if bodyHeight < 3 {
		bodyHeight = 3
	}

	m.sidebar.Width = sidebarWidth
	m.sidebar.Height = bodyHeight

	m.input.SetWidth(contentWidth - 4)
	m.statusBar.Width = width

	if !m.ready {
		m.viewport = viewport.New(contentWidth-2, bodyHeight)
		m.ready = true
	} else {
		m.viewport.Width = contentWidth - 2
		m.viewport.Height = bodyHeight
	}
	m.viewport.SetContent(m.renderMessages())
	if m.stickToBottom {
		m.viewport.GotoBottom()
	}
}

// handleOpDone folds an operation result back into the view. Session
// failures already reached the user through a notice, and validation
// rejections stay silent; the only visible effects here are the draft
// coming back on a refused send and a toast for sign-out failures,
// which have no notice path.
func (m *Model) handleOpDone(msg OpDoneMsg) (tea.Model, tea.Cmd) {
	if msg.Err == nil {
		return m, nil
	}

	if msg.Op == "send-message" && sendRejected(msg.Err) {
		// Nothing was persisted, give the draft back.
		if m.input.Value() == "" {
			m.input.SetValue(m.lastDraft)
		}
		return m, nil
	}

	if msg.Op == "sign-out" {
		m.toasts.AddError(msg.Err.Error())
	}
	return m, nil
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Quit works everywhere.
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.mode {
	case modeRename:
		return m.handleRenameKey(msg)
	case modeConfirmDelete:
		return m.handleConfirmDeleteKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.ToggleSidebar):
		m.showSidebar = !m.showSidebar
		if !m.showSidebar {
			m.focus = focusInput
			m.input.Focus()
		}
		m.resize(m.width, m.height)
		return m, nil

	case key.Matches(msg, m.keys.FocusSidebar):
		if !m.showSidebar {
			return m, nil
		}
		if m.focus == focusInput {
			m.focus = focusSidebar
			m.input.Blur()
			m.sidebar.SyncCursor(m.currentChatID())
		} else {
			m.focus = focusInput
			m.input.Focus()
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		// Re-pull the roster and the current ledger, picking up writes
		// from another parley process against the same database.
		return m, tea.Batch(loadChatsCmd(m.orchestrator), loadMessagesCmd(m.orchestrator))

	case key.Matches(msg, m.keys.NewChat):
		return m, createChatCmd(m.orchestrator)

	case key.Matches(msg, m.keys.RenameChat):
		return m.openRenamePrompt()

	case key.Matches(msg, m.keys.DeleteChat):
		return m.openDeleteConfirm()

	case key.Matches(msg, m.keys.ArchiveChat):
		if id := m.targetChatID(); id != "" {
			return m, archiveChatCmd(m.orchestrator, id)
		}
		return m, nil

	case key.Matches(msg, m.keys.SignOut):
		return m, m.signOutCmd()

	case key.Matches(msg, m.keys.PageUp):
		m.stickToBottom = false
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		if m.viewport.AtBottom() {
			m.stickToBottom = true
		}
		return m, nil
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}
	return m.handleInputKey(msg)
}

func (m *Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.sidebar.CursorUp()
	case key.Matches(msg, m.keys.Down):
		m.sidebar.CursorDown()
	case key.Matches(msg, m.keys.Select):
		if chat := m.sidebar.CursorChat(); chat != nil {
			m.focus = focusInput
			m.input.Focus()
			m.stickToBottom = true
			return m, selectChatCmd(m.orchestrator, chat.ID)
		}
	case key.Matches(msg, m.keys.Cancel):
		m.focus = focusInput
		m.input.Focus()
	}
	return m, nil
}

func (m *Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Send) && !msg.Alt {
		content := strings.TrimSpace(m.input.Value())
		if content == "" {
			return m, nil
		}
		// Mirror the session's refusal conditions so a blocked send
		// keeps the draft in the box instead of round-tripping.
		if m.snapshot.Pending || m.snapshot.CurrentChat == nil {
			return m, nil
		}
		m.lastDraft = content
		m.input.Reset()
		m.stickToBottom = true
		return m, sendMessageCmd(m.orchestrator, content)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// MODAL PROMPTS
// =============================================================================

// targetChatID is the chat a management shortcut operates on: the
// cursor chat when the sidebar has focus, otherwise the current chat.
func (m *Model) targetChatID() string {
	if m.focus == focusSidebar {
		if chat := m.sidebar.CursorChat(); chat != nil {
			return chat.ID
		}
	}
	return m.currentChatID()
}

func (m *Model) openRenamePrompt() (tea.Model, tea.Cmd) {
	id := m.targetChatID()
	if id == "" {
		return m, nil
	}

	title := ""
	for _, c := range m.snapshot.Chats {
		if c.ID == id {
			title = c.DisplayTitle()
			break
		}
	}

	m.mode = modeRename
	m.renameTarget = id
	m.renameInput.SetValue(title)
	m.renameInput.CursorEnd()
	m.renameInput.Focus()
	m.input.Blur()
	return m, nil
}

func (m *Model) handleRenameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.closePrompt()
		return m, nil

	case msg.Type == tea.KeyEnter:
		title := strings.TrimSpace(m.renameInput.Value())
		target := m.renameTarget
		m.closePrompt()
		// A blank title is a no-op, same as the orchestrator's refusal.
		if title == "" {
			return m, nil
		}
		return m, renameChatCmd(m.orchestrator, target, title)
	}

	var cmd tea.Cmd
	m.renameInput, cmd = m.renameInput.Update(msg)
	return m, cmd
}

func (m *Model) openDeleteConfirm() (tea.Model, tea.Cmd) {
	id := m.targetChatID()
	if id == "" {
		return m, nil
	}

	title := ""
	for _, c := range m.snapshot.Chats {
		if c.ID == id {
			title = c.DisplayTitle()
			break
		}
	}

	m.mode = modeConfirmDelete
	m.deleteTarget = id
	m.deleteTitle = title
	m.input.Blur()
	return m, nil
}

func (m *Model) handleConfirmDeleteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch strings.ToLower(msg.String()) {
	case "y", "enter":
		target := m.deleteTarget
		m.closePrompt()
		return m, deleteChatCmd(m.orchestrator, target)
	case "n", "esc":
		m.closePrompt()
	}
	return m, nil
}

func (m *Model) closePrompt() {
	m.mode = modeChat
	m.renameTarget = ""
	m.deleteTarget = ""
	m.deleteTitle = ""
	m.renameInput.Blur()
	m.renameInput.Reset()
	if m.focus == focusInput {
		m.input.Focus()
	}
}

// signOutCmd tears down the session through the guard; the guard's
// OnSignedOut callback clears the orchestrator.
func (m *Model) signOutCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if m.guard != nil {
			if err := m.guard.SignOut(ctx); err != nil {
				return OpDoneMsg{Op: "sign-out", Err: err}
			}
		}
		return SignedOutMsg{}
	}
}
