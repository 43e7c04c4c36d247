// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/parley-tui/internal/auth"
	"github.com/jeranaias/parley-tui/internal/session"
	"github.com/jeranaias/parley-tui/internal/ui/components"
	"github.com/jeranaias/parley-tui/internal/ui/styles"
)

// =============================================================================
// FOCUS AND MODES
// =============================================================================

// focusArea tracks which pane receives keystrokes.
type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
)

// viewMode tracks modal prompts layered over the chat.
type viewMode int

const (
	modeChat viewMode = iota
	modeRename
	modeConfirmDelete
)

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat screen. All session state
// lives in the orchestrator; the model only holds the latest snapshot
// plus view concerns (focus, scroll, prompts).
type Model struct {
	orchestrator *session.Orchestrator
	guard        *auth.Guard
	idle         *session.IdleTimeout

	theme  *styles.Theme
	keys   KeyMap
	width  int
	height int

	// Latest session snapshot, replaced wholesale on every StateMsg.
	snapshot session.Snapshot

	// Panes
	input       textarea.Model
	viewport    viewport.Model
	spinner     spinner.Model
	sidebar     *components.Sidebar
	statusBar   *components.StatusBar
	toasts      *components.ToastManager
	showSidebar bool
	focus       focusArea

	// showTimestamps adds send times to message meta lines.
	showTimestamps bool

	// Modal prompts
	mode         viewMode
	renameInput  textinput.Model
	renameTarget string
	deleteTarget string
	deleteTitle  string

	// Markdown rendering for assistant messages. Nil when rendering is
	// configured off or glamour could not initialize; View falls back
	// to plain text.
	markdown *glamour.TermRenderer

	// stickToBottom keeps the viewport pinned to the newest message
	// until the user scrolls away.
	stickToBottom bool

	// lastDraft holds the cleared input text so a rejected send can
	// restore it.
	lastDraft string

	idleWarning string
	ready       bool
	quitting    bool
}

// Config wires the chat model's collaborators and view options.
type Config struct {
	Orchestrator *session.Orchestrator
	Guard        *auth.Guard
	Idle         *session.IdleTimeout
	Theme        *styles.Theme

	// Markdown renders assistant replies through glamour.
	Markdown bool
	// ShowTimestamps adds the send time to each message meta line.
	ShowTimestamps bool
	// Compact starts with the sidebar hidden; ctrl+b brings it back.
	Compact bool
}

// New creates the chat model. The orchestrator must already be bound
// to an identity with its chat roster loaded.
func New(cfg Config) *Model {
	theme := cfg.Theme
	if theme == nil {
		theme = styles.NewTheme()
	}

	input := textarea.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 4000
	input.SetHeight(3)
	input.ShowLineNumbers = false
	input.Focus()

	renameInput := textinput.New()
	renameInput.Placeholder = "Chat title"
	renameInput.CharLimit = 120

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	var markdown *glamour.TermRenderer
	if cfg.Markdown {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(72),
		)
		if err == nil {
			markdown = r
		}
	}

	m := &Model{
		orchestrator:   cfg.Orchestrator,
		guard:          cfg.Guard,
		idle:           cfg.Idle,
		theme:          theme,
		keys:           DefaultKeyMap(),
		snapshot:       cfg.Orchestrator.State(),
		input:          input,
		renameInput:    renameInput,
		spinner:        sp,
		sidebar:        components.NewSidebar(),
		statusBar:      &components.StatusBar{},
		toasts:         components.NewToastManager(),
		showSidebar:    !cfg.Compact,
		showTimestamps: cfg.ShowTimestamps,
		markdown:       markdown,
		stickToBottom:  true,
	}
	m.applySnapshot(m.snapshot)
	return m
}

// Init starts the background tickers and pulls the initial ledger.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		components.ToastTickCmd(),
		loadMessagesCmd(m.orchestrator),
	}
	if m.idle != nil && m.idle.Enabled() {
		cmds = append(cmds, session.IdleTickCmd())
	}
	return tea.Batch(cmds...)
}

// applySnapshot folds a fresh snapshot into the view components.
func (m *Model) applySnapshot(snap session.Snapshot) {
	m.snapshot = snap

	currentID := ""
	if snap.CurrentChat != nil {
		currentID = snap.CurrentChat.ID
	}
	m.sidebar.SetChats(snap.Chats, currentID)

	m.statusBar.Pending = snap.Pending
	m.statusBar.Username = ""
	if snap.Identity != nil {
		m.statusBar.Username = snap.Identity.DisplayName
		if m.statusBar.Username == "" {
			m.statusBar.Username = snap.Identity.Email
		}
	}

	if m.ready {
		m.viewport.SetContent(m.renderMessages())
		if m.stickToBottom {
			m.viewport.GotoBottom()
		}
	}
}

// currentChatID returns the selected chat's ID or "".
func (m *Model) currentChatID() string {
	if m.snapshot.CurrentChat == nil {
		return ""
	}
	return m.snapshot.CurrentChat.ID
}
