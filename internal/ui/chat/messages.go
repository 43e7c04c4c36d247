// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the main conversation view of the parley TUI.
package chat

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/parley-tui/internal/session"
)

// =============================================================================
// MESSAGES
// =============================================================================

// StateMsg carries a fresh session snapshot into the Bubble Tea loop.
// The orchestrator subscription forwards these via Program.Send, so
// they arrive on the update goroutine regardless of which goroutine
// committed the change.
type StateMsg struct {
	Snapshot session.Snapshot
}

// NoticeMsg carries a session notification into the Bubble Tea loop.
type NoticeMsg struct {
	Notice session.Notice
}

// OpDoneMsg reports the outcome of an orchestrator operation started
// by a command. Err is nil on success.
type OpDoneMsg struct {
	Op  string
	Err error
}

// SignedOutMsg tells the program to return to the login flow.
type SignedOutMsg struct{}

// opTimeout bounds every gateway-backed operation issued from the UI.
const opTimeout = 10 * time.Second

// =============================================================================
// COMMANDS
// =============================================================================

// Commands wrap orchestrator operations as tea.Cmds. The resulting
// state arrives separately through the subscription; OpDoneMsg only
// reports completion and errors the update loop may care about
// (e.g. a rejected send that should keep the draft in the input).

func loadChatsCmd(o *session.Orchestrator) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return OpDoneMsg{Op: "load-chats", Err: o.LoadChats(ctx)}
	}
}

func loadMessagesCmd(o *session.Orchestrator) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return OpDoneMsg{Op: "load-messages", Err: o.LoadMessages(ctx)}
	}
}

func createChatCmd(o *session.Orchestrator) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		_, err := o.CreateChat(ctx)
		return OpDoneMsg{Op: "create-chat", Err: err}
	}
}

// selectChatCmd switches chats and immediately loads the new chat's
// ledger. Selection itself cannot fail; the load can.
func selectChatCmd(o *session.Orchestrator, chatID string) tea.Cmd {
	return func() tea.Msg {
		o.SelectChat(chatID)
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return OpDoneMsg{Op: "select-chat", Err: o.LoadMessages(ctx)}
	}
}

func deleteChatCmd(o *session.Orchestrator, chatID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := o.DeleteChat(ctx, chatID); err != nil {
			return OpDoneMsg{Op: "delete-chat", Err: err}
		}
		// Removal falls back to another chat; bring its ledger in.
		return OpDoneMsg{Op: "delete-chat", Err: o.LoadMessages(ctx)}
	}
}

func archiveChatCmd(o *session.Orchestrator, chatID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := o.ArchiveChat(ctx, chatID); err != nil {
			return OpDoneMsg{Op: "archive-chat", Err: err}
		}
		return OpDoneMsg{Op: "archive-chat", Err: o.LoadMessages(ctx)}
	}
}

func renameChatCmd(o *session.Orchestrator, chatID, title string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return OpDoneMsg{Op: "rename-chat", Err: o.RenameChat(ctx, chatID, title)}
	}
}

func sendMessageCmd(o *session.Orchestrator, content string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return OpDoneMsg{Op: "send-message", Err: o.SendMessage(ctx, content)}
	}
}

// sendRejected reports whether a send failed before anything was
// persisted, meaning the draft should stay in the input box.
func sendRejected(err error) bool {
	return errors.Is(err, session.ErrSendPending) ||
		errors.Is(err, session.ErrRateLimited) ||
		errors.Is(err, session.ErrEmptyContent) ||
		errors.Is(err, session.ErrNoCurrentChat) ||
		errors.Is(err, session.ErrNoIdentity)
}
