// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/parley-tui/internal/logging"
	"github.com/jeranaias/parley-tui/internal/session"
)

// Run starts the chat TUI and blocks until it exits. Session state
// changes are forwarded into the program as messages, so snapshots
// committed by the reply dispatcher goroutine reach the view safely.
func Run(cfg Config) error {
	m := New(cfg)
	p := tea.NewProgram(m, tea.WithAltScreen())

	unsubState := cfg.Orchestrator.Subscribe(func(snap session.Snapshot) {
		p.Send(StateMsg{Snapshot: snap})
	})
	defer unsubState()

	unsubNotices := cfg.Orchestrator.SubscribeNotices(func(n session.Notice) {
		p.Send(NoticeMsg{Notice: n})
	})
	defer unsubNotices()

	logging.L().Info("chat ui started")
	_, err := p.Run()
	logging.L().Info("chat ui stopped", "err", err)
	return err
}
