// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/parley-tui/internal/util"
)

// =============================================================================
// IDLE TIMEOUT
// =============================================================================

// IdleTimeout signs the user out after a period of inactivity. The
// UI records activity on every keystroke; when the idle time crosses
// the warning threshold the user gets a heads-up, and when it crosses
// the timeout the sign-out callback fires. A zero timeout disables
// the watchdog entirely.
type IdleTimeout struct {
	mu sync.Mutex

	lastActivity time.Time

	timeout       time.Duration
	warningBefore time.Duration
	warningShown  bool

	onTimeout func()
	onWarning func(remaining time.Duration)
}

// IdleConfig holds configuration for the idle timeout.
type IdleConfig struct {
	// Timeout is how long the session may sit idle (0 disables).
	Timeout time.Duration

	// WarningBefore is how long before timeout to warn (default: 2 minutes).
	WarningBefore time.Duration
}

// DefaultIdleConfig returns the default idle configuration: no
// timeout. Local chats have no shared terminal to protect, so the
// watchdog is opt-in.
func DefaultIdleConfig() IdleConfig {
	return IdleConfig{
		Timeout:       0,
		WarningBefore: 2 * time.Minute,
	}
}

// NewIdleTimeout creates an idle timeout watchdog.
func NewIdleTimeout(cfg IdleConfig) *IdleTimeout {
	if cfg.WarningBefore == 0 {
		cfg.WarningBefore = 2 * time.Minute
	}
	return &IdleTimeout{
		lastActivity:  time.Now(),
		timeout:       cfg.Timeout,
		warningBefore: cfg.WarningBefore,
	}
}

// Enabled reports whether a timeout is configured.
func (w *IdleTimeout) Enabled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timeout > 0
}

// RecordActivity resets the idle clock. Called on user input.
func (w *IdleTimeout) RecordActivity() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastActivity = time.Now()
	w.warningShown = false
}

// IdleTime returns how long since the last activity.
func (w *IdleTimeout) IdleTime() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return time.Since(w.lastActivity)
}

// RemainingTime returns the time left until sign-out.
func (w *IdleTimeout) RemainingTime() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timeout <= 0 {
		return 0
	}
	remaining := w.timeout - time.Since(w.lastActivity)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsExpired returns true if the session has sat idle past the timeout.
func (w *IdleTimeout) IsExpired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timeout > 0 && time.Since(w.lastActivity) >= w.timeout
}

// SetTimeoutCallback sets the function called on idle expiry.
func (w *IdleTimeout) SetTimeoutCallback(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onTimeout = fn
}

// SetWarningCallback sets the function called when expiry approaches.
func (w *IdleTimeout) SetWarningCallback(fn func(remaining time.Duration)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onWarning = fn
}

// Check evaluates the idle clock and fires due callbacks. Returns
// true while the session is still live. The warning fires at most
// once per idle stretch; RecordActivity re-arms it.
func (w *IdleTimeout) Check() bool {
	w.mu.Lock()
	if w.timeout <= 0 {
		w.mu.Unlock()
		return true
	}

	idle := time.Since(w.lastActivity)
	expired := idle >= w.timeout

	shouldWarn := false
	var remaining time.Duration
	if !w.warningShown && !expired && idle >= w.timeout-w.warningBefore {
		shouldWarn = true
		remaining = w.timeout - idle
		w.warningShown = true
	}

	onTimeout := w.onTimeout
	onWarning := w.onWarning
	w.mu.Unlock()

	if shouldWarn && onWarning != nil {
		onWarning(remaining)
	}
	if expired && onTimeout != nil {
		onTimeout()
	}

	return !expired
}

// =============================================================================
// BUBBLE TEA INTEGRATION
// =============================================================================

// IdleTickMsg is sent periodically to check the idle clock.
type IdleTickMsg struct {
	Time time.Time
}

// IdleWarningMsg indicates the session is about to sign out.
type IdleWarningMsg struct {
	Remaining time.Duration
}

// IdleExpiredMsg indicates the session sat idle past the timeout.
type IdleExpiredMsg struct{}

// IdleTickCmd returns a command that ticks once per second.
func IdleTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return IdleTickMsg{Time: t}
	})
}

// HandleTick processes one tick and returns the due messages plus
// the next tick.
func (w *IdleTimeout) HandleTick() tea.Cmd {
	var cmds []tea.Cmd

	w.mu.Lock()
	enabled := w.timeout > 0
	var idle time.Duration
	var expired, shouldWarn bool
	var remaining time.Duration
	if enabled {
		idle = time.Since(w.lastActivity)
		expired = idle >= w.timeout
		if !w.warningShown && !expired && idle >= w.timeout-w.warningBefore {
			shouldWarn = true
			remaining = w.timeout - idle
			w.warningShown = true
		}
	}
	w.mu.Unlock()

	if shouldWarn {
		cmds = append(cmds, func() tea.Msg {
			return IdleWarningMsg{Remaining: remaining}
		})
	}
	if expired {
		cmds = append(cmds, func() tea.Msg {
			return IdleExpiredMsg{}
		})
	}

	cmds = append(cmds, IdleTickCmd())
	return tea.Batch(cmds...)
}

// FormatDuration returns a human-readable duration for the warning
// overlay, e.g. "1m 30s".
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		secs := int(d.Seconds())
		return util.IntToString(secs) + "s"
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return util.IntToString(mins) + "m"
	}
	return util.IntToString(mins) + "m " + util.IntToString(secs) + "s"
}
