// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"sync"
)

// =============================================================================
// SESSION GUARD
// =============================================================================

// Guard tracks whether a valid identity exists and gates the rest of
// the client on it. It registers exactly one session-change listener
// for its lifetime (Start to Stop) and collapses repeated "absent"
// notifications into a single sign-out signal per loss event.
type Guard struct {
	auth Authenticator

	// OnIdentity fires when an identity becomes available (startup or
	// re-login). OnSignedOut fires exactly once per identity loss and
	// is the "navigate to login" signal; downstream state clearing
	// hangs off it.
	OnIdentity  func(Identity)
	OnSignedOut func()

	mu          sync.Mutex
	identity    *Identity
	unsubscribe func()
}

// NewGuard creates a guard over the given authenticator. Callbacks may
// be nil.
func NewGuard(a Authenticator) *Guard {
	return &Guard{auth: a}
}

// Start checks the current session and registers the change listener.
// Returns ErrNoSession when no identity exists; the guard is still
// armed in that case, so a later login is observed.
func (g *Guard) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.unsubscribe == nil {
		g.unsubscribe = g.auth.OnSessionChange(g.handleChange)
	}
	g.mu.Unlock()

	id, err := g.auth.CurrentSession(ctx)
	if err != nil {
		g.handleChange(nil)
		return err
	}
	g.handleChange(id)
	return nil
}

// Stop deregisters the session listener. Safe to call more than once.
func (g *Guard) Stop() {
	g.mu.Lock()
	unsub := g.unsubscribe
	g.unsubscribe = nil
	g.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Identity returns the current identity, or nil when signed out.
func (g *Guard) Identity() *Identity {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.identity == nil {
		return nil
	}
	id := *g.identity
	return &id
}

// SignOut tears down the session through the authenticator. The
// resulting change notification performs the local state transition.
func (g *Guard) SignOut(ctx context.Context) error {
	return g.auth.SignOut(ctx)
}

// handleChange runs the present/absent branch for every notification.
// Transitions are edge-triggered: an absent notification while already
// signed out does not fire OnSignedOut again.
func (g *Guard) handleChange(id *Identity) {
	g.mu.Lock()
	hadIdentity := g.identity != nil
	if id == nil {
		g.identity = nil
	} else {
		copied := *id
		g.identity = &copied
	}
	onIdentity := g.OnIdentity
	onSignedOut := g.OnSignedOut
	g.mu.Unlock()

	switch {
	case id != nil:
		if onIdentity != nil {
			onIdentity(*id)
		}
	case hadIdentity:
		if onSignedOut != nil {
			onSignedOut()
		}
	}
}

// SignalInitialLoss fires the sign-out signal for a client that starts
// with no session at all, where there is no present-to-absent edge to
// observe. Main calls this after a failed Start to route to login.
func (g *Guard) SignalInitialLoss() {
	g.mu.Lock()
	onSignedOut := g.OnSignedOut
	g.mu.Unlock()
	if onSignedOut != nil {
		onSignedOut()
	}
}
