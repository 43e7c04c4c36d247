// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth provides identity and session handling for the parley TUI.
//
// The orchestrator never talks to a concrete auth backend; it consumes
// the Authenticator contract below through the session Guard. The
// bundled LocalAuthenticator keeps accounts and the session token on
// disk so the client works without a hosted identity provider.
package auth

import (
	"context"
	"errors"
)

// =============================================================================
// IDENTITY
// =============================================================================

// Identity is the authenticated user as observed by this client. The
// orchestrator only ever reads it; creation and teardown belong to the
// auth backend.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

// =============================================================================
// AUTHENTICATOR CONTRACT
// =============================================================================

// ErrNoSession is returned by CurrentSession when no valid session
// exists. It is a state, not a failure: callers route to login rather
// than surfacing an error toast.
var ErrNoSession = errors.New("no active session")

// Authenticator is the auth collaborator contract.
//
// OnSessionChange registers a listener for asynchronous identity
// changes (expiry, out-of-band sign-out) and returns an unsubscribe
// function. The listener receives the new identity, or nil when the
// session is gone. Implementations must support multiple independent
// listeners and must not invoke a listener after its unsubscribe
// returns.
type Authenticator interface {
	// CurrentSession returns the live identity, or ErrNoSession.
	CurrentSession(ctx context.Context) (*Identity, error)

	// OnSessionChange registers fn and returns its unsubscribe.
	OnSessionChange(fn func(*Identity)) func()

	// SignOut tears down the current session. Listeners observe the
	// loss through OnSessionChange.
	SignOut(ctx context.Context) error
}
