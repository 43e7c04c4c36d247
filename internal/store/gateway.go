// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store provides chat and message persistence for the parley TUI.
package store

import (
	"context"

	"github.com/jeranaias/parley-tui/internal/model"
)

// =============================================================================
// GATEWAY CONTRACT
// =============================================================================

// Gateway is the persistence boundary for chats and messages. The
// orchestrator only ever talks to this interface; the SQLite
// implementation below is the local default, and a hosted backend can
// be swapped in without touching the session core.
//
// Ordering guarantees the orchestrator relies on:
//   - ListChats returns non-archived chats, updated_at descending
//   - ListMessages returns messages created_at ascending
//   - DeleteChat cascades to the chat's messages
type Gateway interface {
	// ListChats returns all non-archived chats owned by userID,
	// most recently updated first.
	ListChats(ctx context.Context, userID string) ([]model.Chat, error)

	// InsertChat persists a new chat for userID and returns it with
	// gateway-assigned ID and timestamps.
	InsertChat(ctx context.Context, userID, title string) (model.Chat, error)

	// UpdateChatTitle persists a title change and bumps updated_at.
	UpdateChatTitle(ctx context.Context, chatID, title string) error

	// ArchiveChat soft-deletes a chat: it stops appearing in ListChats
	// but its rows remain.
	ArchiveChat(ctx context.Context, chatID string) error

	// DeleteChat hard-deletes a chat and, by cascade, its messages.
	DeleteChat(ctx context.Context, chatID string) error

	// ListMessages returns all messages of chatID, oldest first.
	ListMessages(ctx context.Context, chatID string) ([]model.Message, error)

	// InsertMessage persists one message and returns it with
	// gateway-assigned ID and created_at. The parent chat's
	// updated_at is bumped so ListChats reflects recent activity.
	InsertMessage(ctx context.Context, chatID string, role model.Role, content string) (model.Message, error)

	// Close releases the underlying resources.
	Close() error
}

// =============================================================================
// ERRORS
// =============================================================================

// GatewayError is the error type every Gateway operation fails with.
// Message is human-readable and safe to surface in a toast.
type GatewayError struct {
	Op      string // The failing operation, e.g. "list chats"
	Message string
	Cause   error
}

func (e *GatewayError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// ErrChatNotFound is returned when an operation targets a chat that
// does not exist. Use errors.Is(err, ErrChatNotFound) to check.
var ErrChatNotFound = &GatewayError{Op: "lookup chat", Message: "chat not found"}

// Is implements errors.Is support so sentinel gateway errors compare
// by message rather than pointer identity.
func (e *GatewayError) Is(target error) bool {
	t, ok := target.(*GatewayError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}
