// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chats and messages.
package model

import (
	"strings"
	"time"
)

// DefaultChatTitle is the title every chat starts with. A chat that
// still carries it is considered untitled and eligible for automatic
// title inference after its first user message.
const DefaultChatTitle = "New Chat"

// TitleMaxLen is the number of leading characters of the first user
// message used when inferring a chat title.
const TitleMaxLen = 30

// =============================================================================
// CHAT TYPE
// =============================================================================

// Chat is a named conversation thread owned by one identity. The
// gateway assigns ID and timestamps on insert; UpdatedAt moves forward
// whenever the chat or its messages change.
type Chat struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	IsArchived bool      `json:"is_archived"`
}

// IsUntitled returns true while the chat still carries the default title.
func (c Chat) IsUntitled() bool {
	return c.Title == DefaultChatTitle
}

// DisplayTitle returns the title, falling back to the default for a
// chat whose title is blank (should not happen through the gateway,
// but old rows may carry one).
func (c Chat) DisplayTitle() string {
	if strings.TrimSpace(c.Title) == "" {
		return DefaultChatTitle
	}
	return c.Title
}

// =============================================================================
// TITLE INFERENCE
// =============================================================================

// DeriveTitle derives a chat title from the first user message: the
// leading TitleMaxLen characters, with "..." appended only when the
// content was actually truncated. Rune-based so multi-byte characters
// are never split.
func DeriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= TitleMaxLen {
		return content
	}
	return string(runes[:TitleMaxLen]) + "..."
}
