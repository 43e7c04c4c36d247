// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"

	"github.com/jeranaias/parley-tui/internal/model"
)

// =============================================================================
// REPLY DISPATCH
// =============================================================================

// dispatchReply runs the tail of the send protocol in its own
// goroutine: obtain the assistant reply, persist it, and fold the
// result back into session state. origin is the chat as it was at
// send time; by the time the reply lands the user may have switched
// chats, deleted the origin, or signed out, so every in-memory commit
// re-checks against the live state.
//
// The pending flag is released on every path out of this function.
func (o *Orchestrator) dispatchReply(origin model.Chat, history []model.Message, userMsg model.Message) {
	defer o.dispatches.Done()

	// The responder bounds its own latency (timeouts live in its
	// config); the session never cancels a dispatch once started.
	reply, err := o.responder.Reply(context.Background(), history)
	if err != nil {
		o.releasePending()
		o.notifyNotice(NoticeError, "Failed to get AI response")
		o.notifyState()
		return
	}

	assistantMsg, err := o.gateway.InsertMessage(context.Background(), origin.ID, model.RoleAssistant, reply)
	if err != nil {
		o.releasePending()
		o.notifyNotice(NoticeError, noticeText(err, "Failed to save AI response"))
		o.notifyState()
		return
	}

	o.mu.Lock()

	// Append only if the user is still looking at the origin chat.
	// Otherwise the reply stays persisted and the next ledger load of
	// that chat picks it up.
	if o.current != nil && o.current.ID == origin.ID {
		o.messages = append(o.messages, assistantMsg)
	}
	o.mu.Unlock()

	// First exchange in an untitled chat names it after the user
	// message. The check uses the title captured at send time, so a
	// chat the user already renamed is never overwritten.
	if origin.Title == model.DefaultChatTitle {
		o.autoTitle(origin.ID, userMsg.Content)
	}

	o.releasePending()
	o.notifyState()
}

// autoTitle derives a title from the first user message and persists
// it. On failure the in-memory registry keeps the old title and the
// user sees a toast; the chat stays renameable by hand.
func (o *Orchestrator) autoTitle(chatID, content string) {
	title := model.DeriveTitle(content)
	if title == "" {
		return
	}

	o.mu.Lock()
	if err := o.gateway.UpdateChatTitle(context.Background(), chatID, title); err != nil {
		o.mu.Unlock()
		o.notifyNotice(NoticeError, noticeText(err, "Failed to rename chat"))
		return
	}
	o.renameLocked(chatID, title)
	o.mu.Unlock()
}

// releasePending clears the in-flight flag.
func (o *Orchestrator) releasePending() {
	o.mu.Lock()
	o.pending = false
	o.mu.Unlock()
}
