// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"

	"github.com/jeranaias/parley-tui/internal/auth"
	"github.com/jeranaias/parley-tui/internal/model"
	"github.com/jeranaias/parley-tui/internal/store"
)

// =============================================================================
// OBSERVABLE STATE
// =============================================================================

// Snapshot is an immutable copy of the orchestrator state handed to
// subscribers. Views only ever read snapshots and invoke orchestrator
// operations; they never mutate session state directly.
type Snapshot struct {
	Identity    *auth.Identity
	Chats       []model.Chat
	CurrentChat *model.Chat
	Messages    []model.Message
	Pending     bool
}

// NoticeKind classifies a user-facing notification.
type NoticeKind int

const (
	// NoticeError is a failed gateway or auth operation.
	NoticeError NoticeKind = iota
	// NoticeStatus is informational (rate limiting, sign-out).
	NoticeStatus
)

// Notice is a transient user-facing notification. The TUI renders it
// as a toast, the CLI as a stderr line.
type Notice struct {
	Kind NoticeKind
	Text string
}

// Subscribe registers fn for state snapshots and returns its
// unsubscribe function. fn runs outside the orchestrator lock, after
// the mutation it reports has committed.
func (o *Orchestrator) Subscribe(fn func(Snapshot)) func() {
	o.mu.Lock()
	id := o.nextSubID
	o.nextSubID++
	o.stateSubs[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.stateSubs, id)
		o.mu.Unlock()
	}
}

// SubscribeNotices registers fn for notifications and returns its
// unsubscribe function.
func (o *Orchestrator) SubscribeNotices(fn func(Notice)) func() {
	o.mu.Lock()
	id := o.nextSubID
	o.nextSubID++
	o.noticeSubs[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.noticeSubs, id)
		o.mu.Unlock()
	}
}

// State returns a snapshot of the current session state.
func (o *Orchestrator) State() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// snapshotLocked copies the state. Callers hold o.mu.
func (o *Orchestrator) snapshotLocked() Snapshot {
	snap := Snapshot{Pending: o.pending}
	if o.identity != nil {
		id := *o.identity
		snap.Identity = &id
	}
	if o.current != nil {
		cur := *o.current
		snap.CurrentChat = &cur
	}
	snap.Chats = append([]model.Chat(nil), o.chats...)
	snap.Messages = append([]model.Message(nil), o.messages...)
	return snap
}

// notifyState fans a fresh snapshot out to subscribers. Never called
// with o.mu held.
func (o *Orchestrator) notifyState() {
	o.mu.Lock()
	snap := o.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(o.stateSubs))
	for _, fn := range o.stateSubs {
		fns = append(fns, fn)
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// noticeText picks the text for a failure notice: the gateway's own
// human-readable message when the error carries one, the fallback
// otherwise.
func noticeText(err error, fallback string) string {
	var gerr *store.GatewayError
	if errors.As(err, &gerr) && gerr.Message != "" {
		return gerr.Message
	}
	return fallback
}

// notifyNotice fans a notification out to subscribers. Never called
// with o.mu held.
func (o *Orchestrator) notifyNotice(kind NoticeKind, text string) {
	o.mu.Lock()
	fns := make([]func(Notice), 0, len(o.noticeSubs))
	for _, fn := range o.noticeSubs {
		fns = append(fns, fn)
	}
	o.mu.Unlock()

	n := Notice{Kind: kind, Text: text}
	for _, fn := range fns {
		fn(n)
	}
}
