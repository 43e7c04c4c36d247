// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session implements the chat session orchestrator for the
// parley TUI.
//
// The Orchestrator owns the in-memory chat state (registry of chats,
// message ledger of the current chat, the pending send flag) and is
// the only component that talks to the persistence gateway and the
// reply responder. Views subscribe for snapshots and call operations;
// they never touch the gateway directly.
//
// Every operation runs under one mutex, including its gateway
// round-trip, so the session behaves as a single logical actor. The
// one exception is the reply dispatch in dispatcher.go, which runs in
// its own goroutine so a slow responder never blocks the UI. While a
// reply is in flight the pending flag refuses further sends.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/jeranaias/parley-tui/internal/assist"
	"github.com/jeranaias/parley-tui/internal/auth"
	"github.com/jeranaias/parley-tui/internal/model"
	"github.com/jeranaias/parley-tui/internal/store"
)

// =============================================================================
// VALIDATION ERRORS
// =============================================================================

// Validation errors are silent no-ops at the UI layer: callers may
// inspect them, but they never surface as error toasts.
var (
	// ErrNoIdentity indicates an operation that needs a bound identity.
	ErrNoIdentity = errors.New("no identity bound to the session")

	// ErrNoCurrentChat indicates a send with no chat selected.
	ErrNoCurrentChat = errors.New("no chat selected")

	// ErrEmptyContent indicates a send whose content trimmed to nothing.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrSendPending indicates a send while a reply is still in flight.
	ErrSendPending = errors.New("a send is already in flight")

	// ErrRateLimited indicates a send refused by the rate limiter.
	ErrRateLimited = errors.New("sending too quickly")

	// ErrBlankTitle indicates a rename whose title trimmed to nothing.
	ErrBlankTitle = errors.New("chat title is blank")
)

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Config holds the orchestrator's collaborators.
type Config struct {
	// Gateway is the persistence layer. Required.
	Gateway store.Gateway

	// Responder produces assistant replies. Required.
	Responder assist.Responder

	// SendsPerMinute caps the send rate. Zero means unlimited.
	SendsPerMinute int
}

// Orchestrator coordinates the chat registry, the message ledger of
// the current chat, and the send/reply round-trip.
type Orchestrator struct {
	gateway   store.Gateway
	responder assist.Responder
	limiter   *rate.Limiter

	mu       sync.Mutex
	identity *auth.Identity
	chats    []model.Chat
	current  *model.Chat
	messages []model.Message
	pending  bool

	stateSubs  map[int]func(Snapshot)
	noticeSubs map[int]func(Notice)
	nextSubID  int

	dispatches sync.WaitGroup
}

// New creates an orchestrator with no identity bound.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		gateway:    cfg.Gateway,
		responder:  cfg.Responder,
		stateSubs:  make(map[int]func(Snapshot)),
		noticeSubs: make(map[int]func(Notice)),
	}
	if cfg.SendsPerMinute > 0 {
		o.limiter = rate.NewLimiter(rate.Limit(float64(cfg.SendsPerMinute)/60.0), cfg.SendsPerMinute)
	}
	return o
}

// Wait blocks until all in-flight reply dispatches have finished.
// The CLI uses it before printing the reply; tests use it to observe
// post-dispatch state.
func (o *Orchestrator) Wait() {
	o.dispatches.Wait()
}

// =============================================================================
// IDENTITY BINDING
// =============================================================================

// Bind attaches an identity to the session. The chat registry is not
// loaded here; callers follow up with LoadChats.
func (o *Orchestrator) Bind(identity auth.Identity) {
	o.mu.Lock()
	id := identity
	o.identity = &id
	o.mu.Unlock()
	o.notifyState()
}

// Clear drops the identity and all chat state. Wired to the session
// guard's sign-out callback. An in-flight reply dispatch is not
// interrupted; when it lands it finds no current chat and discards
// its append.
func (o *Orchestrator) Clear() {
	o.mu.Lock()
	o.identity = nil
	o.chats = nil
	o.current = nil
	o.messages = nil
	o.mu.Unlock()
	o.notifyState()
}

// Identity returns the bound identity, or nil.
func (o *Orchestrator) Identity() *auth.Identity {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.identity == nil {
		return nil
	}
	id := *o.identity
	return &id
}

// =============================================================================
// CHAT REGISTRY
// =============================================================================

// LoadChats replaces the registry with the bound identity's chats,
// most recently updated first. If no chat is selected and the
// registry is non-empty, the first chat becomes current; the caller
// then reloads the ledger with LoadMessages, mirroring how selection
// changes always drive a ledger reload.
func (o *Orchestrator) LoadChats(ctx context.Context) error {
	o.mu.Lock()
	if o.identity == nil {
		o.mu.Unlock()
		return ErrNoIdentity
	}
	userID := o.identity.ID

	chats, err := o.gateway.ListChats(ctx, userID)
	if err != nil {
		o.mu.Unlock()
		o.notifyNotice(NoticeError, noticeText(err, "Failed to load chats"))
		return err
	}

	o.chats = chats
	if o.current == nil && len(chats) > 0 {
		cur := chats[0]
		o.current = &cur
	}
	o.mu.Unlock()

	o.notifyState()
	return nil
}

// CreateChat persists a new untitled chat, prepends it to the
// registry, and selects it with an empty ledger.
func (o *Orchestrator) CreateChat(ctx context.Context) (model.Chat, error) {
	o.mu.Lock()
	if o.identity == nil {
		o.mu.Unlock()
		return model.Chat{}, ErrNoIdentity
	}
	userID := o.identity.ID

	chat, err := o.gateway.InsertChat(ctx, userID, model.DefaultChatTitle)
	if err != nil {
		o.mu.Unlock()
		o.notifyNotice(NoticeError, noticeText(err, "Failed to create chat"))
		return model.Chat{}, err
	}

	o.chats = append([]model.Chat{chat}, o.chats...)
	cur := chat
	o.current = &cur
	o.messages = nil
	o.mu.Unlock()

	o.notifyState()
	return chat, nil
}

// SelectChat makes chatID the current chat and clears the ledger.
// An id not present in the registry is still selected; the following
// LoadMessages simply finds nothing. Callers reload the ledger after
// selecting.
func (o *Orchestrator) SelectChat(chatID string) {
	o.mu.Lock()
	if o.current != nil && o.current.ID == chatID {
		o.mu.Unlock()
		return
	}

	var selected model.Chat
	found := false
	for _, c := range o.chats {
		if c.ID == chatID {
			selected = c
			found = true
			break
		}
	}
	if !found {
		selected = model.Chat{ID: chatID, Title: model.DefaultChatTitle}
	}
	o.current = &selected
	o.messages = nil
	o.mu.Unlock()

	o.notifyState()
}

// DeleteChat removes a chat and its messages permanently. If the
// deleted chat was current, selection falls back to the first
// remaining chat (ledger cleared, reloaded by the caller) or to no
// selection at all.
func (o *Orchestrator) DeleteChat(ctx context.Context, chatID string) error {
	return o.removeChat(ctx, chatID, false)
}

// ArchiveChat hides a chat from the registry without deleting its
// messages. Selection falls back the same way as DeleteChat.
func (o *Orchestrator) ArchiveChat(ctx context.Context, chatID string) error {
	return o.removeChat(ctx, chatID, true)
}

func (o *Orchestrator) removeChat(ctx context.Context, chatID string, archive bool) error {
	o.mu.Lock()

	var err error
	if archive {
		err = o.gateway.ArchiveChat(ctx, chatID)
	} else {
		err = o.gateway.DeleteChat(ctx, chatID)
	}
	if err != nil {
		o.mu.Unlock()
		if archive {
			o.notifyNotice(NoticeError, noticeText(err, "Failed to archive chat"))
		} else {
			o.notifyNotice(NoticeError, noticeText(err, "Failed to delete chat"))
		}
		return err
	}

	kept := o.chats[:0]
	for _, c := range o.chats {
		if c.ID != chatID {
			kept = append(kept, c)
		}
	}
	o.chats = kept

	if o.current != nil && o.current.ID == chatID {
		o.messages = nil
		if len(o.chats) > 0 {
			cur := o.chats[0]
			o.current = &cur
		} else {
			o.current = nil
		}
	}
	o.mu.Unlock()

	o.notifyState()
	return nil
}

// RenameChat updates a chat's title in place. The registry order is
// untouched; only loading bumps it. A blank title is refused before
// any persistence.
func (o *Orchestrator) RenameChat(ctx context.Context, chatID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrBlankTitle
	}

	o.mu.Lock()
	if err := o.gateway.UpdateChatTitle(ctx, chatID, title); err != nil {
		o.mu.Unlock()
		o.notifyNotice(NoticeError, noticeText(err, "Failed to rename chat"))
		return err
	}
	o.renameLocked(chatID, title)
	o.mu.Unlock()

	o.notifyState()
	return nil
}

// renameLocked applies a committed title to the in-memory registry
// and to the current-chat copy. Callers hold o.mu.
func (o *Orchestrator) renameLocked(chatID, title string) {
	for i := range o.chats {
		if o.chats[i].ID == chatID {
			o.chats[i].Title = title
			break
		}
	}
	if o.current != nil && o.current.ID == chatID {
		o.current.Title = title
	}
}

// =============================================================================
// MESSAGE LEDGER
// =============================================================================

// LoadMessages replaces the ledger with the current chat's messages,
// oldest first. With no chat selected it is a no-op. On gateway
// failure the previous ledger is kept.
func (o *Orchestrator) LoadMessages(ctx context.Context) error {
	o.mu.Lock()
	if o.current == nil {
		o.mu.Unlock()
		return nil
	}
	chatID := o.current.ID

	messages, err := o.gateway.ListMessages(ctx, chatID)
	if err != nil {
		o.mu.Unlock()
		o.notifyNotice(NoticeError, noticeText(err, "Failed to load messages"))
		return err
	}

	// The selection may have moved while the lock was held elsewhere;
	// only commit if the fetch still matches the current chat.
	if o.current == nil || o.current.ID != chatID {
		o.mu.Unlock()
		return nil
	}
	o.messages = messages
	o.mu.Unlock()

	o.notifyState()
	return nil
}

// SendMessage runs the send protocol for the current chat:
//
//  1. Refuse while a previous send's reply is still in flight.
//  2. Persist the user message and append it to the ledger.
//  3. Hand the chat's history to the responder in a dispatch
//     goroutine; the reply lands via dispatcher.go.
//
// The pending flag is set before the user message is persisted and
// released only when the dispatch finishes, success or not.
func (o *Orchestrator) SendMessage(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}

	o.mu.Lock()
	if o.identity == nil {
		o.mu.Unlock()
		return ErrNoIdentity
	}
	if o.current == nil {
		o.mu.Unlock()
		return ErrNoCurrentChat
	}
	if o.pending {
		o.mu.Unlock()
		return ErrSendPending
	}
	if o.limiter != nil && !o.limiter.Allow() {
		o.mu.Unlock()
		o.notifyNotice(NoticeStatus, "Sending too quickly, slow down")
		return ErrRateLimited
	}

	o.pending = true
	origin := *o.current

	userMsg, err := o.gateway.InsertMessage(ctx, origin.ID, model.RoleUser, content)
	if err != nil {
		o.pending = false
		o.mu.Unlock()
		o.notifyNotice(NoticeError, noticeText(err, "Failed to send message"))
		return err
	}

	o.messages = append(o.messages, userMsg)
	history := append([]model.Message(nil), o.messages...)
	o.mu.Unlock()

	o.notifyState()

	o.dispatches.Add(1)
	go o.dispatchReply(origin, history, userMsg)
	return nil
}
