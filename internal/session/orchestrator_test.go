// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jeranaias/parley-tui/internal/assist"
	"github.com/jeranaias/parley-tui/internal/auth"
	"github.com/jeranaias/parley-tui/internal/model"
	"github.com/jeranaias/parley-tui/internal/store"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

// fakeGateway is an in-memory store.Gateway with injectable failures.
// It is safe for concurrent use because reply dispatches call it from
// their own goroutine.
type fakeGateway struct {
	mu       sync.Mutex
	chats    []model.Chat
	owners   map[string]string // chat id -> user id
	messages map[string][]model.Message
	clock    time.Time

	insertMessageCalls int
	updateTitleCalls   int

	failInsertMessage bool
	failUpdateTitle   bool
	failListChats     bool
	failListMessages  bool
	failDeleteChat    bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		owners:   make(map[string]string),
		messages: make(map[string][]model.Message),
		clock:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// tick returns a strictly increasing timestamp.
func (g *fakeGateway) tick() time.Time {
	g.clock = g.clock.Add(time.Second)
	return g.clock
}

func (g *fakeGateway) ListChats(ctx context.Context, userID string) ([]model.Chat, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failListChats {
		return nil, &store.GatewayError{Op: "list chats", Message: "list chats failed"}
	}

	var out []model.Chat
	for _, c := range g.chats {
		if g.owners[c.ID] == userID && !c.IsArchived {
			out = append(out, c)
		}
	}
	// updated_at descending, matching the SQLite gateway.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].UpdatedAt.After(out[i].UpdatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (g *fakeGateway) InsertChat(ctx context.Context, userID, title string) (model.Chat, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.tick()
	chat := model.Chat{
		ID:        fmt.Sprintf("chat-%d", len(g.chats)+1),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	g.chats = append(g.chats, chat)
	g.owners[chat.ID] = userID
	return chat, nil
}

func (g *fakeGateway) UpdateChatTitle(ctx context.Context, chatID, title string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.updateTitleCalls++
	if g.failUpdateTitle {
		return &store.GatewayError{Op: "rename chat", Message: "rename failed"}
	}
	for i := range g.chats {
		if g.chats[i].ID == chatID {
			g.chats[i].Title = title
			g.chats[i].UpdatedAt = g.tick()
			return nil
		}
	}
	return store.ErrChatNotFound
}

func (g *fakeGateway) ArchiveChat(ctx context.Context, chatID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range g.chats {
		if g.chats[i].ID == chatID {
			g.chats[i].IsArchived = true
			return nil
		}
	}
	return store.ErrChatNotFound
}

func (g *fakeGateway) DeleteChat(ctx context.Context, chatID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failDeleteChat {
		return &store.GatewayError{Op: "delete chat", Message: "delete failed"}
	}
	for i := range g.chats {
		if g.chats[i].ID == chatID {
			g.chats = append(g.chats[:i], g.chats[i+1:]...)
			delete(g.owners, chatID)
			delete(g.messages, chatID)
			return nil
		}
	}
	return store.ErrChatNotFound
}

func (g *fakeGateway) ListMessages(ctx context.Context, chatID string) ([]model.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failListMessages {
		return nil, &store.GatewayError{Op: "list messages", Message: "list messages failed"}
	}
	return append([]model.Message(nil), g.messages[chatID]...), nil
}

func (g *fakeGateway) InsertMessage(ctx context.Context, chatID string, role model.Role, content string) (model.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.insertMessageCalls++
	if g.failInsertMessage {
		return model.Message{}, &store.GatewayError{Op: "insert message", Message: "insert failed"}
	}
	if _, ok := g.owners[chatID]; !ok {
		return model.Message{}, store.ErrChatNotFound
	}

	now := g.tick()
	msg := model.Message{
		ID:        fmt.Sprintf("msg-%d", g.insertMessageCalls),
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}
	g.messages[chatID] = append(g.messages[chatID], msg)
	for i := range g.chats {
		if g.chats[i].ID == chatID {
			g.chats[i].UpdatedAt = now
		}
	}
	return msg, nil
}

func (g *fakeGateway) Close() error { return nil }

var _ store.Gateway = (*fakeGateway)(nil)

// fixedResponder replies instantly with a fixed text or error.
type fixedResponder struct {
	text string
	err  error
}

func (r *fixedResponder) Reply(ctx context.Context, history []model.Message) (string, error) {
	return r.text, r.err
}

// gateResponder blocks each reply until release is signalled, so tests
// can interleave operations with an in-flight dispatch.
type gateResponder struct {
	text    string
	release chan struct{}
}

func newGateResponder(text string) *gateResponder {
	return &gateResponder{text: text, release: make(chan struct{})}
}

func (r *gateResponder) Reply(ctx context.Context, history []model.Message) (string, error) {
	<-r.release
	return r.text, nil
}

// =============================================================================
// FIXTURES
// =============================================================================

var testIdentity = auth.Identity{ID: "user-1", Email: "alice@example.com"}

func newTestOrchestrator(t *testing.T, gw *fakeGateway, responder assist.Responder) *Orchestrator {
	t.Helper()
	o := New(Config{Gateway: gw, Responder: responder})
	o.Bind(testIdentity)
	return o
}

func mustCreateChat(t *testing.T, o *Orchestrator) model.Chat {
	t.Helper()
	chat, err := o.CreateChat(context.Background())
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}
	return chat
}

// =============================================================================
// REGISTRY TESTS
// =============================================================================

func TestLoadChats_OrderAndInitialSelection(t *testing.T) {
	gw := newFakeGateway()
	o := newTestOrchestrator(t, gw, &fixedResponder{text: "ok"})
	ctx := context.Background()

	first := mustCreateChat(t, o)
	second := mustCreateChat(t, o)

	// A message in the older chat bumps it to the head of the registry.
	o.SelectChat(first.ID)
	if err := o.SendMessage(ctx, "bump"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	o.Wait()

	// A fresh orchestrator sees the persisted order and selects the head.
	o2 := newTestOrchestrator(t, gw, &fixedResponder{text: "ok"})
	if err := o2.LoadChats(ctx); err != nil {
		t.Fatalf("LoadChats failed: %v", err)
	}

	snap := o2.State()
	if len(snap.Chats) != 2 {
		t.Fatalf("chats = %d, want 2", len(snap.Chats))
	}
	if snap.Chats[0].ID != first.ID || snap.Chats[1].ID != second.ID {
		t.Errorf("registry order = [%s %s], want [%s %s]",
			snap.Chats[0].ID, snap.Chats[1].ID, first.ID, second.ID)
	}
	if snap.CurrentChat == nil || snap.CurrentChat.ID != first.ID {
		t.Error("initial load must select the most recently updated chat")
	}
}

func TestLoadChats_RequiresIdentity(t *testing.T) {
	o := New(Config{Gateway: newFakeGateway(), Responder: &fixedResponder{}})
	if err := o.LoadChats(context.Background()); !errors.Is(err, ErrNoIdentity) {
		t.Errorf("LoadChats without identity = %v, want ErrNoIdentity", err)
	}
}

func TestCreateChat_PrependsAndSelects(t *testing.T) {
	gw := newFakeGateway()
	o := newTestOrchestrator(t, gw, &fixedResponder{text: "ok"})

	first := mustCreateChat(t, o)
	second := mustCreateChat(t, o)

	snap := o.State()
	if snap.Chats[0].ID != second.ID || snap.Chats[1].ID != first.ID {
		t.Error("new chat must be prepended to the registry")
	}
	if snap.CurrentChat == nil || snap.CurrentChat.ID != second.ID {
		t.Error("new chat must become current")
	}
	if len(snap.Messages) != 0 {
		t.Error("new chat must start with an empty ledger")
	}
	if snap.Chats[0].Title != model.DefaultChatTitle {
		t.Errorf("new chat title = %q, want %q", snap.Chats[0].Title, model.DefaultChatTitle)
	}
}

func TestSelectChat_UnknownIDStillSelects(t *testing.T) {
	o := newTestOrchestrator(t, newFakeGateway(), &fixedResponder{})

	o.SelectChat("no-such-chat")

	snap := o.State()
	if snap.CurrentChat == nil || snap.CurrentChat.ID != "no-such-chat" {
		t.Fatal("selection must accept an unknown id; the ledger load finds nothing")
	}
	if err := o.LoadMessages(context.Background()); err != nil {
		t.Fatalf("LoadMessages for unknown chat = %v, want empty result", err)
	}
	if got := len(o.State().Messages); got != 0 {
		t.Errorf("messages = %d, want 0", got)
	}
}

func TestDeleteChat_FallbackSelection(t *testing.T) {
	gw := newFakeGateway()
	o := newTestOrchestrator(t, gw, &fixedResponder{text: "ok"})
	ctx := context.Background()

	first := mustCreateChat(t, o)
	second := mustCreateChat(t, o) // current

	if err := o.DeleteChat(ctx, second.ID); err != nil {
		t.Fatalf("DeleteChat failed: %v", err)
	}
	snap := o.State()
	if len(snap.Chats) != 1 {
		t.Fatalf("chats = %d, want 1", len(snap.Chats))
	}
	if snap.CurrentChat == nil || snap.CurrentChat.ID != first.ID {
		t.Error("deleting the current chat must select the first remaining chat")
	}
	if len(snap.Messages) != 0 {
		t.Error("ledger must be cleared after deleting the current chat")
	}

	if err := o.DeleteChat(ctx, first.ID); err != nil {
		t.Fatalf("DeleteChat failed: %v", err)
	}
	snap = o.State()
	if snap.CurrentChat != nil {
		t.Error("deleting the last chat must leave no selection")
	}
	if len(snap.Chats) != 0 {
		t.Errorf("chats = %d, want 0", len(snap.Chats))
	}
}

func TestDeleteChat_NonCurrentKeepsSelection(t *testing.T) {
	gw := newFakeGateway()
	o := newTestOrchestrator(t, gw, &fixedResponder{text: "ok"})
	ctx := context.Background()

	first := mustCreateChat(t, o)
	second := mustCreateChat(t, o) // current

	if err := o.SendMessage(ctx, "keep me"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	o.Wait()

	if err := o.DeleteChat(ctx, first.ID); err != nil {
		t.Fatalf("DeleteChat failed: %v", err)
	}
	snap := o.State()
	if snap.CurrentChat == nil || snap.CurrentChat.ID != second.ID {
		t.Error("deleting a non-current chat must not move the selection")
	}
	if len(snap.Messages) != 2 {
		t.Errorf("messages = %d, want the current ledger untouched", len(snap.Messages))
	}
}

func TestDeleteChat_GatewayFailureKeepsState(t *testing.T) {
	gw := newFakeGateway()
	o := newTestOrchestrator(t, gw, &fixedResponder{})
	ctx := context.Background()

	chat := mustCreateChat(t, o)
	gw.failDeleteChat = true

	if err := o.DeleteChat(ctx, chat.ID); err == nil {
		t.Fatal("DeleteChat must surface the gateway error")
	}
	snap := o.State()
	if len(snap.Chats) != 1 || snap.CurrentChat == nil {
		t.Error("a failed delete must leave the registry and selection unchanged")
	}
}

func TestArchiveChat_HiddenFromRegistry(t *testing.T) {
	gw := newFakeGateway()
	o := newTestOrchestrator(t, gw, &fixedResponder{})
	ctx := context.Background()

	chat := mustCreateChat(t, o)
	if err := o.ArchiveChat(ctx, chat.ID); err != nil {
		t.Fatalf("ArchiveChat failed: %v", err)
	}

	snap := o.State()
	if len(snap.Chats) != 0 || snap.CurrentChat != nil {
		t.Error("archived chat must leave the registry and selection")
	}

	if err := o.LoadChats(ctx); err != nil {
		t.Fatalf("LoadChats failed: %v", err)
	}
	if got := len(o.State().Chats); got != 0 {
		t.Errorf("chats after reload = %d, want archived chat hidden", got)
	}
}

func TestRenameChat_InPlace(t *testing.T) {
	gw := newFakeGateway()
	o := newTestOrchestrator(t, gw, &fixedResponder{})
	ctx := context.Background()

	first := mustCreateChat(t, o)
	second := mustCreateChat(t, o)

	if err := o.RenameChat(ctx, first.ID, "  Project notes  "); err != nil {
		t.Fatalf("RenameChat failed: %v", err)
	}

	snap := o.State()
	// Order unchanged: renames never reorder the registry.
	if snap.Chats[0].ID != second.ID || snap.Chats[1].ID != first.ID {
		t.Error("rename must not reorder the registry")
	}
	if snap.Chats[1].Title != "Project notes" {
		t.Errorf("title = %q, want trimmed %q", snap.Chats[1].Title, "Project notes")
	}
}

func TestRenameChat_BlankTitleRefused(t *testing.T) {
	gw := newFakeGateway()
	o := newTestOrchestrator(t, gw, &fixedResponder{})

	chat := mustCreateChat(t, o)
	err := o.RenameChat(context.Background(), chat.ID, "   ")
	if !errors.Is(err, ErrBlankTitle) {
		t.Fatalf("RenameChat blank = %v, want ErrBlankTitle", err)
	}
	if gw.updateTitleCalls != 0 {
		t.Error("a blank rename must never reach the gateway")
	}
}

func TestRenameChat_GatewayFailureKeepsTitle(t *testing.T) {
	gw := newFakeGateway()
	o := newTestOrchestrator(t, gw, &fixedResponder{})

	chat := mustCreateChat(t, o)
	gw.failUpdateTitle = true

	if err := o.RenameChat(context.Background(), chat.ID, "Better name"); err == nil {
		t.Fatal("RenameChat must surface the gateway error")
	}
	if got := o.State().Chats[0].Title; got != model.DefaultChatTitle {
		t.Errorf("title after failed rename = %q, want unchanged", got)
	}
}

// =============================================================================
// SEND PROTOCOL TESTS
// =============================================================================

func TestSendMessage_RoundTrip(t *testing.T) {
	gw := newFakeGateway()
	o := newTestOrchestrator(t, gw, &fixedResponder{text: "reply one"})
	ctx := context.Background()

	mustCreateChat(t, o)

	if err := o.SendMessage(ctx, "hello there"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	o.Wait()
	if err := o.SendMessage(ctx, "and again"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	o.Wait()

	snap := o.State()
	if snap.Pending {
		t.Error("pending must be released after the dispatch lands")
	}
	want := []struct {
		role    model.Role
		content string
	}{
		{model.RoleUser, "hello there"},
		{model.RoleAssistant, "reply one"},
		{model.RoleUser, "and again"},
		{model.RoleAssistant, "reply one"},
	}
	if len(snap.Messages) != len(want) {
		t.Fatalf("messages = %d, want %d", len(snap.Messages), len(want))
	}
	// Strict alternation: every user message is followed by its reply.
	for i, w := range want {
		if snap.Messages[i].Role != w.role || snap.Messages[i].Content != w.content {
			t.Errorf("messages[%d] = %s %q, want %s %q",
				i, snap.Messages[i].Role, snap.Messages[i].Content, w.role, w.content)
		}
	}
}

func TestSendMessage_Validation(t *testing.T) {
	gw := newFakeGateway()
	o := newTestOrchestrator(t, gw, &fixedResponder{text: "ok"})
	ctx := context.Background()

	if err := o.SendMessage(ctx, "no chat yet"); !errors.Is(err, ErrNoCurrentChat) {
		t.Errorf("send without chat = %v, want ErrNoCurrentChat", err)
	}

	mustCreateChat(t, o)
	if err := o.SendMessage(ctx, "   \n\t "); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("send of whitespace = %v, want ErrEmptyContent", err)
	}
	if gw.insertMessageCalls != 0 {
		t.Error("refused sends must never reach the gateway")
	}
}

func TestSendMessage_PendingGate(t *testing.T) {
	gw := newFakeGateway()
	responder := newGateResponder("slow reply")
	o := newTestOrchestrator(t, gw, responder)
	ctx := context.Background()

	mustCreateChat(t, o)

	if err := o.SendMessage(ctx, "first"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if !o.State().Pending {
		t.Fatal("pending must be set while the reply is in flight")
	}

	if err := o.SendMessage(ctx, "second"); !errors.Is(err, ErrSendPending) {
		t.Fatalf("concurrent send = %v, want ErrSendPending", err)
	}
	if gw.insertMessageCalls != 1 {
		t.Errorf("inserts = %d, want 1: the refused send must not persist", gw.insertMessageCalls)
	}

	close(responder.release)
	o.Wait()

	if o.State().Pending {
		t.Error("pending must be released after the reply lands")
	}
	if err := o.SendMessage(ctx, "third"); err != nil {
		t.Errorf("send after release failed: %v", err)
	}
	o.Wait()
}

func TestSendMessage_RateLimited(t *testing.T) {
	gw := newFakeGateway()
	o := New(Config{Gateway: gw, Responder: &fixedResponder{text: "ok"}, SendsPerMinute: 1})
	o.Bind(testIdentity)
	ctx := context.Background()

	mustCreateChat(t, o)

	if err := o.SendMessage(ctx, "first"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	o.Wait()

	if err := o.SendMessage(ctx, "second"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("burst send = %v, want ErrRateLimited", err)
	}
}

func TestSendMessage_UserInsertFailure(t *testing.T) {
	gw := newFakeGateway()
	o := newTestOrchestrator(t, gw, &fixedResponder{text: "ok"})
	ctx := context.Background()

	mustCreateChat(t, o)
	gw.failInsertMessage = true

	if err := o.SendMessage(ctx, "doomed"); err == nil {
		t.Fatal("SendMessage must surface the persist failure")
	}

	snap := o.State()
	if snap.Pending {
		t.Error("a failed persist must release pending immediately")
	}
	if len(snap.Messages) != 0 {
		t.Error("a failed persist must not append to the ledger")
	}
}

func TestSendMessage_ResponderFailureReleasesPending(t *testing.T) {
	gw := newFakeGateway()
	o := newTestOrchestrator(t, gw, &fixedResponder{err: errors.New("model offline")})
	ctx := context.Background()

	mustCreateChat(t, o)

	var notices []Notice
	var noticeMu sync.Mutex
	defer o.SubscribeNotices(func(n Notice) {
		noticeMu.Lock()
		notices = append(notices, n)
		noticeMu.Unlock()
	})()

	if err := o.SendMessage(ctx, "hello"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	o.Wait()

	snap := o.State()
	if snap.Pending {
		t.Error("pending must be released when the responder fails")
	}
	if len(snap.Messages) != 1 || snap.Messages[0].Role != model.RoleUser {
		t.Error("the user message stays in the ledger; no assistant message is appended")
	}

	noticeMu.Lock()
	defer noticeMu.Unlock()
	if len(notices) != 1 || notices[0].Kind != NoticeError {
		t.Errorf("notices = %v, want one error notice", notices)
	}
	if notices[0].Text != "Failed to get AI response" {
		t.Errorf("notice text = %q, want the fixed responder failure text", notices[0].Text)
	}
}

// A gateway failure notice carries the gateway's own message, not a
// generic stand-in.
func TestNotice_CarriesGatewayMessage(t *testing.T) {
	gw := newFakeGateway()
	o := newTestOrchestrator(t, gw, &fixedResponder{text: "ok"})
	ctx := context.Background()

	chat := mustCreateChat(t, o)
	gw.failUpdateTitle = true

	var notices []Notice
	var noticeMu sync.Mutex
	defer o.SubscribeNotices(func(n Notice) {
		noticeMu.Lock()
		notices = append(notices, n)
		noticeMu.Unlock()
	})()

	if err := o.RenameChat(ctx, chat.ID, "New Title"); err == nil {
		t.Fatal("RenameChat must surface the gateway failure")
	}

	noticeMu.Lock()
	defer noticeMu.Unlock()
	if len(notices) != 1 || notices[0].Kind != NoticeError {
		t.Fatalf("notices = %v, want one error notice", notices)
	}
	if notices[0].Text != "rename failed" {
		t.Errorf("notice text = %q, want the gateway's message", notices[0].Text)
	}
}

// Errors without a gateway message fall back to the generic text.
func TestNoticeText_Fallback(t *testing.T) {
	if got := noticeText(errors.New("opaque"), "Failed to load chats"); got != "Failed to load chats" {
		t.Errorf("noticeText = %q, want the fallback", got)
	}
	gerr := &store.GatewayError{Op: "list chats", Message: "list chats failed"}
	if got := noticeText(fmt.Errorf("wrapped: %w", gerr), "Failed to load chats"); got != "list chats failed" {
		t.Errorf("noticeText = %q, want the wrapped gateway message", got)
	}
}

func TestSendMessage_ReplyAfterChatDeleted(t *testing.T) {
	gw := newFakeGateway()
	responder := newGateResponder("late reply")
	o := newTestOrchestrator(t, gw, responder)
	ctx := context.Background()

	chat := mustCreateChat(t, o)

	if err := o.SendMessage(ctx, "hello"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if err := o.DeleteChat(ctx, chat.ID); err != nil {
		t.Fatalf("DeleteChat failed: %v", err)
	}

	close(responder.release)
	o.Wait()

	snap := o.State()
	if snap.Pending {
		t.Error("pending must be released even when the origin chat is gone")
	}
	if len(snap.Messages) != 0 {
		t.Error("no reply may appear for a deleted chat")
	}
}

// =============================================================================
// DISPATCH TARGETING TESTS
// =============================================================================

func TestDispatch_ReplySkipsSwitchedChat(t *testing.T) {
	gw := newFakeGateway()
	responder := newGateResponder("reply for A")
	o := newTestOrchestrator(t, gw, responder)
	ctx := context.Background()

	chatA := mustCreateChat(t, o)
	if err := o.SendMessage(ctx, "question in A"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	// Switch away while the reply is in flight.
	chatB, err := o.CreateChat(ctx)
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}

	close(responder.release)
	o.Wait()

	snap := o.State()
	if snap.CurrentChat == nil || snap.CurrentChat.ID != chatB.ID {
		t.Fatal("selection must still be on the new chat")
	}
	for _, m := range snap.Messages {
		if m.Role == model.RoleAssistant {
			t.Error("the reply must not appear in the ledger of a different chat")
		}
	}
	if snap.Pending {
		t.Error("pending must be released after a skipped append")
	}

	// The reply is persisted and visible when the origin chat is reopened.
	o.SelectChat(chatA.ID)
	if err := o.LoadMessages(ctx); err != nil {
		t.Fatalf("LoadMessages failed: %v", err)
	}
	msgs := o.State().Messages
	if len(msgs) != 2 || msgs[1].Role != model.RoleAssistant || msgs[1].Content != "reply for A" {
		t.Errorf("origin ledger = %+v, want the persisted reply as the second message", msgs)
	}
}

// =============================================================================
// AUTO-TITLE TESTS
// =============================================================================

func TestDispatch_AutoTitleFirstMessage(t *testing.T) {
	gw := newFakeGateway()
	o := newTestOrchestrator(t, gw, &fixedResponder{text: "ok"})
	ctx := context.Background()

	chat := mustCreateChat(t, o)

	long := "Explain quantum entanglement in simple terms please"
	if err := o.SendMessage(ctx, long); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	o.Wait()

	want := "Explain quantum entanglement in..."
	snap := o.State()
	if snap.CurrentChat.Title != want {
		t.Errorf("title = %q, want %q", snap.CurrentChat.Title, want)
	}
	if snap.Chats[0].Title != want {
		t.Error("the registry entry must carry the derived title too")
	}

	// The second exchange never renames again.
	if err := o.SendMessage(ctx, "A totally different follow-up question"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	o.Wait()

	if got := o.State().CurrentChat.Title; got != want {
		t.Errorf("title after second send = %q, want %q", got, want)
	}
	if gw.updateTitleCalls != 1 {
		t.Errorf("title updates = %d, want exactly 1", gw.updateTitleCalls)
	}
	_ = chat
}

func TestDispatch_ShortMessageTitleNoEllipsis(t *testing.T) {
	gw := newFakeGateway()
	o := newTestOrchestrator(t, gw, &fixedResponder{text: "ok"})
	ctx := context.Background()

	mustCreateChat(t, o)
	if err := o.SendMessage(ctx, "Hi"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	o.Wait()

	if got := o.State().CurrentChat.Title; got != "Hi" {
		t.Errorf("title = %q, want %q", got, "Hi")
	}
}

func TestDispatch_RenamedChatNeverAutoTitled(t *testing.T) {
	gw := newFakeGateway()
	o := newTestOrchestrator(t, gw, &fixedResponder{text: "ok"})
	ctx := context.Background()

	chat := mustCreateChat(t, o)
	if err := o.RenameChat(ctx, chat.ID, "My research"); err != nil {
		t.Fatalf("RenameChat failed: %v", err)
	}

	if err := o.SendMessage(ctx, "First message in a renamed chat"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	o.Wait()

	if got := o.State().CurrentChat.Title; got != "My research" {
		t.Errorf("title = %q, want the manual rename preserved", got)
	}
}

func TestDispatch_AutoTitleFailureKeepsDefault(t *testing.T) {
	gw := newFakeGateway()
	o := newTestOrchestrator(t, gw, &fixedResponder{text: "ok"})
	ctx := context.Background()

	mustCreateChat(t, o)
	gw.failUpdateTitle = true

	if err := o.SendMessage(ctx, "This rename will fail"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	o.Wait()

	snap := o.State()
	if snap.Pending {
		t.Error("pending must be released despite the failed rename")
	}
	if got := snap.CurrentChat.Title; got != model.DefaultChatTitle {
		t.Errorf("title = %q, want the default kept after a failed rename", got)
	}
	if len(snap.Messages) != 2 {
		t.Error("the exchange itself must survive a failed rename")
	}
}

// =============================================================================
// SIGN-OUT TESTS
// =============================================================================

func TestClear_DropsAllState(t *testing.T) {
	gw := newFakeGateway()
	responder := newGateResponder("late reply")
	o := newTestOrchestrator(t, gw, responder)
	ctx := context.Background()

	mustCreateChat(t, o)
	if err := o.SendMessage(ctx, "hello"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	// Sign-out lands while the reply is in flight.
	o.Clear()

	close(responder.release)
	o.Wait()

	snap := o.State()
	if snap.Identity != nil || snap.CurrentChat != nil {
		t.Error("clear must drop the identity and the selection")
	}
	if len(snap.Chats) != 0 || len(snap.Messages) != 0 {
		t.Error("clear must drop the registry and the ledger")
	}
	if snap.Pending {
		t.Error("the late dispatch must still release pending")
	}
}

// =============================================================================
// SUBSCRIPTION TESTS
// =============================================================================

func TestSubscribe_SnapshotsAndUnsubscribe(t *testing.T) {
	gw := newFakeGateway()
	o := newTestOrchestrator(t, gw, &fixedResponder{text: "ok"})

	var mu sync.Mutex
	count := 0
	unsubscribe := o.Subscribe(func(Snapshot) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	mustCreateChat(t, o)
	mu.Lock()
	after := count
	mu.Unlock()
	if after == 0 {
		t.Fatal("subscribers must see the create commit")
	}

	unsubscribe()
	mustCreateChat(t, o)
	mu.Lock()
	defer mu.Unlock()
	if count != after {
		t.Error("unsubscribed listeners must not fire")
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	gw := newFakeGateway()
	o := newTestOrchestrator(t, gw, &fixedResponder{text: "ok"})

	mustCreateChat(t, o)
	snap := o.State()
	snap.Chats[0].Title = "mutated"

	if got := o.State().Chats[0].Title; got != model.DefaultChatTitle {
		t.Error("mutating a snapshot must not affect orchestrator state")
	}
}
