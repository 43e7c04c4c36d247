// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jeranaias/parley-tui/internal/auth"
	"github.com/jeranaias/parley-tui/internal/model"
	"github.com/jeranaias/parley-tui/internal/session"
	"github.com/jeranaias/parley-tui/internal/store"
)

// stubGateway is a minimal in-memory store.Gateway for REPL command tests.
type stubGateway struct {
	mu     sync.Mutex
	nextID int
	chats  []model.Chat
	msgs   map[string][]model.Message
}

func newStubGateway() *stubGateway {
	return &stubGateway{msgs: make(map[string][]model.Message)}
}

func (g *stubGateway) id() string {
	g.nextID++
	return "id-" + strconv.Itoa(g.nextID)
}

func (g *stubGateway) ListChats(ctx context.Context, userID string) ([]model.Chat, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []model.Chat
	for _, c := range g.chats {
		if !c.IsArchived {
			out = append(out, c)
		}
	}
	return out, nil
}

func (g *stubGateway) InsertChat(ctx context.Context, userID, title string) (model.Chat, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := model.Chat{ID: g.id(), Title: title, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	g.chats = append(g.chats, c)
	return c, nil
}

func (g *stubGateway) UpdateChatTitle(ctx context.Context, chatID, title string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.chats {
		if g.chats[i].ID == chatID {
			g.chats[i].Title = title
			return nil
		}
	}
	return store.ErrChatNotFound
}

func (g *stubGateway) ArchiveChat(ctx context.Context, chatID string) error {
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

func (g *stubGateway) DeleteChat(ctx context.Context, chatID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.chats {
		if g.chats[i].ID == chatID {
			g.chats = append(g.chats[:i], g.chats[i+1:]...)
			break
		}
	}
	delete(g.msgs, chatID)
	return nil
}

func (g *stubGateway) ListMessages(ctx context.Context, chatID string) ([]model.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]model.Message(nil), g.msgs[chatID]...), nil
}

func (g *stubGateway) InsertMessage(ctx context.Context, chatID string, role model.Role, content string) (model.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m := model.Message{ID: g.id(), ChatID: chatID, Role: role, Content: content, CreatedAt: time.Now()}
	g.msgs[chatID] = append(g.msgs[chatID], m)
	return m, nil
}

func (g *stubGateway) Close() error { return nil }

type stubResponder struct{}

func (stubResponder) Reply(ctx context.Context, history []model.Message) (string, error) {
	return "ok", nil
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	o := session.New(session.Config{Gateway: newStubGateway(), Responder: stubResponder{}})
	o.Bind(auth.Identity{ID: "u1", Email: "alice@example.com"})
	return &App{Orchestrator: o}
}

// =============================================================================
// REPL COMMAND TESTS
// =============================================================================

func TestHandleChatCommand_QuitAndHelp(t *testing.T) {
	a := newTestApp(t)

	quit, err := a.handleChatCommand(context.Background(), "/quit")
	if err != nil || !quit {
		t.Errorf("/quit: quit=%v err=%v", quit, err)
	}

	quit, err = a.handleChatCommand(context.Background(), "/help")
	if err != nil || quit {
		t.Errorf("/help: quit=%v err=%v", quit, err)
	}
}

func TestHandleChatCommand_NewSelectsChat(t *testing.T) {
	a := newTestApp(t)

	if _, err := a.handleChatCommand(context.Background(), "/new"); err != nil {
		t.Fatalf("/new failed: %v", err)
	}

	snap := a.Orchestrator.State()
	if snap.CurrentChat == nil {
		t.Fatal("/new must select the created chat")
	}
	if snap.CurrentChat.Title != model.DefaultChatTitle {
		t.Errorf("new chat title = %q", snap.CurrentChat.Title)
	}
}

func TestHandleChatCommand_SelectValidation(t *testing.T) {
	a := newTestApp(t)
	a.handleChatCommand(context.Background(), "/new")

	if _, err := a.handleChatCommand(context.Background(), "/select"); err == nil {
		t.Error("/select without an index must fail")
	}
	if _, err := a.handleChatCommand(context.Background(), "/select 99"); err == nil {
		t.Error("/select out of range must fail")
	}
	if _, err := a.handleChatCommand(context.Background(), "/select abc"); err == nil {
		t.Error("/select with a non-number must fail")
	}
	if _, err := a.handleChatCommand(context.Background(), "/select 1"); err != nil {
		t.Errorf("/select 1 failed: %v", err)
	}
}

func TestHandleChatCommand_Rename(t *testing.T) {
	a := newTestApp(t)
	a.handleChatCommand(context.Background(), "/new")

	if _, err := a.handleChatCommand(context.Background(), "/rename Weekend plans"); err != nil {
		t.Fatalf("/rename failed: %v", err)
	}
	if got := a.Orchestrator.State().CurrentChat.Title; got != "Weekend plans" {
		t.Errorf("title = %q, want Weekend plans", got)
	}

	if _, err := a.handleChatCommand(context.Background(), "/rename"); err == nil {
		t.Error("/rename without a title must fail")
	}
}

func TestHandleChatCommand_DeleteFallsBack(t *testing.T) {
	a := newTestApp(t)
	a.handleChatCommand(context.Background(), "/new")
	a.handleChatCommand(context.Background(), "/new")

	first := a.Orchestrator.State().CurrentChat.ID
	if _, err := a.handleChatCommand(context.Background(), "/delete"); err != nil {
		t.Fatalf("/delete failed: %v", err)
	}

	snap := a.Orchestrator.State()
	if snap.CurrentChat == nil {
		t.Fatal("deleting one of two chats must fall back to the other")
	}
	if snap.CurrentChat.ID == first {
		t.Error("deleted chat still selected")
	}
}

func TestHandleChatCommand_NoCurrentChat(t *testing.T) {
	a := newTestApp(t)

	if _, err := a.handleChatCommand(context.Background(), "/rename Title"); err == nil {
		t.Error("/rename with no chat must fail")
	}
	if _, err := a.handleChatCommand(context.Background(), "/delete"); err == nil {
		t.Error("/delete with no chat must fail")
	}
	if _, err := a.handleChatCommand(context.Background(), "/archive"); err == nil {
		t.Error("/archive with no chat must fail")
	}
}

func TestHandleChatCommand_Unknown(t *testing.T) {
	a := newTestApp(t)
	if _, err := a.handleChatCommand(context.Background(), "/bogus"); err == nil {
		t.Error("unknown command must fail")
	}
}

// =============================================================================
// ERROR REPORTING
// =============================================================================

// Store failures and rate limiting are printed by the notice
// subscription; the REPL error path must skip them so each failure
// appears once. Local usage errors have no notice and must print.
func TestAlreadyNoticed(t *testing.T) {
	noticed := []error{
		&store.GatewayError{Op: "rename chat", Message: "rename failed"},
		fmt.Errorf("wrapped: %w", &store.GatewayError{Op: "list chats", Message: "list failed"}),
		store.ErrChatNotFound,
		session.ErrRateLimited,
	}
	for _, err := range noticed {
		if !alreadyNoticed(err) {
			t.Errorf("alreadyNoticed(%v) = false, want true", err)
		}
	}

	local := []error{
		errors.New("usage: /select N"),
		session.ErrNoCurrentChat,
	}
	for _, err := range local {
		if alreadyNoticed(err) {
			t.Errorf("alreadyNoticed(%v) = true, want false", err)
		}
	}
}

// =============================================================================
// TOTP ENROLLMENT
// =============================================================================

func TestRunTOTP_EnrollsSignedInAccount(t *testing.T) {
	authr, err := auth.NewLocalAuthenticator(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewLocalAuthenticator failed: %v", err)
	}
	defer authr.Close()

	ctx := context.Background()
	if _, err := authr.Register(ctx, "bob@example.com", "bob", "hunter2hunter2"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := authr.Login(ctx, "bob@example.com", "hunter2hunter2", ""); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	a := &App{Auth: authr}
	if err := a.runTOTP(ctx); err != nil {
		t.Fatalf("totp enrollment failed: %v", err)
	}

	// The next login must demand the second factor.
	if _, err := authr.Login(ctx, "bob@example.com", "hunter2hunter2", ""); !errors.Is(err, auth.ErrTOTPRequired) {
		t.Errorf("login after enrollment = %v, want ErrTOTPRequired", err)
	}
}

func TestRunTOTP_RequiresSession(t *testing.T) {
	authr, err := auth.NewLocalAuthenticator(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewLocalAuthenticator failed: %v", err)
	}
	defer authr.Close()

	a := &App{Auth: authr}
	if err := a.runTOTP(context.Background()); err == nil {
		t.Error("totp enrollment without a session must fail")
	}
}
