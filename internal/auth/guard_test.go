// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// fakeAuthenticator is a scriptable Authenticator for guard tests.
type fakeAuthenticator struct {
	mu        sync.Mutex
	identity  *Identity
	listeners map[int]func(*Identity)
	nextID    int
}

func newFakeAuthenticator(id *Identity) *fakeAuthenticator {
	return &fakeAuthenticator{
		identity:  id,
		listeners: make(map[int]func(*Identity)),
	}
}

func (f *fakeAuthenticator) CurrentSession(ctx context.Context) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.identity == nil {
		return nil, ErrNoSession
	}
	id := *f.identity
	return &id, nil
}

func (f *fakeAuthenticator) OnSessionChange(fn func(*Identity)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *fakeAuthenticator) SignOut(ctx context.Context) error {
	f.setIdentity(nil)
	return nil
}

func (f *fakeAuthenticator) setIdentity(id *Identity) {
	f.mu.Lock()
	f.identity = id
	fns := make([]func(*Identity), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}

func (f *fakeAuthenticator) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

// =============================================================================
// GUARD TESTS
// =============================================================================

func TestGuard_StartBindsIdentity(t *testing.T) {
	fake := newFakeAuthenticator(&Identity{ID: "u1", Email: "a@example.com"})
	guard := NewGuard(fake)

	var bound *Identity
	guard.OnIdentity = func(id Identity) { bound = &id }

	if err := guard.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer guard.Stop()

	if bound == nil || bound.ID != "u1" {
		t.Errorf("OnIdentity bound = %+v, want u1", bound)
	}
	if got := guard.Identity(); got == nil || got.ID != "u1" {
		t.Errorf("Identity() = %+v, want u1", got)
	}
}

func TestGuard_StartWithoutSession(t *testing.T) {
	fake := newFakeAuthenticator(nil)
	guard := NewGuard(fake)

	err := guard.Start(context.Background())
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("Start error = %v, want ErrNoSession", err)
	}
	defer guard.Stop()

	if guard.Identity() != nil {
		t.Error("Identity() should be nil without a session")
	}
	// The listener must still be armed so a later login is observed.
	if fake.listenerCount() != 1 {
		t.Errorf("listener count = %d, want 1", fake.listenerCount())
	}
}

func TestGuard_SignOutFiresOncePerLoss(t *testing.T) {
	fake := newFakeAuthenticator(&Identity{ID: "u1"})
	guard := NewGuard(fake)

	signedOut := 0
	guard.OnSignedOut = func() { signedOut++ }

	if err := guard.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer guard.Stop()

	fake.setIdentity(nil)
	fake.setIdentity(nil) // duplicate absent notification

	if signedOut != 1 {
		t.Errorf("OnSignedOut fired %d times, want exactly 1 per loss", signedOut)
	}
	if guard.Identity() != nil {
		t.Error("Identity() should be nil after loss")
	}

	// A re-login followed by another loss is a new loss event.
	fake.setIdentity(&Identity{ID: "u1"})
	fake.setIdentity(nil)
	if signedOut != 2 {
		t.Errorf("OnSignedOut fired %d times after second loss, want 2", signedOut)
	}
}

func TestGuard_StartRegistersSingleListener(t *testing.T) {
	fake := newFakeAuthenticator(&Identity{ID: "u1"})
	guard := NewGuard(fake)

	// Repeated checks must not stack subscriptions.
	guard.Start(context.Background())
	guard.Start(context.Background())
	guard.Start(context.Background())

	if fake.listenerCount() != 1 {
		t.Errorf("listener count = %d, want 1", fake.listenerCount())
	}

	guard.Stop()
	if fake.listenerCount() != 0 {
		t.Errorf("listener count after Stop = %d, want 0", fake.listenerCount())
	}
	guard.Stop() // idempotent
}

func TestGuard_SignOutDelegates(t *testing.T) {
	fake := newFakeAuthenticator(&Identity{ID: "u1"})
	guard := NewGuard(fake)

	signedOut := 0
	guard.OnSignedOut = func() { signedOut++ }

	guard.Start(context.Background())
	defer guard.Stop()

	if err := guard.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if signedOut != 1 {
		t.Errorf("OnSignedOut fired %d times, want 1", signedOut)
	}
}
