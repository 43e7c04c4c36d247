// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthenticator(t *testing.T, ttl time.Duration) *LocalAuthenticator {
	t.Helper()
	a, err := NewLocalAuthenticator(t.TempDir(), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

// =============================================================================
// REGISTRATION AND LOGIN
// =============================================================================

func TestLocalAuthenticator_RegisterAndLogin(t *testing.T) {
	a := newTestAuthenticator(t, 0)
	ctx := context.Background()

	id, err := a.Register(ctx, "Alice@Example.com", "Alice", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", id.Email, "emails are normalized")
	assert.NotEmpty(t, id.ID)

	// No session until login.
	_, err = a.CurrentSession(ctx)
	assert.ErrorIs(t, err, ErrNoSession)

	logged, err := a.Login(ctx, "alice@example.com", "s3cret-pass", "")
	require.NoError(t, err)
	assert.Equal(t, id.ID, logged.ID)

	current, err := a.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, id.ID, current.ID)
}

func TestLocalAuthenticator_RegisterDuplicate(t *testing.T) {
	a := newTestAuthenticator(t, 0)
	ctx := context.Background()

	_, err := a.Register(ctx, "alice@example.com", "", "pw-one")
	require.NoError(t, err)

	_, err = a.Register(ctx, "ALICE@example.com", "", "pw-two")
	assert.ErrorIs(t, err, ErrAccountExists)
}

func TestLocalAuthenticator_WrongPassword(t *testing.T) {
	a := newTestAuthenticator(t, 0)
	ctx := context.Background()

	_, err := a.Register(ctx, "alice@example.com", "", "right-password")
	require.NoError(t, err)

	_, err = a.Login(ctx, "alice@example.com", "wrong-password", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = a.Login(ctx, "nobody@example.com", "whatever", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLocalAuthenticator_SessionExpiry(t *testing.T) {
	a := newTestAuthenticator(t, 10*time.Millisecond)
	ctx := context.Background()

	_, err := a.Register(ctx, "alice@example.com", "", "pw")
	require.NoError(t, err)
	_, err = a.Login(ctx, "alice@example.com", "pw", "")
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	_, err = a.CurrentSession(ctx)
	assert.ErrorIs(t, err, ErrNoSession, "expired token must read as no session")
}

// =============================================================================
// SIGN-OUT AND NOTIFICATIONS
// =============================================================================

func TestLocalAuthenticator_SignOutNotifiesListeners(t *testing.T) {
	a := newTestAuthenticator(t, 0)
	ctx := context.Background()

	_, err := a.Register(ctx, "alice@example.com", "", "pw")
	require.NoError(t, err)

	changes := make(chan *Identity, 4)
	unsubscribe := a.OnSessionChange(func(id *Identity) { changes <- id })
	defer unsubscribe()

	_, err = a.Login(ctx, "alice@example.com", "pw", "")
	require.NoError(t, err)

	select {
	case id := <-changes:
		require.NotNil(t, id)
		assert.Equal(t, "alice@example.com", id.Email)
	case <-time.After(2 * time.Second):
		t.Fatal("no session-change notification after login")
	}

	require.NoError(t, a.SignOut(ctx))

	select {
	case id := <-changes:
		assert.Nil(t, id, "sign-out must notify with a nil identity")
	case <-time.After(2 * time.Second):
		t.Fatal("no session-change notification after sign-out")
	}

	_, err = a.CurrentSession(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestLocalAuthenticator_UnsubscribeStopsNotifications(t *testing.T) {
	a := newTestAuthenticator(t, 0)
	ctx := context.Background()

	_, err := a.Register(ctx, "alice@example.com", "", "pw")
	require.NoError(t, err)

	calls := 0
	unsubscribe := a.OnSessionChange(func(*Identity) { calls++ })
	unsubscribe()

	_, err = a.Login(ctx, "alice@example.com", "pw", "")
	require.NoError(t, err)

	assert.Equal(t, 0, calls, "listener must not fire after unsubscribe")
}

// =============================================================================
// PASSWORD HASHING
// =============================================================================

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := hashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, verifyPassword("correct horse battery staple", hash))
	assert.False(t, verifyPassword("incorrect horse", hash))
	assert.False(t, verifyPassword("", hash))
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	h1, err := hashPassword("same password")
	require.NoError(t, err)
	h2, err := hashPassword("same password")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2, "two hashes of the same password must differ by salt")
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	assert.False(t, verifyPassword("pw", "not-an-encoded-hash"))
	assert.False(t, verifyPassword("pw", "$argon2id$v=19$m=65536,t=1,p=4$bad salt$bad hash"))
}
