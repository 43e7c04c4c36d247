// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/argon2"

	"github.com/jeranaias/parley-tui/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	accountsFile = "accounts.json"
	sessionFile  = "session.json"

	// DefaultSessionTTL is how long a login stays valid without renewal.
	DefaultSessionTTL = 12 * time.Hour

	// argon2id parameters.
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

var (
	// ErrAccountExists is returned when registering an email twice.
	ErrAccountExists = errors.New("an account with this email already exists")

	// ErrInvalidCredentials is returned for a bad email/password pair.
	// Deliberately does not distinguish the two.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrTOTPRequired is returned when the account has a second factor
	// enrolled and no code was supplied.
	ErrTOTPRequired = errors.New("verification code required")

	// ErrTOTPInvalid is returned for a wrong or expired code.
	ErrTOTPInvalid = errors.New("invalid verification code")
)

// =============================================================================
// STORED RECORDS
// =============================================================================

type account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name,omitempty"`
	PasswordHash string    `json:"password_hash"`
	TOTPSecret   string    `json:"totp_secret,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type sessionRecord struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// =============================================================================
// LOCAL AUTHENTICATOR
// =============================================================================

// LocalAuthenticator keeps accounts and the active session in JSON
// files under a directory (default ~/.parley/auth). Passwords are
// argon2id hashes; an optional TOTP second factor can be enrolled per
// account. A filesystem watch on the session file turns out-of-band
// changes (another process signing out, manual token removal, expiry
// cleanup) into session-change notifications.
type LocalAuthenticator struct {
	dir        string
	sessionTTL time.Duration

	mu        sync.Mutex
	listeners map[int]func(*Identity)
	nextSubID int
	lastToken string

	watcher *fsnotify.Watcher
	done    chan struct{}
}

var _ Authenticator = (*LocalAuthenticator)(nil)

// NewLocalAuthenticator opens (creating if necessary) the auth
// directory and starts the session-file watch.
func NewLocalAuthenticator(dir string, sessionTTL time.Duration) (*LocalAuthenticator, error) {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create auth directory: %w", err)
	}

	a := &LocalAuthenticator{
		dir:        dir,
		sessionTTL: sessionTTL,
		listeners:  make(map[int]func(*Identity)),
		done:       make(chan struct{}),
	}

	if rec, err := a.readSession(); err == nil {
		a.lastToken = rec.Token
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to start session watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch auth directory: %w", err)
	}
	a.watcher = watcher
	go a.watchLoop()

	return a, nil
}

// Close stops the watcher. Registered listeners are not invoked after
// Close returns.
func (a *LocalAuthenticator) Close() error {
	close(a.done)
	return a.watcher.Close()
}

// =============================================================================
// AUTHENTICATOR IMPLEMENTATION
// =============================================================================

// CurrentSession returns the identity of the active session, or
// ErrNoSession when the token file is missing, expired, or orphaned.
func (a *LocalAuthenticator) CurrentSession(ctx context.Context) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, err := a.readSession()
	if err != nil {
		return nil, ErrNoSession
	}
	if time.Now().After(rec.ExpiresAt) {
		// Expired tokens are removed eagerly so the watcher fires for
		// every other process holding this session.
		os.Remove(filepath.Join(a.dir, sessionFile))
		return nil, ErrNoSession
	}

	acct, err := a.findAccountByID(rec.UserID)
	if err != nil {
		return nil, ErrNoSession
	}
	return &Identity{ID: acct.ID, Email: acct.Email, DisplayName: acct.DisplayName}, nil
}

// OnSessionChange registers fn and returns its unsubscribe function.
func (a *LocalAuthenticator) OnSessionChange(fn func(*Identity)) func() {
	a.mu.Lock()
	id := a.nextSubID
	a.nextSubID++
	a.listeners[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

// SignOut removes the session token and notifies listeners.
func (a *LocalAuthenticator) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(a.dir, sessionFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	a.notifySessionState()
	return nil
}

// =============================================================================
// ACCOUNT MANAGEMENT
// =============================================================================

// Register creates a new account. It does not log the account in.
func (a *LocalAuthenticator) Register(ctx context.Context, email, displayName, password string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	accounts, err := a.readAccounts()
	if err != nil {
		return nil, err
	}
	for _, acct := range accounts {
		if acct.Email == email {
			return nil, ErrAccountExists
		}
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	acct := account{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	accounts = append(accounts, acct)
	if err := a.writeAccounts(accounts); err != nil {
		return nil, err
	}
	return &Identity{ID: acct.ID, Email: acct.Email, DisplayName: acct.DisplayName}, nil
}

// Login verifies credentials (and the TOTP code when the account has a
// second factor) and writes a fresh session token.
func (a *LocalAuthenticator) Login(ctx context.Context, email, password, totpCode string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	email = normalizeEmail(email)

	a.mu.Lock()
	accounts, err := a.readAccounts()
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var acct *account
	for i := range accounts {
		if accounts[i].Email == email {
			acct = &accounts[i]
			break
		}
	}
	if acct == nil || !verifyPassword(password, acct.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if acct.TOTPSecret != "" {
		if totpCode == "" {
			return nil, ErrTOTPRequired
		}
		if !totp.Validate(totpCode, acct.TOTPSecret) {
			return nil, ErrTOTPInvalid
		}
	}

	rec := sessionRecord{
		UserID:    acct.ID,
		Token:     newToken(),
		ExpiresAt: time.Now().Add(a.sessionTTL).UTC(),
	}
	if err := a.writeSession(rec); err != nil {
		return nil, err
	}
	a.notifySessionState()

	return &Identity{ID: acct.ID, Email: acct.Email, DisplayName: acct.DisplayName}, nil
}

// EnrollTOTP generates and stores a TOTP secret for the account and
// returns the otpauth:// provisioning URL for the user's authenticator
// app.
func (a *LocalAuthenticator) EnrollTOTP(ctx context.Context, email string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	email = normalizeEmail(email)

	a.mu.Lock()
	defer a.mu.Unlock()

	accounts, err := a.readAccounts()
	if err != nil {
		return "", err
	}
	for i := range accounts {
		if accounts[i].Email != email {
			continue
		}
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      "parley",
			AccountName: email,
		})
		if err != nil {
			return "", fmt.Errorf("failed to generate TOTP secret: %w", err)
		}
		accounts[i].TOTPSecret = key.Secret()
		if err := a.writeAccounts(accounts); err != nil {
			return "", err
		}
		return key.URL(), nil
	}
	return "", ErrInvalidCredentials
}

// =============================================================================
// SESSION WATCH
// =============================================================================

// watchLoop turns session-file events into listener notifications.
// Notifications are deduplicated by token so an editor writing the
// file twice does not double-fire.
func (a *LocalAuthenticator) watchLoop() {
	for {
		select {
		case <-a.done:
			return
		case event, ok := <-a.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != sessionFile {
				continue
			}
			a.notifySessionState()
		case _, ok := <-a.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// notifySessionState re-reads the session and fans the result out to
// listeners when it changed since the last notification.
func (a *LocalAuthenticator) notifySessionState() {
	identity, err := a.CurrentSession(context.Background())

	token := ""
	if err == nil {
		if rec, rerr := a.readSession(); rerr == nil {
			token = rec.Token
		}
	}

	a.mu.Lock()
	if token == a.lastToken {
		a.mu.Unlock()
		return
	}
	a.lastToken = token
	fns := make([]func(*Identity), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}

// =============================================================================
// FILE I/O
// =============================================================================

func (a *LocalAuthenticator) readAccounts() ([]account, error) {
	data, err := os.ReadFile(filepath.Join(a.dir, accountsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}
	var accounts []account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("corrupt accounts file: %w", err)
	}
	return accounts, nil
}

func (a *LocalAuthenticator) writeAccounts(accounts []account) error {
	data, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode accounts: %w", err)
	}
	return util.AtomicWriteFile(filepath.Join(a.dir, accountsFile), data, 0600)
}

func (a *LocalAuthenticator) readSession() (sessionRecord, error) {
	var rec sessionRecord
	data, err := os.ReadFile(filepath.Join(a.dir, sessionFile))
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func (a *LocalAuthenticator) writeSession(rec sessionRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return util.AtomicWriteFile(filepath.Join(a.dir, sessionFile), data, 0600)
}

func (a *LocalAuthenticator) findAccountByID(id string) (*account, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	accounts, err := a.readAccounts()
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		if accounts[i].ID == id {
			return &accounts[i], nil
		}
	}
	return nil, ErrNoSession
}

// =============================================================================
// PASSWORD HASHING
// =============================================================================

// hashPassword derives an argon2id hash in the standard encoded form.
func hashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// verifyPassword checks a password against an encoded argon2id hash in
// constant time.
func verifyPassword(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var memory, timeCost uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeCost, &threads); err != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, timeCost, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// newToken generates an opaque session token.
func newToken() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
