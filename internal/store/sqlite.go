// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/parley-tui/internal/model"
)

// timeLayout is a fixed-width RFC3339 variant. RFC3339Nano trims
// trailing zeros, which breaks lexicographic ORDER BY on TEXT columns;
// this layout keeps all nine fractional digits so string order equals
// time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	title       TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	is_archived INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_chats_user_updated
	ON chats(user_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	chat_id    TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_chat_created
	ON messages(chat_id, created_at);
`

// =============================================================================
// SQLITE GATEWAY
// =============================================================================

// SQLiteGateway is the local Gateway implementation backed by a single
// SQLite database file. It is safe for concurrent use; database/sql
// serializes access to the underlying connection pool.
type SQLiteGateway struct {
	db   *sql.DB
	path string
}

var _ Gateway = (*SQLiteGateway)(nil)

// OpenSQLite opens (creating if necessary) the chat database at path.
func OpenSQLite(path string) (*SQLiteGateway, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &GatewayError{Op: "open store", Message: "failed to create store directory", Cause: err}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &GatewayError{Op: "open store", Message: "failed to open chat database", Cause: err}
	}

	// Cascading delete from chats to messages requires foreign keys,
	// which SQLite leaves off per connection by default.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, &GatewayError{Op: "open store", Message: "failed to enable foreign keys", Cause: err}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &GatewayError{Op: "open store", Message: "failed to initialize schema", Cause: err}
	}

	return &SQLiteGateway{db: db, path: path}, nil
}

// Close closes the database.
func (g *SQLiteGateway) Close() error {
	return g.db.Close()
}

// Path returns the database file path.
func (g *SQLiteGateway) Path() string {
	return g.path
}

// SetBusyTimeout makes concurrent openers wait up to d for a locked
// database instead of failing immediately with SQLITE_BUSY.
func (g *SQLiteGateway) SetBusyTimeout(d time.Duration) error {
	_, err := g.db.Exec("PRAGMA busy_timeout = " + strconv.Itoa(int(d.Milliseconds())))
	if err != nil {
		return &GatewayError{Op: "open store", Message: "failed to set busy timeout", Cause: err}
	}
	return nil
}

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// ListChats returns all non-archived chats for userID, most recently
// updated first.
func (g *SQLiteGateway) ListChats(ctx context.Context, userID string) ([]model.Chat, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT id, title, created_at, updated_at, is_archived
		FROM chats
		WHERE user_id = ? AND is_archived = 0
		ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, &GatewayError{Op: "list chats", Message: "failed to load chats", Cause: err}
	}
	defer rows.Close()

	var chats []model.Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, &GatewayError{Op: "list chats", Message: "failed to read chat row", Cause: err}
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, &GatewayError{Op: "list chats", Message: "failed to load chats", Cause: err}
	}
	return chats, nil
}

// InsertChat persists a new chat and returns it.
func (g *SQLiteGateway) InsertChat(ctx context.Context, userID, title string) (model.Chat, error) {
	now := time.Now().UTC()
	chat := model.Chat{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := g.db.ExecContext(ctx, `
		INSERT INTO chats (id, user_id, title, created_at, updated_at, is_archived)
		VALUES (?, ?, ?, ?, ?, 0)`,
		chat.ID, userID, chat.Title, formatTime(now), formatTime(now))
	if err != nil {
		return model.Chat{}, &GatewayError{Op: "insert chat", Message: "failed to create chat", Cause: err}
	}
	return chat, nil
}

// UpdateChatTitle persists a title change.
func (g *SQLiteGateway) UpdateChatTitle(ctx context.Context, chatID, title string) error {
	res, err := g.db.ExecContext(ctx, `
		UPDATE chats SET title = ?, updated_at = ? WHERE id = ?`,
		title, formatTime(time.Now().UTC()), chatID)
	if err != nil {
		return &GatewayError{Op: "rename chat", Message: "failed to rename chat", Cause: err}
	}
	return requireRow(res, "rename chat")
}

// ArchiveChat marks a chat archived without deleting its rows.
func (g *SQLiteGateway) ArchiveChat(ctx context.Context, chatID string) error {
	res, err := g.db.ExecContext(ctx, `
		UPDATE chats SET is_archived = 1, updated_at = ? WHERE id = ?`,
		formatTime(time.Now().UTC()), chatID)
	if err != nil {
		return &GatewayError{Op: "archive chat", Message: "failed to archive chat", Cause: err}
	}
	return requireRow(res, "archive chat")
}

// DeleteChat removes a chat; the foreign key cascade removes its messages.
func (g *SQLiteGateway) DeleteChat(ctx context.Context, chatID string) error {
	res, err := g.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, chatID)
	if err != nil {
		return &GatewayError{Op: "delete chat", Message: "failed to delete chat", Cause: err}
	}
	return requireRow(res, "delete chat")
}

// =============================================================================
// MESSAGE OPERATIONS
// =============================================================================

// ListMessages returns all messages of chatID, oldest first.
func (g *SQLiteGateway) ListMessages(ctx context.Context, chatID string) ([]model.Message, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT id, chat_id, role, content, created_at
		FROM messages
		WHERE chat_id = ?
		ORDER BY created_at ASC`, chatID)
	if err != nil {
		return nil, &GatewayError{Op: "list messages", Message: "failed to load messages", Cause: err}
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var msg model.Message
		var role, created string
		if err := rows.Scan(&msg.ID, &msg.ChatID, &role, &msg.Content, &created); err != nil {
			return nil, &GatewayError{Op: "list messages", Message: "failed to read message row", Cause: err}
		}
		msg.Role = model.Role(role)
		msg.CreatedAt, err = time.Parse(timeLayout, created)
		if err != nil {
			return nil, &GatewayError{Op: "list messages", Message: "corrupt message timestamp", Cause: err}
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, &GatewayError{Op: "list messages", Message: "failed to load messages", Cause: err}
	}
	return msgs, nil
}

// InsertMessage persists one message and bumps the parent chat's
// updated_at in the same transaction, so a half-applied insert can
// never leave the chat list ordering ahead of the message ledger.
func (g *SQLiteGateway) InsertMessage(ctx context.Context, chatID string, role model.Role, content string) (model.Message, error) {
	now := time.Now().UTC()
	msg := model.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Message{}, &GatewayError{Op: "insert message", Message: "failed to send message", Cause: err}
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE chats SET updated_at = ? WHERE id = ?`,
		formatTime(now), chatID)
	if err != nil {
		return model.Message{}, &GatewayError{Op: "insert message", Message: "failed to send message", Cause: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Message{}, ErrChatNotFound
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ChatID, string(msg.Role), msg.Content, formatTime(now))
	if err != nil {
		return model.Message{}, &GatewayError{Op: "insert message", Message: "failed to send message", Cause: err}
	}

	if err := tx.Commit(); err != nil {
		return model.Message{}, &GatewayError{Op: "insert message", Message: "failed to send message", Cause: err}
	}
	return msg, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// scanChat reads one chat row.
func scanChat(rows *sql.Rows) (model.Chat, error) {
	var chat model.Chat
	var created, updated string
	var archived int
	if err := rows.Scan(&chat.ID, &chat.Title, &created, &updated, &archived); err != nil {
		return model.Chat{}, err
	}
	var err error
	if chat.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return model.Chat{}, err
	}
	if chat.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return model.Chat{}, err
	}
	chat.IsArchived = archived != 0
	return chat, nil
}

// requireRow converts a zero-row update into ErrChatNotFound.
func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return &GatewayError{Op: op, Message: "failed to confirm update", Cause: err}
	}
	if n == 0 {
		return ErrChatNotFound
	}
	return nil
}
