// Package store persists chats and their messages.
//
// The backing database is a single SQLite file opened through the pure
// Go modernc.org/sqlite driver, so the binary stays CGO-free. Message
// history is append-only; the only destructive operation is clearing a
// chat's messages, which keeps the chat row itself.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrChatNotFound is returned when a chat ID does not exist.
var ErrChatNotFound = errors.New("chat not found")

// Chat is a conversation container.
type Chat struct {
	ID        uuid.UUID
	Title     string
	ModelID   uuid.UUID
	CreatedAt time.Time
}

// Message is one stored conversation turn. Metadata is an opaque JSON
// blob, empty when nothing was attached.
type Message struct {
	ID        uuid.UUID
	ChatID    uuid.UUID
	Role      string
	Content   string
	Metadata  string
	CreatedAt time.Time
}

// Store is the persistence boundary for conversation history.
type Store interface {
	CreateChat(ctx context.Context, modelID uuid.UUID) (*Chat, error)
	Chat(ctx context.Context, id uuid.UUID) (*Chat, error)
	SetTitle(ctx context.Context, id uuid.UUID, title string) error
	AppendMessage(ctx context.Context, chatID uuid.UUID, role, content, metadata string) (*Message, error)

	// RecentMessages returns up to limit messages, newest first.
	RecentMessages(ctx context.Context, chatID uuid.UUID, limit int) ([]Message, error)

	// Messages returns the full history, oldest first.
	Messages(ctx context.Context, chatID uuid.UUID) ([]Message, error)

	ClearMessages(ctx context.Context, chatID uuid.UUID) error
	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	model_id   TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	chat_id    TEXT NOT NULL REFERENCES chats(id),
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, created_at);
`

// SQLiteStore implements Store on a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite handles one writer at a time; serialize at the pool level
	// instead of surfacing SQLITE_BUSY to callers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateChat(ctx context.Context, modelID uuid.UUID) (*Chat, error) {
	chat := &Chat{
		ID:        uuid.New(),
		ModelID:   modelID,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (id, title, model_id, created_at) VALUES (?, ?, ?, ?)`,
		chat.ID.String(), chat.Title, chat.ModelID.String(), chat.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}
	return chat, nil
}

func (s *SQLiteStore) Chat(ctx context.Context, id uuid.UUID) (*Chat, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, model_id, created_at FROM chats WHERE id = ?`, id.String())

	var chat Chat
	var rawID, rawModelID string
	err := row.Scan(&rawID, &chat.Title, &rawModelID, &chat.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select chat: %w", err)
	}
	if chat.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("corrupt chat id %q: %w", rawID, err)
	}
	if chat.ModelID, err = uuid.Parse(rawModelID); err != nil {
		return nil, fmt.Errorf("corrupt model id %q: %w", rawModelID, err)
	}
	return &chat, nil
}

func (s *SQLiteStore) SetTitle(ctx context.Context, id uuid.UUID, title string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chats SET title = ? WHERE id = ?`, title, id.String())
	if err != nil {
		return fmt.Errorf("update title: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrChatNotFound
	}
	return nil
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, chatID uuid.UUID, role, content, metadata string) (*Message, error) {
	if _, err := s.Chat(ctx, chatID); err != nil {
		return nil, err
	}
	msg := &Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, chat_id, role, content, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID.String(), msg.ChatID.String(), msg.Role, msg.Content, msg.Metadata, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func (s *SQLiteStore) RecentMessages(ctx context.Context, chatID uuid.UUID, limit int) ([]Message, error) {
	// rowid breaks ties for messages created within the same tick.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, role, content, metadata, created_at
		 FROM messages WHERE chat_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		chatID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("select recent messages: %w", err)
	}
	return scanMessages(rows)
}

func (s *SQLiteStore) Messages(ctx context.Context, chatID uuid.UUID) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, role, content, metadata, created_at
		 FROM messages WHERE chat_id = ?
		 ORDER BY created_at ASC, rowid ASC`,
		chatID.String())
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	return scanMessages(rows)
}

func (s *SQLiteStore) ClearMessages(ctx context.Context, chatID uuid.UUID) error {
	if _, err := s.Chat(ctx, chatID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE chat_id = ?`, chatID.String()); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var msg Message
		var rawID, rawChatID string
		if err := rows.Scan(&rawID, &rawChatID, &msg.Role, &msg.Content, &msg.Metadata, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		var err error
		if msg.ID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("corrupt message id %q: %w", rawID, err)
		}
		if msg.ChatID, err = uuid.Parse(rawChatID); err != nil {
			return nil, fmt.Errorf("corrupt chat id %q: %w", rawChatID, err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

var _ Store = (*SQLiteStore)(nil)
