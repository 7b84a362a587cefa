// Package sqlite implements store.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"ragchat-backend/internal/models"
	"ragchat-backend/internal/store"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Compile-time check to ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)

// SQLiteStore keeps conversations in a single table with the turns as a JSON text column.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // Serializes writers to avoid SQLITE_BUSY
}

// New opens (creating if needed) the database at dbPath and initializes the schema.
func New(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	log.Printf("[SQLiteStore] Opened database at %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		messages TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_owner_created ON conversations(owner, created_at DESC);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateConversation inserts a new conversation with its optional initial turns.
func (s *SQLiteStore) CreateConversation(ctx context.Context, arg store.CreateConversationParams) (*models.Conversation, error) {
	id := arg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	if err := store.ValidateMessages(arg.Messages...); err != nil {
		return nil, err
	}
	messages, err := store.EncodeMessages(arg.Messages)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, owner, title, messages, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id.String(), arg.Owner, arg.Title, string(messages), now.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		log.Printf("ERROR [SQLiteStore] CreateConversation: Failed to insert conversation %s: %v", id, err)
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	decoded, err := store.DecodeMessages(messages)
	if err != nil {
		return nil, err
	}
	return &models.Conversation{
		ID:        id,
		Owner:     arg.Owner,
		Title:     arg.Title,
		Messages:  decoded,
		CreatedAt: time.Unix(0, now.UnixNano()).UTC(),
		UpdatedAt: time.Unix(0, now.UnixNano()).UTC(),
	}, nil
}

// GetConversation retrieves a conversation by ID for the given owner.
func (s *SQLiteStore) GetConversation(ctx context.Context, id uuid.UUID, owner string) (*models.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner, title, messages, created_at, updated_at
		FROM conversations WHERE id = ? AND owner = ?`,
		id.String(), owner,
	)
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation row: %w", err)
	}
	return conv, nil
}

// ListConversations returns the owner's conversations, newest first.
func (s *SQLiteStore) ListConversations(ctx context.Context, owner string, limit, offset int) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, title, messages, created_at, updated_at
		FROM conversations WHERE owner = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`,
		owner, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		conversations = append(conversations, *conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation rows: %w", err)
	}
	return conversations, nil
}

// AppendMessage adds a turn at the end of the conversation's messages array.
func (s *SQLiteStore) AppendMessage(ctx context.Context, id uuid.UUID, owner string, msg models.ChatMessageData) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations
		SET messages = json_insert(messages, '$[#]', json(?)), updated_at = ?
		WHERE id = ? AND owner = ?`,
		string(data), time.Now().UTC().UnixNano(), id.String(), owner,
	)
	if err != nil {
		log.Printf("ERROR [SQLiteStore] AppendMessage: Failed to update conversation %s: %v", id, err)
		return fmt.Errorf("append message: %w", err)
	}
	return requireRow(res)
}

// ReplaceMessage swaps the turn at index for msg.
func (s *SQLiteStore) ReplaceMessage(ctx context.Context, id uuid.UUID, owner string, index int, msg models.ChatMessageData) error {
	if index < 0 {
		return store.ErrIndexOutOfRange
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations
		SET messages = json_replace(messages, ?, json(?)), updated_at = ?
		WHERE id = ? AND owner = ? AND json_array_length(messages) > ?`,
		"$["+strconv.Itoa(index)+"]", string(data), time.Now().UTC().UnixNano(), id.String(), owner, index,
	)
	if err != nil {
		log.Printf("ERROR [SQLiteStore] ReplaceMessage: Failed to update conversation %s at index %d: %v", id, index, err)
		return fmt.Errorf("replace message: %w", err)
	}

	if err := requireRow(res); err != nil {
		if _, getErr := s.GetConversation(ctx, id, owner); getErr != nil {
			return getErr
		}
		return store.ErrIndexOutOfRange
	}
	return nil
}

// DeleteConversation removes a conversation and all of its turns.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, id uuid.UUID, owner string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ? AND owner = ?`, id.String(), owner)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*models.Conversation, error) {
	var (
		conv                 models.Conversation
		id, messages         string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&id, &conv.Owner, &conv.Title, &messages, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse conversation id %q: %w", id, err)
	}
	decoded, err := store.DecodeMessages([]byte(messages))
	if err != nil {
		return nil, err
	}

	conv.ID = parsed
	conv.Messages = decoded
	conv.CreatedAt = time.Unix(0, createdAt).UTC()
	conv.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &conv, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
