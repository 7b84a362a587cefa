package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"

	"ragchat-backend/internal/models"
	"ragchat-backend/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time check to ensure PostgresStore implements store.Store
var _ store.Store = (*PostgresStore)(nil)

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
    id UUID PRIMARY KEY,
    owner TEXT NOT NULL DEFAULT '',
    title TEXT NOT NULL DEFAULT '',
    messages JSONB NOT NULL DEFAULT '[]'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_owner_created ON conversations(owner, created_at DESC)`,
}

// Migrate creates the conversations table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("database error creating schema: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

// --- Conversation Methods ---

const createConversation = `-- name: CreateConversation :one
INSERT INTO conversations (
    id, owner, title, messages
) VALUES (
    $1, $2, $3, $4::jsonb
)
RETURNING id, owner, title, messages, created_at, updated_at;
`

// CreateConversation inserts a new conversation with its optional initial turns.
func (s *PostgresStore) CreateConversation(ctx context.Context, arg store.CreateConversationParams) (*models.Conversation, error) {
	id := arg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	log.Printf("[PostgresStore] CreateConversation called for ID: %s, Owner: %q", id, arg.Owner)

	if err := store.ValidateMessages(arg.Messages...); err != nil {
		return nil, err
	}
	messages, err := store.EncodeMessages(arg.Messages)
	if err != nil {
		return nil, err
	}

	conv, err := scanConversation(s.db.QueryRow(ctx, createConversation, id, arg.Owner, arg.Title, messages))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			log.Printf("ERROR [PostgresStore] CreateConversation: PostgreSQL error for ID %s: Code=%s, Message=%s, Detail=%s", id, pgErr.Code, pgErr.Message, pgErr.Detail)
		} else {
			log.Printf("ERROR [PostgresStore] CreateConversation: Failed exec/scan for ID %s: %v", id, err)
		}
		return nil, fmt.Errorf("database error creating conversation: %w", err)
	}

	log.Printf("[PostgresStore] CreateConversation: Successfully inserted conversation ID %s with %d messages", conv.ID, len(conv.Messages))
	return conv, nil
}

const getConversation = `-- name: GetConversation :one
SELECT id, owner, title, messages, created_at, updated_at
FROM conversations
WHERE id = $1 AND owner = $2;
`

// GetConversation retrieves a conversation by ID for the given owner.
// Returns store.ErrNotFound if it does not exist or belongs to someone else.
func (s *PostgresStore) GetConversation(ctx context.Context, id uuid.UUID, owner string) (*models.Conversation, error) {
	conv, err := scanConversation(s.db.QueryRow(ctx, getConversation, id, owner))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("error scanning conversation: %w", err)
	}
	return conv, nil
}

const listConversations = `-- name: ListConversations :many
SELECT id, owner, title, messages, created_at, updated_at
FROM conversations
WHERE owner = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3;
`

// ListConversations returns the owner's conversations, newest first.
func (s *PostgresStore) ListConversations(ctx context.Context, owner string, limit, offset int) ([]models.Conversation, error) {
	rows, err := s.db.Query(ctx, listConversations, owner, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("error querying conversations: %w", err)
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning conversation row: %w", err)
		}
		conversations = append(conversations, *conv)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversation rows: %w", err)
	}

	return conversations, nil
}

const appendMessage = `-- name: AppendMessage :exec
UPDATE conversations
SET messages = messages || jsonb_build_array($1::jsonb), updated_at = NOW()
WHERE id = $2 AND owner = $3;
`

// AppendMessage adds a turn at the end of the conversation's messages array.
// The concatenation happens in a single statement, so concurrent appends keep their arrival order.
func (s *PostgresStore) AppendMessage(ctx context.Context, id uuid.UUID, owner string, msg models.ChatMessageData) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	data, err := encodeMessage(msg)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, appendMessage, data, id, owner)
	if err != nil {
		log.Printf("ERROR [PostgresStore] AppendMessage: Failed to update conversation %s: %v", id, err)
		return fmt.Errorf("failed to append message: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	return nil
}

const replaceMessage = `-- name: ReplaceMessage :exec
UPDATE conversations
SET messages = jsonb_set(messages, ARRAY[$1::text], $2::jsonb, false), updated_at = NOW()
WHERE id = $3 AND owner = $4 AND jsonb_array_length(messages) > $5;
`

// ReplaceMessage swaps the turn at index for msg.
// Returns store.ErrIndexOutOfRange when index does not address an existing turn.
func (s *PostgresStore) ReplaceMessage(ctx context.Context, id uuid.UUID, owner string, index int, msg models.ChatMessageData) error {
	if index < 0 {
		return store.ErrIndexOutOfRange
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	data, err := encodeMessage(msg)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, replaceMessage, strconv.Itoa(index), data, id, owner, index)
	if err != nil {
		log.Printf("ERROR [PostgresStore] ReplaceMessage: Failed to update conversation %s at index %d: %v", id, index, err)
		return fmt.Errorf("failed to replace message: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Tell a missing conversation apart from a short one.
		if _, err := s.GetConversation(ctx, id, owner); err != nil {
			return err
		}
		return store.ErrIndexOutOfRange
	}

	return nil
}

const deleteConversation = `-- name: DeleteConversation :exec
DELETE FROM conversations
WHERE id = $1 AND owner = $2;
`

// DeleteConversation removes a conversation and all of its turns.
func (s *PostgresStore) DeleteConversation(ctx context.Context, id uuid.UUID, owner string) error {
	tag, err := s.db.Exec(ctx, deleteConversation, id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	log.Printf("[PostgresStore] DeleteConversation: Deleted conversation ID %s", id)
	return nil
}

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	var conv models.Conversation
	var messages []byte
	if err := row.Scan(
		&conv.ID,
		&conv.Owner,
		&conv.Title,
		&messages,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	); err != nil {
		return nil, err
	}

	decoded, err := store.DecodeMessages(messages)
	if err != nil {
		return nil, err
	}
	conv.Messages = decoded
	return &conv, nil
}

func encodeMessage(msg models.ChatMessageData) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return data, nil
}
