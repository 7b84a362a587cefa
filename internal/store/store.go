package store

import (
	"context"
	"errors"

	"ragchat-backend/internal/models"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a specific record is not found.
var ErrNotFound = errors.New("record not found")

// ErrIndexOutOfRange is returned when a message index does not address an existing turn.
var ErrIndexOutOfRange = errors.New("message index out of range")

// ErrCorruptRecord is returned when a stored row no longer satisfies the message contract.
var ErrCorruptRecord = errors.New("stored conversation is corrupt")

// CreateConversationParams contains parameters for creating a conversation.
type CreateConversationParams struct {
	ID       uuid.UUID // Generated when uuid.Nil
	Owner    string
	Title    string
	Messages []models.ChatMessageData // Optional initial turns, in order
}

// Store defines the interface for conversation persistence.
// This allows for mocking in tests and switching between the postgres and sqlite backends.
//
// Conversations are append-only: AppendMessage adds a turn at the end and
// ReplaceMessage swaps the value at an existing index. Nothing is edited in place.
type Store interface {
	CreateConversation(ctx context.Context, arg CreateConversationParams) (*models.Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID, owner string) (*models.Conversation, error)
	ListConversations(ctx context.Context, owner string, limit, offset int) ([]models.Conversation, error)
	AppendMessage(ctx context.Context, id uuid.UUID, owner string, msg models.ChatMessageData) error
	ReplaceMessage(ctx context.Context, id uuid.UUID, owner string, index int, msg models.ChatMessageData) error
	DeleteConversation(ctx context.Context, id uuid.UUID, owner string) error
	Close() error
}
