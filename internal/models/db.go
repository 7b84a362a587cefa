package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is an ordered, append-only sequence of turns as held by a store.
// Messages are kept in the row as a JSON array in append order.
type Conversation struct {
	ID        uuid.UUID         `db:"id"`
	Owner     string            `db:"owner"` // JWT subject, empty when auth is disabled
	Title     string            `db:"title"`
	Messages  []ChatMessageData `db:"messages"` // Stored as JSONB (postgres) or TEXT (sqlite)
	CreatedAt time.Time         `db:"created_at"`
	UpdatedAt time.Time         `db:"updated_at"`
}
