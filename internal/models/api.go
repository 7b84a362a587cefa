package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// --- Request Structs ---

// CreateConversationRequest defines the body for starting a conversation.
type CreateConversationRequest struct {
	Title          *string `json:"title,omitempty"`
	InitialMessage *string `json:"initial_message,omitempty"` // Optional first user turn
}

// AskRequest defines the body for asking a question in a conversation.
// Either key is accepted; "message" wins when both are set.
type AskRequest struct {
	Message  *string `json:"message,omitempty"`
	Question *string `json:"question,omitempty"`
}

// Text returns the trimmed question text, or "" when neither key carries one.
func (r AskRequest) Text() string {
	if r.Message != nil && strings.TrimSpace(*r.Message) != "" {
		return strings.TrimSpace(*r.Message)
	}
	if r.Question != nil {
		return strings.TrimSpace(*r.Question)
	}
	return ""
}

// --- Response Structs ---

// ConversationResponse defines a conversation as returned by the API.
type ConversationResponse struct {
	ID        uuid.UUID         `json:"id"`
	Title     string            `json:"title"`
	Messages  []ChatMessageData `json:"messages"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ListConversationsResponse defines the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []ConversationResponse `json:"conversations"`
}

// AskResponse carries the two turns appended by an ask.
type AskResponse struct {
	ConversationID uuid.UUID       `json:"conversation_id"`
	Question       ChatMessageData `json:"question"`
	Answer         ChatMessageData `json:"answer"`
	UsedRAG        bool            `json:"used_rag"`
}

// ErrorResponse defines the standard structure for API errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"` // Offending field for validation failures
	Index *int   `json:"index,omitempty"` // Offending contexts entry for malformed citations
}
