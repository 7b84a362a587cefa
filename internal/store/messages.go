package store

import (
	"encoding/json"
	"fmt"

	"ragchat-backend/internal/models"
)

// EncodeMessages marshals turns for storage. A nil slice is stored as an empty array.
func EncodeMessages(messages []models.ChatMessageData) ([]byte, error) {
	if messages == nil {
		messages = []models.ChatMessageData{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal messages: %w", err)
	}
	return data, nil
}

// DecodeMessages parses a stored messages array with the same checks applied to API input.
// A failure is reported as ErrCorruptRecord only; it never matches the input-validation errors.
func DecodeMessages(data []byte) ([]models.ChatMessageData, error) {
	if len(data) == 0 {
		return []models.ChatMessageData{}, nil
	}
	messages, err := models.ParseConversation(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return messages, nil
}

// ValidateMessages checks turns before they are written.
func ValidateMessages(messages ...models.ChatMessageData) error {
	for i, m := range messages {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("messages[%d]: %w", i, err)
		}
	}
	return nil
}
