package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// wireMessage mirrors ChatMessageData with every field optional so that
// missing fields can be told apart from zero values.
type wireMessage struct {
	Role      *string         `json:"role"`
	Content   *string         `json:"content"`
	Timestamp *string         `json:"timestamp"`
	Contexts  json.RawMessage `json:"contexts"`
}

// Wire keys are matched exactly. encoding/json alone would also accept any case variant.
var (
	messageKeys = []string{"role", "content", "timestamp", "contexts"}
	contextKeys = []string{"title", "url", "meta_id", "chunk_id"}
)

// checkKeys scans the top-level keys of a well-formed JSON object and reports the first
// key that repeats a known key or differs from one only in case.
// It returns the known key concerned and a reason, or an empty reason when the keys are acceptable.
func checkKeys(object []byte, known []string) (field, reason string) {
	dec := json.NewDecoder(bytes.NewReader(object))
	if _, err := dec.Token(); err != nil {
		return "", ""
	}

	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return "", ""
		}
		key, _ := tok.(string)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return "", ""
		}

		for _, k := range known {
			switch {
			case key == k && seen[k]:
				return k, fmt.Sprintf("duplicate key %q", key)
			case key != k && strings.EqualFold(key, k):
				return k, fmt.Sprintf("key %q must be spelled %q", key, k)
			}
		}
		seen[key] = true
	}
	return "", ""
}

// Validate checks a typed turn against the message contract.
// Content may be empty; the timestamp may not.
func (m ChatMessageData) Validate() error {
	if !m.Role.Valid() {
		return &ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %q, expected %q or %q", m.Role, RoleUser, RoleAssistant)}
	}
	if m.Timestamp == "" {
		return &ValidationError{Field: "timestamp", Reason: "is required"}
	}
	return nil
}

// ParseChatMessage decodes one untrusted turn and validates it.
// It returns a *ValidationError or a *MalformedContextError on failure.
func ParseChatMessage(data []byte) (ChatMessageData, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return ChatMessageData{}, decodeError(err)
	}
	if field, reason := checkKeys(data, messageKeys); reason != "" {
		return ChatMessageData{}, &ValidationError{Field: field, Reason: reason}
	}

	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return ChatMessageData{}, decodeError(err)
	}

	if w.Role == nil {
		return ChatMessageData{}, &ValidationError{Field: "role", Reason: "is required"}
	}
	if w.Content == nil {
		return ChatMessageData{}, &ValidationError{Field: "content", Reason: "is required"}
	}
	if w.Timestamp == nil {
		return ChatMessageData{}, &ValidationError{Field: "timestamp", Reason: "is required"}
	}

	msg := NewChatMessage(Role(*w.Role), *w.Content, *w.Timestamp)
	if err := msg.Validate(); err != nil {
		return ChatMessageData{}, err
	}

	contexts, err := ParseContexts(w.Contexts)
	if err != nil {
		return ChatMessageData{}, err
	}
	if contexts != nil {
		msg.Contexts = &contexts
	}
	return msg, nil
}

// ParseContexts decodes an untrusted citation array.
// Absent input or JSON null yields a nil slice; [] yields an empty, non-nil slice.
// Unknown citation fields are ignored.
func ParseContexts(data []byte) ([]Context, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, &MalformedContextError{Index: -1, Err: errors.New("expected an array of objects")}
	}

	contexts := make([]Context, 0, len(items))
	for i, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			return nil, &MalformedContextError{Index: i, Err: errors.New("expected an object")}
		}
		if field, reason := checkKeys(item, contextKeys); reason != "" {
			return nil, &MalformedContextError{Index: i, Field: field, Err: errors.New(reason)}
		}
		var c Context
		if err := json.Unmarshal(item, &c); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				return nil, &MalformedContextError{
					Index: i,
					Field: typeErr.Field,
					Err:   fmt.Errorf("cannot use JSON %s as %s", typeErr.Value, typeErr.Type),
				}
			}
			return nil, &MalformedContextError{Index: i, Err: err}
		}
		contexts = append(contexts, c)
	}
	return contexts, nil
}

// ParseConversation decodes an untrusted JSON array of turns, stopping at the first bad one.
// Errors are wrapped with the offending index and still match ErrValidation or ErrMalformedContext.
func ParseConversation(data []byte) ([]ChatMessageData, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, &ValidationError{Reason: "expected a JSON array of messages"}
	}

	messages := make([]ChatMessageData, 0, len(items))
	for i, item := range items {
		msg, err := ParseChatMessage(item)
		if err != nil {
			return nil, fmt.Errorf("messages[%d]: %w", i, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// decodeError maps an encoding/json failure on a whole message to a ValidationError.
func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return &ValidationError{Reason: "expected a JSON object"}
		}
		return &ValidationError{Field: typeErr.Field, Reason: fmt.Sprintf("cannot use JSON %s as %s", typeErr.Value, typeErr.Type)}
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &ValidationError{Reason: fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)}
	}
	return &ValidationError{Reason: err.Error()}
}
