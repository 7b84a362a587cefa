package models

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches any *ValidationError via errors.Is.
	ErrValidation = errors.New("invalid chat message")
	// ErrMalformedContext matches any *MalformedContextError via errors.Is.
	ErrMalformedContext = errors.New("malformed context")
)

// ValidationError reports a turn that violates the message contract at a boundary:
// an unknown role, a missing required field or a document that is not a JSON object.
type ValidationError struct {
	Field  string // JSON field name, empty when the whole document is at fault
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// MalformedContextError reports a contexts entry that fails structural typing.
// Index is -1 when contexts itself is not an array.
type MalformedContextError struct {
	Index int
	Field string // Offending field inside the entry, if known
	Err   error
}

func (e *MalformedContextError) Error() string {
	switch {
	case e.Index < 0:
		return fmt.Sprintf("%s: contexts: %v", ErrMalformedContext, e.Err)
	case e.Field != "":
		return fmt.Sprintf("%s: contexts[%d].%s: %v", ErrMalformedContext, e.Index, e.Field, e.Err)
	default:
		return fmt.Sprintf("%s: contexts[%d]: %v", ErrMalformedContext, e.Index, e.Err)
	}
}

func (e *MalformedContextError) Is(target error) bool {
	return target == ErrMalformedContext
}

func (e *MalformedContextError) Unwrap() error {
	return e.Err
}
