package auth

import (
	"context"
)

// --- Context Helper Functions ---

// WithOwner returns a copy of ctx carrying owner.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, OwnerKey, owner)
}

// GetOwnerFromContext retrieves the conversation owner from the request context.
// Returns "" and false when the request was not authenticated.
func GetOwnerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(OwnerKey).(string)
	return owner, ok
}
