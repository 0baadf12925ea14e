// Package auth carries the request identity through context. The HTTP
// middleware fills it in; services read it for logging and attribution.
package auth

import "context"

type contextKey string

const identityKey contextKey = "identity"

// Identity describes the authenticated caller, if any.
type Identity struct {
	UserID string
	Token  string
}

// WithIdentity stores the caller identity in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns the caller identity stored in ctx.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// UserID returns the authenticated user ID or "" when anonymous.
func UserID(ctx context.Context) string {
	id, _ := FromContext(ctx)
	return id.UserID
}
