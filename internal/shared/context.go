package shared

import (
	"context"
	"strings"
)

// Identity is the caller reconstructed from a verified credential.
type Identity struct {
	SessionID string
	UserID    string
	Firstname string
	Lastname  string
	Avatar    string
	Email     string
	RoleName  string
}

type identityContextKey struct{}

// ContextWithIdentity stores the caller identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the caller identity. It reports false when no
// identity was stored or the stored one carries no user id.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	if !ok || strings.TrimSpace(id.UserID) == "" {
		return Identity{}, false
	}
	return id, true
}
