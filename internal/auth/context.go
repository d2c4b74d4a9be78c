package auth

import (
	"context"

	"github.com/dockhand/dockhand-backend/internal/models"
)

type contextKey string

const (
	claimsKey contextKey = "claims"
	userKey   contextKey = "user"
)

// WithClaims returns a context with the given claims.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext returns claims from the context, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	v := ctx.Value(claimsKey)
	if v == nil {
		return nil
	}
	c, _ := v.(*Claims)
	return c
}

// WithUser returns a context carrying the resolved identity. Permission checks
// always use this user, never fields decoded straight from the token.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the resolved identity from the context, or nil.
func UserFromContext(ctx context.Context) *models.User {
	v := ctx.Value(userKey)
	if v == nil {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}
