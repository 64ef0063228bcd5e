// Package auth resolves request identity: an authenticated user via a JWT
// bearer token, or an anonymous guest via a signed session cookie. Every
// diagram operation is scoped to exactly one of the two.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"github.com/schemasketch/engine/pkg/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// OwnerKey is the context key for the resolved request owner.
const OwnerKey contextKey = "owner"

// Claims is the JWT claims structure for authenticated users. The subject
// is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// GetOwner retrieves the resolved owner from the request context.
// Returns a zero Owner and false if identity was not resolved.
func GetOwner(ctx context.Context) (models.Owner, bool) {
	owner, ok := ctx.Value(OwnerKey).(models.Owner)
	return owner, ok
}

// WithOwner stores the resolved owner in the context.
func WithOwner(ctx context.Context, owner models.Owner) context.Context {
	return context.WithValue(ctx, OwnerKey, owner)
}
