package auth

import (
	"context"

	"github.com/psantana5/agencysite/pkg/models"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller of an admin request
type Principal struct {
	UserID string
	Email  string
	Role   models.Role
	APIKey bool // authenticated with the static API key
}

// WithPrincipal adds the caller to the context
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// WithUser adds a user ID and role to the context
func WithUser(ctx context.Context, userID string, role models.Role) context.Context {
	return WithPrincipal(ctx, &Principal{UserID: userID, Role: role})
}

// PrincipalFromContext returns the caller, if any
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// GetUserID extracts the user ID from context
func GetUserID(ctx context.Context) (string, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.UserID == "" {
		return "", ErrNoUserInContext
	}
	return p.UserID, nil
}

// GetUserRole extracts the user role from context
func GetUserRole(ctx context.Context) models.Role {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return ""
	}
	return p.Role
}
