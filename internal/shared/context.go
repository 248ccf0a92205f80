package shared

import (
	"context"

	"github.com/google/uuid"
)

// Principal is the authenticated actor attached to each request.
type Principal struct {
	UserID         uuid.UUID
	Email          string
	Role           Role
	IsSuperAdmin   bool
	IsPrimaryAdmin bool
}

// HasRole reports whether the principal holds any of the given roles.
func (p *Principal) HasRole(roles ...Role) bool {
	if p == nil {
		return false
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
