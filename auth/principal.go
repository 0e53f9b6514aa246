package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Role is the authorization role carried by a session.
type Role string

const (
	RoleApplicant Role = "applicant"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleApplicant, RoleAdmin:
		return true
	}
	return false
}

// ParseRole converts a stored or claimed role string.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("auth: unknown role %q", s)
	}
	return r, nil
}

// Principal is the authenticated identity of one session. It is immutable for
// the session's lifetime; the zero value means "not authenticated".
type Principal struct {
	UserID    uuid.UUID
	Email     string
	Role      Role
	SessionID string
}

// Authenticated reports whether p refers to a signed-in user.
func (p Principal) Authenticated() bool { return p.UserID != uuid.Nil }

// IsAdmin reports whether the session carries the admin role.
func (p Principal) IsAdmin() bool { return p.Authenticated() && p.Role == RoleAdmin }

type ctxKey string

const principalCtxKey = ctxKey("principal")

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// PrincipalFromContext returns the principal attached by Middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalCtxKey).(Principal)
	if !ok || !p.Authenticated() {
		return Principal{}, false
	}
	return p, true
}
