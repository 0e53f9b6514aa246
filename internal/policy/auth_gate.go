// Package policy wires the generic gate to onboarding roles: every role maps
// to a static permission profile, and applicant-owned records carry an
// ownership rule.
package policy

import (
	"context"
	"errors"
	"net/http"

	"github.com/diewo77/go-onboarding/auth"
	"github.com/diewo77/go-onboarding/gate"
	"github.com/diewo77/go-onboarding/httpx"
	"github.com/diewo77/go-onboarding/internal/apperr"
)

// Resource types known to the gate.
const (
	ResourceOnboarding  = "onboarding"
	ResourceApplication = "application"
	ResourceDocument    = "document"
)

var (
	adminProfile = gate.NewStaticProfile(string(auth.RoleAdmin),
		gate.NewPermission(ResourceApplication, gate.Wildcard),
		gate.NewPermission(ResourceDocument, gate.Wildcard),
	)
	applicantProfile = gate.NewStaticProfile(string(auth.RoleApplicant),
		gate.NewPermission(ResourceOnboarding, gate.Wildcard),
	)
)

// RoleProfile returns the permission profile of a role, or nil for unknown roles.
func RoleProfile(role auth.Role) gate.Profile {
	switch role {
	case auth.RoleAdmin:
		return adminProfile
	case auth.RoleApplicant:
		return applicantProfile
	}
	return nil
}

// AuthGate is the single authorization point for handlers and services.
type AuthGate struct {
	Gate *gate.HybridGate[auth.Principal]
}

// NewAuthGate builds the gate with role profiles and ownership policies.
// The role travels inside the principal, so resolving a profile needs no
// lookup and nothing is cached.
func NewAuthGate() *AuthGate {
	resolver := gate.ResolverFunc[auth.Principal](func(_ context.Context, p auth.Principal) (gate.Profile, error) {
		return RoleProfile(p.Role), nil
	})
	g := gate.NewHybridGate[auth.Principal](resolver)
	ownership := NewOwnershipPolicy()
	g.Register(ResourceOnboarding, ownership)
	g.Register(ResourceDocument, NewAdminBypassPolicy(ownership))
	return &AuthGate{Gate: g}
}

// Authorize checks p against resourceType:action and returns a coded error.
func (ag *AuthGate) Authorize(ctx context.Context, p auth.Principal, action gate.Action, resourceType string, resource any) error {
	err := ag.Gate.Authorize(ctx, p, action, resourceType, resource)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gate.ErrUnauthenticated):
		return apperr.New(apperr.CodeUnauthorized, "sign in required", err)
	default:
		return apperr.New(apperr.CodeForbidden, "not allowed", err)
	}
}

// RequirePermission blocks requests whose principal lacks resourceType:action.
func (ag *AuthGate) RequirePermission(resourceType string, action gate.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := auth.PrincipalFromContext(r.Context())
			if err := ag.Authorize(r.Context(), p, action, resourceType, nil); err != nil {
				httpx.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin only lets admin sessions through.
func (ag *AuthGate) RequireAdmin() func(http.Handler) http.Handler {
	return ag.RequirePermission(ResourceApplication, gate.ActionReview)
}

// RequireApplicant only lets applicant sessions through.
func (ag *AuthGate) RequireApplicant() func(http.Handler) http.Handler {
	return ag.RequirePermission(ResourceOnboarding, gate.ActionView)
}
