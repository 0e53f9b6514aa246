package policy

import (
	"context"

	"github.com/google/uuid"

	"github.com/diewo77/go-onboarding/auth"
	"github.com/diewo77/go-onboarding/gate"
)

// Ownable is implemented by records that belong to one applicant.
type Ownable interface {
	OwnerID() uuid.UUID
}

// OwnershipPolicy allows access to a resource only for its owner.
type OwnershipPolicy struct{}

func NewOwnershipPolicy() *OwnershipPolicy {
	return &OwnershipPolicy{}
}

// Can denies resources that do not implement Ownable.
func (p *OwnershipPolicy) Can(_ context.Context, user auth.Principal, _ gate.Action, resource any) bool {
	if resource == nil {
		return true
	}
	ownable, ok := resource.(Ownable)
	if !ok {
		return false
	}
	return ownable.OwnerID() == user.UserID
}

// AdminBypassPolicy lets admins through and defers to inner for everyone else.
type AdminBypassPolicy struct {
	inner gate.Policy[auth.Principal]
}

func NewAdminBypassPolicy(inner gate.Policy[auth.Principal]) *AdminBypassPolicy {
	return &AdminBypassPolicy{inner: inner}
}

func (p *AdminBypassPolicy) Can(ctx context.Context, user auth.Principal, action gate.Action, resource any) bool {
	if user.IsAdmin() {
		return true
	}
	return p.inner.Can(ctx, user, action, resource)
}
