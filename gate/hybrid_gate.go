// Package gate is a small generic authorization layer: a subject's profile
// grants resource:action permissions, and optional per-resource policies add
// ownership rules on top. It has no dependency on domain models.
package gate

import (
	"context"
	"fmt"
)

// HybridGate combines profile permissions with resource-specific policies.
// Authorization flow:
//  1. the subject must be non-zero
//  2. the subject's profile must grant resource:action
//  3. if a policy is registered for the resource type and a resource is given,
//     the policy must allow it
type HybridGate[U comparable] struct {
	resolver ProfileResolver[U]
	policies map[string]Policy[U]
}

// NewHybridGate creates a gate with the given profile resolver.
func NewHybridGate[U comparable](resolver ProfileResolver[U]) *HybridGate[U] {
	return &HybridGate[U]{
		resolver: resolver,
		policies: make(map[string]Policy[U]),
	}
}

// Register adds a resource policy. Call during setup only.
func (g *HybridGate[U]) Register(resourceType string, p Policy[U]) {
	g.policies[resourceType] = p
}

// Authorize returns nil, ErrUnauthenticated or an error wrapping ErrForbidden.
func (g *HybridGate[U]) Authorize(ctx context.Context, user U, action Action, resourceType string, resource any) error {
	var zero U
	if user == zero {
		return ErrUnauthenticated
	}
	perm := NewPermission(resourceType, action)
	if !g.profileAllows(ctx, user, perm) {
		return fmt.Errorf("%w: missing %s", ErrForbidden, perm)
	}
	if resource != nil {
		if policy, ok := g.policies[resourceType]; ok && !policy.Can(ctx, user, action, resource) {
			return fmt.Errorf("%w: %s denied by resource policy", ErrForbidden, perm)
		}
	}
	return nil
}

// Can is Authorize reduced to a bool.
func (g *HybridGate[U]) Can(ctx context.Context, user U, action Action, resourceType string, resource any) bool {
	return g.Authorize(ctx, user, action, resourceType, resource) == nil
}

// CanProfile checks only the profile permission, without any resource policy.
func (g *HybridGate[U]) CanProfile(ctx context.Context, user U, action Action, resourceType string) bool {
	var zero U
	if user == zero {
		return false
	}
	return g.profileAllows(ctx, user, NewPermission(resourceType, action))
}

func (g *HybridGate[U]) profileAllows(ctx context.Context, user U, perm Permission) bool {
	profile, err := g.resolver.Resolve(ctx, user)
	if err != nil || profile == nil {
		return false
	}
	return profile.HasPermission(perm)
}
