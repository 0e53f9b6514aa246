package gate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/diewo77/go-onboarding/gate"
)

type subject struct {
	ID   int
	Role string
}

type ownedResource struct {
	OwnerID int
}

func ownerPolicy() gate.Policy[subject] {
	return gate.PolicyFunc[subject](func(_ context.Context, s subject, _ gate.Action, resource any) bool {
		r, ok := resource.(*ownedResource)
		return ok && r.OwnerID == s.ID
	})
}

func roleResolver() gate.ProfileResolver[subject] {
	reviewer := gate.NewStaticProfile("reviewer",
		gate.NewPermission("application", gate.ActionList),
		gate.NewPermission("application", gate.ActionReview),
	)
	applicant := gate.NewStaticProfile("applicant", "onboarding:*")
	return gate.ResolverFunc[subject](func(_ context.Context, s subject) (gate.Profile, error) {
		switch s.Role {
		case "reviewer":
			return reviewer, nil
		case "applicant":
			return applicant, nil
		}
		return nil, nil
	})
}

func TestHybridGate_ProfileOnly(t *testing.T) {
	g := gate.NewHybridGate[subject](roleResolver())
	ctx := context.Background()

	tests := []struct {
		name     string
		user     subject
		action   gate.Action
		resource string
		want     bool
	}{
		{"reviewer may review", subject{1, "reviewer"}, gate.ActionReview, "application", true},
		{"reviewer may not upload", subject{1, "reviewer"}, gate.ActionUpload, "onboarding", false},
		{"applicant wildcard", subject{2, "applicant"}, gate.ActionUpload, "onboarding", true},
		{"applicant may not review", subject{2, "applicant"}, gate.ActionReview, "application", false},
		{"unknown role", subject{3, "guest"}, gate.ActionView, "onboarding", false},
		{"zero subject", subject{}, gate.ActionView, "onboarding", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Can(ctx, tt.user, tt.action, tt.resource, nil); got != tt.want {
				t.Errorf("Can() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHybridGate_ErrorKinds(t *testing.T) {
	g := gate.NewHybridGate[subject](roleResolver())
	ctx := context.Background()

	if err := g.Authorize(ctx, subject{}, gate.ActionView, "onboarding", nil); !errors.Is(err, gate.ErrUnauthenticated) {
		t.Errorf("zero subject: got %v, want ErrUnauthenticated", err)
	}
	if err := g.Authorize(ctx, subject{2, "applicant"}, gate.ActionReview, "application", nil); !errors.Is(err, gate.ErrForbidden) {
		t.Errorf("missing permission: got %v, want ErrForbidden", err)
	}
}

func TestHybridGate_WithOwnershipPolicy(t *testing.T) {
	g := gate.NewHybridGate[subject](roleResolver())
	g.Register("onboarding", ownerPolicy())
	ctx := context.Background()

	resource := &ownedResource{OwnerID: 1}
	if !g.Can(ctx, subject{1, "applicant"}, gate.ActionUpdate, "onboarding", resource) {
		t.Error("owner should be allowed")
	}
	err := g.Authorize(ctx, subject{2, "applicant"}, gate.ActionUpdate, "onboarding", resource)
	if !errors.Is(err, gate.ErrForbidden) {
		t.Errorf("non-owner: got %v, want ErrForbidden", err)
	}
}

func TestHybridGate_CanProfile(t *testing.T) {
	g := gate.NewHybridGate[subject](roleResolver())
	g.Register("onboarding", ownerPolicy())
	ctx := context.Background()

	if !g.CanProfile(ctx, subject{2, "applicant"}, gate.ActionView, "onboarding") {
		t.Error("CanProfile should ignore resource policies")
	}
	if g.CanProfile(ctx, subject{2, "applicant"}, gate.ActionExport, "application") {
		t.Error("CanProfile should return false for missing permission")
	}
}

func TestHybridGate_ResolverError(t *testing.T) {
	failing := gate.ResolverFunc[subject](func(context.Context, subject) (gate.Profile, error) {
		return nil, errors.New("lookup failed")
	})
	g := gate.NewHybridGate[subject](failing)
	if err := g.Authorize(context.Background(), subject{1, "reviewer"}, gate.ActionList, "application", nil); !errors.Is(err, gate.ErrForbidden) {
		t.Errorf("got %v, want ErrForbidden", err)
	}
}
