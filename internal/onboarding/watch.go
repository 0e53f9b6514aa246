package onboarding

import (
	"context"
	"time"

	"github.com/diewo77/go-onboarding/auth"
	"github.com/diewo77/go-onboarding/gate"
	"github.com/diewo77/go-onboarding/internal/apperr"
)

// DefaultWatchInterval is used when Watch is given a non-positive interval.
const DefaultWatchInterval = 2 * time.Second

// Watch re-resolves the stage every interval until it differs from from, and
// returns the new stage. When ctx ends first it returns from and ctx.Err().
// If the session is closed while waiting, Watch fails with unauthorized and
// never reports a stage to it.
func (s *Service) Watch(ctx context.Context, p auth.Principal, from Stage, interval time.Duration) (Stage, error) {
	if err := s.authorize(ctx, p, gate.ActionView, nil); err != nil {
		return "", err
	}
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.sessionActive(ctx, p); err != nil {
			if ctx.Err() != nil {
				return from, ctx.Err()
			}
			return "", err
		}
		stage, err := s.Stage(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return from, ctx.Err()
			}
			return "", err
		}
		if stage != from {
			if err := s.sessionActive(ctx, p); err != nil {
				return "", err
			}
			return stage, nil
		}
		select {
		case <-ctx.Done():
			return from, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) sessionActive(ctx context.Context, p auth.Principal) error {
	if s.sessions == nil {
		return nil
	}
	ok, err := s.sessions.Active(ctx, p.SessionID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.CodeUnauthorized, "session ended", nil)
	}
	return nil
}
