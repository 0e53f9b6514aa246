package review

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/diewo77/go-onboarding/auth"
	"github.com/diewo77/go-onboarding/internal/apperr"
	"github.com/diewo77/go-onboarding/internal/models"
)

// Board is the list an admin is looking at. Decisions change a row only
// after the engine confirmed the write; a failed write leaves it as shown.
type Board struct {
	engine *Engine
	admin  auth.Principal

	mu   sync.RWMutex
	rows []ApplicantSummary
}

// NewBoard loads the list for admin.
func NewBoard(ctx context.Context, engine *Engine, admin auth.Principal, f Filter) (*Board, error) {
	rows, err := engine.List(ctx, admin, f)
	if err != nil {
		return nil, err
	}
	return &Board{engine: engine, admin: admin, rows: rows}, nil
}

// Rows returns a copy of the displayed rows.
func (b *Board) Rows() []ApplicantSummary {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]ApplicantSummary, len(b.rows))
	copy(out, b.rows)
	return out
}

// Row returns the displayed row for id.
func (b *Board) Row(id uuid.UUID) (ApplicantSummary, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, r := range b.rows {
		if r.ID == id {
			return r, true
		}
	}
	return ApplicantSummary{}, false
}

// SetStatus persists the decision and then updates the displayed row.
func (b *Board) SetStatus(ctx context.Context, id uuid.UUID, target models.ApplicationStatus, notes string) error {
	if _, ok := b.Row(id); !ok {
		return apperr.New(apperr.CodeNotFound, "applicant is not on the board", nil)
	}
	app, err := b.engine.SetStatus(ctx, b.admin, id, target, notes)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.rows {
		if b.rows[i].ID == id {
			b.rows[i].Status = app.Status
			b.rows[i].LastActivity = app.UpdatedAt
		}
	}
	return nil
}
