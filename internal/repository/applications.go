package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/diewo77/go-onboarding/internal/models"
)

// ApplicationRepository persists Application records.
type ApplicationRepository struct {
	base
}

// Get loads the application of userID.
func (r *ApplicationRepository) Get(ctx context.Context, userID uuid.UUID) (*models.Application, error) {
	db, cancel := r.conn(ctx)
	defer cancel()
	var app models.Application
	if err := db.Where("user_id = ?", userID).First(&app).Error; err != nil {
		return nil, translate(err, "application")
	}
	return &app, nil
}

// Ensure creates the pending application of userID unless it already exists.
func (r *ApplicationRepository) Ensure(ctx context.Context, userID uuid.UUID) error {
	db, cancel := r.conn(ctx)
	defer cancel()
	app := models.Application{
		UserID:    userID,
		Status:    models.StatusPending,
		UpdatedAt: models.NextTimestamp(time.Time{}, r.now()),
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&app).Error
	return translate(err, "application")
}

// Update applies mutate as a single-row UPDATE and returns the stored result.
// mutate inspects the current row and returns the columns to write, or an
// error to abort without writing.
// updated_at is set by the repository and is strictly greater than the value
// it replaces. The write only lands if updated_at still holds the value that
// was read; otherwise the loop re-reads and re-evaluates mutate.
func (r *ApplicationRepository) Update(ctx context.Context, userID uuid.UUID, mutate func(current *models.Application) (map[string]any, error)) (*models.Application, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, err := r.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		updates, err := mutate(current)
		if err != nil {
			return nil, err
		}
		ts := models.NextTimestamp(current.UpdatedAt, r.now())
		updates["updated_at"] = ts

		ok, err := r.compareAndSet(ctx, current.ID, current.UpdatedAt, updates)
		if err != nil {
			return nil, err
		}
		if ok {
			return r.Get(ctx, userID)
		}
	}
	return nil, translate(errConcurrentUpdate, "application")
}

func (r *ApplicationRepository) compareAndSet(ctx context.Context, id uint, read time.Time, updates map[string]any) (bool, error) {
	db, cancel := r.conn(ctx)
	defer cancel()
	res := db.Model(&models.Application{}).
		Where("id = ? AND updated_at = ?", id, read).
		Updates(updates)
	if res.Error != nil {
		return false, translate(res.Error, "application")
	}
	return res.RowsAffected == 1, nil
}
