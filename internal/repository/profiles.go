package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/diewo77/go-onboarding/internal/models"
)

// ProfileRepository persists applicant profiles.
type ProfileRepository struct {
	base
}

// profileColumns are overwritten by Save on conflict.
var profileColumns = []string{
	"first_name", "last_name", "email", "phone", "address",
	"city", "state", "zip_code", "date_of_birth", "updated_at",
}

// Get loads the profile of userID.
func (r *ProfileRepository) Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	db, cancel := r.conn(ctx)
	defer cancel()
	var p models.Profile
	if err := db.Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, translate(err, "profile")
	}
	return &p, nil
}

// Save inserts or replaces the profile keyed by p.UserID.
func (r *ProfileRepository) Save(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	db, cancel := r.conn(ctx)
	row := *p
	row.ID = 0
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(profileColumns),
	}).Create(&row).Error
	cancel()
	if err != nil {
		return nil, translate(err, "profile")
	}
	return r.Get(ctx, p.UserID)
}
