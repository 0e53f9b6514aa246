package repository

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/diewo77/go-onboarding/internal/models"
)

// DocumentRepository persists the per-applicant document slots.
type DocumentRepository struct {
	base
}

// List returns the applicant's documents in display order.
func (r *DocumentRepository) List(ctx context.Context, userID uuid.UUID) ([]models.Document, error) {
	db, cancel := r.conn(ctx)
	defer cancel()
	var docs []models.Document
	if err := db.Where("user_id = ?", userID).Find(&docs).Error; err != nil {
		return nil, translate(err, "documents")
	}
	order := make(map[models.DocumentType]int, len(models.DocumentTypes()))
	for i, t := range models.DocumentTypes() {
		order[t] = i
	}
	sort.Slice(docs, func(i, j int) bool { return order[docs[i].Type] < order[docs[j].Type] })
	return docs, nil
}

// Get loads one slot.
func (r *DocumentRepository) Get(ctx context.Context, userID uuid.UUID, docType models.DocumentType) (*models.Document, error) {
	db, cancel := r.conn(ctx)
	defer cancel()
	var doc models.Document
	if err := db.Where("user_id = ? AND type = ?", userID, docType).First(&doc).Error; err != nil {
		return nil, translate(err, "document")
	}
	return &doc, nil
}

// Ensure creates the not_uploaded row for every document type that the
// applicant does not have yet.
func (r *DocumentRepository) Ensure(ctx context.Context, userID uuid.UUID) error {
	db, cancel := r.conn(ctx)
	defer cancel()
	ts := models.NextTimestamp(time.Time{}, r.now())
	docs := make([]models.Document, 0, len(models.DocumentTypes()))
	for _, t := range models.DocumentTypes() {
		docs = append(docs, models.Document{
			UserID:    userID,
			Type:      t,
			Status:    models.DocumentNotUploaded,
			UpdatedAt: ts,
		})
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "type"}},
		DoNothing: true,
	}).Create(&docs).Error
	return translate(err, "documents")
}

// Update applies mutate to one slot as a single-row UPDATE, with the same
// strictly increasing updated_at guarantee as applications.
func (r *DocumentRepository) Update(ctx context.Context, userID uuid.UUID, docType models.DocumentType, mutate func(current *models.Document) (map[string]any, error)) (*models.Document, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, err := r.Get(ctx, userID, docType)
		if err != nil {
			return nil, err
		}
		updates, err := mutate(current)
		if err != nil {
			return nil, err
		}
		ts := models.NextTimestamp(current.UpdatedAt, r.now())
		updates["updated_at"] = ts

		db, cancel := r.conn(ctx)
		res := db.Model(&models.Document{}).
			Where("id = ? AND updated_at = ?", current.ID, current.UpdatedAt).
			Updates(updates)
		cancel()
		if res.Error != nil {
			return nil, translate(res.Error, "document")
		}
		if res.RowsAffected == 1 {
			return r.Get(ctx, userID, docType)
		}
	}
	return nil, translate(errConcurrentUpdate, "document")
}
