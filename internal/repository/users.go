package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/diewo77/go-onboarding/internal/apperr"
	"github.com/diewo77/go-onboarding/internal/models"
)

// UserRepository backs the identity collaborator.
type UserRepository struct {
	base
}

// Create inserts u. A duplicate email is a conflict.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	db, cancel := r.conn(ctx)
	defer cancel()
	err := db.Create(u).Error
	if err != nil && isUniqueViolation(err) {
		return apperr.New(apperr.CodeConflict, "email already registered", err)
	}
	return translate(err, "user")
}

// ByID loads a user.
func (r *UserRepository) ByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

// ByEmail loads a user by normalized email.
func (r *UserRepository) ByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", models.NormalizeEmail(email))
}

// ByVerificationToken loads the user holding a pending verification token.
func (r *UserRepository) ByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, apperr.New(apperr.CodeNotFound, "user not found", nil)
	}
	return r.first(ctx, "verification_token = ?", token)
}

// MarkVerified consumes the verification token.
func (r *UserRepository) MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) error {
	db, cancel := r.conn(ctx)
	defer cancel()
	res := db.Model(&models.User{}).Where("id = ?", id).Updates(map[string]any{
		"verified_at":        at,
		"verification_token": "",
	})
	if res.Error == nil && res.RowsAffected == 0 {
		return apperr.New(apperr.CodeNotFound, "user not found", nil)
	}
	return translate(res.Error, "user")
}

func (r *UserRepository) first(ctx context.Context, query string, arg any) (*models.User, error) {
	db, cancel := r.conn(ctx)
	defer cancel()
	var u models.User
	if err := db.Where(query, arg).First(&u).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
