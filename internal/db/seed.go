package db

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/diewo77/go-onboarding/auth"
	"github.com/diewo77/go-onboarding/internal/models"
)

// SeedOptions lists the admin accounts to provision.
type SeedOptions struct {
	AdminEmails   []string
	AdminPassword string
}

// Seed provisions admin accounts. It is idempotent: existing accounts keep
// their password and are promoted to admin if needed.
func Seed(db *gorm.DB, opts SeedOptions) error {
	if len(opts.AdminEmails) == 0 {
		return nil
	}
	if opts.AdminPassword == "" {
		return errors.New("seed: ADMIN_PASSWORD is required when ADMIN_EMAILS is set")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(opts.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed: hash password: %w", err)
	}
	now := time.Now().UTC()
	for _, raw := range opts.AdminEmails {
		email := models.NormalizeEmail(raw)
		var existing models.User
		err := db.Where("email = ?", email).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			u := models.User{Email: email, Password: string(hash), Role: auth.RoleAdmin, VerifiedAt: &now}
			if err := db.Create(&u).Error; err != nil {
				return fmt.Errorf("seed: create admin %s: %w", email, err)
			}
		case err != nil:
			return fmt.Errorf("seed: lookup %s: %w", email, err)
		case existing.Role != auth.RoleAdmin:
			if err := db.Model(&existing).Update("role", auth.RoleAdmin).Error; err != nil {
				return fmt.Errorf("seed: promote %s: %w", email, err)
			}
		}
	}
	return nil
}
