package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/diewo77/go-onboarding/auth"
)

// User is an account known to the identity collaborator. The role is fixed at
// account creation and never written by applicant operations.
type User struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
	Email             string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	FirstName         string         `gorm:"size:100" json:"first_name,omitempty"`
	LastName          string         `gorm:"size:100" json:"last_name,omitempty"`
	Password          string         `gorm:"size:255;not null" json:"-"` // bcrypt hash
	Role              auth.Role      `gorm:"size:20;not null;default:'applicant'" json:"role"`
	VerifiedAt        *time.Time     `json:"verified_at,omitempty"`
	VerificationToken string         `gorm:"size:64;index" json:"-"`
}

// BeforeCreate assigns the identity when the caller did not.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// IsVerified reports whether the email verification step was completed.
func (u *User) IsVerified() bool { return u.VerifiedAt != nil }

// DisplayName falls back to the email when no name was given.
func (u *User) DisplayName() string {
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.Email
}

// Principal builds the session principal for this user.
func (u *User) Principal(sessionID string) auth.Principal {
	return auth.Principal{UserID: u.ID, Email: u.Email, Role: u.Role, SessionID: sessionID}
}

// NormalizeEmail is the canonical form used for lookups and uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
