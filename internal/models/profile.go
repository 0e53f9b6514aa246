package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Profile holds the applicant's personal information. Only the applicant
// writes it.
type Profile struct {
	ID          uint       `gorm:"primaryKey" json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	UserID      uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	FirstName   string     `gorm:"size:100" json:"first_name"`
	LastName    string     `gorm:"size:100" json:"last_name"`
	Email       string     `gorm:"size:255" json:"email"`
	Phone       string     `gorm:"size:32" json:"phone"`
	Address     string     `gorm:"size:255" json:"address"`
	City        string     `gorm:"size:100" json:"city"`
	State       string     `gorm:"size:100" json:"state"`
	ZipCode     string     `gorm:"size:20" json:"zip_code"`
	DateOfBirth *datatypes.Date `json:"date_of_birth,omitempty"`
}

func (p *Profile) OwnerID() uuid.UUID { return p.UserID }

// RequiredFields returns the required fields keyed by their JSON name.
func (p *Profile) RequiredFields() map[string]string {
	return map[string]string{
		"first_name": p.FirstName,
		"last_name":  p.LastName,
		"email":      p.Email,
		"phone":      p.Phone,
		"address":    p.Address,
		"city":       p.City,
		"state":      p.State,
		"zip_code":   p.ZipCode,
	}
}

// Complete reports whether every required field is non-blank. A nil profile
// (no row yet) is incomplete.
func (p *Profile) Complete() bool {
	if p == nil {
		return false
	}
	for _, v := range p.RequiredFields() {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// BirthDate returns the date of birth as a time, or nil.
func (p *Profile) BirthDate() *time.Time {
	if p == nil || p.DateOfBirth == nil {
		return nil
	}
	t := time.Time(*p.DateOfBirth)
	return &t
}

// FullName joins first and last name.
func (p *Profile) FullName() string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}
