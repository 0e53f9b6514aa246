package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ApplicationStatus is the admin-controlled review status of an application.
type ApplicationStatus string

const (
	StatusPending            ApplicationStatus = "pending"
	StatusUnderReview        ApplicationStatus = "under_review"
	StatusInterviewScheduled ApplicationStatus = "interview_scheduled"
	StatusSelected           ApplicationStatus = "selected"
	StatusRejected           ApplicationStatus = "rejected"
)

// ApplicationStatuses lists every status in workflow order.
func ApplicationStatuses() []ApplicationStatus {
	return []ApplicationStatus{StatusPending, StatusUnderReview, StatusInterviewScheduled, StatusSelected, StatusRejected}
}

// Valid reports whether s belongs to the closed status set.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusUnderReview, StatusInterviewScheduled, StatusSelected, StatusRejected:
		return true
	}
	return false
}

// ParseApplicationStatus rejects anything outside the closed set.
func ParseApplicationStatus(s string) (ApplicationStatus, error) {
	st := ApplicationStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown application status %q", s)
	}
	return st, nil
}

// Label is the human-readable form used in exports.
func (s ApplicationStatus) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusUnderReview:
		return "Under Review"
	case StatusInterviewScheduled:
		return "Interview Scheduled"
	case StatusSelected:
		return "Selected"
	case StatusRejected:
		return "Rejected"
	}
	return string(s)
}

// Application is the per-applicant record, created at first sign-in and
// never deleted. UpdatedAt is maintained by the repository so that it is
// strictly increasing per row.
type Application struct {
	ID               uint              `gorm:"primaryKey" json:"-"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `gorm:"autoUpdateTime:false;not null" json:"updated_at"`
	UserID           uuid.UUID         `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Status           ApplicationStatus `gorm:"size:32;not null;default:'pending'" json:"status"`
	HasAgreedToTerms bool              `gorm:"not null;default:false" json:"has_agreed_to_terms"`
	InterviewDate    *time.Time        `json:"interview_date,omitempty"`
	AdminNotes       string            `gorm:"type:text" json:"-"`
}

func (a *Application) OwnerID() uuid.UUID { return a.UserID }

// NextTimestamp returns the updated_at value for a mutation happening at now
// on a row last touched at prev: now when it is later, otherwise prev plus one
// microsecond. Values are truncated to microseconds so they survive a
// round-trip through PostgreSQL unchanged.
func NextTimestamp(prev, now time.Time) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	if now.After(prev) {
		return now
	}
	return prev.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
}
