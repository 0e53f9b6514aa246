package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/diewo77/go-onboarding/auth"
	"github.com/diewo77/go-onboarding/internal/models"
)

// ApplicantRepository serves the admin list views.
type ApplicantRepository struct {
	base
}

// ApplicantFilter narrows List. Zero values mean "no restriction".
type ApplicantFilter struct {
	Query  string
	Status models.ApplicationStatus
	Limit  int
}

// ApplicantRow is one line of the admin list, with document counts.
type ApplicantRow struct {
	UserID           uuid.UUID
	Email            string
	UserFirstName    string
	UserLastName     string
	ProfileFirstName string
	ProfileLastName  string
	Status           models.ApplicationStatus
	UpdatedAt        time.Time
	Uploaded         int64 `gorm:"-"`
	Verified         int64 `gorm:"-"`
}

// DisplayName prefers the profile name, then the account name, then the email.
func (r ApplicantRow) DisplayName() string {
	if name := strings.TrimSpace(r.ProfileFirstName + " " + r.ProfileLastName); name != "" {
		return name
	}
	if name := strings.TrimSpace(r.UserFirstName + " " + r.UserLastName); name != "" {
		return name
	}
	return r.Email
}

type documentCounts struct {
	UserID   uuid.UUID
	Uploaded int64
	Verified int64
}

// List returns applicants ordered by last activity, newest first. Document
// counts come from one grouped query over the returned applicants.
func (r *ApplicantRepository) List(ctx context.Context, f ApplicantFilter) ([]ApplicantRow, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	q := db.Table("users").
		Select(`users.id AS user_id, users.email AS email,
			COALESCE(users.first_name, '') AS user_first_name,
			COALESCE(users.last_name, '') AS user_last_name,
			COALESCE(profiles.first_name, '') AS profile_first_name,
			COALESCE(profiles.last_name, '') AS profile_last_name,
			applications.status AS status,
			applications.updated_at AS updated_at`).
		Joins("JOIN applications ON applications.user_id = users.id").
		Joins("LEFT JOIN profiles ON profiles.user_id = users.id").
		Where("users.role = ? AND users.deleted_at IS NULL", auth.RoleApplicant)

	if term := strings.ToLower(strings.TrimSpace(f.Query)); term != "" {
		pat := "%" + term + "%"
		q = q.Where(`(LOWER(users.email) LIKE ?
			OR LOWER(COALESCE(profiles.first_name, '') || ' ' || COALESCE(profiles.last_name, '')) LIKE ?
			OR LOWER(COALESCE(users.first_name, '') || ' ' || COALESCE(users.last_name, '')) LIKE ?)`, pat, pat, pat)
	}
	if f.Status != "" {
		q = q.Where("applications.status = ?", f.Status)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []ApplicantRow
	if err := q.Order("applications.updated_at DESC").Scan(&rows).Error; err != nil {
		return nil, translate(err, "applicants")
	}
	if len(rows) == 0 {
		return rows, nil
	}

	ids := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		ids[i] = row.UserID
	}
	var counts []documentCounts
	err := db.Model(&models.Document{}).
		Select(`user_id,
			SUM(CASE WHEN status <> ? THEN 1 ELSE 0 END) AS uploaded,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS verified`,
			models.DocumentNotUploaded, models.DocumentVerified).
		Where("user_id IN ?", ids).
		Group("user_id").
		Scan(&counts).Error
	if err != nil {
		return nil, translate(err, "document counts")
	}
	byUser := make(map[uuid.UUID]documentCounts, len(counts))
	for _, c := range counts {
		byUser[c.UserID] = c
	}
	for i := range rows {
		c := byUser[rows[i].UserID]
		rows[i].Uploaded, rows[i].Verified = c.Uploaded, c.Verified
	}
	return rows, nil
}

// CountByStatus returns the number of applications per status.
func (r *ApplicantRepository) CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int64, error) {
	db, cancel := r.conn(ctx)
	defer cancel()
	var rows []struct {
		Status models.ApplicationStatus
		Count  int64
	}
	err := db.Table("applications").
		Select("applications.status AS status, COUNT(*) AS count").
		Joins("JOIN users ON users.id = applications.user_id").
		Where("users.role = ? AND users.deleted_at IS NULL", auth.RoleApplicant).
		Group("applications.status").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err, "applications")
	}
	out := make(map[models.ApplicationStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}
