// Package repository implements the onboarding and review stores on gorm.
// Every call runs under the configured query timeout and reports failures as
// apperr codes: a missing row is not_found, everything else is unavailable.
package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/go-onboarding/internal/apperr"
)

// maxUpdateAttempts bounds the compare-and-set loop of row updates.
const maxUpdateAttempts = 5

var errConcurrentUpdate = errors.New("row kept changing during update")

// Repository bundles the per-table repositories over one connection.
type Repository struct {
	Users        *UserRepository
	Applications *ApplicationRepository
	Profiles     *ProfileRepository
	Documents    *DocumentRepository
	Applicants   *ApplicantRepository
}

// Option customizes a Repository.
type Option func(*base)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// New wires every repository to db. timeout bounds each call; zero disables it.
func New(db *gorm.DB, timeout time.Duration, opts ...Option) *Repository {
	b := base{db: db, timeout: timeout, now: time.Now}
	for _, opt := range opts {
		opt(&b)
	}
	return &Repository{
		Users:        &UserRepository{base: b},
		Applications: &ApplicationRepository{base: b},
		Profiles:     &ProfileRepository{base: b},
		Documents:    &DocumentRepository{base: b},
		Applicants:   &ApplicantRepository{base: b},
	}
}

type base struct {
	db      *gorm.DB
	timeout time.Duration
	now     func() time.Time
}

// conn returns a session bound to ctx with the query timeout applied.
func (b base) conn(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	cancel := context.CancelFunc(func() {})
	if b.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
	}
	return b.db.WithContext(ctx), cancel
}

// translate maps gorm and driver errors onto apperr codes. Errors that already
// carry a code pass through.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.New(apperr.CodeNotFound, what+" not found", err)
	}
	return apperr.Unavailable(err)
}
