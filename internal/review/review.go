// Package review is the admin side of onboarding: the applicant list, the
// dashboard counters and the status decisions on applications and documents.
package review

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-onboarding/auth"
	"github.com/diewo77/go-onboarding/gate"
	"github.com/diewo77/go-onboarding/internal/apperr"
	"github.com/diewo77/go-onboarding/internal/models"
	"github.com/diewo77/go-onboarding/internal/policy"
	"github.com/diewo77/go-onboarding/internal/repository"
	"github.com/diewo77/go-onboarding/validation"
)

// ApplicantStore lists applicants with their document counts.
type ApplicantStore interface {
	List(ctx context.Context, f repository.ApplicantFilter) ([]repository.ApplicantRow, error)
	CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int64, error)
}

// ApplicationStore updates one application by applicant id.
type ApplicationStore interface {
	Update(ctx context.Context, userID uuid.UUID, mutate func(current *models.Application) (map[string]any, error)) (*models.Application, error)
}

// DocumentStore reads and updates one document slot.
type DocumentStore interface {
	Get(ctx context.Context, userID uuid.UUID, docType models.DocumentType) (*models.Document, error)
	Update(ctx context.Context, userID uuid.UUID, docType models.DocumentType, mutate func(current *models.Document) (map[string]any, error)) (*models.Document, error)
}

// Store groups the persistence the engine needs.
type Store struct {
	Applicants   ApplicantStore
	Applications ApplicationStore
	Documents    DocumentStore
}

// BlobOpener reads stored document files.
type BlobOpener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Authorizer decides whether a principal may act on a resource type.
type Authorizer interface {
	Authorize(ctx context.Context, p auth.Principal, action gate.Action, resourceType string, resource any) error
}

// ErrStatusUnchanged is returned when a decision repeats the current status.
var ErrStatusUnchanged = apperr.New(apperr.CodeConflict, "application already has this status", nil)

// Filter narrows the applicant list.
type Filter struct {
	Query  string
	Status models.ApplicationStatus
	Limit  int
}

// ApplicantSummary is one row of the admin list.
type ApplicantSummary struct {
	ID           uuid.UUID                `json:"id"`
	Name         string                   `json:"name"`
	Email        string                   `json:"email"`
	Status       models.ApplicationStatus `json:"status"`
	LastActivity time.Time                `json:"last_activity"`
	Uploaded     int                      `json:"uploaded"`
	Verified     int                      `json:"verified"`
	Total        int                      `json:"total"`
}

// Stats are the dashboard counters.
type Stats struct {
	Total      int64 `json:"total"`
	Pending    int64 `json:"pending"`
	Interviews int64 `json:"interviews"`
	Selected   int64 `json:"selected"`
	Rejected   int64 `json:"rejected"`
}

// Engine applies admin decisions. Every method requires an admin principal.
type Engine struct {
	store Store
	authz Authorizer
	blobs BlobOpener
	log   logrus.FieldLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithAuthorizer replaces the default role gate.
func WithAuthorizer(a Authorizer) Option { return func(e *Engine) { e.authz = a } }

// WithBlobs lets admins download uploaded files.
func WithBlobs(b BlobOpener) Option { return func(e *Engine) { e.blobs = b } }

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option { return func(e *Engine) { e.log = l } }

// NewEngine builds an engine over store guarded by the role gate.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{store: store, authz: policy.NewAuthGate(), log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// List returns applicants ordered by last activity, newest first.
func (e *Engine) List(ctx context.Context, p auth.Principal, f Filter) ([]ApplicantSummary, error) {
	if err := e.authz.Authorize(ctx, p, gate.ActionList, policy.ResourceApplication, nil); err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("unknown status filter", map[string]string{"status": "not_allowed"})
	}
	rows, err := e.store.Applicants.List(ctx, repository.ApplicantFilter{
		Query:  strings.TrimSpace(f.Query),
		Status: f.Status,
		Limit:  f.Limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]ApplicantSummary, len(rows))
	for i, row := range rows {
		out[i] = ApplicantSummary{
			ID:           row.UserID,
			Name:         row.DisplayName(),
			Email:        row.Email,
			Status:       row.Status,
			LastActivity: row.UpdatedAt,
			Uploaded:     int(row.Uploaded),
			Verified:     int(row.Verified),
			Total:        len(models.DocumentTypes()),
		}
	}
	return out, nil
}

// Stats counts applications per dashboard bucket. Pending includes
// applications under review.
func (e *Engine) Stats(ctx context.Context, p auth.Principal) (Stats, error) {
	if err := e.authz.Authorize(ctx, p, gate.ActionList, policy.ResourceApplication, nil); err != nil {
		return Stats{}, err
	}
	counts, err := e.store.Applicants.CountByStatus(ctx)
	if err != nil {
		return Stats{}, err
	}
	var s Stats
	for _, n := range counts {
		s.Total += n
	}
	s.Pending = counts[models.StatusPending] + counts[models.StatusUnderReview]
	s.Interviews = counts[models.StatusInterviewScheduled]
	s.Selected = counts[models.StatusSelected]
	s.Rejected = counts[models.StatusRejected]
	return s, nil
}

// Decisions an admin can record on an application.
var decisionStatuses = []string{string(models.StatusSelected), string(models.StatusRejected)}

// SetStatus records a selection decision with optional notes. The target
// must differ from the current status; switching between selected and
// rejected is allowed.
func (e *Engine) SetStatus(ctx context.Context, p auth.Principal, applicantID uuid.UUID, target models.ApplicationStatus, notes string) (*models.Application, error) {
	if err := e.authz.Authorize(ctx, p, gate.ActionReview, policy.ResourceApplication, nil); err != nil {
		return nil, err
	}
	v := make(validation.Violations)
	validation.OneOf("status", string(target), decisionStatuses, v)
	if !v.Empty() {
		return nil, apperr.Validation("status must be selected or rejected", v)
	}
	app, err := e.store.Applications.Update(ctx, applicantID, func(current *models.Application) (map[string]any, error) {
		if current.Status == target {
			return nil, ErrStatusUnchanged
		}
		return map[string]any{"status": target, "admin_notes": strings.TrimSpace(notes)}, nil
	})
	if err != nil {
		return nil, err
	}
	e.log.WithFields(logrus.Fields{
		"admin_id":     p.UserID.String(),
		"applicant_id": applicantID.String(),
		"status":       target,
	}).Info("application status set")
	return app, nil
}

var documentDecisions = []string{string(models.DocumentVerified), string(models.DocumentRejected)}

// SetDocumentStatus verifies or rejects one document slot, whatever its
// current status.
func (e *Engine) SetDocumentStatus(ctx context.Context, p auth.Principal, applicantID uuid.UUID, docType models.DocumentType, target models.DocumentStatus, notes string) (*models.Document, error) {
	if err := e.authz.Authorize(ctx, p, gate.ActionReview, policy.ResourceDocument, nil); err != nil {
		return nil, err
	}
	v := make(validation.Violations)
	if !docType.Valid() {
		v["type"] = "not_allowed"
	}
	validation.OneOf("status", string(target), documentDecisions, v)
	if !v.Empty() {
		return nil, apperr.Validation("invalid document decision", v)
	}
	doc, err := e.store.Documents.Update(ctx, applicantID, docType, func(current *models.Document) (map[string]any, error) {
		if err := e.authz.Authorize(ctx, p, gate.ActionReview, policy.ResourceDocument, current); err != nil {
			return nil, err
		}
		return map[string]any{"status": target, "notes": strings.TrimSpace(notes)}, nil
	})
	if err != nil {
		return nil, err
	}
	e.log.WithFields(logrus.Fields{
		"admin_id":     p.UserID.String(),
		"applicant_id": applicantID.String(),
		"type":         docType,
		"status":       target,
	}).Info("document status set")
	return doc, nil
}

// DocumentFile opens the file last uploaded into a slot. The caller closes
// the returned reader.
func (e *Engine) DocumentFile(ctx context.Context, p auth.Principal, applicantID uuid.UUID, docType models.DocumentType) (*models.Document, io.ReadCloser, error) {
	if err := e.authz.Authorize(ctx, p, gate.ActionView, policy.ResourceDocument, nil); err != nil {
		return nil, nil, err
	}
	if !docType.Valid() {
		return nil, nil, apperr.Validation("invalid document type", map[string]string{"type": "not_allowed"})
	}
	if e.blobs == nil {
		return nil, nil, apperr.New(apperr.CodeNotFound, "file storage is not configured", nil)
	}
	doc, err := e.store.Documents.Get(ctx, applicantID, docType)
	if err != nil {
		return nil, nil, err
	}
	if err := e.authz.Authorize(ctx, p, gate.ActionView, policy.ResourceDocument, doc); err != nil {
		return nil, nil, err
	}
	if !doc.Uploaded() || doc.StorageKey == "" {
		return nil, nil, apperr.New(apperr.CodeNotFound, "no file uploaded for this document", nil)
	}
	rc, err := e.blobs.Open(ctx, doc.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return doc, rc, nil
}
