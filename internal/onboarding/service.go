package onboarding

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/diewo77/go-onboarding/auth"
	"github.com/diewo77/go-onboarding/gate"
	"github.com/diewo77/go-onboarding/internal/apperr"
	"github.com/diewo77/go-onboarding/internal/models"
	"github.com/diewo77/go-onboarding/internal/policy"
	"github.com/diewo77/go-onboarding/validation"
)

// ApplicationStore reads and updates one application by applicant id.
// Update passes the current row to mutate and writes the returned columns as
// one row update.
type ApplicationStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Application, error)
	Update(ctx context.Context, userID uuid.UUID, mutate func(current *models.Application) (map[string]any, error)) (*models.Application, error)
}

// ProfileStore reads and upserts one profile by applicant id.
type ProfileStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	Save(ctx context.Context, p *models.Profile) (*models.Profile, error)
}

// DocumentStore reads all slots of an applicant and updates one slot.
type DocumentStore interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.Document, error)
	Update(ctx context.Context, userID uuid.UUID, docType models.DocumentType, mutate func(current *models.Document) (map[string]any, error)) (*models.Document, error)
}

// BlobStore stores document files, overwriting existing keys.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
}

// SessionChecker reports whether a session is still open.
type SessionChecker interface {
	Active(ctx context.Context, sessionID string) (bool, error)
}

// Authorizer decides whether a principal may act on a resource type.
type Authorizer interface {
	Authorize(ctx context.Context, p auth.Principal, action gate.Action, resourceType string, resource any) error
}

// Service runs the applicant side of onboarding.
type Service struct {
	apps     ApplicationStore
	profiles ProfileStore
	docs     DocumentStore
	blobs    BlobStore
	sessions SessionChecker
	authz    Authorizer
	now      func() time.Time
	log      logrus.FieldLogger
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option { return func(s *Service) { s.log = l } }

// WithSessions lets Watch stop once the watching session is closed.
func WithSessions(c SessionChecker) Option { return func(s *Service) { s.sessions = c } }

// WithAuthorizer replaces the default role gate.
func WithAuthorizer(a Authorizer) Option { return func(s *Service) { s.authz = a } }

// NewService wires the service to its stores.
func NewService(apps ApplicationStore, profiles ProfileStore, docs DocumentStore, blobs BlobStore, opts ...Option) *Service {
	s := &Service{
		apps:     apps,
		profiles: profiles,
		docs:     docs,
		blobs:    blobs,
		authz:    policy.NewAuthGate(),
		now:      time.Now,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// authorize checks p against onboarding:action. A non-nil resource must
// belong to p.
func (s *Service) authorize(ctx context.Context, p auth.Principal, action gate.Action, resource any) error {
	if !p.Authenticated() {
		return apperr.New(apperr.CodeUnauthorized, "sign in required", nil)
	}
	return s.authz.Authorize(ctx, p, action, policy.ResourceOnboarding, resource)
}

// Snapshot loads the three entities fresh. Missing application or profile
// rows are represented as nil.
func (s *Service) Snapshot(ctx context.Context, p auth.Principal) (Snapshot, error) {
	snap := Snapshot{Principal: p}
	if !p.Authenticated() {
		return snap, nil
	}
	app, err := s.apps.Get(ctx, p.UserID)
	if err != nil && !apperr.Is(err, apperr.CodeNotFound) {
		return snap, err
	}
	snap.Application = app

	profile, err := s.profiles.Get(ctx, p.UserID)
	if err != nil && !apperr.Is(err, apperr.CodeNotFound) {
		return snap, err
	}
	snap.Profile = profile

	docs, err := s.docs.List(ctx, p.UserID)
	if err != nil {
		return snap, err
	}
	snap.Documents = docs
	return snap, nil
}

// Stage resolves the stage for p from freshly read entities.
func (s *Service) Stage(ctx context.Context, p auth.Principal) (Stage, error) {
	if !p.Authenticated() {
		return StageLoggedOut, nil
	}
	if err := s.authorize(ctx, p, gate.ActionView, nil); err != nil {
		return "", err
	}
	snap, err := s.Snapshot(ctx, p)
	if err != nil {
		return "", err
	}
	return Resolve(snap), nil
}

// Enter checks that p may view requested right now.
func (s *Service) Enter(ctx context.Context, p auth.Principal, requested Stage) error {
	if p.Authenticated() {
		if err := s.authorize(ctx, p, gate.ActionView, nil); err != nil {
			return err
		}
	}
	snap, err := s.Snapshot(ctx, p)
	if err != nil {
		return err
	}
	return Check(snap, requested)
}

// Progress is the applicant-facing summary of where they stand.
type Progress struct {
	Stage         Stage                    `json:"stage"`
	Steps         []Step                   `json:"steps"`
	Status        models.ApplicationStatus `json:"status,omitempty"`
	StatusMessage string                   `json:"status_message,omitempty"`
	UpdatedAt     *time.Time               `json:"updated_at,omitempty"`
}

// Progress resolves the stage and builds the progress indicator.
func (s *Service) Progress(ctx context.Context, p auth.Principal) (*Progress, error) {
	if err := s.authorize(ctx, p, gate.ActionView, nil); err != nil {
		return nil, err
	}
	snap, err := s.Snapshot(ctx, p)
	if err != nil {
		return nil, err
	}
	stage := Resolve(snap)
	out := &Progress{Stage: stage, Steps: Steps(stage)}
	if snap.Application != nil {
		out.Status = snap.Application.Status
		out.StatusMessage = StatusMessage(snap.Application.Status)
		ts := snap.Application.UpdatedAt
		out.UpdatedAt = &ts
	}
	return out, nil
}

// Agree records the terms agreement. Repeating it succeeds and only advances
// updated_at.
func (s *Service) Agree(ctx context.Context, p auth.Principal, agreed bool) (*models.Application, error) {
	if err := s.authorize(ctx, p, gate.ActionAgree, nil); err != nil {
		return nil, err
	}
	if !agreed {
		return nil, apperr.Validation("the terms must be accepted", map[string]string{"agreed": "must_be_true"})
	}
	app, err := s.apps.Update(ctx, p.UserID, func(current *models.Application) (map[string]any, error) {
		if err := s.authorize(ctx, p, gate.ActionAgree, current); err != nil {
			return nil, err
		}
		return map[string]any{"has_agreed_to_terms": true}, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithField("user_id", p.UserID.String()).Info("terms accepted")
	return app, nil
}

// ProfileInput is the profile form.
type ProfileInput struct {
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	Address     string     `json:"address"`
	City        string     `json:"city"`
	State       string     `json:"state"`
	ZipCode     string     `json:"zip_code"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
}

// Validate applies the form rules. Violations are keyed by JSON field name.
func (in ProfileInput) Validate(now time.Time) validation.Violations {
	v := make(validation.Violations)
	validation.Required("first_name", in.FirstName, v)
	validation.Required("last_name", in.LastName, v)
	validation.Required("email", in.Email, v)
	validation.Email("email", in.Email, v)
	validation.Required("phone", in.Phone, v)
	validation.MinLen("phone", in.Phone, 10, v)
	validation.Required("address", in.Address, v)
	validation.Required("city", in.City, v)
	validation.Required("state", in.State, v)
	validation.Required("zip_code", in.ZipCode, v)
	validation.MinLen("zip_code", in.ZipCode, 5, v)
	validation.NotFuture("date_of_birth", in.DateOfBirth, now, v)
	return v
}

func (in ProfileInput) toModel(userID uuid.UUID) *models.Profile {
	p := &models.Profile{
		UserID:    userID,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		Address:   strings.TrimSpace(in.Address),
		City:      strings.TrimSpace(in.City),
		State:     strings.TrimSpace(in.State),
		ZipCode:   strings.TrimSpace(in.ZipCode),
	}
	if in.DateOfBirth != nil {
		d := datatypes.Date(in.DateOfBirth.UTC().Truncate(24 * time.Hour))
		p.DateOfBirth = &d
	}
	return p
}

// SaveProfile validates and stores the profile. It is legal once the terms
// are accepted.
func (s *Service) SaveProfile(ctx context.Context, p auth.Principal, in ProfileInput) (*models.Profile, error) {
	if err := s.authorize(ctx, p, gate.ActionUpdate, nil); err != nil {
		return nil, err
	}
	if v := in.Validate(s.now()); !v.Empty() {
		return nil, apperr.Validation("profile is incomplete or invalid", v)
	}
	if _, err := s.requireStage(ctx, p, StageProfile); err != nil {
		return nil, err
	}
	return s.profiles.Save(ctx, in.toModel(p.UserID))
}

// Upload stores a document file and marks the slot uploaded. The file is
// written before the row; if storing the file fails the row is untouched.
// Re-uploading is allowed at any document status and resets it to uploaded.
func (s *Service) Upload(ctx context.Context, p auth.Principal, in UploadInput) (*models.Document, error) {
	if err := s.authorize(ctx, p, gate.ActionUpload, nil); err != nil {
		return nil, err
	}
	up, err := checkUpload(in)
	if err != nil {
		return nil, err
	}
	snap, err := s.requireStage(ctx, p, StageDocuments)
	if err != nil {
		return nil, err
	}
	if slot, ok := models.IndexByType(snap.Documents)[up.docType]; ok {
		if err := s.authorize(ctx, p, gate.ActionUpload, slot); err != nil {
			return nil, err
		}
	}

	key := BlobKey(p.UserID, up.docType, up.fileName)
	size, err := s.blobs.Put(ctx, key, up.reader())
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("document upload failed")
		return nil, err
	}

	uploadedAt := s.now().UTC().Truncate(time.Microsecond)
	doc, err := s.docs.Update(ctx, p.UserID, up.docType, func(current *models.Document) (map[string]any, error) {
		if err := s.authorize(ctx, p, gate.ActionUpload, current); err != nil {
			return nil, err
		}
		return map[string]any{
			"status":       models.DocumentUploaded,
			"file_name":    up.fileName,
			"upload_date":  uploadedAt,
			"content_type": up.contentType,
			"size_bytes":   size,
			"storage_key":  key,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": p.UserID.String(), "type": up.docType}).Info("document uploaded")
	return doc, nil
}

// requireStage fails unless the resolved stage is min or later. It returns
// the snapshot the decision was made on.
func (s *Service) requireStage(ctx context.Context, p auth.Principal, min Stage) (Snapshot, error) {
	snap, err := s.Snapshot(ctx, p)
	if err != nil {
		return snap, err
	}
	if stage := Resolve(snap); !stage.AtLeast(min) {
		se := &StageError{Requested: min, Redirect: stage}
		return snap, apperr.New(apperr.CodeStageNotAllowed, se.Error(), se)
	}
	return snap, nil
}

// Application returns the applicant's application record.
func (s *Service) Application(ctx context.Context, p auth.Principal) (*models.Application, error) {
	if err := s.authorize(ctx, p, gate.ActionView, nil); err != nil {
		return nil, err
	}
	app, err := s.apps.Get(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, gate.ActionView, app); err != nil {
		return nil, err
	}
	return app, nil
}

// Profile returns the applicant's profile, or nil when none was saved yet.
func (s *Service) Profile(ctx context.Context, p auth.Principal) (*models.Profile, error) {
	if err := s.authorize(ctx, p, gate.ActionView, nil); err != nil {
		return nil, err
	}
	profile, err := s.profiles.Get(ctx, p.UserID)
	if apperr.Is(err, apperr.CodeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, gate.ActionView, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// Documents returns the applicant's document slots.
func (s *Service) Documents(ctx context.Context, p auth.Principal) ([]models.Document, error) {
	if err := s.authorize(ctx, p, gate.ActionView, nil); err != nil {
		return nil, err
	}
	docs, err := s.docs.List(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if err := s.authorize(ctx, p, gate.ActionView, d); err != nil {
			return nil, err
		}
	}
	return docs, nil
}
