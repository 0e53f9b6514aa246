package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/diewo77/go-onboarding/auth"
	"github.com/diewo77/go-onboarding/internal/apperr"
	"github.com/diewo77/go-onboarding/internal/models"
	"github.com/diewo77/go-onboarding/validation"
)

// MinPasswordLength is enforced at sign-up.
const MinPasswordLength = 8

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	ByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByVerificationToken(ctx context.Context, token string) (*models.User, error)
	MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) error
}

// RecordEnsurer creates an applicant's per-user rows if they are missing.
type RecordEnsurer interface {
	Ensure(ctx context.Context, userID uuid.UUID) error
}

// Identity is the account side: sign-up, email verification and sign-in.
// New accounts are always applicants; admins come from seeding.
type Identity struct {
	users UserStore
	apps  RecordEnsurer
	docs  RecordEnsurer
	cost  int
	now   func() time.Time
	log   logrus.FieldLogger
}

type IdentityOption func(*Identity)

// WithBcryptCost lowers the hashing cost in tests.
func WithBcryptCost(cost int) IdentityOption { return func(i *Identity) { i.cost = cost } }

func WithIdentityLogger(l logrus.FieldLogger) IdentityOption {
	return func(i *Identity) { i.log = l }
}

func NewIdentity(users UserStore, apps, docs RecordEnsurer, opts ...IdentityOption) *Identity {
	i := &Identity{users: users, apps: apps, docs: docs, cost: bcrypt.DefaultCost, now: time.Now, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// SignUpInput carries the optional account name.
type SignUpInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// SignUpResult is a pending account. The token must be presented to Verify
// before the account can sign in.
type SignUpResult struct {
	UserID            uuid.UUID `json:"user_id"`
	Email             string    `json:"email"`
	Pending           bool      `json:"pending_verification"`
	VerificationToken string    `json:"-"`
}

// SignUp registers an applicant account pending email verification.
func (i *Identity) SignUp(ctx context.Context, email, password string, in SignUpInput) (*SignUpResult, error) {
	email = models.NormalizeEmail(email)
	v := make(validation.Violations)
	validation.Required("email", email, v)
	validation.Email("email", email, v)
	validation.Required("password", password, v)
	validation.MinLen("password", password, MinPasswordLength, v)
	if !v.Empty() {
		return nil, apperr.Validation("invalid sign-up", v)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), i.cost)
	if err != nil {
		return nil, apperr.New(apperr.CodeInternal, "hash password", err)
	}
	u := &models.User{
		Email:             email,
		FirstName:         in.FirstName,
		LastName:          in.LastName,
		Password:          string(hash),
		Role:              auth.RoleApplicant,
		VerificationToken: uuid.NewString(),
	}
	if err := i.users.Create(ctx, u); err != nil {
		return nil, err
	}
	i.log.WithField("user_id", u.ID.String()).Info("account created, pending verification")
	return &SignUpResult{UserID: u.ID, Email: u.Email, Pending: true, VerificationToken: u.VerificationToken}, nil
}

// Verify consumes a verification token.
func (i *Identity) Verify(ctx context.Context, token string) (*models.User, error) {
	u, err := i.users.ByVerificationToken(ctx, token)
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "unknown or used verification token", err)
		}
		return nil, err
	}
	at := i.now().UTC()
	if err := i.users.MarkVerified(ctx, u.ID, at); err != nil {
		return nil, err
	}
	u.VerifiedAt, u.VerificationToken = &at, ""
	return u, nil
}

var errBadCredentials = apperr.New(apperr.CodeUnauthorized, "invalid email or password", nil)

// SignIn checks the credentials and returns the identity, without a session
// id. For applicants it also makes sure the application record and the
// document slots exist.
func (i *Identity) SignIn(ctx context.Context, email, password string) (auth.Principal, error) {
	u, err := i.users.ByEmail(ctx, email)
	if apperr.Is(err, apperr.CodeNotFound) {
		return auth.Principal{}, errBadCredentials
	}
	if err != nil {
		return auth.Principal{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return auth.Principal{}, errBadCredentials
	}
	if !u.IsVerified() {
		return auth.Principal{}, apperr.New(apperr.CodeForbidden, "email address not verified", nil)
	}
	if u.Role == auth.RoleApplicant {
		if err := i.apps.Ensure(ctx, u.ID); err != nil {
			return auth.Principal{}, err
		}
		if err := i.docs.Ensure(ctx, u.ID); err != nil {
			return auth.Principal{}, err
		}
	}
	return u.Principal(""), nil
}

// Current loads the account behind a principal.
func (i *Identity) Current(ctx context.Context, p auth.Principal) (*models.User, error) {
	if !p.Authenticated() {
		return nil, apperr.New(apperr.CodeUnauthorized, "sign in required", nil)
	}
	return i.users.ByID(ctx, p.UserID)
}

// IsAdmin is the admin predicate. It reads the role claim fixed at sign-in.
func (i *Identity) IsAdmin(p auth.Principal) bool { return p.IsAdmin() }
