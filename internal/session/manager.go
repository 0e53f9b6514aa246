// Package session issues and resolves applicant and admin sessions, and
// implements the identity collaborator (sign-up, verification, sign-in).
package session

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/diewo77/go-onboarding/auth"
	"github.com/diewo77/go-onboarding/internal/apperr"
)

// Claims is the token payload. The role is fixed when the session opens; a
// role change needs a new sign-in.
type Claims struct {
	Email     string    `json:"email"`
	Role      auth.Role `json:"role"`
	SessionID string    `json:"sid"`
	jwt.RegisteredClaims
}

// Session is an opened session.
type Session struct {
	Token     string
	Principal auth.Principal
	ExpiresAt time.Time
}

// Manager signs session tokens and tracks revocation in a Store.
type Manager struct {
	secret []byte
	ttl    time.Duration
	store  Store
	now    func() time.Time
}

type ManagerOption func(*Manager)

// WithManagerClock overrides time.Now for token issue and expiry checks.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func NewManager(secret string, ttl time.Duration, store Store, opts ...ManagerOption) *Manager {
	m := &Manager{secret: []byte(secret), ttl: ttl, store: store, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open starts a session for p and returns its signed token.
func (m *Manager) Open(ctx context.Context, p auth.Principal) (*Session, error) {
	if !p.Authenticated() || !p.Role.Valid() {
		return nil, apperr.New(apperr.CodeUnauthorized, "cannot open a session without an identity", nil)
	}
	now := m.now()
	p.SessionID = uuid.NewString()
	exp := now.Add(m.ttl)

	claims := Claims{
		Email:     p.Email,
		Role:      p.Role,
		SessionID: p.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, apperr.New(apperr.CodeInternal, "sign session token", err)
	}
	if err := m.store.Add(ctx, p.SessionID, p.UserID, m.ttl); err != nil {
		return nil, err
	}
	return &Session{Token: token, Principal: p, ExpiresAt: exp}, nil
}

var errInvalidToken = apperr.New(apperr.CodeUnauthorized, "invalid or expired session", nil)

// Resolve verifies the token and checks that its session is still open.
func (m *Manager) Resolve(ctx context.Context, token string) (auth.Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		return auth.Principal{}, errInvalidToken
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil || claims.SessionID == "" || !claims.Role.Valid() {
		return auth.Principal{}, errInvalidToken
	}
	ok, err := m.store.Active(ctx, claims.SessionID)
	if err != nil {
		return auth.Principal{}, err
	}
	if !ok {
		return auth.Principal{}, errInvalidToken
	}
	return auth.Principal{UserID: id, Email: claims.Email, Role: claims.Role, SessionID: claims.SessionID}, nil
}

// Close revokes the session. Closing an unknown session is not an error.
func (m *Manager) Close(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	return m.store.Remove(ctx, sid)
}

// Active reports whether sid is still open.
func (m *Manager) Active(ctx context.Context, sid string) (bool, error) {
	if sid == "" {
		return false, nil
	}
	return m.store.Active(ctx, sid)
}

// IsInvalidToken reports whether err came from a rejected token.
func IsInvalidToken(err error) bool { return errors.Is(err, errInvalidToken) }
