package handlers

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-onboarding/auth"
	"github.com/diewo77/go-onboarding/httpx"
	"github.com/diewo77/go-onboarding/internal/session"
)

// AuthHandler serves sign-up, verification, sign-in and sign-out.
type AuthHandler struct {
	identity     *session.Identity
	sessions     *session.Manager
	secureCookie bool
	// exposeTokens returns verification tokens in the sign-up response.
	// Only enabled in development, where no mail is sent.
	exposeTokens bool
	log          logrus.FieldLogger
}

func NewAuthHandler(identity *session.Identity, sessions *session.Manager, secureCookie, exposeTokens bool, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{identity: identity, sessions: sessions, secureCookie: secureCookie, exposeTokens: exposeTokens, log: log}
}

type signUpRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	res, err := h.identity.SignUp(r.Context(), req.Email, req.Password, session.SignUpInput{FirstName: req.FirstName, LastName: req.LastName})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	body := map[string]any{"user_id": res.UserID, "email": res.Email, "pending_verification": res.Pending}
	if h.exposeTokens {
		body["verification_token"] = res.VerificationToken
	}
	httpx.JSON(w, http.StatusCreated, body)
}

func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	u, err := h.identity.Verify(r.Context(), req.Token)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"verified": true, "email": u.Email})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      auth.Role `json:"role"`
	Email     string    `json:"email"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	p, err := h.identity.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	s, err := h.sessions.Open(r.Context(), p)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	auth.SetSessionCookie(w, s.Token, s.ExpiresAt, h.secureCookie)
	h.log.WithFields(logrus.Fields{"user_id": p.UserID.String(), "role": p.Role}).Info("signed in")
	httpx.JSON(w, http.StatusOK, loginResponse{Token: s.Token, ExpiresAt: s.ExpiresAt, Role: p.Role, Email: p.Email})
}

// Logout closes the session. Persisted records are not touched.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		if err := h.sessions.Close(r.Context(), p.SessionID); err != nil {
			httpx.WriteError(w, err)
			return
		}
	}
	auth.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	u, err := h.identity.Current(r.Context(), p)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": u, "admin": h.identity.IsAdmin(p)})
}
