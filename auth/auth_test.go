package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

type stubResolver map[string]Principal

func (s stubResolver) Resolve(_ context.Context, token string) (Principal, error) {
	if p, ok := s[token]; ok {
		return p, nil
	}
	return Principal{}, errors.New("invalid token")
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole("admin"); err != nil || r != RoleAdmin {
		t.Errorf("ParseRole(admin) = %q, %v", r, err)
	}
	if _, err := ParseRole("superuser"); err == nil {
		t.Error("unknown role should fail")
	}
}

func TestPrincipal_IsAdmin(t *testing.T) {
	id := uuid.New()
	if (Principal{UserID: id, Role: RoleApplicant}).IsAdmin() {
		t.Error("applicant must not be admin")
	}
	if !(Principal{UserID: id, Role: RoleAdmin}).IsAdmin() {
		t.Error("admin role expected")
	}
	if (Principal{Role: RoleAdmin}).IsAdmin() {
		t.Error("unauthenticated principal is never admin")
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer abc")
	r.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "cookie"})
	if got := TokenFromRequest(r); got != "abc" {
		t.Errorf("bearer should win, got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "cookie"})
	if got := TokenFromRequest(r); got != "cookie" {
		t.Errorf("got %q, want cookie", got)
	}
}

func TestMiddleware_AttachesPrincipal(t *testing.T) {
	p := Principal{UserID: uuid.New(), Email: "jane@example.com", Role: RoleApplicant, SessionID: "s1"}
	var got Principal
	h := Middleware(stubResolver{"good": p})(RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	rr := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	SetSessionCookie(rr, "good", time.Now().Add(time.Hour), false)
	r.AddCookie(rr.Result().Cookies()[0])
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, r)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
	if got != p {
		t.Errorf("principal = %+v, want %+v", got, p)
	}
}

func TestMiddleware_InvalidTokenClearsCookie(t *testing.T) {
	h := Middleware(stubResolver{})(RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	})))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "revoked"})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("expected cookie to be cleared, got %+v", cookies)
	}
}
