package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/diewo77/go-onboarding/internal/config"
	"github.com/diewo77/go-onboarding/internal/db"
	"github.com/diewo77/go-onboarding/internal/logging"
	"github.com/diewo77/go-onboarding/internal/models"
	"github.com/diewo77/go-onboarding/internal/session"
)

var pdf = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Load()
	cfg.Database.Driver = "sqlite"
	cfg.Database.SQLitePath = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	cfg.Storage.Dir = t.TempDir()
	cfg.App.Dev = true
	cfg.App.AdminEmails = []string{"ops@corp.example"}
	cfg.App.AdminPassword = "admin-password"
	cfg.Sheets = config.SheetsConfig{}

	log := logging.Discard()
	conn, err := db.Connect(cfg.Database, log)
	if err != nil {
		t.Fatal(err)
	}
	if err := migrate(cfg, conn, log); err != nil {
		t.Fatal(err)
	}
	if err := seed(cfg, conn); err != nil {
		t.Fatal(err)
	}
	app, err := NewApp(context.Background(), cfg, conn, log, appOptions{
		sessionStore:  session.NewMemoryStore(),
		watchInterval: 10 * time.Millisecond,
		bcryptCost:    bcrypt.MinCost,
	})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(app)
	t.Cleanup(srv.Close)
	return srv
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c *client) call(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, c.base+path, r)
	req.Header.Set("Content-Type", "application/json")
	return c.send(req)
}

func (c *client) upload(docType string, content []byte) int {
	c.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", docType+".pdf")
	_, _ = fw.Write(content)
	_ = mw.Close()
	req, _ := http.NewRequest(http.MethodPost, c.base+"/onboarding/documents/"+docType, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	code, _ := c.send(req)
	return code
}

func (c *client) send(req *http.Request) (int, map[string]any) {
	c.t.Helper()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (c *client) raw(path string) (int, []byte) {
	c.t.Helper()
	req, _ := http.NewRequest(http.MethodGet, c.base+path, nil)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b
}

func (c *client) login(email, password string) {
	c.t.Helper()
	code, body := c.call(http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password})
	if code != http.StatusOK {
		c.t.Fatalf("login %s: %d %v", email, code, body)
	}
	c.token, _ = body["token"].(string)
}

func (c *client) stage() string {
	c.t.Helper()
	code, body := c.call(http.MethodGet, "/onboarding/stage", nil)
	if code != http.StatusOK {
		c.t.Fatalf("stage: %d %v", code, body)
	}
	s, _ := body["stage"].(string)
	return s
}

func TestOnboardingEndToEnd(t *testing.T) {
	srv := testServer(t)
	jane := &client{t: t, base: srv.URL}

	if code, _ := jane.call(http.MethodGet, "/health", nil); code != http.StatusOK {
		t.Fatalf("health: %d", code)
	}
	if code, _ := jane.call(http.MethodGet, "/healthz", nil); code != http.StatusOK {
		t.Fatalf("healthz: %d", code)
	}
	if code, _ := jane.call(http.MethodGet, "/onboarding/stage", nil); code != http.StatusUnauthorized {
		t.Fatalf("anonymous stage: %d", code)
	}

	code, body := jane.call(http.MethodPost, "/auth/signup", map[string]string{
		"email": "jane@example.com", "password": "password123", "first_name": "Jane", "last_name": "Doe",
	})
	if code != http.StatusCreated {
		t.Fatalf("signup: %d %v", code, body)
	}
	token, _ := body["verification_token"].(string)
	if code, body := jane.call(http.MethodPost, "/auth/login", map[string]string{"email": "jane@example.com", "password": "password123"}); code != http.StatusForbidden {
		t.Fatalf("unverified login: %d %v", code, body)
	}
	if code, body := jane.call(http.MethodPost, "/auth/verify", map[string]string{"token": token}); code != http.StatusOK {
		t.Fatalf("verify: %d %v", code, body)
	}
	jane.login("jane@example.com", "password123")

	if got := jane.stage(); got != "agreement" {
		t.Fatalf("stage = %s, want agreement", got)
	}
	if code, _ := jane.call(http.MethodPost, "/onboarding/agreement", map[string]bool{"agreed": true}); code != http.StatusOK {
		t.Fatalf("agreement: %d", code)
	}
	if code, body := jane.call(http.MethodPut, "/onboarding/profile", map[string]string{
		"first_name": "Jane", "last_name": "Doe", "email": "jane@example.com", "phone": "5551234567",
		"address": "1 Main St", "city": "Springfield", "state": "IL", "zip_code": "62701",
		"date_of_birth": "1990-05-17T00:00:00Z",
	}); code != http.StatusOK {
		t.Fatalf("profile: %d %v", code, body)
	}
	if got := jane.stage(); got != "documents" {
		t.Fatalf("stage = %s, want documents", got)
	}

	required := models.RequiredDocumentTypes()
	for i, dt := range required {
		if code := jane.upload(string(dt), pdf); code != http.StatusOK {
			t.Fatalf("upload %s: %d", dt, code)
		}
		want := "documents"
		if i == len(required)-1 {
			want = "review"
		}
		if got := jane.stage(); got != want {
			t.Fatalf("after %d uploads stage = %s, want %s", i+1, got, want)
		}
	}

	admin := &client{t: t, base: srv.URL}
	admin.login("ops@corp.example", "admin-password")
	if code, _ := admin.call(http.MethodGet, "/onboarding/stage", nil); code != http.StatusForbidden {
		t.Errorf("admin on applicant route: %d", code)
	}
	if code, _ := jane.call(http.MethodGet, "/admin/applicants", nil); code != http.StatusForbidden {
		t.Errorf("applicant on admin route: %d", code)
	}

	code, body = admin.call(http.MethodGet, "/admin/applicants?q=jane", nil)
	if code != http.StatusOK {
		t.Fatalf("list: %d %v", code, body)
	}
	list, _ := body["applicants"].([]any)
	if len(list) != 1 {
		t.Fatalf("list = %v", body)
	}
	row, _ := list[0].(map[string]any)
	id, _ := row["id"].(string)
	if row["uploaded"] != float64(len(required)) {
		t.Errorf("uploaded = %v", row["uploaded"])
	}

	fileURL := "/admin/applicants/" + id + "/documents/resume/file"
	if code, file := admin.raw(fileURL); code != http.StatusOK || !bytes.Equal(file, pdf) {
		t.Errorf("download: %d %q", code, file)
	}
	if code, _ := jane.raw(fileURL); code != http.StatusForbidden {
		t.Errorf("applicant download: %d", code)
	}
	if code, _ := jane.call(http.MethodPost, "/admin/export", nil); code != http.StatusForbidden {
		t.Errorf("applicant export: %d", code)
	}
	if code, _ := admin.call(http.MethodPost, "/admin/export", nil); code != http.StatusNotFound {
		t.Errorf("export without sheets: %d", code)
	}

	watched := make(chan map[string]any, 1)
	go func() {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/onboarding/stage/watch?from=review&timeout=5s", nil)
		req.Header.Set("Authorization", "Bearer "+jane.token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			watched <- nil
			return
		}
		defer resp.Body.Close()
		var out map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&out)
		watched <- out
	}()

	if code, body := admin.call(http.MethodPost, "/admin/applicants/"+id+"/status", map[string]string{"status": "selected"}); code != http.StatusOK {
		t.Fatalf("select: %d %v", code, body)
	}
	select {
	case out := <-watched:
		if out["stage"] != "employee_dashboard" || out["changed"] != true {
			t.Errorf("watch = %v", out)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not return")
	}
	if got := jane.stage(); got != "employee_dashboard" {
		t.Errorf("stage = %s, want employee_dashboard", got)
	}

	if code, _ := jane.call(http.MethodPost, "/auth/logout", nil); code != http.StatusNoContent {
		t.Errorf("logout: %d", code)
	}
	if code, _ := jane.call(http.MethodGet, "/auth/me", nil); code != http.StatusUnauthorized {
		t.Errorf("me after logout: %d", code)
	}
}
