package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/diewo77/go-onboarding/auth"
	"github.com/diewo77/go-onboarding/httpx"
	"github.com/diewo77/go-onboarding/internal/apperr"
	"github.com/diewo77/go-onboarding/internal/db"
	"github.com/diewo77/go-onboarding/internal/logging"
	"github.com/diewo77/go-onboarding/internal/models"
	"github.com/diewo77/go-onboarding/internal/onboarding"
	"github.com/diewo77/go-onboarding/internal/repository"
	"github.com/diewo77/go-onboarding/internal/review"
	"github.com/diewo77/go-onboarding/internal/storage"
)

var pdf = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")

type env struct {
	repo       *repository.Repository
	onboarding *OnboardingHandler
	admin      *AdminHandler
	applicant  auth.Principal
	reviewer   auth.Principal
}

func newEnv(t *testing.T, exporter Exporter) *env {
	t.Helper()
	conn, err := db.OpenSQLite("file:"+uuid.NewString()+"?mode=memory&cache=shared", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Migrate(conn); err != nil {
		t.Fatal(err)
	}
	repo := repository.New(conn, 2*time.Second)
	blobs, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	log := logging.Discard()

	ctx := context.Background()
	u := &models.User{Email: "jane@example.com", FirstName: "Jane", LastName: "Doe", Password: "x", Role: auth.RoleApplicant}
	if err := repo.Users.Create(ctx, u); err != nil {
		t.Fatal(err)
	}
	if err := repo.Applications.Ensure(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	if err := repo.Documents.Ensure(ctx, u.ID); err != nil {
		t.Fatal(err)
	}

	svc := onboarding.NewService(repo.Applications, repo.Profiles, repo.Documents, blobs, onboarding.WithLogger(log))
	engine := review.NewEngine(review.Store{Applicants: repo.Applicants, Applications: repo.Applications, Documents: repo.Documents},
		review.WithLogger(log))
	return &env{
		repo:       repo,
		onboarding: NewOnboardingHandler(svc, 10*time.Millisecond),
		admin:      NewAdminHandler(engine, exporter, log),
		applicant:  u.Principal("s1"),
		reviewer:   auth.Principal{UserID: uuid.New(), Email: "ops@corp.example", Role: auth.RoleAdmin, SessionID: "s2"},
	}
}

func (e *env) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /onboarding/stage", e.onboarding.Stage)
	mux.HandleFunc("GET /onboarding/stage/watch", e.onboarding.Watch)
	mux.HandleFunc("GET /onboarding/{stage}", e.onboarding.Enter)
	mux.HandleFunc("POST /onboarding/agreement", e.onboarding.Agree)
	mux.HandleFunc("GET /onboarding/profile", e.onboarding.Profile)
	mux.HandleFunc("PUT /onboarding/profile", e.onboarding.SaveProfile)
	mux.HandleFunc("GET /onboarding/documents", e.onboarding.Documents)
	mux.HandleFunc("POST /onboarding/documents/{type}", e.onboarding.Upload)
	mux.HandleFunc("GET /admin/applicants", e.admin.Applicants)
	mux.HandleFunc("GET /admin/stats", e.admin.Stats)
	mux.HandleFunc("POST /admin/applicants/{id}/status", e.admin.SetStatus)
	mux.HandleFunc("POST /admin/applicants/{id}/documents/{type}", e.admin.SetDocumentStatus)
	mux.HandleFunc("POST /admin/export", e.admin.Export)
	return mux
}

func (e *env) do(t *testing.T, p auth.Principal, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.mux().ServeHTTP(rec, req.WithContext(auth.WithPrincipal(req.Context(), p)))
	return rec
}

func jsonRequest(method, target string, body any) *http.Request {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, docType, name string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(content)
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/onboarding/documents/"+docType, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httpx.ErrorResponse {
	t.Helper()
	var resp httpx.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

func (e *env) reachDocuments(t *testing.T) {
	t.Helper()
	if rec := e.do(t, e.applicant, jsonRequest(http.MethodPost, "/onboarding/agreement", map[string]bool{"agreed": true})); rec.Code != http.StatusOK {
		t.Fatalf("agreement: %d %s", rec.Code, rec.Body)
	}
	profile := map[string]string{
		"first_name": "Jane", "last_name": "Doe", "email": "jane@example.com", "phone": "5551234567",
		"address": "1 Main St", "city": "Springfield", "state": "IL", "zip_code": "62701",
	}
	if rec := e.do(t, e.applicant, jsonRequest(http.MethodPut, "/onboarding/profile", profile)); rec.Code != http.StatusOK {
		t.Fatalf("profile: %d %s", rec.Code, rec.Body)
	}
}

func TestEnter_RedirectsToResolvedStage(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, e.applicant, httptest.NewRequest(http.MethodGet, "/onboarding/documents-nope", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown stage: %d", rec.Code)
	}

	rec = e.do(t, e.applicant, httptest.NewRequest(http.MethodGet, "/onboarding/review", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	resp := decodeError(t, rec)
	if resp.Error != string(apperr.CodeStageNotAllowed) || resp.Redirect != string(onboarding.StageAgreement) {
		t.Errorf("response = %+v", resp)
	}

	rec = e.do(t, e.applicant, httptest.NewRequest(http.MethodGet, "/onboarding/agreement", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("current stage: %d", rec.Code)
	}
}

func TestAgree_RequiresTrue(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.do(t, e.applicant, jsonRequest(http.MethodPost, "/onboarding/agreement", map[string]bool{"agreed": false}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Fields["agreed"] != "must_be_true" {
		t.Errorf("fields = %v", resp.Fields)
	}
}

func TestUpload(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, e.applicant, uploadRequest(t, "resume", "cv.pdf", pdf))
	if rec.Code != http.StatusConflict {
		t.Errorf("upload before documents stage: %d", rec.Code)
	}

	e.reachDocuments(t)

	tests := []struct {
		name    string
		docType string
		file    string
		content []byte
		want    int
		field   string
	}{
		{"pdf", "resume", "cv.pdf", pdf, http.StatusOK, ""},
		{"text", "resume", "cv.txt", []byte("plain words"), http.StatusBadRequest, "unsupported_type"},
		{"unknown type", "passport", "p.pdf", pdf, http.StatusBadRequest, "unknown_document_type"},
		{"too large", "resume", "big.pdf", append(append([]byte{}, pdf...), make([]byte, 6<<20)...), http.StatusBadRequest, "file_too_large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, e.applicant, uploadRequest(t, tt.docType, tt.file, tt.content))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
			if tt.field == "" {
				return
			}
			resp := decodeError(t, rec)
			found := false
			for _, rule := range resp.Fields {
				found = found || rule == tt.field
			}
			if !found {
				t.Errorf("fields = %v, want rule %s", resp.Fields, tt.field)
			}
		})
	}

	doc, err := e.repo.Documents.Get(context.Background(), e.applicant.UserID, models.DocResume)
	if err != nil {
		t.Fatal(err)
	}
	if doc.FileName != "cv.pdf" || doc.Status != models.DocumentUploaded {
		t.Errorf("rejected uploads changed the slot: %+v", doc)
	}

	rec = e.do(t, e.applicant, httptest.NewRequest(http.MethodPost, "/onboarding/documents/resume", strings.NewReader("")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing file: %d", rec.Code)
	}
}

func TestWatch(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, e.applicant, httptest.NewRequest(http.MethodGet, "/onboarding/stage/watch?from=agreement&timeout=50ms", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Stage   string `json:"stage"`
		Changed bool   `json:"changed"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if body.Changed || body.Stage != "agreement" {
		t.Errorf("timeout body = %+v", body)
	}

	rec = e.do(t, e.applicant, httptest.NewRequest(http.MethodGet, "/onboarding/stage/watch?from=profile&timeout=1s", nil))
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if !body.Changed || body.Stage != "agreement" {
		t.Errorf("changed body = %+v", body)
	}

	for _, q := range []string{"from=nowhere", "from=review&timeout=soon"} {
		rec = e.do(t, e.applicant, httptest.NewRequest(http.MethodGet, "/onboarding/stage/watch?"+q, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: %d", q, rec.Code)
		}
	}
}

func TestAdmin_StatusAndDocuments(t *testing.T) {
	e := newEnv(t, nil)
	id := e.applicant.UserID.String()

	rec := e.do(t, e.reviewer, jsonRequest(http.MethodPost, "/admin/applicants/"+id+"/status", map[string]string{"status": "selected", "notes": "strong"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("select: %d %s", rec.Code, rec.Body)
	}
	rec = e.do(t, e.reviewer, jsonRequest(http.MethodPost, "/admin/applicants/"+id+"/status", map[string]string{"status": "selected"}))
	if rec.Code != http.StatusConflict {
		t.Errorf("unchanged: %d", rec.Code)
	}
	rec = e.do(t, e.applicant, jsonRequest(http.MethodPost, "/admin/applicants/"+id+"/status", map[string]string{"status": "rejected"}))
	if rec.Code != http.StatusForbidden {
		t.Errorf("applicant decision: %d", rec.Code)
	}
	rec = e.do(t, e.reviewer, jsonRequest(http.MethodPost, "/admin/applicants/not-a-uuid/status", map[string]string{"status": "rejected"}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: %d", rec.Code)
	}

	rec = e.do(t, e.reviewer, jsonRequest(http.MethodPost, "/admin/applicants/"+id+"/documents/resume", map[string]string{"status": "rejected", "notes": "missing"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("document decision: %d %s", rec.Code, rec.Body)
	}

	rec = e.do(t, e.reviewer, httptest.NewRequest(http.MethodGet, "/admin/applicants?status=selected", nil))
	var list struct {
		Applicants []review.ApplicantSummary `json:"applicants"`
		Total      int                       `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 || list.Applicants[0].Uploaded != 1 || list.Applicants[0].Name != "Jane Doe" {
		t.Errorf("list = %+v", list)
	}

	rec = e.do(t, e.reviewer, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))
	var stats review.Stats
	_ = json.NewDecoder(rec.Body).Decode(&stats)
	if stats.Selected != 1 || stats.Total != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

type fakeExporter struct {
	got []review.ApplicantSummary
	err error
}

func (f *fakeExporter) Export(_ context.Context, list []review.ApplicantSummary) (int, error) {
	f.got = list
	return len(list), f.err
}

func TestAdmin_Export(t *testing.T) {
	e := newEnv(t, nil)
	if rec := e.do(t, e.reviewer, httptest.NewRequest(http.MethodPost, "/admin/export", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("unconfigured export: %d", rec.Code)
	}

	fe := &fakeExporter{}
	e = newEnv(t, fe)
	rec := e.do(t, e.reviewer, httptest.NewRequest(http.MethodPost, "/admin/export", nil))
	if rec.Code != http.StatusOK || len(fe.got) != 1 {
		t.Errorf("export: %d, %d rows", rec.Code, len(fe.got))
	}

	fe.err = apperr.Unavailable(errors.New("quota"))
	rec = e.do(t, e.reviewer, httptest.NewRequest(http.MethodPost, "/admin/export", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("failed export: %d", rec.Code)
	}
}
