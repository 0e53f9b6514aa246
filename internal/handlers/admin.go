package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-onboarding/httpx"
	"github.com/diewo77/go-onboarding/internal/apperr"
	"github.com/diewo77/go-onboarding/internal/logging"
	"github.com/diewo77/go-onboarding/internal/models"
	"github.com/diewo77/go-onboarding/internal/review"
)

// Exporter publishes the applicant list somewhere outside the service.
type Exporter interface {
	Export(ctx context.Context, list []review.ApplicantSummary) (int, error)
}

// AdminHandler serves the review dashboard.
type AdminHandler struct {
	engine   *review.Engine
	exporter Exporter
	log      logrus.FieldLogger
}

// NewAdminHandler builds the handler. exporter may be nil when no export
// target is configured.
func NewAdminHandler(engine *review.Engine, exporter Exporter, log logrus.FieldLogger) *AdminHandler {
	return &AdminHandler{engine: engine, exporter: exporter, log: log}
}

func (h *AdminHandler) Applicants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := review.Filter{Query: q.Get("q"), Status: models.ApplicationStatus(q.Get("status"))}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httpx.WriteError(w, invalidParam("limit", "not_a_number"))
			return
		}
		f.Limit = n
	}
	list, err := h.engine.List(r.Context(), principal(r), f)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"applicants": list, "total": len(list)})
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context(), principal(r))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

type decisionRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func applicantID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, invalidParam("id", "invalid_id")
	}
	return id, nil
}

func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := applicantID(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	var req decisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	app, err := h.engine.SetStatus(r.Context(), principal(r), id, models.ApplicationStatus(req.Status), req.Notes)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, app)
}

func (h *AdminHandler) SetDocumentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := applicantID(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	var req decisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	doc, err := h.engine.SetDocumentStatus(r.Context(), principal(r), id,
		models.DocumentType(r.PathValue("type")), models.DocumentStatus(req.Status), req.Notes)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

// DocumentFile streams an uploaded document back to an admin.
func (h *AdminHandler) DocumentFile(w http.ResponseWriter, r *http.Request) {
	id, err := applicantID(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	doc, rc, err := h.engine.DocumentFile(r.Context(), principal(r), id, models.DocumentType(r.PathValue("type")))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	if doc.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(doc.SizeBytes, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		logging.WithPrincipal(h.log, r).WithError(err).Warn("document download interrupted")
	}
}

// Export writes the full applicant list to the configured spreadsheet.
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		httpx.WriteError(w, apperr.New(apperr.CodeNotFound, "export is not configured", nil))
		return
	}
	list, err := h.engine.List(r.Context(), principal(r), review.Filter{})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	n, err := h.exporter.Export(r.Context(), list)
	if err != nil {
		logging.WithPrincipal(h.log, r).WithError(err).Error("applicant export failed")
		httpx.WriteError(w, err)
		return
	}
	logging.WithPrincipal(h.log, r).WithField("rows", n).Info("applicants exported")
	httpx.JSON(w, http.StatusOK, map[string]any{"exported": n})
}
