package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/diewo77/go-onboarding/httpx"
	"github.com/diewo77/go-onboarding/internal/models"
	"github.com/diewo77/go-onboarding/internal/onboarding"
)

// Watch timeouts. The server write timeout must stay above MaxWatchTimeout.
const (
	DefaultWatchTimeout = 25 * time.Second
	MaxWatchTimeout     = 55 * time.Second
)

// OnboardingHandler serves the applicant side.
type OnboardingHandler struct {
	svc           *onboarding.Service
	watchInterval time.Duration
}

func NewOnboardingHandler(svc *onboarding.Service, watchInterval time.Duration) *OnboardingHandler {
	return &OnboardingHandler{svc: svc, watchInterval: watchInterval}
}

// Stage returns the resolved stage with the progress indicator.
func (h *OnboardingHandler) Stage(w http.ResponseWriter, r *http.Request) {
	progress, err := h.svc.Progress(r.Context(), principal(r))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, progress)
}

// Watch long-polls until the stage moves away from ?from= or the timeout
// passes. On timeout the response repeats from with changed=false.
func (h *OnboardingHandler) Watch(w http.ResponseWriter, r *http.Request) {
	from, err := onboarding.ParseStage(r.URL.Query().Get("from"))
	if err != nil {
		httpx.WriteError(w, invalidParam("from", "unknown_stage"))
		return
	}
	timeout := DefaultWatchTimeout
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			httpx.WriteError(w, invalidParam("timeout", "invalid_duration"))
			return
		}
		timeout = min(d, MaxWatchTimeout)
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()
	stage, err := h.svc.Watch(ctx, principal(r), from, h.watchInterval)
	if errors.Is(err, context.DeadlineExceeded) {
		httpx.JSON(w, http.StatusOK, map[string]any{"stage": from, "changed": false})
		return
	}
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stage": stage, "changed": true})
}

// Enter answers whether the applicant may view a stage. A refused stage
// comes back as 409 with the stage to redirect to.
func (h *OnboardingHandler) Enter(w http.ResponseWriter, r *http.Request) {
	stage, err := onboarding.ParseStage(r.PathValue("stage"))
	if err != nil {
		httpx.WriteError(w, invalidParam("stage", "unknown_stage"))
		return
	}
	if err := h.svc.Enter(r.Context(), principal(r), stage); err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stage": stage})
}

func (h *OnboardingHandler) Application(w http.ResponseWriter, r *http.Request) {
	app, err := h.svc.Application(r.Context(), principal(r))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, app)
}

func (h *OnboardingHandler) Agree(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Agreed bool `json:"agreed"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	app, err := h.svc.Agree(r.Context(), principal(r), req.Agreed)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, app)
}

// Profile returns the saved profile, or null when none exists yet.
func (h *OnboardingHandler) Profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Profile(r.Context(), principal(r))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if p == nil {
		httpx.JSON(w, http.StatusOK, nil)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *OnboardingHandler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	var in onboarding.ProfileInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, err)
		return
	}
	p, err := h.svc.SaveProfile(r.Context(), principal(r), in)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *OnboardingHandler) Documents(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.Documents(r.Context(), principal(r))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, docs)
}

// multipartOverhead is the room left for form boundaries and headers on top
// of the largest accepted file.
const multipartOverhead = 1 << 20

// Upload takes a multipart form with the document in the "file" field.
func (h *OnboardingHandler) Upload(w http.ResponseWriter, r *http.Request) {
	docType, err := models.ParseDocumentType(r.PathValue("type"))
	if err != nil {
		httpx.WriteError(w, invalidParam("type", "unknown_document_type"))
		return
	}
	const limit = onboarding.MaxUploadSize + multipartOverhead
	if r.ContentLength > limit {
		httpx.WriteError(w, invalidParam("file", "file_too_large"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.WriteError(w, invalidParam("file", "file_too_large"))
			return
		}
		httpx.WriteError(w, invalidParam("file", "missing_file"))
		return
	}
	defer f.Close()

	doc, err := h.svc.Upload(r.Context(), principal(r), onboarding.UploadInput{
		Type:     docType,
		FileName: hdr.Filename,
		Size:     hdr.Size,
		Content:  f,
	})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}
