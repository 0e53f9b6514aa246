// Package httpx holds the JSON response helpers shared by every handler.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/diewo77/go-onboarding/internal/apperr"
)

type ErrorResponse struct {
	Error     string            `json:"error"`
	Message   string            `json:"message,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Redirect  string            `json:"redirect,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			// avoid writing partial JSON
			http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func JSONError(w http.ResponseWriter, status int, code, msg string) {
	JSON(w, status, ErrorResponse{Error: code, Message: msg})
}

// Redirecter is implemented by errors that tell the client where to go instead.
type Redirecter interface {
	RedirectTo() string
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperr.CodeForbidden:
		return http.StatusForbidden
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeConflict, apperr.CodeStageNotAllowed:
		return http.StatusConflict
	case apperr.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err as an ErrorResponse. Errors without a code become a
// bare 500 so internal details never reach the client.
func WriteError(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		JSONError(w, http.StatusInternalServerError, string(apperr.CodeInternal), "internal error")
		return
	}
	resp := ErrorResponse{
		Error:     string(ae.Code),
		Message:   ae.Message,
		Fields:    ae.Fields,
		Retryable: ae.Retryable(),
	}
	var r Redirecter
	if errors.As(err, &r) {
		resp.Redirect = r.RedirectTo()
	}
	JSON(w, StatusFor(ae.Code), resp)
}

// DecodeJSON reads a JSON body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("malformed request body", map[string]string{"body": err.Error()})
	}
	return nil
}
