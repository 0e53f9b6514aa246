// Package apperr defines the coded error type shared by the onboarding core,
// the repositories and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers and for the HTTP status mapping.
type Code string

const (
	CodeValidation      Code = "validation"
	CodeUnauthorized    Code = "unauthorized"
	CodeForbidden       Code = "forbidden"
	CodeNotFound        Code = "not_found"
	CodeConflict        Code = "conflict"
	CodeStageNotAllowed Code = "stage_not_allowed"
	CodeUnavailable     Code = "unavailable"
	CodeInternal        Code = "internal"
)

// Error is a coded application error. Fields carries per-field violations
// for validation errors.
type Error struct {
	Code    Code
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether resending the same operation may succeed.
// Only persistence failures are retryable; every mutation in the core is
// idempotent at the row level.
func (e *Error) Retryable() bool { return e.Code == CodeUnavailable }

// New returns an error with the given code.
func New(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Validation returns a validation error carrying field violations.
func Validation(message string, fields map[string]string) *Error {
	return &Error{Code: CodeValidation, Message: message, Fields: fields}
}

// Unavailable wraps a persistence failure. The message stays generic.
func Unavailable(err error) *Error {
	return &Error{Code: CodeUnavailable, Message: "storage temporarily unavailable, please retry", Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}
