// Package handlers exposes the onboarding and admin operations as JSON
// endpoints.
package handlers

import (
	"net/http"

	"github.com/diewo77/go-onboarding/auth"
	"github.com/diewo77/go-onboarding/internal/apperr"
)

func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFromContext(r.Context())
	return p
}

func invalidParam(field, rule string) error {
	return apperr.Validation("invalid "+field, map[string]string{field: rule})
}
