package handlers

import (
	"net/http"

	"github.com/mkalinin/classhub/internal/apperrors"
	"github.com/mkalinin/classhub/internal/handlers/render"
)

// serviceError maps a service error onto its HTTP status
// Unknown errors are hidden behind a plain 500 so internals never leak
func serviceError(w http.ResponseWriter, err error) {
	code := apperrors.StatusFor(err)

	message := "Internal server error"
	if code < http.StatusInternalServerError {
		message = err.Error()
	}

	render.ServiceError(w, message, code)
}
