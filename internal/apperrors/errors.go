package apperrors

import (
	"errors"
	"net/http"
)

var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserDisabled       = errors.New("account is not activated, check your email")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Token validation collapses to coarse kinds on purpose:
	// a client never learns whether a token was forged, revoked or unknown
	ErrTokenNotFound          = errors.New("token not found")
	ErrTokenUntrusted         = errors.New("token is not trusted")
	ErrTokenExpired           = errors.New("token is expired")
	ErrTokenRevoked           = errors.New("token is revoked")
	ErrTokenOwnerMismatch     = errors.New("token was issued to another account")
	ErrTokenModeNotConfigured = errors.New("no lifetime configured for token mode")

	ErrBadOTPCode        = errors.New("invalid one-time code")
	Err2FAAlreadyEnabled = errors.New("two-factor auth is already enabled")
	Err2FANotEnabled     = errors.New("two-factor auth is not enabled")

	ErrForbidden = errors.New("operation is not allowed for this role")

	ErrInstitutionNotFound = errors.New("institution not found")
	ErrInstitutionExists   = errors.New("institution already exists")
	ErrGroupNotFound       = errors.New("study group not found")
	ErrGroupExists         = errors.New("study group already exists")
	ErrCourseNotFound      = errors.New("course not found")
	ErrCourseExists        = errors.New("course already exists")
	ErrTaskNotFound        = errors.New("task not found")
	ErrAlreadyMember       = errors.New("user is already a member")
)

// statusByKind is the single mapping from error kind to transport status
// Handlers use StatusFor instead of inspecting error types themselves
var statusByKind = []struct {
	kind   error
	status int
}{
	{ErrUserAlreadyExists, http.StatusConflict},
	{ErrUserNotFound, http.StatusNotFound},
	{ErrUserDisabled, http.StatusForbidden},
	{ErrInvalidCredentials, http.StatusUnauthorized},
	{ErrTokenNotFound, http.StatusUnauthorized},
	{ErrTokenUntrusted, http.StatusUnauthorized},
	{ErrTokenExpired, http.StatusUnauthorized},
	{ErrTokenRevoked, http.StatusUnauthorized},
	{ErrTokenOwnerMismatch, http.StatusForbidden},
	{ErrBadOTPCode, http.StatusUnauthorized},
	{Err2FAAlreadyEnabled, http.StatusConflict},
	{Err2FANotEnabled, http.StatusConflict},
	{ErrForbidden, http.StatusForbidden},
	{ErrInstitutionNotFound, http.StatusNotFound},
	{ErrInstitutionExists, http.StatusConflict},
	{ErrGroupNotFound, http.StatusNotFound},
	{ErrGroupExists, http.StatusConflict},
	{ErrCourseNotFound, http.StatusNotFound},
	{ErrCourseExists, http.StatusConflict},
	{ErrTaskNotFound, http.StatusNotFound},
	{ErrAlreadyMember, http.StatusConflict},
}

// StatusFor returns the HTTP status for a known error kind
// Unknown errors (store failures, config faults) are internal server errors
func StatusFor(err error) int {
	for _, m := range statusByKind {
		if errors.Is(err, m.kind) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}
