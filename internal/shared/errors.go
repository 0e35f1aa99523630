package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden indicates the actor lacks permission for the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation indicates invalid input rejected before persistence.
	ErrValidation = errors.New("invalid input")
	// ErrConflict indicates the request violates a business rule.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState indicates a disallowed status transition.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
