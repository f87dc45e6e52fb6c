package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrInternalServer = errors.New("internal server error")

	// Account state errors. Pending and rejected are intentional
	// disclosures so the client can render the right screen; everything
	// else collapses to ErrUnauthorized at the route boundary.
	ErrAccountPending    = errors.New("account pending approval")
	ErrAccountRejected   = errors.New("account rejected")
	ErrAccountIncomplete = errors.New("account setup incomplete")
	ErrGoogleOnlyAccount = errors.New("account requires google sign-in")

	// Registration / completion errors
	ErrInvalidCompanyCode = errors.New("invalid company code")

	// Reset flow errors
	ErrResetCodeInvalid = errors.New("invalid or expired reset code")
)
