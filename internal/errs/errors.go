// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across store/service/handler layers.
var (
	// ErrNotFound indicates the requested entity does not exist (or is not
	// owned by the caller; ownership mismatches are reported as not-found to
	// avoid leaking existence).
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation indicates a malformed or incomplete request.
	ErrValidation = errors.New("validation failed")

	// ErrAlreadyExists indicates a unique constraint violation (username or email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrAdapter indicates the external model process failed: non-zero exit,
	// unparseable output, or timeout.
	ErrAdapter = errors.New("adapter failure")

	// ErrEmailNotVerified blocks password login until the address is confirmed.
	ErrEmailNotVerified = errors.New("email not verified")

	// ErrGoogleNoPassword blocks password login for Google accounts that have
	// not set a password yet.
	ErrGoogleNoPassword = errors.New("google account has no password")
)
