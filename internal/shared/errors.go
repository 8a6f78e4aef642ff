package shared

import (
	"errors"
	"fmt"
)

// Base error taxonomy. Every domain failure wraps one of these so the
// HTTP boundary can translate without knowing the originating package.
var (
	// ErrUnauthorized indicates a missing, invalid or stale credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates an authenticated but disallowed request.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrConflict indicates a uniqueness or referential conflict.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates a malformed or rule-violating payload.
	ErrValidation = errors.New("validation failed")
	// ErrTooManyAttempts indicates the caller is being throttled.
	ErrTooManyAttempts = errors.New("too many attempts")
)

// Narrowed variants shared across modules.
var (
	ErrInvalidCredentials  = fmt.Errorf("invalid credentials: %w", ErrUnauthorized)
	ErrInvalidRefreshToken = fmt.Errorf("invalid refresh token: %w", ErrUnauthorized)
	ErrAccountDisabled     = fmt.Errorf("account disabled: %w", ErrForbidden)
	ErrProtectedResource   = fmt.Errorf("protected resource: %w", ErrForbidden)
)
