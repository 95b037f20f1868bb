// Package common defines shared constants and sentinel errors used across
// the lostfound server components. Callers should use errors.Is to match
// these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrStorage    = errors.New("db error")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")

	// Credential errors.
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountPending matches ErrInvalidCredentials as well, so callers that
	// only care about the generic denial never see the difference.
	ErrAccountPending        = fmt.Errorf("%w: account pending approval", ErrInvalidCredentials)
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// Session errors.
	ErrSessionNotFound = errors.New("session not found")
	ErrCSRFMismatch    = errors.New("csrf token mismatch")

	// Signed token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Delivery errors.
	ErrQueueFull = errors.New("delivery queue unavailable")
)

// StorageError wraps a backend failure so that errors.Is(err, ErrStorage)
// holds while the original cause stays reachable.
func StorageError(err error) error {
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
