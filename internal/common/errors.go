// Package common defines shared constants and sentinel errors used across
// the server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorValidation   = errors.New("validation error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Time- or consumption-based invalidation. Deliberately uninformative:
	// callers must not be able to tell a wrong code from an expired one.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	ErrInvalidSession       = errors.New("invalid session")

	// ErrBanned is wrapped with the ban reason, e.g.
	// fmt.Errorf("%w: %s", ErrBanned, reason).
	ErrBanned = errors.New("banned")

	// External collaborator failures (mail delivery).
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
