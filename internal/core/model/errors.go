package model

import "errors"

var (
	// ErrRateLimitExceeded means the call budget or the remote quota is
	// exhausted and no cached copy, fresh or stale, exists.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrRemoteUnavailable covers transport and auth failures unrelated to quota.
	ErrRemoteUnavailable = errors.New("remote store unavailable")
	ErrNotFound          = errors.New("no matching record found")
	ErrValidation        = errors.New("validation error")
	// ErrDegraded marks data served from a stale cache entry.
	ErrDegraded = errors.New("served from stale cache")
)

// Result codes carried by ClockResult.
const (
	CodeAlreadyClockedIn = "ALREADY_CLOCKED_IN"
	CodeNotClockedIn     = "NOT_CLOCKED_IN"
	CodeNotFound         = "NOT_FOUND"
	CodeValidation       = "VALIDATION_ERROR"
	CodeRateLimited      = "RATE_LIMIT_EXCEEDED"
	CodeRemote           = "REMOTE_UNAVAILABLE"
)

// CodeFor maps an error onto the result code the route layer reports.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrRateLimitExceeded):
		return CodeRateLimited
	default:
		return CodeRemote
	}
}
