package domain

import "errors"

// Sentinel errors used throughout the application.
// The HTTP layer translates these to status codes via a single mapError function.
var (
	ErrNotFound        = errors.New("queue item not found")
	ErrAuthMissing     = errors.New("no auth token available")
	ErrInvalidURI      = errors.New("recording uri must not be empty")
	ErrInvalidChild    = errors.New("child id must be positive")
	ErrInvalidDuration = errors.New("duration must not be negative")
)
