package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// UploadLimiter is a token bucket bounding how fast queued recordings are
// pushed at the backend when a large backlog drains after reconnect.
// Burst is set equal to the rate so no extra burst capacity is allowed
// beyond the configured per-second maximum.
type UploadLimiter struct {
	limiter *rate.Limiter
}

// New creates an UploadLimiter granting perSec uploads per second.
func New(perSec int) *UploadLimiter {
	return &UploadLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSec), perSec),
	}
}

// Wait blocks until the limiter grants a token.
// Called by the processor immediately before each upload attempt.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (l *UploadLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
