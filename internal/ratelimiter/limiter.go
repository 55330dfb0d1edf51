package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// DeliveryLimiter is a token bucket applied to each event delivery during a
// flush cycle, so a large backlog drains without hammering the collector.
// Burst is set equal to the rate so no extra burst capacity is allowed
// beyond the configured per-second maximum.
type DeliveryLimiter struct {
	limiter *rate.Limiter
}

// New creates a DeliveryLimiter granting ratePerSec deliveries per second.
func New(ratePerSec int) *DeliveryLimiter {
	r := rate.Limit(ratePerSec)
	burst := ratePerSec // burst == rate: prevents any "saved up" burst above the limit

	return &DeliveryLimiter{limiter: rate.NewLimiter(r, burst)}
}

// Wait blocks until the limiter grants a token.
// Called by the flusher immediately before each delivery.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (dl *DeliveryLimiter) Wait(ctx context.Context) error {
	return dl.limiter.Wait(ctx)
}
