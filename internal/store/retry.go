package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultWriteBackoff is the delay schedule applied between failed Update
// attempts: index 0 = delay before the second attempt, etc. The attempt
// ceiling is len(schedule)+1.
var DefaultWriteBackoff = []time.Duration{
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

// Retryable decorates a Store with bounded retry-with-backoff on writes,
// hiding transient failures (timeouts, I/O hiccups) from the queue and lock
// layers above it. It performs no locking: concurrent writers from other
// processes can still race, and that race is handled above, not here.
//
// Reads pass through untouched — absence is not an error at this layer, and
// the callers treat an undecodable slot as empty.
type Retryable struct {
	inner   Store
	backoff []time.Duration
	logger  *zap.Logger

	// onRetry is invoked once per failed write attempt that will be retried.
	onRetry func()
}

type RetryOption func(*Retryable)

// WithWriteBackoff overrides the delay schedule between write attempts.
func WithWriteBackoff(schedule []time.Duration) RetryOption {
	return func(r *Retryable) {
		if len(schedule) > 0 {
			r.backoff = schedule
		}
	}
}

// WithRetryHook registers a callback fired on every retried write attempt.
// Used by main to feed the store_write_retries counter.
func WithRetryHook(fn func()) RetryOption {
	return func(r *Retryable) {
		if fn != nil {
			r.onRetry = fn
		}
	}
}

func NewRetryable(inner Store, logger *zap.Logger, opts ...RetryOption) *Retryable {
	r := &Retryable{
		inner:   inner,
		backoff: DefaultWriteBackoff,
		logger:  logger,
		onRetry: func() {},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Retryable) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return r.inner.Get(ctx, key)
}

// Update writes through to the backing store, retrying on failure through the
// backoff schedule. If every attempt fails the last error is returned wrapped;
// the caller must treat the whole operation as not having taken effect.
func (r *Retryable) Update(ctx context.Context, key string, value []byte) error {
	var lastErr error
	attempts := len(r.backoff) + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			r.onRetry()
			select {
			case <-time.After(r.backoff[attempt-1]):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = r.inner.Update(ctx, key, value)
		if lastErr == nil {
			if attempt > 0 {
				r.logger.Debug("store write succeeded after retry",
					zap.String("key", key), zap.Int("attempt", attempt+1))
			}
			return nil
		}

		r.logger.Warn("store write failed",
			zap.String("key", key),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", attempts),
			zap.Error(lastErr))
	}

	return fmt.Errorf("store write for %q failed after %d attempts: %w", key, attempts, lastErr)
}

func (r *Retryable) Keys(ctx context.Context) ([]string, error) {
	return r.inner.Keys(ctx)
}

// compile-time check that Retryable implements Store
var _ Store = (*Retryable)(nil)
