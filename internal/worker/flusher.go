package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/telemetryhub/event-buffer/internal/domain"
	"github.com/telemetryhub/event-buffer/internal/lock"
	"github.com/telemetryhub/event-buffer/internal/queue"
	"github.com/telemetryhub/event-buffer/internal/ratelimiter"
	"github.com/telemetryhub/event-buffer/internal/sink"
)

// FlushHooks carries the metric callback functions injected by main.
// Using a struct keeps the flusher constructor signature clean.
type FlushHooks struct {
	OnDelivered func(latency time.Duration)
	OnRetried   func()
	OnDropped   func()
}

// Flusher periodically drains the buffer to the downstream sink.
//
// A drain is a multi-step read/deliver/remove sequence, so each cycle is
// guarded by the cross-instance lock: if another instance is already
// flushing, this tick is skipped rather than delivering the same events
// twice. Failed deliveries have their retry metadata written back through
// the queue; an event is dropped once it exhausts maxAttempts.
type Flusher struct {
	q           *queue.BoundedEventQueue
	lk          *lock.CrossInstanceLock
	snk         sink.Sink
	limiter     *ratelimiter.DeliveryLimiter
	interval    time.Duration
	maxAttempts int
	logger      *zap.Logger
	nowFn       func() time.Time
	hooks       FlushHooks
}

type FlusherOption func(*Flusher)

// WithNowFunc overrides the clock used for retry metadata timestamps.
func WithNowFunc(now func() time.Time) FlusherOption {
	return func(f *Flusher) {
		if now != nil {
			f.nowFn = now
		}
	}
}

func WithFlushHooks(h FlushHooks) FlusherOption {
	return func(f *Flusher) {
		if h.OnDelivered != nil {
			f.hooks.OnDelivered = h.OnDelivered
		}
		if h.OnRetried != nil {
			f.hooks.OnRetried = h.OnRetried
		}
		if h.OnDropped != nil {
			f.hooks.OnDropped = h.OnDropped
		}
	}
}

func NewFlusher(
	q *queue.BoundedEventQueue,
	lk *lock.CrossInstanceLock,
	snk sink.Sink,
	limiter *ratelimiter.DeliveryLimiter,
	interval time.Duration,
	maxAttempts int,
	logger *zap.Logger,
	opts ...FlusherOption,
) *Flusher {
	f := &Flusher{
		q:           q,
		lk:          lk,
		snk:         snk,
		limiter:     limiter,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger,
		nowFn:       time.Now,
		hooks: FlushHooks{
			OnDelivered: func(time.Duration) {},
			OnRetried:   func() {},
			OnDropped:   func() {},
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run ticks every interval and drains the buffer.
// Stops cleanly when ctx is cancelled.
func (f *Flusher) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.logger.Info("flusher started", zap.Duration("interval", f.interval))

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("flusher stopping")
			return
		case <-ticker.C:
			f.FlushOnce(ctx)
		}
	}
}

// FlushOnce performs a single lock-guarded drain cycle. Exported so the HTTP
// layer (and tests) can trigger a flush outside the ticker.
func (f *Flusher) FlushOnce(ctx context.Context) {
	if !f.lk.Acquire(ctx) {
		f.logger.Debug("flush skipped: another instance holds the lock")
		return
	}
	defer func() {
		if err := f.lk.Release(ctx); err != nil {
			f.logger.Warn("lock release failed", zap.Error(err))
		}
	}()

	events, err := f.q.GetAll(ctx)
	if err != nil {
		f.logger.Error("flush read failed", zap.Error(err))
		return
	}
	if len(events) == 0 {
		return
	}

	delivered := 0
	for _, ev := range events {
		if err := f.limiter.Wait(ctx); err != nil {
			// ctx cancelled while waiting — shutting down.
			return
		}

		start := time.Now()
		err := f.snk.Deliver(ctx, ev)
		if err != nil {
			f.handleFailure(ctx, ev, err)
			continue
		}

		if _, err := f.q.Remove(ctx, ev.ID); err != nil {
			f.logger.Error("failed to remove delivered event",
				zap.String("id", ev.ID), zap.Error(err))
			continue
		}
		delivered++
		f.hooks.OnDelivered(time.Since(start))
	}

	if delivered > 0 {
		f.logger.Info("flushed buffered events",
			zap.Int("delivered", delivered),
			zap.Int("remaining", len(events)-delivered))
	}
}

// handleFailure records retry metadata on the event, or drops it once the
// attempt ceiling is exhausted. A metadata update that would exceed the
// queue's byte ceiling is skipped silently: the event stays as-is and the
// next cycle retries it.
func (f *Flusher) handleFailure(ctx context.Context, ev domain.QueuedEvent, sendErr error) {
	ev.RetryCount++
	ev.LastAttemptTimestamp = domain.NowMillis(f.nowFn())
	ev.LastError = sendErr.Error()

	log := f.logger.With(zap.String("id", ev.ID), zap.Int("retry_count", ev.RetryCount))

	if ev.RetryCount >= f.maxAttempts {
		log.Warn("delivery attempts exhausted, dropping event", zap.Error(sendErr))
		if _, err := f.q.Remove(ctx, ev.ID); err != nil {
			log.Error("failed to drop exhausted event", zap.Error(err))
			return
		}
		f.hooks.OnDropped()
		return
	}

	log.Warn("delivery failed, recording retry metadata", zap.Error(sendErr))
	ok, err := f.q.Update(ctx, ev)
	if err != nil {
		log.Error("failed to record retry metadata", zap.Error(err))
		return
	}
	if !ok {
		log.Debug("retry metadata not recorded: event gone or update would exceed capacity")
		return
	}
	f.hooks.OnRetried()
}
