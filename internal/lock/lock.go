package lock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/telemetryhub/event-buffer/internal/domain"
	"github.com/telemetryhub/event-buffer/internal/identity"
	"github.com/telemetryhub/event-buffer/internal/store"
)

// Options is the lock's configuration surface.
type Options struct {
	// Enabled turns cross-instance coordination on. When false — the common
	// single-instance case — Acquire grants immediately with zero store
	// traffic.
	Enabled bool
	// Mode selects the coordination strategy. Only "compete" is implemented;
	// the field is reserved for future strategies.
	Mode string
	// Duration is the TTL declared on each acquisition. A crashed holder's
	// record is reclaimable by any instance once it lapses.
	Duration time.Duration
	// CheckInterval is the poll interval while another live holder exists.
	CheckInterval time.Duration
	// AcquireTimeout is the give-up horizon for a single Acquire call.
	AcquireTimeout time.Duration
}

const ModeCompete = "compete"

func DefaultOptions() Options {
	return Options{
		Enabled:        true,
		Mode:           ModeCompete,
		Duration:       30 * time.Second,
		CheckInterval:  500 * time.Millisecond,
		AcquireTimeout: 5 * time.Second,
	}
}

// Hooks carries the metric callbacks injected by main.
type Hooks struct {
	OnAcquired  func()
	OnContended func()
}

// CrossInstanceLock is an advisory, TTL-based mutual exclusion convention
// over a single slot in the shared store. The store offers no atomic
// compare-and-swap, so acquisition is last-writer-wins inside a narrow race
// window: two instances reading an expired record in the same poll tick can
// both believe they won. That race is accepted — the lock coordinates
// cooperating instances (avoiding duplicate flush cycles), it is not a
// correctness-critical mutex. The TTL guarantees a killed holder can never
// wedge the slot.
type CrossInstanceLock struct {
	store  store.Store
	key    string
	self   *identity.Identity
	opts   Options
	logger *zap.Logger
	nowFn  func() time.Time
	hooks  Hooks
}

type Option func(*CrossInstanceLock)

// WithNowFunc overrides the clock, for deterministic expiry tests.
func WithNowFunc(now func() time.Time) Option {
	return func(l *CrossInstanceLock) {
		if now != nil {
			l.nowFn = now
		}
	}
}

func WithHooks(h Hooks) Option {
	return func(l *CrossInstanceLock) {
		if h.OnAcquired != nil {
			l.hooks.OnAcquired = h.OnAcquired
		}
		if h.OnContended != nil {
			l.hooks.OnContended = h.OnContended
		}
	}
}

// New validates the options and builds the lock. The store is expected to be
// retry-wrapped already.
func New(st store.Store, key string, self *identity.Identity, opts Options, logger *zap.Logger, extra ...Option) (*CrossInstanceLock, error) {
	if opts.Mode == "" {
		opts.Mode = ModeCompete
	}
	if opts.Mode != ModeCompete {
		return nil, fmt.Errorf("%w (got %q)", domain.ErrUnsupportedLockMode, opts.Mode)
	}

	def := DefaultOptions()
	if opts.Duration <= 0 {
		opts.Duration = def.Duration
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = def.CheckInterval
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = def.AcquireTimeout
	}

	l := &CrossInstanceLock{
		store:  st,
		key:    key,
		self:   self,
		opts:   opts,
		logger: logger,
		nowFn:  time.Now,
		hooks: Hooks{
			OnAcquired:  func() {},
			OnContended: func() {},
		},
	}
	for _, opt := range extra {
		opt(l)
	}
	return l, nil
}

// Acquire polls until the slot is free (absent, expired, or already ours) and
// writes this instance's record, or until the acquire timeout elapses.
// It returns true the moment our write lands and false only on timeout or
// context cancellation — contention is an expected outcome, not an error.
func (l *CrossInstanceLock) Acquire(ctx context.Context) bool {
	if !l.opts.Enabled {
		return true
	}

	deadline := l.nowFn().Add(l.opts.AcquireTimeout)
	for {
		if l.tryAcquire(ctx) {
			l.hooks.OnAcquired()
			return true
		}
		l.hooks.OnContended()

		if !l.nowFn().Add(l.opts.CheckInterval).Before(deadline) {
			l.logger.Debug("lock acquire timed out",
				zap.String("key", l.key),
				zap.Duration("timeout", l.opts.AcquireTimeout))
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(l.opts.CheckInterval):
		}
	}
}

// tryAcquire performs one read-then-write attempt. Reclaiming an expired or
// undecodable record and refreshing our own live record both count as free.
func (l *CrossInstanceLock) tryAcquire(ctx context.Context) bool {
	now := l.nowFn()

	rec, exists := l.readRecord(ctx)
	if exists && !rec.Expired(now) && rec.HolderID != l.self.InstanceID() {
		return false
	}

	fresh := domain.LockRecord{
		HolderID:   l.self.InstanceID(),
		Hostname:   l.self.Hostname(),
		AcquiredAt: domain.NowMillis(now),
		DurationMs: l.opts.Duration.Milliseconds(),
	}
	data, err := json.Marshal(fresh)
	if err != nil {
		l.logger.Error("marshal lock record", zap.Error(err))
		return false
	}
	if err := l.store.Update(ctx, l.key, data); err != nil {
		l.logger.Warn("lock write failed", zap.String("key", l.key), zap.Error(err))
		return false
	}

	if exists && rec.HolderID != l.self.InstanceID() {
		l.logger.Info("reclaimed expired lock",
			zap.String("previous_holder", rec.HolderID),
			zap.Int64("age_ms", domain.NowMillis(now)-rec.AcquiredAt))
	}
	return true
}

// Release clears the slot if this instance still holds a live lock.
// Releasing a lock held by someone else, an expired lock, or no lock at all
// is a no-op.
func (l *CrossInstanceLock) Release(ctx context.Context) error {
	if !l.opts.Enabled {
		return nil
	}
	if !l.HoldsLock(ctx) {
		return nil
	}
	if err := l.store.Update(ctx, l.key, nil); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// HoldsLock reports whether this instance's own record is in the slot and
// still live. An expired record reports false even if we wrote it: expiry is
// a passive, read-time computation.
func (l *CrossInstanceLock) HoldsLock(ctx context.Context) bool {
	if !l.opts.Enabled {
		return true
	}
	rec, exists := l.readRecord(ctx)
	if !exists {
		return false
	}
	return rec.HolderID == l.self.InstanceID() && !rec.Expired(l.nowFn())
}

// Stats returns the slot's diagnostic snapshot. HasLock reports whether any
// record exists, regardless of whose it is or whether it has expired.
func (l *CrossInstanceLock) Stats(ctx context.Context) domain.LockStats {
	rec, exists := l.readRecord(ctx)
	if !exists {
		return domain.LockStats{}
	}

	now := l.nowFn()
	return domain.LockStats{
		HasLock:    true,
		LockHolder: fmt.Sprintf("%s/%s", rec.Hostname, rec.HolderID),
		LockAgeMs:  domain.NowMillis(now) - rec.AcquiredAt,
		IsExpired:  rec.Expired(now),
	}
}

// readRecord fetches and decodes the current record. Undecodable data is
// treated as absent so a corrupt slot heals on the next acquisition.
func (l *CrossInstanceLock) readRecord(ctx context.Context) (domain.LockRecord, bool) {
	data, ok, err := l.store.Get(ctx, l.key)
	if err != nil {
		l.logger.Warn("lock read failed", zap.String("key", l.key), zap.Error(err))
		return domain.LockRecord{}, false
	}
	if !ok || len(data) == 0 {
		return domain.LockRecord{}, false
	}

	var rec domain.LockRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		l.logger.Warn("lock slot held undecodable data, treating as absent", zap.Error(err))
		return domain.LockRecord{}, false
	}
	return rec, true
}
