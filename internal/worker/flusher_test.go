package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/telemetryhub/event-buffer/internal/domain"
	"github.com/telemetryhub/event-buffer/internal/identity"
	"github.com/telemetryhub/event-buffer/internal/lock"
	"github.com/telemetryhub/event-buffer/internal/queue"
	"github.com/telemetryhub/event-buffer/internal/ratelimiter"
	"github.com/telemetryhub/event-buffer/internal/store"
	"github.com/telemetryhub/event-buffer/internal/worker"
)

// fakeSink records deliveries and fails the IDs it is told to.
type fakeSink struct {
	mu        sync.Mutex
	delivered []string
	failIDs   map[string]error
}

func (s *fakeSink) Deliver(_ context.Context, ev domain.QueuedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failIDs[ev.ID]; ok {
		return err
	}
	s.delivered = append(s.delivered, ev.ID)
	return nil
}

func (s *fakeSink) deliveredIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.delivered...)
}

type harness struct {
	q     *queue.BoundedEventQueue
	ms    *store.MemoryStore
	snk   *fakeSink
	flush *worker.Flusher
}

func newHarness(t *testing.T, maxAttempts int, opts ...worker.FlusherOption) *harness {
	t.Helper()
	ms := store.NewMemoryStore()
	q := queue.New(ms, "telemetry.eventQueue", zap.NewNop())

	lk, err := lock.New(ms, "telemetry.queueLock", identity.New(), lock.Options{
		Enabled:        true,
		Mode:           lock.ModeCompete,
		Duration:       time.Second,
		CheckInterval:  5 * time.Millisecond,
		AcquireTimeout: 30 * time.Millisecond,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("lock.New: %v", err)
	}

	snk := &fakeSink{failIDs: map[string]error{}}
	f := worker.NewFlusher(q, lk, snk, ratelimiter.New(1000),
		time.Minute, maxAttempts, zap.NewNop(), opts...)
	return &harness{q: q, ms: ms, snk: snk, flush: f}
}

func addEvent(t *testing.T, q *queue.BoundedEventQueue, id string, ts int64) {
	t.Helper()
	err := q.Add(context.Background(), domain.QueuedEvent{
		ID:        id,
		Timestamp: ts,
		Payload:   json.RawMessage(`{"metric":"cpu"}`),
	})
	if err != nil {
		t.Fatalf("add %s: %v", id, err)
	}
}

func TestFlusher_DeliversOldestFirstAndDrains(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()

	addEvent(t, h.q, "b", 200)
	addEvent(t, h.q, "a", 100)
	addEvent(t, h.q, "c", 300)

	h.flush.FlushOnce(ctx)

	got := h.snk.deliveredIDs()
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("delivered %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delivery order %v, want %v", got, want)
		}
	}

	if count, _ := h.q.Count(ctx); count != 0 {
		t.Fatalf("expected drained queue, %d events remain", count)
	}
}

func TestFlusher_FailureRecordsRetryMetadata(t *testing.T) {
	fixed := time.UnixMilli(5_000_000)
	h := newHarness(t, 5, worker.WithNowFunc(func() time.Time { return fixed }))
	ctx := context.Background()

	addEvent(t, h.q, "good", 100)
	addEvent(t, h.q, "bad", 200)
	h.snk.failIDs["bad"] = errors.New("collector returned 503")

	h.flush.FlushOnce(ctx)

	events, _ := h.q.GetAll(ctx)
	if len(events) != 1 || events[0].ID != "bad" {
		t.Fatalf("expected only the failed event to remain, got %+v", events)
	}
	ev := events[0]
	if ev.RetryCount != 1 {
		t.Fatalf("retryCount=%d, want 1", ev.RetryCount)
	}
	if ev.LastAttemptTimestamp != 5_000_000 {
		t.Fatalf("lastAttemptTimestamp=%d, want 5000000", ev.LastAttemptTimestamp)
	}
	if ev.LastError != "collector returned 503" {
		t.Fatalf("lastError=%q", ev.LastError)
	}
}

func TestFlusher_DropsEventAfterMaxAttempts(t *testing.T) {
	dropped := 0
	retried := 0
	h := newHarness(t, 2, worker.WithFlushHooks(worker.FlushHooks{
		OnRetried: func() { retried++ },
		OnDropped: func() { dropped++ },
	}))
	ctx := context.Background()

	addEvent(t, h.q, "doomed", 100)
	h.snk.failIDs["doomed"] = errors.New("permanent failure")

	// First cycle: retryCount climbs to 1, event survives.
	h.flush.FlushOnce(ctx)
	if count, _ := h.q.Count(ctx); count != 1 {
		t.Fatalf("event dropped too early, count=%d", count)
	}
	if retried != 1 {
		t.Fatalf("retried=%d, want 1", retried)
	}

	// Second cycle: retryCount reaches the ceiling, event is dropped.
	h.flush.FlushOnce(ctx)
	if count, _ := h.q.Count(ctx); count != 0 {
		t.Fatalf("exhausted event still buffered, count=%d", count)
	}
	if dropped != 1 {
		t.Fatalf("dropped=%d, want 1", dropped)
	}
}

func TestFlusher_SkipsCycleWhenLockContended(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()

	addEvent(t, h.q, "e1", 100)

	// Another instance already holds the flush lock.
	rival, err := lock.New(h.ms, "telemetry.queueLock", identity.New(), lock.Options{
		Enabled:        true,
		Mode:           lock.ModeCompete,
		Duration:       time.Minute,
		CheckInterval:  5 * time.Millisecond,
		AcquireTimeout: 30 * time.Millisecond,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("lock.New: %v", err)
	}
	if !rival.Acquire(ctx) {
		t.Fatal("rival could not seed the lock")
	}

	h.flush.FlushOnce(ctx)

	if got := h.snk.deliveredIDs(); len(got) != 0 {
		t.Fatalf("contended cycle still delivered: %v", got)
	}
	if count, _ := h.q.Count(ctx); count != 1 {
		t.Fatalf("contended cycle mutated the queue, count=%d", count)
	}
	if !rival.HoldsLock(ctx) {
		t.Fatal("contended cycle stole or cleared the rival's lock")
	}
}

func TestFlusher_ReleasesLockAfterCycle(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()

	addEvent(t, h.q, "e1", 100)
	h.flush.FlushOnce(ctx)

	// The slot must be free for the next competitor immediately.
	rival, err := lock.New(h.ms, "telemetry.queueLock", identity.New(), lock.Options{
		Enabled:        true,
		Mode:           lock.ModeCompete,
		Duration:       time.Second,
		CheckInterval:  5 * time.Millisecond,
		AcquireTimeout: 30 * time.Millisecond,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("lock.New: %v", err)
	}
	if !rival.Acquire(ctx) {
		t.Fatal("lock not released after flush cycle")
	}
}
