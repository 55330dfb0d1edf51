package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/telemetryhub/event-buffer/internal/domain"
	"github.com/telemetryhub/event-buffer/internal/store"
)

// Hooks carries the metric callback functions injected by main.
// Using a struct keeps the queue metrics-agnostic.
type Hooks struct {
	OnEvict func(count int)
	OnWrite func(sizeBytes int)
}

// BoundedEventQueue is the ordered collection of buffered telemetry events,
// capped at domain.MaxQueueBytes of serialized JSON.
//
// Every operation is a read-modify-write cycle against a single slot in the
// shared store: read the full collection, compute the new collection in
// memory, write it back. No snapshot is cached between operations — other
// processes share the same slot and may have mutated it since the last read,
// so consistency is bought by always re-reading. Lost-update races between
// processes remain possible (the store has no atomic primitive); callers that
// need a multi-step sequence to be exclusive wrap it with the cross-instance
// lock.
//
// When an add pushes the collection past the byte ceiling, the
// oldest-timestamped events are evicted first until the bound holds again.
type BoundedEventQueue struct {
	store  store.Store
	key    string
	logger *zap.Logger
	nowFn  func() time.Time
	hooks  Hooks
}

type Option func(*BoundedEventQueue)

// WithNowFunc overrides the clock, for deterministic age computations in tests.
func WithNowFunc(now func() time.Time) Option {
	return func(q *BoundedEventQueue) {
		if now != nil {
			q.nowFn = now
		}
	}
}

func WithHooks(h Hooks) Option {
	return func(q *BoundedEventQueue) {
		if h.OnEvict != nil {
			q.hooks.OnEvict = h.OnEvict
		}
		if h.OnWrite != nil {
			q.hooks.OnWrite = h.OnWrite
		}
	}
}

// New creates a queue over the given store slot. The store is expected to be
// retry-wrapped already; the queue itself contains no retry logic.
func New(st store.Store, key string, logger *zap.Logger, opts ...Option) *BoundedEventQueue {
	q := &BoundedEventQueue{
		store:  st,
		key:    key,
		logger: logger,
		nowFn:  time.Now,
		hooks: Hooks{
			OnEvict: func(int) {},
			OnWrite: func(int) {},
		},
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Add appends an event and enforces the byte ceiling, evicting
// oldest-timestamped events as needed. An event whose own encoding exceeds
// the ceiling is rejected up front with domain.ErrEventTooLarge and nothing
// is read or written.
func (q *BoundedEventQueue) Add(ctx context.Context, ev domain.QueuedEvent) error {
	single, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %q: %w", ev.ID, err)
	}
	if len(single) > domain.MaxQueueBytes {
		return domain.ErrEventTooLarge
	}

	events, err := q.load(ctx)
	if err != nil {
		return err
	}

	events = append(events, ev)
	domain.SortEvents(events)

	data, err := marshalEvents(events)
	if err != nil {
		return err
	}

	evicted := 0
	for len(data) > domain.MaxQueueBytes && len(events) > 1 {
		dropped := events[0]
		events = events[1:]
		evicted++
		q.logger.Warn("queue over capacity, evicting oldest event",
			zap.String("evicted_id", dropped.ID),
			zap.Int64("evicted_timestamp", dropped.Timestamp))

		if data, err = marshalEvents(events); err != nil {
			return err
		}
	}
	// Unreachable when the single-event check above held, except for the
	// two-byte array-marker margin on a maximally-sized event.
	if len(data) > domain.MaxQueueBytes {
		return domain.ErrEventTooLarge
	}

	if err := q.store.Update(ctx, q.key, data); err != nil {
		return fmt.Errorf("add event %q: %w", ev.ID, err)
	}

	if evicted > 0 {
		q.hooks.OnEvict(evicted)
	}
	q.hooks.OnWrite(len(data))
	return nil
}

// Remove deletes the event with the given id. It reports false, without
// writing, when no such event exists — an expected outcome, not an error.
func (q *BoundedEventQueue) Remove(ctx context.Context, id string) (bool, error) {
	events, err := q.load(ctx)
	if err != nil {
		return false, err
	}

	kept := events[:0]
	for _, ev := range events {
		if ev.ID != id {
			kept = append(kept, ev)
		}
	}
	if len(kept) == len(events) {
		return false, nil
	}

	data, err := marshalEvents(kept)
	if err != nil {
		return false, err
	}
	if err := q.store.Update(ctx, q.key, data); err != nil {
		return false, fmt.Errorf("remove event %q: %w", id, err)
	}
	q.hooks.OnWrite(len(data))
	return true, nil
}

// Update replaces the stored event that shares the given event's id.
// It reports false without writing when the id is absent, or when the
// replacement would push the collection past the byte ceiling — the smaller
// stored event is preserved so recording retry metadata can never shrink the
// queue through eviction.
func (q *BoundedEventQueue) Update(ctx context.Context, ev domain.QueuedEvent) (bool, error) {
	events, err := q.load(ctx)
	if err != nil {
		return false, err
	}

	idx := -1
	for i := range events {
		if events[i].ID == ev.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	candidate := make([]domain.QueuedEvent, len(events))
	copy(candidate, events)
	candidate[idx] = ev
	domain.SortEvents(candidate)

	data, err := marshalEvents(candidate)
	if err != nil {
		return false, err
	}
	if len(data) > domain.MaxQueueBytes {
		q.logger.Warn("update rejected: would exceed queue capacity",
			zap.String("id", ev.ID), zap.Int("candidate_bytes", len(data)))
		return false, nil
	}

	if err := q.store.Update(ctx, q.key, data); err != nil {
		return false, fmt.Errorf("update event %q: %w", ev.ID, err)
	}
	q.hooks.OnWrite(len(data))
	return true, nil
}

// GetAll returns every buffered event, oldest first.
func (q *BoundedEventQueue) GetAll(ctx context.Context) ([]domain.QueuedEvent, error) {
	return q.load(ctx)
}

// Count returns the number of buffered events from a fresh read.
func (q *BoundedEventQueue) Count(ctx context.Context) (int, error) {
	events, err := q.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(events), nil
}

// Size returns the serialized byte size of the collection from a fresh read.
// An empty queue reports 2: the bytes of "[]".
func (q *BoundedEventQueue) Size(ctx context.Context) (int, error) {
	events, err := q.load(ctx)
	if err != nil {
		return 0, err
	}
	data, err := marshalEvents(events)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// Clear writes the empty collection.
func (q *BoundedEventQueue) Clear(ctx context.Context) error {
	data, err := marshalEvents(nil)
	if err != nil {
		return err
	}
	if err := q.store.Update(ctx, q.key, data); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	q.hooks.OnWrite(len(data))
	return nil
}

// Stats returns the usage snapshot served by the stats endpoint.
func (q *BoundedEventQueue) Stats(ctx context.Context) (domain.StorageStats, error) {
	events, err := q.load(ctx)
	if err != nil {
		return domain.StorageStats{}, err
	}
	data, err := marshalEvents(events)
	if err != nil {
		return domain.StorageStats{}, err
	}

	stats := domain.StorageStats{
		EventCount:         len(events),
		SizeInBytes:        len(data),
		SizeInMB:           float64(len(data)) / 1024 / 1024,
		UtilizationPercent: float64(len(data)) / domain.MaxQueueBytes * 100,
	}
	if len(events) > 0 {
		stats.OldestEventAgeMs = domain.NowMillis(q.nowFn()) - events[0].Timestamp
	}
	return stats, nil
}

// load reads and decodes the collection, sorted ascending by timestamp.
// An absent or undecodable slot yields the empty collection — never an error.
func (q *BoundedEventQueue) load(ctx context.Context) ([]domain.QueuedEvent, error) {
	data, ok, err := q.store.Get(ctx, q.key)
	if err != nil {
		return nil, fmt.Errorf("read queue: %w", err)
	}
	if !ok || len(data) == 0 {
		return []domain.QueuedEvent{}, nil
	}

	var events []domain.QueuedEvent
	if err := json.Unmarshal(data, &events); err != nil {
		q.logger.Warn("queue slot held undecodable data, treating as empty", zap.Error(err))
		return []domain.QueuedEvent{}, nil
	}
	domain.SortEvents(events)
	return events, nil
}

// marshalEvents encodes the collection, normalizing nil to the 2-byte "[]"
// so size accounting for an empty queue is exact.
func marshalEvents(events []domain.QueuedEvent) ([]byte, error) {
	if events == nil {
		events = []domain.QueuedEvent{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("marshal queue: %w", err)
	}
	return data, nil
}
