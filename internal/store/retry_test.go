package store_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/telemetryhub/event-buffer/internal/store"
)

var fastBackoff = []time.Duration{time.Millisecond, time.Millisecond}

func TestRetryable_WriteSucceedsAfterTransientFailures(t *testing.T) {
	ms := store.NewMemoryStore()
	ms.FailNextUpdates = 2

	retried := 0
	r := store.NewRetryable(ms, zap.NewNop(),
		store.WithWriteBackoff(fastBackoff),
		store.WithRetryHook(func() { retried++ }),
	)
	ctx := context.Background()

	if err := r.Update(ctx, "slot", []byte("v1")); err != nil {
		t.Fatalf("expected write to succeed on the third attempt: %v", err)
	}
	if calls := ms.UpdateCalls(); calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if retried != 2 {
		t.Fatalf("expected 2 retry hook firings, got %d", retried)
	}

	v, ok, err := r.Get(ctx, "slot")
	if err != nil || !ok {
		t.Fatalf("expected value present, ok=%v err=%v", ok, err)
	}
	if string(v) != "v1" {
		t.Fatalf("expected %q, got %q", "v1", v)
	}
}

func TestRetryable_WriteExhaustionWrapsLastError(t *testing.T) {
	cause := errors.New("connection reset")
	ms := store.NewMemoryStore()
	ms.UpdateErr = cause

	r := store.NewRetryable(ms, zap.NewNop(), store.WithWriteBackoff(fastBackoff))

	err := r.Update(context.Background(), "slot", []byte("v1"))
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause not wrapped: %v", err)
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Fatalf("expected attempt count in error, got %q", err.Error())
	}
	if calls := ms.UpdateCalls(); calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", calls)
	}
}

func TestRetryable_ContextCancellationStopsRetryLoop(t *testing.T) {
	ms := store.NewMemoryStore()
	ms.UpdateErr = errors.New("down")

	r := store.NewRetryable(ms, zap.NewNop(),
		store.WithWriteBackoff([]time.Duration{time.Hour}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Update(ctx, "slot", []byte("v1"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls := ms.UpdateCalls(); calls != 1 {
		t.Fatalf("expected a single attempt before the cancelled backoff, got %d", calls)
	}
}

func TestRetryable_ReadsPassThrough(t *testing.T) {
	ms := store.NewMemoryStore()
	r := store.NewRetryable(ms, zap.NewNop())
	ctx := context.Background()

	// Absent key: not an error at this layer.
	_, ok, err := r.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for absent key")
	}

	// Read errors are propagated, never retried.
	cause := errors.New("read timeout")
	ms.GetErr = cause
	_, _, err = r.Get(ctx, "missing")
	if !errors.Is(err, cause) {
		t.Fatalf("expected read error propagated, got %v", err)
	}
}

func TestMemoryStore_NilValueClearsSlot(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	if err := ms.Update(ctx, "slot", []byte("v1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ms.Update(ctx, "slot", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, ok, err := ms.Get(ctx, "slot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected slot cleared")
	}
	keys, _ := ms.Keys(ctx)
	if len(keys) != 0 {
		t.Fatalf("expected no keys, got %v", keys)
	}
}

func TestMemoryStore_GetReturnsACopy(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	_ = ms.Update(ctx, "slot", []byte("abc"))
	v, _, _ := ms.Get(ctx, "slot")
	v[0] = 'X'

	again, _, _ := ms.Get(ctx, "slot")
	if string(again) != "abc" {
		t.Fatalf("caller mutation leaked into the store: %q", again)
	}
}
