package domain_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/telemetryhub/event-buffer/internal/domain"
)

func TestSortEvents_AscendingByTimestamp(t *testing.T) {
	events := []domain.QueuedEvent{
		{ID: "c", Timestamp: 300},
		{ID: "a", Timestamp: 100},
		{ID: "b", Timestamp: 200},
	}
	domain.SortEvents(events)

	for i, want := range []string{"a", "b", "c"} {
		if events[i].ID != want {
			t.Fatalf("position %d: expected %q, got %q", i, want, events[i].ID)
		}
	}
}

func TestSortEvents_StableOnTies(t *testing.T) {
	events := []domain.QueuedEvent{
		{ID: "first", Timestamp: 100},
		{ID: "second", Timestamp: 100},
		{ID: "third", Timestamp: 100},
	}
	domain.SortEvents(events)

	for i, want := range []string{"first", "second", "third"} {
		if events[i].ID != want {
			t.Fatalf("tie order broken at %d: expected %q, got %q", i, want, events[i].ID)
		}
	}
}

func TestLockRecord_ExpiryBoundary(t *testing.T) {
	rec := domain.LockRecord{AcquiredAt: 1_000, DurationMs: 500}

	// Expiry is strict: the record is live through the exact end of its TTL.
	if rec.Expired(time.UnixMilli(1_500)) {
		t.Fatal("record expired at the TTL boundary")
	}
	if !rec.Expired(time.UnixMilli(1_501)) {
		t.Fatal("record still live past its TTL")
	}
	if rec.Expired(time.UnixMilli(1_200)) {
		t.Fatal("record expired mid-TTL")
	}
}

func TestLockRecord_Age(t *testing.T) {
	rec := domain.LockRecord{AcquiredAt: 1_000}
	if got := rec.Age(time.UnixMilli(4_000)); got != 3*time.Second {
		t.Fatalf("age=%v, want 3s", got)
	}
}

func TestCreateEventRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     domain.CreateEventRequest
		wantErr error
	}{
		{
			name:    "valid",
			req:     domain.CreateEventRequest{Payload: json.RawMessage(`{"k":"v"}`)},
			wantErr: nil,
		},
		{
			name:    "empty payload",
			req:     domain.CreateEventRequest{},
			wantErr: domain.ErrEmptyPayload,
		},
		{
			name:    "negative timestamp",
			req:     domain.CreateEventRequest{Timestamp: -1, Payload: json.RawMessage(`1`)},
			wantErr: domain.ErrInvalidTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate()=%v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestQueuedEvent_SerializedSizeMatchesEncoding(t *testing.T) {
	ev := domain.QueuedEvent{
		ID:        "e1",
		Timestamp: 42,
		Payload:   json.RawMessage(`{"metric":"cpu","value":0.93}`),
	}

	size, err := ev.SerializedSize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := json.Marshal(ev)
	if size != len(b) {
		t.Fatalf("SerializedSize()=%d, marshal length=%d", size, len(b))
	}
}

func TestQueuedEvent_RetryMetadataOmittedWhenUnset(t *testing.T) {
	b, err := json.Marshal(domain.QueuedEvent{ID: "e1", Timestamp: 1, Payload: json.RawMessage(`1`)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, field := range []string{"lastAttemptTimestamp", "lastError"} {
		if strings.Contains(string(b), field) {
			t.Fatalf("unset field %q serialized: %s", field, b)
		}
	}
}
