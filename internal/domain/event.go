package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// MaxQueueBytes is the hard ceiling on the serialized size of the whole
// queued-event collection, measured as the UTF-8 byte length of the JSON
// array. 1 MiB.
const MaxQueueBytes = 1 << 20

// QueuedEvent is a telemetry event parked in the shared buffer until it can
// be delivered. The payload is opaque to the queue; retry metadata is written
// back by the flusher between delivery attempts.
type QueuedEvent struct {
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"` // epoch milliseconds; defines FIFO order
	Payload   json.RawMessage `json:"payload"`

	RetryCount           int    `json:"retryCount"`
	LastAttemptTimestamp int64  `json:"lastAttemptTimestamp,omitempty"`
	LastError            string `json:"lastError,omitempty"`
}

// SerializedSize returns the byte length of the event's JSON encoding.
func (e QueuedEvent) SerializedSize() (int, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// SortEvents orders events ascending by timestamp. The sort is stable so
// that events sharing a timestamp keep a deterministic relative order.
func SortEvents(events []QueuedEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})
}

// LockRecord is the advisory lock value held in the shared store's lock slot.
// There is at most one record per slot; last writer wins, no atomicity is
// assumed from the store.
type LockRecord struct {
	HolderID   string `json:"holderId"`
	Hostname   string `json:"hostname"`
	AcquiredAt int64  `json:"acquiredAt"` // epoch milliseconds
	DurationMs int64  `json:"durationMs"` // TTL declared by the holder
}

// Expired reports whether the record's TTL has lapsed at the given instant.
// Expiry is a read-time computation; nothing actively evicts the record.
func (r LockRecord) Expired(now time.Time) bool {
	return now.UnixMilli() > r.AcquiredAt+r.DurationMs
}

// Age returns how long ago the record was written.
func (r LockRecord) Age(now time.Time) time.Duration {
	return time.Duration(now.UnixMilli()-r.AcquiredAt) * time.Millisecond
}

// StorageStats is the queue's usage snapshot.
type StorageStats struct {
	EventCount         int     `json:"eventCount"`
	SizeInBytes        int     `json:"sizeInBytes"`
	SizeInMB           float64 `json:"sizeInMB"`
	UtilizationPercent float64 `json:"utilizationPercent"`
	OldestEventAgeMs   int64   `json:"oldestEventAge"` // 0 when the queue is empty
}

// LockStats is the lock slot's diagnostic snapshot. HasLock reports whether
// any record exists, regardless of holder or expiry.
type LockStats struct {
	HasLock    bool   `json:"hasLock"`
	LockHolder string `json:"lockHolder,omitempty"`
	LockAgeMs  int64  `json:"lockAge,omitempty"`
	IsExpired  bool   `json:"isExpired"`
}

// CreateEventRequest is the inbound payload for buffering a single event.
// ID and Timestamp are optional; the handler fills them in when absent.
type CreateEventRequest struct {
	ID        string          `json:"id,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

func (r *CreateEventRequest) Validate() error {
	if len(r.Payload) == 0 {
		return ErrEmptyPayload
	}
	if r.Timestamp < 0 {
		return ErrInvalidTimestamp
	}
	return nil
}

// NowMillis converts a time.Time to epoch milliseconds.
func NowMillis(t time.Time) int64 { return t.UnixMilli() }
