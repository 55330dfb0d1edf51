package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	// ErrEventTooLarge is returned by Add when a single event's own JSON
	// encoding already exceeds MaxQueueBytes. The message text is part of
	// the queue's contract with callers.
	ErrEventTooLarge = errors.New("Event too large to store in queue")

	ErrNotFound            = errors.New("event not found")
	ErrEmptyPayload        = errors.New("payload must not be empty")
	ErrInvalidTimestamp    = errors.New("timestamp must be a non-negative epoch-milliseconds value")
	ErrUnsupportedLockMode = errors.New("unsupported lock mode: only \"compete\" is implemented")
	ErrUnknownBackend      = errors.New("unknown store backend: must be memory, postgres, or dynamodb")
)
