package store

import "context"

// Store is the backing key/value contract the buffer is built atop.
// It mirrors what the host environment actually provides: a non-transactional
// get/update pair with no atomic compare-and-swap, no watch, and no
// transactions. Both calls may fail transiently and may take arbitrary
// wall-clock time; other processes may mutate a slot between a Get and the
// Update that follows it.
//
// Update with a nil value clears the slot, so a later Get reports absence.
// Keys exists for diagnostics only.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Update(ctx context.Context, key string, value []byte) error
	Keys(ctx context.Context) ([]string, error)
}
