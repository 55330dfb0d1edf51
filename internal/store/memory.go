package store

import (
	"context"
	"errors"
	"sync"
)

var errTransientWrite = errors.New("transient write failure")

// MemoryStore is a mutex-guarded in-memory Store. It is the default backend
// for a single-process deployment and the fake used by unit tests.
// No mock-generation library needed: failure paths are simulated through the
// error overrides below.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string][]byte

	// Optional error overrides — set in tests to simulate failure paths.
	// FailNextUpdates makes the next N Update calls return UpdateErr
	// (or a generic error if UpdateErr is nil) before succeeding again,
	// which is how transient write failures are exercised.
	GetErr          error
	UpdateErr       error
	FailNextUpdates int

	updateCalls int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if m.GetErr != nil {
		return nil, false, m.GetErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.slots[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true, nil
}

func (m *MemoryStore) Update(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updateCalls++
	if m.FailNextUpdates > 0 {
		m.FailNextUpdates--
		if m.UpdateErr != nil {
			return m.UpdateErr
		}
		return errTransientWrite
	}
	if m.UpdateErr != nil {
		return m.UpdateErr
	}

	if value == nil {
		delete(m.slots, key)
		return nil
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m.slots[key] = cp
	return nil
}

func (m *MemoryStore) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.slots))
	for k := range m.slots {
		keys = append(keys, k)
	}
	return keys, nil
}

// UpdateCalls returns how many Update calls the store has seen, including
// the ones that were made to fail. Used by retry tests.
func (m *MemoryStore) UpdateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateCalls
}
