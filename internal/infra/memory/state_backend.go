package memory

import (
	"context"
	"sync"
)

// StateBackend is an in-process attempt.Backend. State does not survive a
// restart, so it suits tests and single-instance demos.
type StateBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewStateBackend() *StateBackend {
	return &StateBackend{data: make(map[string][]byte)}
}

func (b *StateBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	value, ok := b.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (b *StateBackend) Set(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = append([]byte(nil), value...)
	return nil
}

func (b *StateBackend) Delete(_ context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, key := range keys {
		delete(b.data, key)
	}
	return nil
}

// Len returns the number of stored keys.
func (b *StateBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}
