package store

import (
	"context"
	"sync"
)

// MemoryKV is an in-process backend used in tests and for throwaway demos.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryKV() *MemoryKV { return &MemoryKV{data: map[string]string{}} }

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Apply(_ context.Context, puts map[string]string, dels []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range puts {
		m.data[k] = v
	}
	for _, k := range dels {
		delete(m.data, k)
	}
	return nil
}

func (m *MemoryKV) Close() error { return nil }
