package prefstore

import (
	"context"
	"sort"
	"sync"
)

// Memory implements Driver with thread-safe in-memory storage.
// Values do not survive the process.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an in-memory Driver instance.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	if v == nil {
		return []byte{}, nil
	}
	return clone(v), nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	v := clone(value)
	if v == nil {
		v = []byte{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = v
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok, nil
}

// Keys returns all keys matching the prefix and pattern, sorted.
func (m *Memory) Keys(ctx context.Context, prefix, pattern string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []string
	for key := range m.data {
		ok, err := matchKey(key, prefix, pattern)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, key)
		}
	}
	sort.Strings(result)
	return result, nil
}

// Clear removes all keys with the given prefix.
func (m *Memory) Clear(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.data {
		if ok, _ := matchKey(key, prefix, ""); ok {
			delete(m.data, key)
		}
	}
	return nil
}
