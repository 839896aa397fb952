package store

import (
	"sort"
	"strings"
	"sync"
)

// memoryKV is a thread-safe map backend.
type memoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates a Store that lives only as long as the process.
// Useful for unit tests and the default serve mode.
func NewMemoryStore() Store {
	return newRunStore(&memoryKV{data: make(map[string][]byte)})
}

func (m *memoryKV) insert(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.data[key]; exists {
		return ErrAlreadyExists
	}
	m.data[key] = value
	return nil
}

func (m *memoryKV) replace(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.data[key]; !exists {
		return ErrNotFound
	}
	m.data[key] = value
	return nil
}

func (m *memoryKV) get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return raw, nil
}

func (m *memoryKV) remove(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.data, key)
	return raw, nil
}

// scan visits matching keys in order, like a bolt cursor.
func (m *memoryKV) scan(prefix string, fn func(key string, value []byte) error) error {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	values := make([][]byte, len(keys))
	sort.Strings(keys)
	for i, k := range keys {
		values[i] = m.data[k]
	}
	m.mu.RUnlock()

	for i, k := range keys {
		if err := fn(k, values[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryKV) close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string][]byte)
	return nil
}
