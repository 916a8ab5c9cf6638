package metadata

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MockStore implements Store in memory for testing.
// It is exported so that tests in other packages can use it.
type MockStore struct {
	mu      sync.RWMutex
	data    map[string]KV
	nextVer Version
	closed  bool
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		data:    make(map[string]KV),
		nextVer: 1,
	}
}

func (m *MockStore) Get(_ context.Context, key string) (GetResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return GetResult{}, ErrStoreClosed
	}
	kv, ok := m.data[key]
	if !ok {
		return GetResult{Exists: false}, nil
	}
	return GetResult{Value: kv.Value, Version: kv.Version, Exists: true}, nil
}

func (m *MockStore) Put(_ context.Context, key string, value []byte, opts ...PutOption) (Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrStoreClosed
	}

	if expected := ExtractExpectedVersion(opts); expected != nil {
		current, ok := m.data[key]
		if *expected == 0 {
			if ok {
				return 0, ErrVersionMismatch
			}
		} else if !ok || current.Version != *expected {
			return 0, ErrVersionMismatch
		}
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	ver := m.nextVer
	m.nextVer++
	m.data[key] = KV{Key: key, Value: stored, Version: ver}
	return ver, nil
}

func (m *MockStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.data, key)
	return nil
}

func (m *MockStore) List(_ context.Context, prefix string) ([]KV, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	var kvs []KV
	for key, kv := range m.data {
		if strings.HasPrefix(key, prefix) {
			kvs = append(kvs, kv)
		}
	}
	sort.Slice(kvs, func(i, j int) bool { return kvs[i].Key < kvs[j].Key })
	return kvs, nil
}

func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ Store = (*MockStore)(nil)
