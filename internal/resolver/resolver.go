// Package resolver maps global instance tokens to zone-local handles.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/strato-io/strato/internal/metadata"
	"github.com/strato-io/strato/internal/metadata/keys"
)

// ErrNotFound is returned when a token has no local instance.
var ErrNotFound = errors.New("resolver: instance not found")

// Resolver resolves a global token to the local numeric handle for the
// instance it names. A miss is reported with ErrNotFound; any other
// error means the lookup itself failed.
type Resolver interface {
	Resolve(ctx context.Context, token string) (int64, error)
}

// tokenRecord is the stored shape of a token index entry.
type tokenRecord struct {
	Handle int64 `json:"handle"`
}

// DefaultCacheSize bounds the token cache of a StoreResolver.
const DefaultCacheSize = 4096

// StoreResolver resolves tokens against the local instance index in the
// metadata store, with a read-through LRU cache. Only successful
// resolutions are cached: a token that misses today may be created
// tomorrow, and instance handles never change once assigned.
type StoreResolver struct {
	store metadata.Store
	cache *lru.Cache[string, int64]
}

// NewStoreResolver creates a resolver backed by the given store.
func NewStoreResolver(store metadata.Store) (*StoreResolver, error) {
	cache, err := lru.New[string, int64](DefaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("resolver: create cache: %w", err)
	}
	return &StoreResolver{store: store, cache: cache}, nil
}

// Resolve implements Resolver.
func (r *StoreResolver) Resolve(ctx context.Context, token string) (int64, error) {
	if handle, ok := r.cache.Get(token); ok {
		return handle, nil
	}

	res, err := r.store.Get(ctx, keys.InstanceTokenKey(token))
	if err != nil {
		return 0, fmt.Errorf("resolver: lookup %s: %w", token, err)
	}
	if !res.Exists {
		return 0, ErrNotFound
	}

	var record tokenRecord
	if err := json.Unmarshal(res.Value, &record); err != nil {
		return 0, fmt.Errorf("resolver: decode index entry for %s: %w", token, err)
	}

	r.cache.Add(token, record.Handle)
	return record.Handle, nil
}

var _ Resolver = (*StoreResolver)(nil)

// Mock is a map-backed Resolver for tests.
type Mock struct {
	Handles map[string]int64
	// Err, when set, is returned for every lookup.
	Err error
	// Calls counts Resolve invocations.
	Calls int
}

// NewMock creates an empty mock resolver.
func NewMock() *Mock {
	return &Mock{Handles: make(map[string]int64)}
}

// Resolve implements Resolver.
func (m *Mock) Resolve(_ context.Context, token string) (int64, error) {
	m.Calls++
	if m.Err != nil {
		return 0, m.Err
	}
	handle, ok := m.Handles[token]
	if !ok {
		return 0, ErrNotFound
	}
	return handle, nil
}

var _ Resolver = (*Mock)(nil)
