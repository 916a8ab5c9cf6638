// Package metadata defines the Store interface used for zone registry and
// instance index persistence. The default implementation uses Oxia; a mock
// is provided for tests.
package metadata

import (
	"context"
	"errors"
)

// Common errors returned by Store operations.
var (
	// ErrKeyNotFound is returned when a key does not exist.
	ErrKeyNotFound = errors.New("metadata: key not found")

	// ErrVersionMismatch is returned when the expected version does not
	// match the current version during a CAS (compare-and-set) operation.
	ErrVersionMismatch = errors.New("metadata: version mismatch")

	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("metadata: store closed")
)

// Version represents a key's version in the store. Versions are
// monotonically increasing and usable for optimistic concurrency control.
// A zero version means the key has never been written.
type Version int64

// KV is a key-value pair with its version.
type KV struct {
	Key     string
	Value   []byte
	Version Version
}

// GetResult is the result of a Get operation.
type GetResult struct {
	Value   []byte
	Version Version
	Exists  bool
}

// PutOption configures a Put operation.
type PutOption func(*putOptions)

type putOptions struct {
	expectedVersion *Version
}

// WithExpectedVersion makes the Put a CAS operation: it fails with
// ErrVersionMismatch unless the key's current version equals v.
// Expected version 0 means the key must not exist yet.
func WithExpectedVersion(v Version) PutOption {
	return func(o *putOptions) {
		o.expectedVersion = &v
	}
}

// ExtractExpectedVersion returns the expected version from a set of
// options, or nil when no version constraint was supplied.
func ExtractExpectedVersion(opts []PutOption) *Version {
	var o putOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o.expectedVersion
}

// Store is the persistence interface for zone and instance metadata.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves a value by key. A missing key is not an error;
	// it is reported through GetResult.Exists.
	Get(ctx context.Context, key string) (GetResult, error)

	// Put stores a value, optionally guarded by an expected version.
	Put(ctx context.Context, key string, value []byte, opts ...PutOption) (Version, error)

	// Delete removes a key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error

	// List returns all key-value pairs whose key starts with prefix,
	// in lexicographic key order.
	List(ctx context.Context, prefix string) ([]KV, error)

	// Close releases resources held by the store.
	Close() error
}
