// Package oxia implements the metadata.Store interface using Oxia.
package oxia

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	oxiaclient "github.com/oxia-db/oxia/oxia"

	"github.com/strato-io/strato/internal/metadata"
)

// Config configures the Oxia metadata store.
type Config struct {
	// ServiceAddress is the Oxia service endpoint (e.g., "localhost:6648").
	ServiceAddress string

	// Namespace is the Oxia namespace to use (e.g., "strato").
	// All keys are scoped to this namespace.
	Namespace string

	// RequestTimeout is the timeout for individual requests.
	// Default: 30 seconds.
	RequestTimeout time.Duration
}

// Store implements metadata.Store using Oxia.
type Store struct {
	client oxiaclient.SyncClient
	config Config

	mu     sync.RWMutex
	closed bool
}

// New creates a new Oxia metadata store.
func New(cfg Config) (*Store, error) {
	if cfg.ServiceAddress == "" {
		return nil, errors.New("oxia: service address is required")
	}
	if cfg.Namespace == "" {
		return nil, errors.New("oxia: namespace is required")
	}

	opts := []oxiaclient.ClientOption{
		oxiaclient.WithNamespace(cfg.Namespace),
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, oxiaclient.WithRequestTimeout(cfg.RequestTimeout))
	}

	client, err := oxiaclient.NewSyncClient(cfg.ServiceAddress, opts...)
	if err != nil {
		return nil, fmt.Errorf("oxia: failed to create client: %w", err)
	}

	return &Store{client: client, config: cfg}, nil
}

// Oxia versions start at 0, but the metadata interface uses 0 to mean
// "key never written"; shift by one in each direction.
func toMetadataVersion(oxiaVersion int64) metadata.Version {
	return metadata.Version(oxiaVersion + 1)
}

func toOxiaVersion(v metadata.Version) int64 {
	return int64(v - 1)
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return metadata.ErrStoreClosed
	}
	return nil
}

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) (metadata.GetResult, error) {
	if err := s.checkOpen(); err != nil {
		return metadata.GetResult{}, err
	}

	_, value, version, err := s.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, oxiaclient.ErrKeyNotFound) {
			return metadata.GetResult{Exists: false}, nil
		}
		return metadata.GetResult{}, fmt.Errorf("oxia: get failed: %w", err)
	}

	return metadata.GetResult{
		Value:   value,
		Version: toMetadataVersion(version.VersionId),
		Exists:  true,
	}, nil
}

// Put stores a value with optional version checking for CAS operations.
func (s *Store) Put(ctx context.Context, key string, value []byte, opts ...metadata.PutOption) (metadata.Version, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var oxiaOpts []oxiaclient.PutOption
	if expected := metadata.ExtractExpectedVersion(opts); expected != nil {
		if *expected == 0 {
			oxiaOpts = append(oxiaOpts, oxiaclient.ExpectedRecordNotExists())
		} else {
			oxiaOpts = append(oxiaOpts, oxiaclient.ExpectedVersionId(toOxiaVersion(*expected)))
		}
	}

	_, version, err := s.client.Put(ctx, key, value, oxiaOpts...)
	if err != nil {
		if errors.Is(err, oxiaclient.ErrUnexpectedVersionId) {
			return 0, metadata.ErrVersionMismatch
		}
		return 0, fmt.Errorf("oxia: put failed: %w", err)
	}

	return toMetadataVersion(version.VersionId), nil
}

// Delete removes a key. Deleting a missing key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	if err := s.client.Delete(ctx, key); err != nil {
		if errors.Is(err, oxiaclient.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("oxia: delete failed: %w", err)
	}
	return nil
}

// List returns all keys with the given prefix in lexicographic order.
func (s *Store) List(ctx context.Context, prefix string) ([]metadata.KV, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	endKey := prefixEnd(prefix)
	if len(prefix) > 0 && prefix[len(prefix)-1] == '/' {
		// Oxia sorts '/' specially; a doubled slash end key scans all
		// direct children of a hierarchical prefix.
		endKey = prefix + "/"
	}

	var kvs []metadata.KV
	for result := range s.client.RangeScan(ctx, prefix, endKey) {
		if result.Err != nil {
			return nil, fmt.Errorf("oxia: list failed: %w", result.Err)
		}
		kvs = append(kvs, metadata.KV{
			Key:     result.Key,
			Value:   result.Value,
			Version: toMetadataVersion(result.Version.VersionId),
		})
	}
	return kvs, nil
}

// Close shuts down the underlying client.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.client.Close()
}

// prefixEnd returns the smallest key greater than every key with the
// given prefix, or "" when no such key exists.
func prefixEnd(prefix string) string {
	if prefix == "" {
		return ""
	}

	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xFF {
			b[i]++
			return string(b[:i+1])
		}
	}
	return ""
}

var _ metadata.Store = (*Store)(nil)
