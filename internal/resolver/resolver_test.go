package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/strato-io/strato/internal/metadata"
	"github.com/strato-io/strato/internal/metadata/keys"
)

type countingStore struct {
	*metadata.MockStore
	gets int
}

func (c *countingStore) Get(ctx context.Context, key string) (metadata.GetResult, error) {
	c.gets++
	return c.MockStore.Get(ctx, key)
}

func TestStoreResolverHit(t *testing.T) {
	store := metadata.NewMockStore()
	defer store.Close()
	ctx := context.Background()

	if _, err := store.Put(ctx, keys.InstanceTokenKey("tok-1"), []byte(`{"handle":42}`)); err != nil {
		t.Fatal(err)
	}

	r, err := NewStoreResolver(store)
	if err != nil {
		t.Fatal(err)
	}

	handle, err := r.Resolve(ctx, "tok-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if handle != 42 {
		t.Errorf("handle = %d, want 42", handle)
	}
}

func TestStoreResolverMiss(t *testing.T) {
	store := metadata.NewMockStore()
	defer store.Close()

	r, err := NewStoreResolver(store)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := r.Resolve(context.Background(), "unknown"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStoreResolverCachesHits(t *testing.T) {
	inner := metadata.NewMockStore()
	defer inner.Close()
	store := &countingStore{MockStore: inner}
	ctx := context.Background()

	if _, err := store.Put(ctx, keys.InstanceTokenKey("tok-2"), []byte(`{"handle":7}`)); err != nil {
		t.Fatal(err)
	}

	r, err := NewStoreResolver(store)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(ctx, "tok-2"); err != nil {
			t.Fatal(err)
		}
	}
	if store.gets != 1 {
		t.Errorf("store gets = %d, want 1 (cache should absorb repeats)", store.gets)
	}
}

func TestStoreResolverDoesNotCacheMisses(t *testing.T) {
	store := metadata.NewMockStore()
	defer store.Close()
	ctx := context.Background()

	r, err := NewStoreResolver(store)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := r.Resolve(ctx, "tok-3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("first resolve err = %v", err)
	}

	// The instance appears later; the earlier miss must not stick.
	if _, err := store.Put(ctx, keys.InstanceTokenKey("tok-3"), []byte(`{"handle":9}`)); err != nil {
		t.Fatal(err)
	}
	handle, err := r.Resolve(ctx, "tok-3")
	if err != nil {
		t.Fatalf("second resolve err = %v", err)
	}
	if handle != 9 {
		t.Errorf("handle = %d, want 9", handle)
	}
}

func TestMock(t *testing.T) {
	m := NewMock()
	m.Handles["tok"] = 5

	handle, err := m.Resolve(context.Background(), "tok")
	if err != nil || handle != 5 {
		t.Errorf("Resolve = %d, %v", handle, err)
	}
	if _, err := m.Resolve(context.Background(), "other"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if m.Calls != 2 {
		t.Errorf("calls = %d, want 2", m.Calls)
	}
}
