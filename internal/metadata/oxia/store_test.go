package oxia

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/strato-io/strato/internal/metadata"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	server := StartTestServer(t)
	store, err := New(Config{
		ServiceAddress: server.Addr(),
		Namespace:      "default",
		RequestTimeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestConfigValidation(t *testing.T) {
	if _, err := New(Config{Namespace: "strato"}); err == nil {
		t.Error("expected error for missing service address")
	}
	if _, err := New(Config{ServiceAddress: "localhost:6648"}); err == nil {
		t.Error("expected error for missing namespace")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded oxia test in short mode")
	}
	store := newTestStore(t)
	ctx := context.Background()

	res, err := store.Get(ctx, "/strato/v1/zones/missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if res.Exists {
		t.Error("missing key reported as existing")
	}

	ver, err := store.Put(ctx, "/strato/v1/zones/east", []byte(`{"id":"east"}`))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	res, err = store.Get(ctx, "/strato/v1/zones/east")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !res.Exists || string(res.Value) != `{"id":"east"}` || res.Version != ver {
		t.Errorf("unexpected result: %+v (put version %d)", res, ver)
	}
}

func TestStoreCAS(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded oxia test in short mode")
	}
	store := newTestStore(t)
	ctx := context.Background()

	ver, err := store.Put(ctx, "/strato/v1/zones/a", []byte("v1"), metadata.WithExpectedVersion(0))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Put(ctx, "/strato/v1/zones/a", []byte("v2"), metadata.WithExpectedVersion(0)); !errors.Is(err, metadata.ErrVersionMismatch) {
		t.Errorf("duplicate create err = %v, want ErrVersionMismatch", err)
	}
	if _, err := store.Put(ctx, "/strato/v1/zones/a", []byte("v2"), metadata.WithExpectedVersion(ver)); err != nil {
		t.Errorf("CAS: %v", err)
	}
	if _, err := store.Put(ctx, "/strato/v1/zones/a", []byte("v3"), metadata.WithExpectedVersion(ver)); !errors.Is(err, metadata.ErrVersionMismatch) {
		t.Errorf("stale CAS err = %v, want ErrVersionMismatch", err)
	}
}

func TestStoreListAndDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded oxia test in short mode")
	}
	store := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{
		"/strato/v1/zones/west",
		"/strato/v1/zones/east",
		"/strato/v1/instances/by-token/t1",
	} {
		if _, err := store.Put(ctx, key, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}

	kvs, err := store.List(ctx, "/strato/v1/zones/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(kvs) != 2 {
		t.Fatalf("expected 2 zone keys, got %d", len(kvs))
	}
	if kvs[0].Key >= kvs[1].Key {
		t.Errorf("keys out of order: %q, %q", kvs[0].Key, kvs[1].Key)
	}

	if err := store.Delete(ctx, "/strato/v1/zones/west"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "/strato/v1/zones/west"); err != nil {
		t.Errorf("deleting a missing key should be a no-op: %v", err)
	}
}

func TestPrefixEnd(t *testing.T) {
	cases := []struct {
		prefix string
		want   string
	}{
		{"", ""},
		{"a", "b"},
		{"/strato/v1/zones", "/strato/v1/zonet"},
		{"\xff", ""},
		{"a\xff", "b"},
	}
	for _, tc := range cases {
		if got := prefixEnd(tc.prefix); got != tc.want {
			t.Errorf("prefixEnd(%q) = %q, want %q", tc.prefix, got, tc.want)
		}
	}
}
