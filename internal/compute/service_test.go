package compute

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strato-io/strato/internal/identity"
	"github.com/strato-io/strato/internal/metadata"
	"github.com/strato-io/strato/internal/resolver"
)

func newTestService(t *testing.T) (*Service, *metadata.MockStore) {
	t.Helper()
	store := metadata.NewMockStore()
	svc := NewService(store, nil)
	svc.now = func() time.Time {
		return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	}
	return svc, store
}

func TestCreateAssignsSequentialHandles(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "web-1", nil)
	require.NoError(t, err)
	second, err := svc.Create(ctx, "web-2", nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Handle)
	assert.Equal(t, int64(2), second.Handle)
	assert.Equal(t, StatusActive, first.Status)
	assert.True(t, identity.IsGlobalToken(first.Token))
	assert.NotEqual(t, first.Token, second.Token)
}

func TestCreatedInstanceIsResolvable(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	inst, err := svc.Create(ctx, "web-1", nil)
	require.NoError(t, err)

	res, err := resolver.NewStoreResolver(store)
	require.NoError(t, err)
	handle, err := res.Resolve(ctx, inst.Token)
	require.NoError(t, err)
	assert.Equal(t, inst.Handle, handle)
}

func TestGetMissingInstance(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), 99)

	assert.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestFindByName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "web-1", nil)
	require.NoError(t, err)
	want, err := svc.Create(ctx, "db-1", nil)
	require.NoError(t, err)

	got, err := svc.FindByName(ctx, "db-1")
	require.NoError(t, err)
	assert.Equal(t, want.Handle, got.Handle)

	_, err = svc.FindByName(ctx, "no-such-name")
	assert.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestLookupByHandleAndName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inst, err := svc.Create(ctx, "web-1", nil)
	require.NoError(t, err)

	byHandle, err := svc.Lookup(ctx, identity.LocalRef(inst.Handle))
	require.NoError(t, err)
	assert.Equal(t, inst.Handle, byHandle.Handle)

	byName, err := svc.Lookup(ctx, identity.ParseRef("web-1"))
	require.NoError(t, err)
	assert.Equal(t, inst.Handle, byName.Handle)
}

func TestListReturnsHandleOrder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"charlie", "alpha", "bravo"} {
		_, err := svc.Create(ctx, name, nil)
		require.NoError(t, err)
	}

	instances, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, instances, 3)
	assert.Equal(t, []string{"charlie", "alpha", "bravo"}, []string{
		instances[0].Name, instances[1].Name, instances[2].Name,
	})
}

func TestActionTransitions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inst, err := svc.Create(ctx, "web-1", nil)
	require.NoError(t, err)

	cases := []struct {
		action string
		status string
	}{
		{"reboot", StatusRebooting},
		{"pause", StatusPaused},
		{"unpause", StatusActive},
		{"suspend", StatusSuspended},
		{"resume", StatusActive},
	}
	for _, tc := range cases {
		updated, err := svc.Action(ctx, inst.Handle, tc.action)
		require.NoError(t, err, "action %s", tc.action)
		assert.Equal(t, tc.status, updated.Status, "action %s", tc.action)
	}
}

func TestActionUnknown(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inst, err := svc.Create(ctx, "web-1", nil)
	require.NoError(t, err)

	_, err = svc.Action(ctx, inst.Handle, "explode")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestActionMissingInstance(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Action(context.Background(), 42, "reboot")
	assert.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestDeleteRemovesRecordAndTokenIndex(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	inst, err := svc.Create(ctx, "web-1", nil)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, inst.Handle))

	_, err = svc.Get(ctx, inst.Handle)
	assert.ErrorIs(t, err, ErrInstanceNotFound)

	res, err := resolver.NewStoreResolver(store)
	require.NoError(t, err)
	_, err = res.Resolve(ctx, inst.Token)
	assert.ErrorIs(t, err, resolver.ErrNotFound)
}

func TestViewExposesOnlyPublicFields(t *testing.T) {
	svc, _ := newTestService(t)

	inst, err := svc.Create(context.Background(), "web-1", map[string]string{"tier": "frontend"})
	require.NoError(t, err)

	view := inst.View()
	assert.Equal(t, inst.Handle, view["id"])
	assert.Equal(t, "web-1", view["name"])
	assert.Equal(t, "2026-03-14T10:00:00Z", view["created"])
	assert.NotContains(t, view, "token")
	assert.NotContains(t, view, "handle")
}
