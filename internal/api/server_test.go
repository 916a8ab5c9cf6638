package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strato-io/strato/internal/compute"
	"github.com/strato-io/strato/internal/metadata"
	"github.com/strato-io/strato/internal/reroute"
	"github.com/strato-io/strato/internal/resolver"
	"github.com/strato-io/strato/internal/zone"
	"github.com/strato-io/strato/internal/zoneclient"
)

const testAuthToken = "test-token"

type stubSession struct {
	res zoneclient.Resource
	err error
}

func (s stubSession) Get(context.Context, string, int64) (zoneclient.Resource, error) {
	return s.res, s.err
}

func (s stubSession) Find(context.Context, string, string) (zoneclient.Resource, error) {
	return s.res, s.err
}

func (s stubSession) Action(context.Context, string, int64, string) (zoneclient.Resource, error) {
	return s.res, s.err
}

type stubDialer struct {
	sess  stubSession
	dials int
}

func (d *stubDialer) Dial(context.Context, zone.Zone) (reroute.Session, error) {
	d.dials++
	return d.sess, nil
}

type testEnv struct {
	handler  http.Handler
	compute  *compute.Service
	registry *zone.Registry
	dialer   *stubDialer
}

func newTestEnv(t *testing.T, routingEnabled bool) *testEnv {
	t.Helper()

	store := metadata.NewMockStore()
	registry := zone.NewRegistry(store, nil)
	comp := compute.NewService(store, nil)

	res, err := resolver.NewStoreResolver(store)
	require.NoError(t, err)

	dialer := &stubDialer{sess: stubSession{err: zoneclient.ErrNotFound}}
	fanout := reroute.NewFanOut(dialer, reroute.FanOutConfig{}, nil)
	guard := reroute.NewGuard(reroute.GuardConfig{Enabled: routingEnabled}, registry, res, fanout, nil)

	srv := New(Config{
		ListenAddr: ":0",
		Username:   "admin",
		Password:   "secret",
		AuthToken:  testAuthToken,
	}, registry, comp, guard, nil, nil)

	return &testEnv{
		handler:  srv.Handler(),
		compute:  comp,
		registry: registry,
		dialer:   dialer,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Auth-Token", testAuthToken)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuthTokenIssuance(t *testing.T) {
	env := newTestEnv(t, true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/tokens",
		bytes.NewBufferString(`{"username":"admin","password":"secret"}`))
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testAuthToken, decodeBody(t, rec)["token"])
}

func TestAuthRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t, true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/tokens",
		bytes.NewBufferString(`{"username":"admin","password":"wrong"}`))
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestsWithoutTokenRejected(t *testing.T) {
	env := newTestEnv(t, true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/servers", nil)
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	errObj, ok := decodeBody(t, rec)["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "unauthorized", errObj["kind"])
}

func TestCreateAndGetServer(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPost, "/v1/servers", map[string]any{
		"server": map[string]any{"name": "web-1"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created, ok := decodeBody(t, rec)["server"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "web-1", created["name"])
	assert.NotEmpty(t, created["token"])

	rec = env.do(t, http.MethodGet, "/v1/servers/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	server, ok := decodeBody(t, rec)["server"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "web-1", server["name"])
	assert.NotContains(t, server, "token")
}

func TestGetServerByGlobalTokenResolvesLocally(t *testing.T) {
	env := newTestEnv(t, true)

	inst, err := env.compute.Create(context.Background(), "web-1", nil)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/v1/servers/"+inst.Token, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	server, ok := decodeBody(t, rec)["server"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "web-1", server["name"])
	assert.Equal(t, 0, env.dialer.dials, "child zone contacted despite local hit")
}

func TestUnknownTokenWithoutZonesIs404(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodGet, "/v1/servers/3f2504e0-4f89-41d3-9a0c-0305e82c3301", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	errObj, ok := decodeBody(t, rec)["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "notFound", errObj["kind"])
}

func TestUnknownTokenRoutingDisabledIs404(t *testing.T) {
	env := newTestEnv(t, false)
	require.NoError(t, env.registry.Create(context.Background(), zone.Zone{
		ID: "east", Name: "east", APIURL: "http://east.example.com:8774",
		Username: "admin", Password: "secret",
	}))

	rec := env.do(t, http.MethodGet, "/v1/servers/3f2504e0-4f89-41d3-9a0c-0305e82c3301", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 0, env.dialer.dials, "fan-out ran with routing disabled")
}

func TestUnknownTokenRedirectsToChildZone(t *testing.T) {
	env := newTestEnv(t, true)
	require.NoError(t, env.registry.Create(context.Background(), zone.Zone{
		ID: "east", Name: "east", APIURL: "http://east.example.com:8774",
		Username: "admin", Password: "secret",
	}))
	env.dialer.sess = stubSession{res: zoneclient.Resource{
		"id":        float64(12),
		"name":      "remote-box",
		"status":    "ACTIVE",
		"adminPass": "hunter2",
	}}

	rec := env.do(t, http.MethodGet, "/v1/servers/3f2504e0-4f89-41d3-9a0c-0305e82c3301", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.dialer.dials)
	server, ok := decodeBody(t, rec)["server"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "remote-box", server["name"])
	assert.NotContains(t, server, "adminPass")
}

func TestServerAction(t *testing.T) {
	env := newTestEnv(t, true)
	_, err := env.compute.Create(context.Background(), "web-1", nil)
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/v1/servers/1/reboot", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	server, ok := decodeBody(t, rec)["server"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, compute.StatusRebooting, server["status"])
}

func TestServerUnknownActionIs400(t *testing.T) {
	env := newTestEnv(t, true)
	_, err := env.compute.Create(context.Background(), "web-1", nil)
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/v1/servers/1/explode", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFindServerByName(t *testing.T) {
	env := newTestEnv(t, true)
	_, err := env.compute.Create(context.Background(), "db-1", nil)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/v1/servers?name=db-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	server, ok := decodeBody(t, rec)["server"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "db-1", server["name"])
}

func TestListServers(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	for _, name := range []string{"web-1", "web-2"} {
		_, err := env.compute.Create(ctx, name, nil)
		require.NoError(t, err)
	}

	rec := env.do(t, http.MethodGet, "/v1/servers", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	servers, ok := decodeBody(t, rec)["servers"].([]any)
	require.True(t, ok)
	assert.Len(t, servers, 2)
}

func TestDeleteServer(t *testing.T) {
	env := newTestEnv(t, true)
	inst, err := env.compute.Create(context.Background(), "web-1", nil)
	require.NoError(t, err)

	rec := env.do(t, http.MethodDelete, "/v1/servers/1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err = env.compute.Get(context.Background(), inst.Handle)
	assert.ErrorIs(t, err, compute.ErrInstanceNotFound)
}

func TestZoneCRUD(t *testing.T) {
	env := newTestEnv(t, true)
	body := map[string]any{"zone": map[string]any{
		"id": "east", "name": "east",
		"apiUrl":   "http://east.example.com:8774",
		"username": "admin", "password": "secret",
	}}

	rec := env.do(t, http.MethodPost, "/v1/zones", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/zones", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/zones/east", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	zoneObj, ok := decodeBody(t, rec)["zone"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "east", zoneObj["id"])
	assert.NotContains(t, zoneObj, "password", "zone view leaked credentials")

	rec = env.do(t, http.MethodGet, "/v1/zones", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	zones, ok := decodeBody(t, rec)["zones"].([]any)
	require.True(t, ok)
	assert.Len(t, zones, 1)

	rec = env.do(t, http.MethodDelete, "/v1/zones/east", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/zones/east", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCapabilitiesWithoutScheduler(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodGet, "/v1/capabilities", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRoundTripThroughZoneClient(t *testing.T) {
	// A parent zone's client must be able to consume this API directly.
	env := newTestEnv(t, true)
	_, err := env.compute.Create(context.Background(), "web-1", nil)
	require.NoError(t, err)

	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	client, err := zoneclient.New(zone.Zone{
		ID: "self", Name: "self", APIURL: ts.URL,
		Username: "admin", Password: "secret",
	})
	require.NoError(t, err)
	require.NoError(t, client.Authenticate(context.Background()))

	res, err := client.Get(context.Background(), "servers", 1)
	require.NoError(t, err)
	assert.Equal(t, "web-1", res["name"])

	_, err = client.Get(context.Background(), "servers", 99)
	assert.ErrorIs(t, err, zoneclient.ErrNotFound)
}
