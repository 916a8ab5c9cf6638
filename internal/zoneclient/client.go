// Package zoneclient is the HTTP/JSON client SDK for a remote zone's
// compute API. One Client wraps one zone endpoint; every failure it
// reports is recoverable by the caller: it only ever means "this zone
// could not answer".
package zoneclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/strato-io/strato/internal/zone"
)

// ErrNotFound is returned when the remote zone has no matching resource.
var ErrNotFound = errors.New("zoneclient: resource not found")

// AuthError reports a failed authentication against a zone.
type AuthError struct {
	ZoneID string
	Status int
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("zoneclient: authentication with zone %s failed: %v", e.ZoneID, e.Err)
	}
	return fmt.Sprintf("zoneclient: authentication with zone %s failed: status %d", e.ZoneID, e.Status)
}

func (e *AuthError) Unwrap() error { return e.Err }

// OperationError reports a remote operation failure with the error kind
// assigned by the remote API. Kinds are matched against the routing
// allow-ignore list.
type OperationError struct {
	ZoneID  string
	Kind    string
	Status  int
	Message string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("zoneclient: zone %s: %s (%d): %s", e.ZoneID, e.Kind, e.Status, e.Message)
}

// Resource is a decoded resource representation as returned by a zone.
type Resource map[string]any

// Handle extracts the resource's numeric handle, if present.
func (r Resource) Handle() (int64, bool) {
	switch v := r["id"].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}

// DefaultTimeout bounds individual HTTP requests to a zone.
const DefaultTimeout = 30 * time.Second

// Client talks to a single zone's compute API.
type Client struct {
	zone zone.Zone
	base *url.URL
	http *http.Client

	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the given zone.
func New(z zone.Zone, opts ...Option) (*Client, error) {
	base, err := url.Parse(z.APIURL)
	if err != nil {
		return nil, fmt.Errorf("zoneclient: parse api url %q: %w", z.APIURL, err)
	}

	c := &Client{
		zone: z,
		base: base,
		http: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ZoneID returns the ID of the zone this client talks to.
func (c *Client) ZoneID() string { return c.zone.ID }

// Authenticate establishes a session with the zone. It must be called
// before any invocation; failure is always an *AuthError.
func (c *Client) Authenticate(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"username": c.zone.Username,
		"password": c.zone.Password,
	})
	if err != nil {
		return &AuthError{ZoneID: c.zone.ID, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("auth", "tokens"), bytes.NewReader(body))
	if err != nil {
		return &AuthError{ZoneID: c.zone.ID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &AuthError{ZoneID: c.zone.ID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &AuthError{ZoneID: c.zone.ID, Status: resp.StatusCode}
	}

	var reply struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return &AuthError{ZoneID: c.zone.ID, Err: err}
	}
	if reply.Token == "" {
		return &AuthError{ZoneID: c.zone.ID, Err: errors.New("empty token in reply")}
	}

	c.token = reply.Token
	return nil
}

// Get fetches a resource from a collection by numeric handle.
func (c *Client) Get(ctx context.Context, collection string, handle int64) (Resource, error) {
	return c.fetch(ctx, collection, c.endpoint(collection, strconv.FormatInt(handle, 10)))
}

// Find fetches a resource from a collection by name. The name may be a
// global token; the remote zone matches it against its own records.
func (c *Client) Find(ctx context.Context, collection, name string) (Resource, error) {
	endpoint := c.endpoint(collection) + "?name=" + url.QueryEscape(name)
	return c.fetch(ctx, collection, endpoint)
}

// Action applies a named mutating action to an already-resolved resource
// and returns the action's result payload.
func (c *Client) Action(ctx context.Context, collection string, handle int64, action string) (Resource, error) {
	endpoint := c.endpoint(collection, strconv.FormatInt(handle, 10), action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader("{}"))
	if err != nil {
		return nil, fmt.Errorf("zoneclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, collection)
}

func (c *Client) fetch(ctx context.Context, collection, endpoint string) (Resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("zoneclient: build request: %w", err)
	}
	return c.do(req, collection)
}

func (c *Client) do(req *http.Request, collection string) (Resource, error) {
	if c.token != "" {
		req.Header.Set("X-Auth-Token", c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &OperationError{ZoneID: c.zone.ID, Kind: "transport", Message: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &AuthError{ZoneID: c.zone.ID, Status: resp.StatusCode}
	case resp.StatusCode >= 400:
		return nil, c.operationError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &OperationError{ZoneID: c.zone.ID, Kind: "transport", Message: err.Error()}
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &OperationError{ZoneID: c.zone.ID, Kind: "decode", Message: err.Error()}
	}

	// Responses arrive wrapped under the collection's singular key,
	// e.g. {"server": {...}}; unwrap when that shape is present.
	if wrapped, ok := payload[singular(collection)].(map[string]any); ok {
		return Resource(wrapped), nil
	}
	return Resource(payload), nil
}

// operationError decodes the remote error envelope {"error": {"kind":
// ..., "message": ...}} and falls back to the raw status on failure.
func (c *Client) operationError(resp *http.Response) error {
	var envelope struct {
		Error struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil || envelope.Error.Kind == "" {
		return &OperationError{
			ZoneID: c.zone.ID,
			Kind:   "http_" + strconv.Itoa(resp.StatusCode),
			Status: resp.StatusCode,
		}
	}
	return &OperationError{
		ZoneID:  c.zone.ID,
		Kind:    envelope.Error.Kind,
		Status:  resp.StatusCode,
		Message: envelope.Error.Message,
	}
}

func (c *Client) endpoint(parts ...string) string {
	u := *c.base
	segments := append([]string{strings.TrimSuffix(u.Path, "/"), "v1"}, parts...)
	u.Path = strings.Join(segments, "/")
	return u.String()
}

// singular derives the wrapper key for a collection name.
func singular(collection string) string {
	return strings.TrimSuffix(collection, "s")
}
