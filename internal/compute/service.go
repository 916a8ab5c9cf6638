// Package compute manages instances local to this zone.
//
// Instances are stored in the metadata store under two keys: the record
// itself under the zero-padded handle, and a token index entry mapping
// the instance's global token back to the handle. The token index is
// the same keyspace the resolver reads, so an instance created here is
// immediately resolvable.
package compute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/strato-io/strato/internal/identity"
	"github.com/strato-io/strato/internal/logging"
	"github.com/strato-io/strato/internal/metadata"
	"github.com/strato-io/strato/internal/metadata/keys"
)

var (
	// ErrInstanceNotFound is returned when no local instance matches.
	ErrInstanceNotFound = errors.New("compute: instance not found")
	// ErrUnknownAction is returned for an action name the service does
	// not implement.
	ErrUnknownAction = errors.New("compute: unknown action")
)

// Instance states.
const (
	StatusActive    = "ACTIVE"
	StatusRebooting = "REBOOT"
	StatusPaused    = "PAUSED"
	StatusSuspended = "SUSPENDED"
)

// allocRetries bounds counter CAS retries during handle allocation.
const allocRetries = 16

// Instance is the stored record of a local server.
type Instance struct {
	Handle   int64             `json:"handle"`
	Token    string            `json:"token"`
	Name     string            `json:"name"`
	Status   string            `json:"status"`
	Created  time.Time         `json:"created"`
	Updated  time.Time         `json:"updated"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// View renders the instance as a response payload. Only attributes that
// may leave the zone are included.
func (i Instance) View() map[string]any {
	v := map[string]any{
		"id":      i.Handle,
		"name":    i.Name,
		"status":  i.Status,
		"created": i.Created.UTC().Format(time.RFC3339),
		"updated": i.Updated.UTC().Format(time.RFC3339),
	}
	if len(i.Metadata) > 0 {
		v["metadata"] = i.Metadata
	}
	return v
}

// tokenRecord mirrors the resolver's index entry shape.
type tokenRecord struct {
	Handle int64 `json:"handle"`
}

// Service implements local instance CRUD and actions.
type Service struct {
	store  metadata.Store
	logger *logging.Logger
	now    func() time.Time
}

// NewService creates a compute service over the metadata store.
func NewService(store metadata.Store, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Service{
		store:  store,
		logger: logger.With(map[string]any{"component": "compute"}),
		now:    time.Now,
	}
}

// Create allocates a handle, mints a global token, and stores the
// instance record plus its token index entry.
func (s *Service) Create(ctx context.Context, name string, meta map[string]string) (Instance, error) {
	handle, err := s.allocateHandle(ctx)
	if err != nil {
		return Instance{}, err
	}

	now := s.now().UTC()
	inst := Instance{
		Handle:   handle,
		Token:    identity.NewGlobalToken(),
		Name:     name,
		Status:   StatusActive,
		Created:  now,
		Updated:  now,
		Metadata: meta,
	}

	record, err := json.Marshal(inst)
	if err != nil {
		return Instance{}, fmt.Errorf("compute: encode instance: %w", err)
	}
	if _, err := s.store.Put(ctx, keys.InstanceHandleKey(handle), record, metadata.WithExpectedVersion(0)); err != nil {
		return Instance{}, fmt.Errorf("compute: store instance %d: %w", handle, err)
	}

	index, err := json.Marshal(tokenRecord{Handle: handle})
	if err != nil {
		return Instance{}, fmt.Errorf("compute: encode token index: %w", err)
	}
	if _, err := s.store.Put(ctx, keys.InstanceTokenKey(inst.Token), index, metadata.WithExpectedVersion(0)); err != nil {
		return Instance{}, fmt.Errorf("compute: store token index for %d: %w", handle, err)
	}

	s.logger.Infof("instance created", map[string]any{
		"handle": handle,
		"name":   name,
		"token":  inst.Token,
	})
	return inst, nil
}

// allocateHandle increments the shared handle counter with CAS,
// retrying on contention. Handles start at 1.
func (s *Service) allocateHandle(ctx context.Context) (int64, error) {
	for attempt := 0; attempt < allocRetries; attempt++ {
		res, err := s.store.Get(ctx, keys.InstanceCounterKey)
		if err != nil {
			return 0, fmt.Errorf("compute: read handle counter: %w", err)
		}

		var next int64 = 1
		expected := metadata.Version(0)
		if res.Exists {
			cur, err := strconv.ParseInt(string(res.Value), 10, 64)
			if err != nil {
				return 0, fmt.Errorf("compute: corrupt handle counter %q: %w", res.Value, err)
			}
			next = cur + 1
			expected = res.Version
		}

		_, err = s.store.Put(ctx, keys.InstanceCounterKey,
			[]byte(strconv.FormatInt(next, 10)),
			metadata.WithExpectedVersion(expected))
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, metadata.ErrVersionMismatch) {
			return 0, fmt.Errorf("compute: advance handle counter: %w", err)
		}
	}
	return 0, fmt.Errorf("compute: handle counter contention, gave up after %d attempts", allocRetries)
}

// Get returns the instance for a local handle.
func (s *Service) Get(ctx context.Context, handle int64) (Instance, error) {
	inst, _, err := s.getWithVersion(ctx, handle)
	return inst, err
}

func (s *Service) getWithVersion(ctx context.Context, handle int64) (Instance, metadata.Version, error) {
	res, err := s.store.Get(ctx, keys.InstanceHandleKey(handle))
	if err != nil {
		return Instance{}, 0, fmt.Errorf("compute: read instance %d: %w", handle, err)
	}
	if !res.Exists {
		return Instance{}, 0, ErrInstanceNotFound
	}
	var inst Instance
	if err := json.Unmarshal(res.Value, &inst); err != nil {
		return Instance{}, 0, fmt.Errorf("compute: decode instance %d: %w", handle, err)
	}
	return inst, res.Version, nil
}

// FindByName returns the first instance whose name matches, in handle
// order.
func (s *Service) FindByName(ctx context.Context, name string) (Instance, error) {
	instances, err := s.List(ctx)
	if err != nil {
		return Instance{}, err
	}
	for _, inst := range instances {
		if inst.Name == name {
			return inst, nil
		}
	}
	return Instance{}, ErrInstanceNotFound
}

// Lookup fetches an instance by ref: handles load directly, names go
// through FindByName. Global tokens are not accepted here; callers
// resolve them to handles first.
func (s *Service) Lookup(ctx context.Context, ref identity.Ref) (Instance, error) {
	if handle, ok := ref.Handle(); ok {
		return s.Get(ctx, handle)
	}
	return s.FindByName(ctx, ref.String())
}

// List returns all local instances in handle order.
func (s *Service) List(ctx context.Context) ([]Instance, error) {
	kvs, err := s.store.List(ctx, keys.InstanceHandlesPrefix)
	if err != nil {
		return nil, fmt.Errorf("compute: list instances: %w", err)
	}
	instances := make([]Instance, 0, len(kvs))
	for _, kv := range kvs {
		var inst Instance
		if err := json.Unmarshal(kv.Value, &inst); err != nil {
			s.logger.Warnf("skipping undecodable instance record", map[string]any{
				"key":   kv.Key,
				"error": err.Error(),
			})
			continue
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// Action applies a named action to the instance and returns the updated
// record.
func (s *Service) Action(ctx context.Context, handle int64, action string) (Instance, error) {
	status, err := statusAfter(action)
	if err != nil {
		return Instance{}, err
	}

	inst, version, err := s.getWithVersion(ctx, handle)
	if err != nil {
		return Instance{}, err
	}
	inst.Status = status
	inst.Updated = s.now().UTC()

	record, err := json.Marshal(inst)
	if err != nil {
		return Instance{}, fmt.Errorf("compute: encode instance %d: %w", handle, err)
	}
	if _, err := s.store.Put(ctx, keys.InstanceHandleKey(handle), record, metadata.WithExpectedVersion(version)); err != nil {
		return Instance{}, fmt.Errorf("compute: update instance %d: %w", handle, err)
	}

	s.logger.Infof("instance action applied", map[string]any{
		"handle": handle,
		"action": action,
		"status": status,
	})
	return inst, nil
}

func statusAfter(action string) (string, error) {
	switch action {
	case "reboot":
		return StatusRebooting, nil
	case "pause":
		return StatusPaused, nil
	case "unpause", "resume":
		return StatusActive, nil
	case "suspend":
		return StatusSuspended, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// Delete removes the instance record and its token index entry.
func (s *Service) Delete(ctx context.Context, handle int64) error {
	inst, _, err := s.getWithVersion(ctx, handle)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, keys.InstanceHandleKey(handle)); err != nil {
		return fmt.Errorf("compute: delete instance %d: %w", handle, err)
	}
	if err := s.store.Delete(ctx, keys.InstanceTokenKey(inst.Token)); err != nil {
		return fmt.Errorf("compute: delete token index for %d: %w", handle, err)
	}
	s.logger.Infof("instance deleted", map[string]any{"handle": handle})
	return nil
}
