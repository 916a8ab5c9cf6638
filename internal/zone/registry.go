package zone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/strato-io/strato/internal/logging"
	"github.com/strato-io/strato/internal/metadata"
	"github.com/strato-io/strato/internal/metadata/keys"
	"github.com/strato-io/strato/internal/metrics"
)

// Registry persists zone records in the metadata store.
type Registry struct {
	store   metadata.Store
	logger  *logging.Logger
	metrics *metrics.RegistryMetrics

	// now is overridable for tests.
	now func() time.Time
}

// NewRegistry creates a registry backed by the given store.
func NewRegistry(store metadata.Store, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Registry{
		store:  store,
		logger: logger.With(map[string]any{"component": "zone-registry"}),
		now:    time.Now,
	}
}

// WithMetrics attaches registry metrics.
func (r *Registry) WithMetrics(m *metrics.RegistryMetrics) *Registry {
	r.metrics = m
	return r
}

func (r *Registry) observe(op string, start time.Time, err error) {
	if r.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	r.metrics.OperationLatency.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}

// Create registers a new zone. It fails with ErrZoneExists when the ID
// is already taken.
func (r *Registry) Create(ctx context.Context, z Zone) (err error) {
	start := r.now()
	defer func() { r.observe(metrics.RegistryOpCreate, start, err) }()

	if err = z.Validate(); err != nil {
		return err
	}
	z.RegisteredAt = r.now().UnixMilli()

	value, err := json.Marshal(z)
	if err != nil {
		return fmt.Errorf("zone: marshal record: %w", err)
	}

	_, err = r.store.Put(ctx, keys.ZoneKey(z.ID), value, metadata.WithExpectedVersion(0))
	if err != nil {
		if errors.Is(err, metadata.ErrVersionMismatch) {
			return ErrZoneExists
		}
		return fmt.Errorf("zone: create %s: %w", z.ID, err)
	}

	r.logger.Infof("registered child zone", map[string]any{
		"zone":   z.ID,
		"apiUrl": z.APIURL,
	})
	return nil
}

// Get returns the zone with the given ID.
func (r *Registry) Get(ctx context.Context, id string) (z Zone, err error) {
	start := r.now()
	defer func() { r.observe(metrics.RegistryOpGet, start, err) }()

	res, err := r.store.Get(ctx, keys.ZoneKey(id))
	if err != nil {
		return Zone{}, fmt.Errorf("zone: get %s: %w", id, err)
	}
	if !res.Exists {
		err = ErrZoneNotFound
		return Zone{}, err
	}

	if err = json.Unmarshal(res.Value, &z); err != nil {
		return Zone{}, fmt.Errorf("zone: decode record %s: %w", id, err)
	}
	return z, nil
}

// Update replaces the record for an existing zone.
func (r *Registry) Update(ctx context.Context, z Zone) (err error) {
	start := r.now()
	defer func() { r.observe(metrics.RegistryOpUpdate, start, err) }()

	if err = z.Validate(); err != nil {
		return err
	}

	res, err := r.store.Get(ctx, keys.ZoneKey(z.ID))
	if err != nil {
		return fmt.Errorf("zone: update %s: %w", z.ID, err)
	}
	if !res.Exists {
		return ErrZoneNotFound
	}

	var current Zone
	if err = json.Unmarshal(res.Value, &current); err != nil {
		return fmt.Errorf("zone: decode record %s: %w", z.ID, err)
	}
	z.RegisteredAt = current.RegisteredAt

	value, err := json.Marshal(z)
	if err != nil {
		return fmt.Errorf("zone: marshal record: %w", err)
	}
	if _, err = r.store.Put(ctx, keys.ZoneKey(z.ID), value, metadata.WithExpectedVersion(res.Version)); err != nil {
		return fmt.Errorf("zone: update %s: %w", z.ID, err)
	}
	return nil
}

// Delete removes a zone from the registry.
func (r *Registry) Delete(ctx context.Context, id string) (err error) {
	start := r.now()
	defer func() { r.observe(metrics.RegistryOpDelete, start, err) }()

	res, err := r.store.Get(ctx, keys.ZoneKey(id))
	if err != nil {
		return fmt.Errorf("zone: delete %s: %w", id, err)
	}
	if !res.Exists {
		return ErrZoneNotFound
	}
	if err = r.store.Delete(ctx, keys.ZoneKey(id)); err != nil {
		return fmt.Errorf("zone: delete %s: %w", id, err)
	}

	r.logger.Infof("removed child zone", map[string]any{"zone": id})
	return nil
}

// List returns all registered zones sorted by ID. The sort order is what
// makes "first zone wins" aggregation deterministic across runs.
func (r *Registry) List(ctx context.Context) (zones []Zone, err error) {
	start := r.now()
	defer func() { r.observe(metrics.RegistryOpList, start, err) }()

	kvs, err := r.store.List(ctx, keys.ZonesPrefix)
	if err != nil {
		return nil, fmt.Errorf("zone: list: %w", err)
	}

	zones = make([]Zone, 0, len(kvs))
	for _, kv := range kvs {
		if _, ok := keys.ZoneIDFromKey(kv.Key); !ok {
			continue
		}
		var z Zone
		if err := json.Unmarshal(kv.Value, &z); err != nil {
			r.logger.Warnf("skipping undecodable zone record", map[string]any{
				"key":   kv.Key,
				"error": err.Error(),
			})
			continue
		}
		zones = append(zones, z)
	}

	if r.metrics != nil {
		r.metrics.RegisteredZones.Set(float64(len(zones)))
	}
	return zones, nil
}

var _ Directory = (*Registry)(nil)
