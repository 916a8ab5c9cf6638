package reroute

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/strato-io/strato/internal/logging"
	"github.com/strato-io/strato/internal/metrics"
	"github.com/strato-io/strato/internal/zone"
	"github.com/strato-io/strato/internal/zoneclient"
)

// Session is an authenticated conversation with one child zone.
type Session interface {
	Get(ctx context.Context, collection string, handle int64) (zoneclient.Resource, error)
	Find(ctx context.Context, collection, name string) (zoneclient.Resource, error)
	Action(ctx context.Context, collection string, handle int64, action string) (zoneclient.Resource, error)
}

// Dialer opens an authenticated Session against a zone. Dial failures
// are contained to that zone's outcome and never abort the fan-out.
type Dialer interface {
	Dial(ctx context.Context, z zone.Zone) (Session, error)
}

// FanOutConfig tunes the fan-out executor.
type FanOutConfig struct {
	// ZoneTimeout bounds the whole conversation with a single zone,
	// dial included. Zero disables the per-zone bound and the barrier
	// waits for the slowest zone.
	ZoneTimeout time.Duration
	// IgnoreErrorKinds lists zone error kinds that are treated as
	// authoritative not-found answers rather than failures.
	IgnoreErrorKinds []string
}

// FanOut executes one operation against every zone in a snapshot
// concurrently and reports per-zone outcomes in snapshot order.
type FanOut struct {
	dialer      Dialer
	zoneTimeout time.Duration
	ignoreKinds map[string]struct{}
	logger      *logging.Logger
	metrics     *metrics.RerouteMetrics
}

// NewFanOut creates a fan-out executor.
func NewFanOut(dialer Dialer, cfg FanOutConfig, logger *logging.Logger) *FanOut {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	ignore := make(map[string]struct{}, len(cfg.IgnoreErrorKinds))
	for _, k := range cfg.IgnoreErrorKinds {
		ignore[k] = struct{}{}
	}
	return &FanOut{
		dialer:      dialer,
		zoneTimeout: cfg.ZoneTimeout,
		ignoreKinds: ignore,
		logger:      logger.With(map[string]any{"component": "fanout"}),
	}
}

// WithMetrics attaches metrics and returns the receiver.
func (f *FanOut) WithMetrics(m *metrics.RerouteMetrics) *FanOut {
	f.metrics = m
	return f
}

// Run executes op against every zone in zones, one goroutine per zone,
// and blocks until all of them have answered or timed out. The returned
// slice has exactly len(zones) entries, outcomes[i] belonging to
// zones[i]. A zone's failure never surfaces as an error; it is recorded
// in its outcome.
func (f *FanOut) Run(ctx context.Context, zones []zone.Zone, op Operation) []ZoneOutcome {
	start := time.Now()
	outcomes := make([]ZoneOutcome, len(zones))

	var wg sync.WaitGroup
	wg.Add(len(zones))
	for i := range zones {
		go func(i int, z zone.Zone) {
			defer wg.Done()
			outcomes[i] = f.callZone(ctx, z, op)
		}(i, zones[i])
	}
	wg.Wait()

	found := false
	for _, out := range outcomes {
		if out.Kind == OutcomeFound {
			found = true
		}
		if f.metrics != nil {
			f.metrics.ZoneOutcomes.WithLabelValues(out.ZoneID, out.Kind.String()).Inc()
		}
	}
	if f.metrics != nil {
		f.metrics.ZonesPerFanOut.Observe(float64(len(zones)))
		result := metrics.FanOutEmpty
		if found {
			result = metrics.FanOutFound
		}
		f.metrics.FanOutLatency.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}
	return outcomes
}

// callZone runs the full conversation with one zone: dial, locate the
// resource, and for mutating operations issue the action against the
// located handle.
func (f *FanOut) callZone(ctx context.Context, z zone.Zone, op Operation) ZoneOutcome {
	if f.zoneTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.zoneTimeout)
		defer cancel()
	}

	sess, err := f.dialer.Dial(ctx, z)
	if err != nil {
		return f.classify(z, err)
	}

	var res zoneclient.Resource
	if handle, ok := op.Ref.Handle(); ok {
		res, err = sess.Get(ctx, op.Collection, handle)
	} else {
		res, err = sess.Find(ctx, op.Collection, op.Ref.String())
	}
	if err != nil {
		return f.classify(z, err)
	}

	if !op.IsRead() {
		handle, ok := res.Handle()
		if !ok {
			f.logger.Warnf("zone returned resource without a usable id", map[string]any{
				"zone":       z.ID,
				"collection": op.Collection,
			})
			return ZoneOutcome{ZoneID: z.ID, Kind: OutcomeSkipped, Reason: SkipError}
		}
		res, err = sess.Action(ctx, op.Collection, handle, op.Method)
		if err != nil {
			return f.classify(z, err)
		}
	}

	return ZoneOutcome{ZoneID: z.ID, Kind: OutcomeFound, Payload: res}
}

// classify maps a zone error onto an outcome. Not-found answers and
// allow-listed operation errors are authoritative; everything else is a
// skip that says nothing about the resource.
func (f *FanOut) classify(z zone.Zone, err error) ZoneOutcome {
	if errors.Is(err, zoneclient.ErrNotFound) {
		return ZoneOutcome{ZoneID: z.ID, Kind: OutcomeNotFound}
	}

	var authErr *zoneclient.AuthError
	if errors.As(err, &authErr) {
		f.logger.Warnf("zone authentication failed", map[string]any{
			"zone":  z.ID,
			"error": err.Error(),
		})
		return ZoneOutcome{ZoneID: z.ID, Kind: OutcomeSkipped, Reason: SkipAuthFailure, Err: err}
	}

	var opErr *zoneclient.OperationError
	if errors.As(err, &opErr) {
		if _, ok := f.ignoreKinds[opErr.Kind]; ok {
			return ZoneOutcome{ZoneID: z.ID, Kind: OutcomeNotFound}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		f.logger.Warnf("zone call timed out", map[string]any{"zone": z.ID})
		return ZoneOutcome{ZoneID: z.ID, Kind: OutcomeSkipped, Reason: SkipTimeout, Err: err}
	}

	f.logger.Warnf("zone call failed", map[string]any{
		"zone":  z.ID,
		"error": err.Error(),
	})
	return ZoneOutcome{ZoneID: z.ID, Kind: OutcomeSkipped, Reason: SkipError, Err: err}
}
