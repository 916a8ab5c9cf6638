package reroute

import (
	"context"
	"errors"
	"fmt"

	"github.com/strato-io/strato/internal/identity"
	"github.com/strato-io/strato/internal/logging"
	"github.com/strato-io/strato/internal/metrics"
	"github.com/strato-io/strato/internal/resolver"
	"github.com/strato-io/strato/internal/zone"
)

// Request is one resource operation arriving at the API boundary.
type Request struct {
	Collection string
	Method     string
	Ref        identity.Ref
}

// ResultKind distinguishes a locally produced answer from one assembled
// out of child zone responses.
type ResultKind int

const (
	// ResultLocal means the local handler produced the answer.
	ResultLocal ResultKind = iota
	// ResultRedirect means the answer was aggregated from child zones
	// and must be returned to the caller verbatim, bypassing local
	// response shaping.
	ResultRedirect
)

// Result is the tagged return of Guard.Execute. Exactly one of Local and
// Redirect is meaningful, selected by Kind.
type Result struct {
	Kind     ResultKind
	Local    any
	Redirect map[string]any
}

// LocalFunc executes the operation in the local zone. The ref it
// receives is always locally actionable: either the caller's original
// non-global ref, or a local handle substituted after resolution.
type LocalFunc func(ctx context.Context, ref identity.Ref) (any, error)

// GuardConfig tunes the routing guard.
type GuardConfig struct {
	// Enabled gates the fan-out. When false a local miss on a global
	// ref is a not-found; child zones are never contacted.
	Enabled bool
}

// Guard decides, per request, whether to execute locally or to fan the
// operation out to child zones.
type Guard struct {
	enabled   bool
	directory zone.Directory
	resolver  resolver.Resolver
	fanout    *FanOut
	logger    *logging.Logger
	metrics   *metrics.RerouteMetrics
}

// NewGuard creates a routing guard.
func NewGuard(cfg GuardConfig, directory zone.Directory, res resolver.Resolver, fanout *FanOut, logger *logging.Logger) *Guard {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Guard{
		enabled:   cfg.Enabled,
		directory: directory,
		resolver:  res,
		fanout:    fanout,
		logger:    logger.With(map[string]any{"component": "reroute"}),
	}
}

// WithMetrics attaches metrics and returns the receiver.
func (g *Guard) WithMetrics(m *metrics.RerouteMetrics) *Guard {
	g.metrics = m
	return g
}

// Execute runs the routing state machine for one request.
//
// Non-global refs pass straight through to local. Global refs are first
// resolved against the local token index; on a hit local runs with the
// resolved handle substituted for the token. On a miss the operation is
// fanned out to the child zone snapshot and the aggregated payload is
// returned as a redirect result. If routing is disabled or there are no
// child zones, a local miss surfaces as a NotFoundError.
func (g *Guard) Execute(ctx context.Context, req Request, local LocalFunc) (Result, error) {
	if !req.Ref.IsGlobal() {
		g.decision(metrics.DecisionLocalPassthrough)
		out, err := local(ctx, req.Ref)
		return Result{Kind: ResultLocal, Local: out}, err
	}

	token, _ := req.Ref.Token()
	handle, err := g.resolver.Resolve(ctx, token)
	switch {
	case err == nil:
		g.decision(metrics.DecisionLocalHit)
		out, err := local(ctx, identity.LocalRef(handle))
		return Result{Kind: ResultLocal, Local: out}, err
	case !errors.Is(err, resolver.ErrNotFound):
		return Result{}, fmt.Errorf("resolving token %q: %w", token, err)
	}

	if !g.enabled {
		g.decision(metrics.DecisionRoutingDisabled)
		return Result{}, &NotFoundError{Ref: req.Ref}
	}

	zones, err := g.directory.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("listing child zones: %w", err)
	}
	if len(zones) == 0 {
		g.decision(metrics.DecisionNoChildZones)
		return Result{}, &NotFoundError{Ref: req.Ref}
	}

	g.logger.Debugf("resource not local, asking child zones", map[string]any{
		"collection": req.Collection,
		"method":     req.Method,
		"ref":        req.Ref.String(),
		"zones":      len(zones),
	})

	outcomes := g.fanout.Run(ctx, zones, Operation{
		Collection: req.Collection,
		Method:     req.Method,
		Ref:        req.Ref,
	})
	g.decision(metrics.DecisionRedirect)
	return Result{Kind: ResultRedirect, Redirect: Reduce(outcomes, req.Collection)}, nil
}

func (g *Guard) decision(outcome string) {
	if g.metrics != nil {
		g.metrics.Decisions.WithLabelValues(outcome).Inc()
	}
}
