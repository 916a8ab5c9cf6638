package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RerouteMetrics holds metrics for routing decisions and zone fan-outs.
type RerouteMetrics struct {
	// Decisions counts routing decisions by outcome.
	// Labels: outcome (local_hit, local_passthrough, redirect,
	// routing_disabled, no_child_zones).
	Decisions *prometheus.CounterVec

	// FanOutLatency tracks wall time of a whole fan-out, broken down by
	// whether any zone produced an answer.
	// Labels: result (found, empty).
	FanOutLatency *prometheus.HistogramVec

	// ZoneOutcomes counts per-zone fan-out outcomes.
	// Labels: zone, outcome (found, not_found, skipped).
	ZoneOutcomes *prometheus.CounterVec

	// ZonesPerFanOut observes the size of the zone snapshot per fan-out.
	ZonesPerFanOut prometheus.Histogram
}

// Routing decision label values.
const (
	DecisionLocalHit         = "local_hit"
	DecisionLocalPassthrough = "local_passthrough"
	DecisionRedirect         = "redirect"
	DecisionRoutingDisabled  = "routing_disabled"
	DecisionNoChildZones     = "no_child_zones"
)

// Fan-out result label values.
const (
	FanOutFound = "found"
	FanOutEmpty = "empty"
)

// Per-zone outcome label values.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeSkipped  = "skipped"
)

// DefaultFanOutLatencyBuckets covers fan-outs from a few milliseconds
// (all zones local and healthy) up to the per-zone timeout ceiling.
var DefaultFanOutLatencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0,
}

// NewRerouteMetrics creates and registers reroute metrics on the default
// registry via promauto.
func NewRerouteMetrics() *RerouteMetrics {
	return newRerouteMetrics(nil)
}

// NewRerouteMetricsWithRegistry creates reroute metrics on a custom registry.
func NewRerouteMetricsWithRegistry(reg prometheus.Registerer) *RerouteMetrics {
	return newRerouteMetrics(reg)
}

func newRerouteMetrics(reg prometheus.Registerer) *RerouteMetrics {
	factory := promauto.With(reg)
	if reg == nil {
		factory = promauto.With(prometheus.DefaultRegisterer)
	}

	return &RerouteMetrics{
		Decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "strato",
				Subsystem: "reroute",
				Name:      "decisions_total",
				Help:      "Routing decisions broken down by outcome.",
			},
			[]string{"outcome"},
		),
		FanOutLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "strato",
				Subsystem: "reroute",
				Name:      "fanout_latency_seconds",
				Help:      "Wall time of zone fan-outs, broken down by result.",
				Buckets:   DefaultFanOutLatencyBuckets,
			},
			[]string{"result"},
		),
		ZoneOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "strato",
				Subsystem: "reroute",
				Name:      "zone_outcomes_total",
				Help:      "Per-zone fan-out outcomes, broken down by zone and outcome.",
			},
			[]string{"zone", "outcome"},
		),
		ZonesPerFanOut: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "strato",
				Subsystem: "reroute",
				Name:      "zones_per_fanout",
				Help:      "Number of child zones contacted per fan-out.",
				Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
			},
		),
	}
}
