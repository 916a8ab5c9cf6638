package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SchedMetrics holds metrics for the scheduler message bus.
type SchedMetrics struct {
	// CallLatency tracks synchronous scheduler call latency.
	// Labels: method, status (success, failure, timeout).
	CallLatency *prometheus.HistogramVec

	// CastsTotal counts fire-and-forget broadcasts by method and status.
	CastsTotal *prometheus.CounterVec
}

// Scheduler call status label values.
const (
	SchedSuccess = "success"
	SchedFailure = "failure"
	SchedTimeout = "timeout"
)

// DefaultSchedLatencyBuckets covers scheduler round trips over the bus.
var DefaultSchedLatencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0,
}

// NewSchedMetrics creates and registers scheduler bus metrics on the
// default registry via promauto.
func NewSchedMetrics() *SchedMetrics {
	return newSchedMetrics(nil)
}

// NewSchedMetricsWithRegistry creates scheduler bus metrics on a custom registry.
func NewSchedMetricsWithRegistry(reg prometheus.Registerer) *SchedMetrics {
	return newSchedMetrics(reg)
}

func newSchedMetrics(reg prometheus.Registerer) *SchedMetrics {
	factory := promauto.With(reg)
	if reg == nil {
		factory = promauto.With(prometheus.DefaultRegisterer)
	}

	return &SchedMetrics{
		CallLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "strato",
				Subsystem: "sched",
				Name:      "call_latency_seconds",
				Help:      "Scheduler call round-trip latency, broken down by method and status.",
				Buckets:   DefaultSchedLatencyBuckets,
			},
			[]string{"method", "status"},
		),
		CastsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "strato",
				Subsystem: "sched",
				Name:      "casts_total",
				Help:      "Fire-and-forget scheduler broadcasts, broken down by method and status.",
			},
			[]string{"method", "status"},
		),
	}
}
