package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RegistryMetrics holds metrics for zone registry operations.
type RegistryMetrics struct {
	// OperationLatency tracks registry operation latency.
	// Labels: operation (create, get, update, delete, list),
	// status (success, failure).
	OperationLatency *prometheus.HistogramVec

	// RegisteredZones reports the zone count observed by the last List.
	RegisteredZones prometheus.Gauge
}

// Registry operation label values.
const (
	RegistryOpCreate = "create"
	RegistryOpGet    = "get"
	RegistryOpUpdate = "update"
	RegistryOpDelete = "delete"
	RegistryOpList   = "list"
)

// DefaultRegistryLatencyBuckets are latency buckets for metadata-backed
// registry operations, which are typically sub-millisecond to tens of ms.
var DefaultRegistryLatencyBuckets = []float64{
	0.0005, 0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0,
}

// NewRegistryMetrics creates and registers zone registry metrics on the
// default registry via promauto.
func NewRegistryMetrics() *RegistryMetrics {
	return newRegistryMetrics(nil)
}

// NewRegistryMetricsWithRegistry creates registry metrics on a custom registry.
func NewRegistryMetricsWithRegistry(reg prometheus.Registerer) *RegistryMetrics {
	return newRegistryMetrics(reg)
}

func newRegistryMetrics(reg prometheus.Registerer) *RegistryMetrics {
	factory := promauto.With(reg)
	if reg == nil {
		factory = promauto.With(prometheus.DefaultRegisterer)
	}

	return &RegistryMetrics{
		OperationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "strato",
				Subsystem: "registry",
				Name:      "operation_latency_seconds",
				Help:      "Zone registry operation latency, broken down by operation and status.",
				Buckets:   DefaultRegistryLatencyBuckets,
			},
			[]string{"operation", "status"},
		),
		RegisteredZones: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "strato",
				Subsystem: "registry",
				Name:      "registered_zones",
				Help:      "Number of registered child zones observed by the last listing.",
			},
		),
	}
}
