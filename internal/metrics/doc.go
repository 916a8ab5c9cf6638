// Package metrics provides Prometheus metrics for observability.
//
// This package exposes metrics for federated routing:
//   - Reroute decisions by outcome (local hit, redirect, not found)
//   - Fan-out latency and per-zone outcome counters
//   - Scheduler bus call/cast latency and failure counters
//   - Zone registry operation latency
//
// Metrics are exposed via a dedicated HTTP server on /metrics in
// Prometheus format.
//
// Usage:
//
//	rerouteMetrics := metrics.NewRerouteMetrics()
//	guard := reroute.NewGuard(...).WithMetrics(rerouteMetrics)
//
//	metricsServer := metrics.NewServer(":9090")
//	metricsServer.Start()
package metrics
