package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/strato-io/strato/internal/logging"
)

// ReadinessChecker reports whether a dependency is ready to serve. The
// metadata store and the scheduler bus implement this to participate in
// /readyz.
type ReadinessChecker interface {
	Name() string
	CheckReady(ctx context.Context) error
}

// CheckerFunc adapts a function to ReadinessChecker.
type CheckerFunc struct {
	CheckerName string
	Check       func(ctx context.Context) error
}

func (c CheckerFunc) Name() string { return c.CheckerName }

func (c CheckerFunc) CheckReady(ctx context.Context) error { return c.Check(ctx) }

// DefaultReadinessTimeout bounds each individual readiness check.
const DefaultReadinessTimeout = 5 * time.Second

// HealthStatus is the health endpoint response body.
type HealthStatus struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is one dependency's contribution to a health response.
type CheckResult struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// HealthServer serves /healthz and /readyz on its own listener, kept
// separate from the API port so probes keep answering while the API
// drains.
type HealthServer struct {
	mu        sync.RWMutex
	addr      string
	boundAddr string
	server    *http.Server
	logger    *logging.Logger
	shutDown  atomic.Bool
	checks    []ReadinessChecker
	timeout   time.Duration
}

// NewHealthServer creates a health server on addr.
func NewHealthServer(addr string, logger *logging.Logger) *HealthServer {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &HealthServer{
		addr:    addr,
		logger:  logger.With(map[string]any{"component": "health"}),
		timeout: DefaultReadinessTimeout,
	}
}

// RegisterReadinessCheck adds a dependency to /readyz. Call before
// Start.
func (h *HealthServer) RegisterReadinessCheck(checker ReadinessChecker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, checker)
}

// SetShuttingDown flips both endpoints to 503 for the remainder of the
// process lifetime.
func (h *HealthServer) SetShuttingDown() {
	h.shutDown.Store(true)
}

// Start binds the listener and serves in the background.
func (h *HealthServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.HandleFunc("GET /readyz", h.handleReadyz)

	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.boundAddr = ln.Addr().String()
	h.mu.Unlock()

	h.logger.Infof("health server listening", map[string]any{"addr": ln.Addr().String()})

	go func() {
		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.logger.Errorf("health server error", map[string]any{"error": err.Error()})
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured address before
// Start.
func (h *HealthServer) Addr() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.boundAddr != "" {
		return h.boundAddr
	}
	return h.addr
}

// Close shuts down the health server.
func (h *HealthServer) Close() error {
	if h.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.server.Shutdown(ctx)
}

func (h *HealthServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{Status: "ok"}
	if h.shutDown.Load() {
		status.Status = "shutting_down"
	}
	writeHealth(w, status)
}

func (h *HealthServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, h.checkReadiness(r.Context()))
}

func (h *HealthServer) checkReadiness(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status: "ok",
		Checks: make(map[string]CheckResult),
	}
	if h.shutDown.Load() {
		status.Status = "shutting_down"
		return status
	}

	h.mu.RLock()
	checks := make([]ReadinessChecker, len(h.checks))
	copy(checks, h.checks)
	timeout := h.timeout
	h.mu.RUnlock()

	for _, checker := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		err := checker.CheckReady(checkCtx)
		cancel()

		if err != nil {
			status.Status = "not_ready"
			status.Checks[checker.Name()] = CheckResult{Healthy: false, Message: err.Error()}
		} else {
			status.Checks[checker.Name()] = CheckResult{Healthy: true, Message: "healthy"}
		}
	}
	return status
}

func writeHealth(w http.ResponseWriter, status HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	if status.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}
