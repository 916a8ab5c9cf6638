// Package api exposes the zone's HTTP/JSON surface.
//
// The API speaks the same dialect the zone client consumes: payloads
// wrapped under the singular collection key, error envelopes of the
// form {"error": {"kind", "message"}}, token auth via X-Auth-Token, and
// POST /v1/auth/tokens to trade credentials for a token. A parent zone
// pointed at this server routes through it exactly like any other
// child.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strato-io/strato/internal/compute"
	"github.com/strato-io/strato/internal/identity"
	"github.com/strato-io/strato/internal/logging"
	"github.com/strato-io/strato/internal/reroute"
	"github.com/strato-io/strato/internal/sched"
	"github.com/strato-io/strato/internal/zone"
)

// Config holds the API server settings.
type Config struct {
	ListenAddr string
	// Username and Password are the credentials accepted by the token
	// endpoint.
	Username string
	Password string
	// AuthToken is the bearer token issued to authenticated callers.
	AuthToken string
}

// Server is the zone API server.
type Server struct {
	cfg       Config
	registry  *zone.Registry
	compute   *compute.Service
	guard     *reroute.Guard
	scheduler *sched.Scheduler
	logger    *logging.Logger

	mu         sync.Mutex
	httpServer *http.Server
	boundAddr  string
}

// New creates an API server. scheduler may be nil when the zone runs
// without a scheduler bus; the scheduler endpoints then return 503.
func New(cfg Config, registry *zone.Registry, comp *compute.Service, guard *reroute.Guard, scheduler *sched.Scheduler, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Server{
		cfg:       cfg,
		registry:  registry,
		compute:   comp,
		guard:     guard,
		scheduler: scheduler,
		logger:    logger.With(map[string]any{"component": "api"}),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/auth/tokens", s.handleAuth)

	mux.Handle("GET /v1/servers", s.requireAuth(s.handleListOrFindServers))
	mux.Handle("POST /v1/servers", s.requireAuth(s.handleCreateServer))
	mux.Handle("GET /v1/servers/{id}", s.requireAuth(s.handleGetServer))
	mux.Handle("DELETE /v1/servers/{id}", s.requireAuth(s.handleDeleteServer))
	mux.Handle("POST /v1/servers/{id}/{action}", s.requireAuth(s.handleServerAction))

	mux.Handle("GET /v1/zones", s.requireAuth(s.handleListZones))
	mux.Handle("POST /v1/zones", s.requireAuth(s.handleCreateZone))
	mux.Handle("GET /v1/zones/{id}", s.requireAuth(s.handleGetZone))
	mux.Handle("PUT /v1/zones/{id}", s.requireAuth(s.handleUpdateZone))
	mux.Handle("DELETE /v1/zones/{id}", s.requireAuth(s.handleDeleteZone))

	mux.Handle("GET /v1/capabilities", s.requireAuth(s.handleCapabilities))

	return s.withRequestID(mux)
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.httpServer = srv
	s.boundAddr = ln.Addr().String()
	s.mu.Unlock()

	s.logger.Infof("api server listening", map[string]any{"addr": ln.Addr().String()})

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("api server error", map[string]any{"error": err.Error()})
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured address before
// Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.boundAddr != "" {
		return s.boundAddr
	}
	return s.cfg.ListenAddr
}

// Close drains and shuts down the server.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// withRequestID tags every request with an ID and logs it on the way
// out.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)

		logger := s.logger.WithRequestID(requestID)
		ctx := logging.WithLoggerCtx(r.Context(), logger)
		ctx = logging.WithRequestIDCtx(ctx, requestID)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		logger.Debugf("request handled", map[string]any{
			"method":  r.Method,
			"path":    r.URL.Path,
			"elapsed": time.Since(start).String(),
		})
	})
}

func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AuthToken == "" || r.Header.Get("X-Auth-Token") != s.cfg.AuthToken {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid auth token")
			return
		}
		next(w, r)
	})
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "badRequest", "malformed credentials")
		return
	}
	if creds.Username != s.cfg.Username || creds.Password != s.cfg.Password {
		writeError(w, http.StatusUnauthorized, "unauthorized", "bad credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": s.cfg.AuthToken})
}

func (s *Server) handleGetServer(w http.ResponseWriter, r *http.Request) {
	s.routeServerOp(w, r, "get", identity.ParseRef(r.PathValue("id")))
}

func (s *Server) handleListOrFindServers(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("name"); name != "" {
		s.routeServerOp(w, r, "find", identity.ParseRef(name))
		return
	}

	instances, err := s.compute.List(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	views := make([]map[string]any, 0, len(instances))
	for _, inst := range instances {
		views = append(views, inst.View())
	}
	writeJSON(w, http.StatusOK, map[string]any{"servers": views})
}

func (s *Server) handleServerAction(w http.ResponseWriter, r *http.Request) {
	action := r.PathValue("action")
	s.routeServerOp(w, r, action, identity.ParseRef(r.PathValue("id")))
}

// routeServerOp runs one server operation through the routing guard.
// Redirect results are written verbatim: the payload was already
// aggregated and sanitized by the routing layer.
func (s *Server) routeServerOp(w http.ResponseWriter, r *http.Request, method string, ref identity.Ref) {
	local := s.localServerOp(method)
	result, err := s.guard.Execute(r.Context(), reroute.Request{
		Collection: "servers",
		Method:     method,
		Ref:        ref,
	}, local)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	switch result.Kind {
	case reroute.ResultRedirect:
		writeJSON(w, http.StatusOK, result.Redirect)
	default:
		writeJSON(w, http.StatusOK, result.Local)
	}
}

// localServerOp builds the local execution path for a method. The ref
// it receives from the guard is always locally actionable.
func (s *Server) localServerOp(method string) reroute.LocalFunc {
	return func(ctx context.Context, ref identity.Ref) (any, error) {
		inst, err := s.compute.Lookup(ctx, ref)
		if err != nil {
			return nil, err
		}
		if method != "get" && method != "find" {
			inst, err = s.compute.Action(ctx, inst.Handle, method)
			if err != nil {
				return nil, err
			}
		}
		return map[string]any{"server": inst.View()}, nil
	}
}

func (s *Server) handleCreateServer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Server struct {
			Name     string            `json:"name"`
			Metadata map[string]string `json:"metadata"`
		} `json:"server"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "badRequest", "malformed server body")
		return
	}
	if body.Server.Name == "" {
		writeError(w, http.StatusBadRequest, "badRequest", "server name is required")
		return
	}

	inst, err := s.compute.Create(r.Context(), body.Server.Name, body.Server.Metadata)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	view := inst.View()
	// The creator gets the global token back; it is the handle they
	// keep across zones.
	view["token"] = inst.Token
	writeJSON(w, http.StatusCreated, map[string]any{"server": view})
}

func (s *Server) handleDeleteServer(w http.ResponseWriter, r *http.Request) {
	ref := identity.ParseRef(r.PathValue("id"))
	handle, ok := ref.Handle()
	if !ok {
		writeError(w, http.StatusBadRequest, "badRequest", "delete requires a local handle")
		return
	}
	if err := s.compute.Delete(r.Context(), handle); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListZones(w http.ResponseWriter, r *http.Request) {
	zones, err := s.registry.List(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	views := make([]map[string]any, 0, len(zones))
	for _, z := range zones {
		views = append(views, zoneView(z))
	}
	writeJSON(w, http.StatusOK, map[string]any{"zones": views})
}

func (s *Server) handleCreateZone(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Zone zone.Zone `json:"zone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "badRequest", "malformed zone body")
		return
	}
	if err := body.Zone.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "badRequest", err.Error())
		return
	}
	if err := s.registry.Create(r.Context(), body.Zone); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"zone": zoneView(body.Zone)})
}

func (s *Server) handleGetZone(w http.ResponseWriter, r *http.Request) {
	z, err := s.registry.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"zone": zoneView(z)})
}

func (s *Server) handleUpdateZone(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Zone zone.Zone `json:"zone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "badRequest", "malformed zone body")
		return
	}
	body.Zone.ID = r.PathValue("id")
	if err := body.Zone.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "badRequest", err.Error())
		return
	}
	if err := s.registry.Update(r.Context(), body.Zone); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"zone": zoneView(body.Zone)})
}

func (s *Server) handleDeleteZone(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "scheduler bus is not configured")
		return
	}
	caps, err := s.scheduler.ZoneCapabilities(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"capabilities": caps})
}

// zoneView renders a zone without its credentials.
func zoneView(z zone.Zone) map[string]any {
	v := map[string]any{
		"id":     z.ID,
		"name":   z.Name,
		"apiUrl": z.APIURL,
	}
	if len(z.Capabilities) > 0 {
		v["capabilities"] = z.Capabilities
	}
	if z.RegisteredAt != 0 {
		v["registeredAt"] = time.UnixMilli(z.RegisteredAt).UTC().Format(time.RFC3339)
	}
	return v
}

// writeFailure maps a domain error to its HTTP shape.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case reroute.IsNotFound(err),
		errors.Is(err, compute.ErrInstanceNotFound),
		errors.Is(err, zone.ErrZoneNotFound):
		writeError(w, http.StatusNotFound, "notFound", "resource not found")
	case errors.Is(err, compute.ErrUnknownAction):
		writeError(w, http.StatusBadRequest, "badRequest", err.Error())
	case errors.Is(err, zone.ErrZoneExists):
		writeError(w, http.StatusConflict, "conflict", "zone already registered")
	default:
		logging.FromCtx(r.Context()).Errorf("request failed", map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
			"error":  err.Error(),
		})
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"kind":    kind,
			"message": message,
		},
	})
}
