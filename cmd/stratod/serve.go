package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/strato-io/strato/internal/api"
	"github.com/strato-io/strato/internal/compute"
	"github.com/strato-io/strato/internal/config"
	"github.com/strato-io/strato/internal/logging"
	"github.com/strato-io/strato/internal/metadata"
	"github.com/strato-io/strato/internal/metadata/keys"
	"github.com/strato-io/strato/internal/metadata/oxia"
	"github.com/strato-io/strato/internal/metrics"
	"github.com/strato-io/strato/internal/reroute"
	"github.com/strato-io/strato/internal/resolver"
	"github.com/strato-io/strato/internal/sched"
	"github.com/strato-io/strato/internal/zone"
)

// ServiceOptions configures a zone service instance.
type ServiceOptions struct {
	Config  *config.Config
	Logger  *logging.Logger
	Version string
}

// Service is the assembled zone service: metadata store, registry,
// compute, routing guard, scheduler bus, and the three HTTP surfaces
// (API, health, metrics).
type Service struct {
	cfg    *config.Config
	logger *logging.Logger

	store         metadata.Store
	registry      *zone.Registry
	bus           *sched.KafkaBus
	apiServer     *api.Server
	healthServer  *api.HealthServer
	metricsServer *metrics.Server
}

// NewService wires up the full service from config. The scheduler bus
// is optional: with no brokers configured the zone runs standalone and
// scheduler-backed endpoints report unavailable.
func NewService(opts ServiceOptions) (*Service, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	store, err := oxia.New(oxia.Config{
		ServiceAddress: cfg.Registry.OxiaEndpoint,
		Namespace:      cfg.Registry.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to metadata store: %w", err)
	}

	registry := zone.NewRegistry(store, logger).
		WithMetrics(metrics.NewRegistryMetrics())
	comp := compute.NewService(store, logger)

	res, err := resolver.NewStoreResolver(store)
	if err != nil {
		store.Close()
		return nil, err
	}

	rerouteMetrics := metrics.NewRerouteMetrics()
	fanout := reroute.NewFanOut(reroute.NewClientDialer(nil), reroute.FanOutConfig{
		ZoneTimeout:      cfg.Routing.ZoneTimeout(),
		IgnoreErrorKinds: cfg.Routing.IgnoreErrorKinds,
	}, logger).WithMetrics(rerouteMetrics)
	guard := reroute.NewGuard(reroute.GuardConfig{Enabled: cfg.Routing.Enabled},
		registry, res, fanout, logger).WithMetrics(rerouteMetrics)

	var bus *sched.KafkaBus
	var scheduler *sched.Scheduler
	if len(cfg.Scheduler.Brokers) > 0 {
		bus, err = sched.NewKafkaBus(sched.KafkaConfig{
			Brokers:          cfg.Scheduler.Brokers,
			Topic:            cfg.Scheduler.Topic,
			ReplyTopicPrefix: cfg.Scheduler.ReplyTopicPrefix,
			CallTimeout:      cfg.Scheduler.CallTimeout(),
		}, logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("connecting scheduler bus: %w", err)
		}
		bus.WithMetrics(metrics.NewSchedMetrics())
		scheduler = sched.NewScheduler(bus, registry, logger)
	} else {
		logger.Info("no scheduler brokers configured, running standalone")
	}

	authToken := cfg.API.AuthToken
	if authToken == "" {
		authToken = uuid.NewString()
		logger.Warn("no API auth token configured, generated an ephemeral one")
	}

	apiServer := api.New(api.Config{
		ListenAddr: cfg.API.ListenAddr,
		Username:   cfg.API.Username,
		Password:   cfg.API.Password,
		AuthToken:  authToken,
	}, registry, comp, guard, scheduler, logger)

	healthServer := api.NewHealthServer(cfg.Observability.HealthAddr, logger)
	healthServer.RegisterReadinessCheck(api.CheckerFunc{
		CheckerName: "metadata",
		Check: func(ctx context.Context) error {
			_, err := store.Get(ctx, keys.InstanceCounterKey)
			return err
		},
	})

	return &Service{
		cfg:           cfg,
		logger:        logger,
		store:         store,
		registry:      registry,
		bus:           bus,
		apiServer:     apiServer,
		healthServer:  healthServer,
		metricsServer: metrics.NewServer(cfg.Observability.MetricsAddr),
	}, nil
}

// Start brings up the HTTP surfaces.
func (s *Service) Start() error {
	if err := s.metricsServer.Start(); err != nil {
		return fmt.Errorf("starting metrics server: %w", err)
	}
	if err := s.healthServer.Start(); err != nil {
		return fmt.Errorf("starting health server: %w", err)
	}
	if err := s.apiServer.Start(); err != nil {
		return fmt.Errorf("starting api server: %w", err)
	}
	s.logger.Infof("zone service started", map[string]any{
		"zone":    s.cfg.Zone.Name,
		"api":     s.apiServer.Addr(),
		"metrics": s.metricsServer.Addr(),
		"routing": s.cfg.Routing.Enabled,
	})
	return nil
}

// Shutdown drains the API, then tears down the bus and the store. The
// context bounds the whole teardown.
func (s *Service) Shutdown(ctx context.Context) error {
	s.healthServer.SetShuttingDown()

	done := make(chan error, 1)
	go func() { done <- s.closeAll() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) closeAll() error {
	var firstErr error
	if err := s.apiServer.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.bus != nil {
		if err := s.bus.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.healthServer.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.metricsServer.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
