// Package config provides configuration loading and validation for Strato.
// Supports YAML files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a Strato zone service.
type Config struct {
	Zone          ZoneConfig          `yaml:"zone"`
	Routing       RoutingConfig       `yaml:"routing"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Registry      RegistryConfig      `yaml:"registry"`
	API           APIConfig           `yaml:"api"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ZoneConfig identifies the local zone.
type ZoneConfig struct {
	ID   string `yaml:"id" env:"STRATO_ZONE_ID"`
	Name string `yaml:"name" env:"STRATO_ZONE_NAME"`
}

// RoutingConfig controls federated routing to child zones.
type RoutingConfig struct {
	// Enabled turns on rerouting to child zones when a global
	// identifier cannot be resolved locally.
	Enabled bool `yaml:"enabled" env:"STRATO_ROUTING_ENABLED"`

	// ZoneTimeoutMs bounds each per-zone call during a fan-out.
	// Zero disables the per-zone timeout.
	ZoneTimeoutMs int64 `yaml:"zoneTimeoutMs" env:"STRATO_ROUTING_ZONE_TIMEOUT_MS"`

	// IgnoreErrorKinds lists remote operation error kinds that are
	// treated as "no answer from this zone" instead of a zone failure.
	IgnoreErrorKinds []string `yaml:"ignoreErrorKinds"`
}

// SchedulerConfig configures the scheduler message bus.
type SchedulerConfig struct {
	Brokers          []string `yaml:"brokers"`
	Topic            string   `yaml:"topic" env:"STRATO_SCHEDULER_TOPIC"`
	ReplyTopicPrefix string   `yaml:"replyTopicPrefix" env:"STRATO_SCHEDULER_REPLY_PREFIX"`
	CallTimeoutMs    int64    `yaml:"callTimeoutMs" env:"STRATO_SCHEDULER_CALL_TIMEOUT_MS"`
}

// RegistryConfig configures the metadata store backing the zone registry.
type RegistryConfig struct {
	OxiaEndpoint string `yaml:"oxiaEndpoint" env:"STRATO_OXIA_ENDPOINT"`
	Namespace    string `yaml:"namespace" env:"STRATO_OXIA_NAMESPACE"`
}

// APIConfig configures the local compute API server.
type APIConfig struct {
	ListenAddr string `yaml:"listenAddr" env:"STRATO_LISTEN_ADDR"`
	Username   string `yaml:"username" env:"STRATO_API_USERNAME"`
	Password   string `yaml:"password" env:"STRATO_API_PASSWORD"`
	AuthToken  string `yaml:"authToken" env:"STRATO_API_AUTH_TOKEN"`
}

// ObservabilityConfig configures metrics, health probes, and logging.
type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metricsAddr" env:"STRATO_METRICS_ADDR"`
	HealthAddr  string `yaml:"healthAddr" env:"STRATO_HEALTH_ADDR"`
	LogLevel    string `yaml:"logLevel" env:"STRATO_LOG_LEVEL"`
	LogFormat   string `yaml:"logFormat" env:"STRATO_LOG_FORMAT"`
}

// ZoneTimeout returns the per-zone fan-out timeout as a duration.
func (c *RoutingConfig) ZoneTimeout() time.Duration {
	return time.Duration(c.ZoneTimeoutMs) * time.Millisecond
}

// CallTimeout returns the scheduler call timeout as a duration.
func (c *SchedulerConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutMs) * time.Millisecond
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Zone: ZoneConfig{
			Name: "zone-local",
		},
		Routing: RoutingConfig{
			Enabled:       false,
			ZoneTimeoutMs: 30000,
		},
		Scheduler: SchedulerConfig{
			Topic:            "scheduler",
			ReplyTopicPrefix: "scheduler-reply",
			CallTimeoutMs:    30000,
		},
		Registry: RegistryConfig{
			OxiaEndpoint: "localhost:6648",
			Namespace:    "strato",
		},
		API: APIConfig{
			ListenAddr: ":8774",
		},
		Observability: ObservabilityConfig{
			MetricsAddr: ":9090",
			HealthAddr:  ":9091",
			LogLevel:    "info",
			LogFormat:   "json",
		},
	}
}

// Load returns the default configuration with environment overrides applied.
func Load() (*Config, error) {
	cfg := Default()
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath reads a YAML config file, applies environment overrides,
// and validates the result.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Zone.Name == "" {
		return fmt.Errorf("config: zone.name is required")
	}
	if c.Routing.ZoneTimeoutMs < 0 {
		return fmt.Errorf("config: routing.zoneTimeoutMs must be >= 0")
	}
	if c.Scheduler.Topic == "" {
		return fmt.Errorf("config: scheduler.topic is required")
	}
	if c.Registry.Namespace == "" {
		return fmt.Errorf("config: registry.namespace is required")
	}
	if c.API.ListenAddr == "" {
		return fmt.Errorf("config: api.listenAddr is required")
	}
	return nil
}

// applyEnv overrides config fields from STRATO_* environment variables.
func applyEnv(cfg *Config) {
	setString(&cfg.Zone.ID, "STRATO_ZONE_ID")
	setString(&cfg.Zone.Name, "STRATO_ZONE_NAME")
	setBool(&cfg.Routing.Enabled, "STRATO_ROUTING_ENABLED")
	setInt64(&cfg.Routing.ZoneTimeoutMs, "STRATO_ROUTING_ZONE_TIMEOUT_MS")
	setString(&cfg.Scheduler.Topic, "STRATO_SCHEDULER_TOPIC")
	setString(&cfg.Scheduler.ReplyTopicPrefix, "STRATO_SCHEDULER_REPLY_PREFIX")
	setInt64(&cfg.Scheduler.CallTimeoutMs, "STRATO_SCHEDULER_CALL_TIMEOUT_MS")
	setString(&cfg.Registry.OxiaEndpoint, "STRATO_OXIA_ENDPOINT")
	setString(&cfg.Registry.Namespace, "STRATO_OXIA_NAMESPACE")
	setString(&cfg.API.ListenAddr, "STRATO_LISTEN_ADDR")
	setString(&cfg.API.Username, "STRATO_API_USERNAME")
	setString(&cfg.API.Password, "STRATO_API_PASSWORD")
	setString(&cfg.API.AuthToken, "STRATO_API_AUTH_TOKEN")
	setString(&cfg.Observability.MetricsAddr, "STRATO_METRICS_ADDR")
	setString(&cfg.Observability.HealthAddr, "STRATO_HEALTH_ADDR")
	setString(&cfg.Observability.LogLevel, "STRATO_LOG_LEVEL")
	setString(&cfg.Observability.LogFormat, "STRATO_LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setInt64(dst *int64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}
