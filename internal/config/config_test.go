package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Routing.Enabled {
		t.Error("routing should be disabled by default")
	}
	if cfg.Routing.ZoneTimeout() != 30*time.Second {
		t.Errorf("zone timeout = %v, want 30s", cfg.Routing.ZoneTimeout())
	}
	if cfg.Scheduler.Topic != "scheduler" {
		t.Errorf("scheduler topic = %q", cfg.Scheduler.Topic)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strato.yaml")

	data := []byte(`
zone:
  id: "zone-east"
  name: "east"
routing:
  enabled: true
  zoneTimeoutMs: 5000
  ignoreErrorKinds: ["conflict"]
scheduler:
  brokers: ["localhost:9092"]
  topic: "sched"
api:
  listenAddr: ":8080"
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if !cfg.Routing.Enabled {
		t.Error("routing.enabled not loaded")
	}
	if cfg.Routing.ZoneTimeout() != 5*time.Second {
		t.Errorf("zone timeout = %v, want 5s", cfg.Routing.ZoneTimeout())
	}
	if len(cfg.Routing.IgnoreErrorKinds) != 1 || cfg.Routing.IgnoreErrorKinds[0] != "conflict" {
		t.Errorf("ignoreErrorKinds = %v", cfg.Routing.IgnoreErrorKinds)
	}
	if cfg.Scheduler.Topic != "sched" {
		t.Errorf("scheduler topic = %q", cfg.Scheduler.Topic)
	}
	// Unset sections keep their defaults.
	if cfg.Registry.Namespace != "strato" {
		t.Errorf("registry namespace = %q, want default", cfg.Registry.Namespace)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STRATO_ROUTING_ENABLED", "true")
	t.Setenv("STRATO_SCHEDULER_TOPIC", "sched-override")
	t.Setenv("STRATO_ROUTING_ZONE_TIMEOUT_MS", "1500")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !cfg.Routing.Enabled {
		t.Error("env override for routing.enabled not applied")
	}
	if cfg.Scheduler.Topic != "sched-override" {
		t.Errorf("scheduler topic = %q", cfg.Scheduler.Topic)
	}
	if cfg.Routing.ZoneTimeoutMs != 1500 {
		t.Errorf("zoneTimeoutMs = %d, want 1500", cfg.Routing.ZoneTimeoutMs)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty zone name", func(c *Config) { c.Zone.Name = "" }},
		{"negative zone timeout", func(c *Config) { c.Routing.ZoneTimeoutMs = -1 }},
		{"empty scheduler topic", func(c *Config) { c.Scheduler.Topic = "" }},
		{"empty registry namespace", func(c *Config) { c.Registry.Namespace = "" }},
		{"empty listen addr", func(c *Config) { c.API.ListenAddr = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
