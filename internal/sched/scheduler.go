package sched

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/strato-io/strato/internal/logging"
	"github.com/strato-io/strato/internal/zone"
)

// Scheduler exposes the well-known scheduler methods over a Bus.
type Scheduler struct {
	bus       Bus
	directory zone.Directory
	logger    *logging.Logger
}

// NewScheduler creates a scheduler facade. directory is the local zone
// registry, used as the fallback source of zones when the scheduler
// reports none.
func NewScheduler(bus Bus, directory zone.Directory, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Scheduler{
		bus:       bus,
		directory: directory,
		logger:    logger.With(map[string]any{"component": "scheduler"}),
	}
}

// zoneSummary is the scheduler's wire form of a zone.
type zoneSummary struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	APIURL       string            `json:"api_url"`
	Capabilities map[string]string `json:"capabilities,omitempty"`
}

// ZoneList asks the scheduler for the known child zones. Zone API URLs
// arrive JSON-escaped from some scheduler builds, so slashes are
// unescaped before use. If the scheduler has no zones, the local
// registry is consulted instead.
func (s *Scheduler) ZoneList(ctx context.Context) ([]zone.Zone, error) {
	raw, err := s.bus.Call(ctx, "zone_list", nil)
	if err != nil {
		return nil, fmt.Errorf("asking scheduler for zones: %w", err)
	}

	var summaries []zoneSummary
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &summaries); err != nil {
			return nil, fmt.Errorf("decoding scheduler zone list: %w", err)
		}
	}

	if len(summaries) == 0 {
		s.logger.Debugf("scheduler reported no zones, falling back to registry", nil)
		if s.directory == nil {
			return nil, nil
		}
		return s.directory.List(ctx)
	}

	zones := make([]zone.Zone, 0, len(summaries))
	for _, sum := range summaries {
		zones = append(zones, zone.Zone{
			ID:           sum.ID,
			Name:         sum.Name,
			APIURL:       strings.ReplaceAll(sum.APIURL, `\/`, "/"),
			Capabilities: sum.Capabilities,
		})
	}
	return zones, nil
}

// ZoneCapabilities asks the scheduler for the aggregated capabilities of
// this zone and everything below it.
func (s *Scheduler) ZoneCapabilities(ctx context.Context) (map[string]any, error) {
	raw, err := s.bus.Call(ctx, "get_zone_capabilities", nil)
	if err != nil {
		return nil, fmt.Errorf("asking scheduler for capabilities: %w", err)
	}
	caps := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &caps); err != nil {
			return nil, fmt.Errorf("decoding scheduler capabilities: %w", err)
		}
	}
	return caps, nil
}

// Select asks the scheduler to weigh hosts for a request spec and
// returns the weighted candidates, best first.
func (s *Scheduler) Select(ctx context.Context, spec map[string]any) ([]map[string]any, error) {
	raw, err := s.bus.Call(ctx, "select", map[string]any{"request_spec": spec})
	if err != nil {
		return nil, fmt.Errorf("asking scheduler to select hosts: %w", err)
	}
	var hosts []map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &hosts); err != nil {
			return nil, fmt.Errorf("decoding scheduler selection: %w", err)
		}
	}
	return hosts, nil
}

// UpdateServiceCapabilities broadcasts a service's current capabilities
// to every scheduler instance. Fire-and-forget.
func (s *Scheduler) UpdateServiceCapabilities(ctx context.Context, serviceName, host string, caps map[string]any) error {
	return s.bus.Cast(ctx, "update_service_capabilities", map[string]any{
		"service_name": serviceName,
		"host":         host,
		"capabilities": caps,
	})
}
