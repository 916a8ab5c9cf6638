// Package zone defines child-zone records and the registry that
// persists them. The registry doubles as the zone directory consumed by
// the federated routing path.
package zone

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// Common errors returned by the registry.
var (
	// ErrZoneNotFound is returned when a zone ID is not registered.
	ErrZoneNotFound = errors.New("zone: zone not found")

	// ErrZoneExists is returned when creating a zone whose ID is taken.
	ErrZoneExists = errors.New("zone: zone already exists")
)

// Zone is one registered child zone. A Zone value is immutable for the
// duration of a routing attempt; fan-outs operate on a snapshot taken at
// the start of the attempt.
type Zone struct {
	// ID uniquely identifies the zone within the federation.
	ID string `json:"id"`

	// Name is a human-readable label.
	Name string `json:"name"`

	// APIURL is the base URL of the zone's compute API.
	APIURL string `json:"apiUrl"`

	// Username and Password authenticate against the zone's API.
	Username string `json:"username"`
	Password string `json:"password"`

	// Capabilities carries the zone's advertised capability set.
	Capabilities map[string]string `json:"capabilities,omitempty"`

	// RegisteredAt is the Unix timestamp (milliseconds) of registration.
	RegisteredAt int64 `json:"registeredAt"`
}

// Validate checks that the zone record is usable.
func (z *Zone) Validate() error {
	if z.ID == "" {
		return errors.New("zone: id is required")
	}
	if strings.ContainsAny(z.ID, "/ ") {
		return errors.New("zone: id must not contain '/' or spaces")
	}
	if z.APIURL == "" {
		return errors.New("zone: apiUrl is required")
	}
	if _, err := url.Parse(z.APIURL); err != nil {
		return errors.New("zone: apiUrl is not a valid URL")
	}
	return nil
}

// Directory is the read-only view of the registry used by the routing
// path. List returns the current zones in deterministic (ID) order; the
// returned slice is a snapshot that later registry changes do not mutate.
type Directory interface {
	List(ctx context.Context) ([]Zone, error)
}
