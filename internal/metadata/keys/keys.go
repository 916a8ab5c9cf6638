// Package keys defines the Oxia keyspace layout for Strato metadata.
//
// Zone registry records live under:
//
//	/strato/v1/zones/<zoneId>
//
// The local instance index maps global tokens to zone-local handles:
//
//	/strato/v1/instances/by-token/<token>
//	/strato/v1/instances/by-handle/<handleZ>
//
// where handleZ is zero-padded decimal width 20 so lexicographic key
// order matches numeric handle order.
package keys

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// HandleWidth is the number of digits for zero-padded handles.
// Width 20 covers the full int64 range.
const HandleWidth = 20

// Key prefixes.
const (
	// Prefix is the root prefix for all Strato keys.
	Prefix = "/strato/v1"

	// ZonesPrefix is the prefix for zone registry records.
	ZonesPrefix = Prefix + "/zones/"

	// InstanceTokensPrefix is the prefix for token-to-handle index entries.
	InstanceTokensPrefix = Prefix + "/instances/by-token/"

	// InstanceHandlesPrefix is the prefix for handle-to-record entries.
	InstanceHandlesPrefix = Prefix + "/instances/by-handle/"

	// InstanceCounterKey holds the next unallocated local handle.
	InstanceCounterKey = Prefix + "/instances/next-handle"
)

// ErrInvalidComponent is returned when a key component is empty or
// contains a path separator.
var ErrInvalidComponent = errors.New("keys: invalid key component")

// ValidateComponent checks that a key component is usable in the keyspace.
func ValidateComponent(s string) error {
	if s == "" || strings.ContainsAny(s, "/ ") {
		return fmt.Errorf("%w: %q", ErrInvalidComponent, s)
	}
	return nil
}

// ZoneKey returns the registry key for a zone ID.
func ZoneKey(zoneID string) string {
	return ZonesPrefix + zoneID
}

// ZoneIDFromKey extracts the zone ID from a registry key.
func ZoneIDFromKey(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, ZonesPrefix)
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// InstanceTokenKey returns the index key for a global instance token.
func InstanceTokenKey(token string) string {
	return InstanceTokensPrefix + token
}

// InstanceHandleKey returns the record key for a zone-local handle.
func InstanceHandleKey(handle int64) string {
	return InstanceHandlesPrefix + FormatHandle(handle)
}

// FormatHandle renders a handle as a zero-padded decimal string.
func FormatHandle(handle int64) string {
	return fmt.Sprintf("%0*d", HandleWidth, handle)
}

// ParseHandle parses a zero-padded handle component.
func ParseHandle(s string) (int64, error) {
	if len(s) != HandleWidth {
		return 0, fmt.Errorf("keys: handle component %q has width %d, want %d", s, len(s), HandleWidth)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("keys: parse handle %q: %w", s, err)
	}
	return n, nil
}
