package reroute

import (
	"strings"

	"github.com/strato-io/strato/internal/zoneclient"
)

// publicResourceFields is the set of resource attributes that may cross
// the zone boundary. Anything a child zone returns outside this set,
// credentials and internal bookkeeping included, is dropped during
// aggregation.
var publicResourceFields = map[string]struct{}{
	"id":        {},
	"name":      {},
	"status":    {},
	"created":   {},
	"updated":   {},
	"progress":  {},
	"addresses": {},
	"metadata":  {},
	"flavor":    {},
	"image":     {},
}

// Reduce collapses a fan-out's outcomes into a single response payload.
// The first OutcomeFound in slice order wins; because outcomes are
// positional and the zone snapshot is sorted by zone ID, the winner is
// deterministic for a given snapshot. The winner's payload is sanitized
// and wrapped under the canonical response key for the collection. If no
// zone found the resource the payload is an empty object.
func Reduce(outcomes []ZoneOutcome, collection string) map[string]any {
	for _, out := range outcomes {
		if out.Kind != OutcomeFound {
			continue
		}
		return map[string]any{
			responseKey(collection): sanitize(out.Payload),
		}
	}
	return map[string]any{}
}

func sanitize(res zoneclient.Resource) map[string]any {
	clean := make(map[string]any, len(publicResourceFields))
	for k, v := range res {
		if _, ok := publicResourceFields[k]; ok {
			clean[k] = v
		}
	}
	return clean
}

// responseKey maps a collection name to the key its single-resource
// responses are wrapped under, "servers" to "server" and so on.
func responseKey(collection string) string {
	return strings.TrimSuffix(collection, "s")
}
