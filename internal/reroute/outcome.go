package reroute

import (
	"github.com/strato-io/strato/internal/identity"
	"github.com/strato-io/strato/internal/zoneclient"
)

// Operation is one resource operation to be executed against a zone.
type Operation struct {
	// Collection is the plural resource collection name, e.g. "servers".
	Collection string
	// Method is the operation name. "get" and "find" are reads; any
	// other method is a mutating action sent after the resource is
	// located in the zone.
	Method string
	// Ref identifies the resource within the zone.
	Ref identity.Ref
}

// IsRead reports whether the operation only locates the resource and
// never mutates it.
func (op Operation) IsRead() bool {
	return op.Method == "get" || op.Method == "find"
}

// OutcomeKind classifies a single zone's answer to a fanned-out
// operation.
type OutcomeKind int

const (
	// OutcomeFound means the zone located the resource and, for
	// mutating operations, completed the action.
	OutcomeFound OutcomeKind = iota
	// OutcomeNotFound means the zone authoritatively reported that the
	// resource does not exist there.
	OutcomeNotFound
	// OutcomeSkipped means the zone could not be consulted at all, or
	// failed in a way that says nothing about whether the resource
	// exists there.
	OutcomeSkipped
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFound:
		return "found"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// SkipReason says why a zone was skipped.
type SkipReason string

const (
	SkipAuthFailure SkipReason = "auth_failure"
	SkipTimeout     SkipReason = "timeout"
	SkipError       SkipReason = "error"
)

// ZoneOutcome is one zone's answer. Outcomes are positional: the slice
// returned by FanOut.Run is indexed identically to the zone snapshot it
// was given.
type ZoneOutcome struct {
	ZoneID  string
	Kind    OutcomeKind
	Payload zoneclient.Resource
	Reason  SkipReason
	Err     error
}
