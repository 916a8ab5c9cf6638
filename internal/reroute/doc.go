// Package reroute implements federated request routing across child
// zones.
//
// A request naming a resource by global token is first resolved against
// the local zone. On a local hit the call proceeds locally with the
// resolved handle; on a local miss the same operation is fanned out
// concurrently to every registered child zone, the per-zone outcomes are
// reduced to a single canonical payload, and that payload is returned as
// a distinguished redirect result which the API boundary passes through
// to the caller verbatim.
//
// The pieces:
//
//   - Guard drives the routing decision and owns the state machine.
//   - FanOut executes one operation against a zone snapshot, one
//     goroutine per zone, joined by a barrier, outcomes in snapshot
//     order.
//   - Reduce picks the first usable answer and sanitizes it. No merging
//     of answers across zones is attempted; the first zone in snapshot
//     order wins and the rest are discarded.
package reroute
