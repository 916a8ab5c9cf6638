// Package identity models resource identifiers used by the compute API.
//
// A resource can be identified three ways: by a zone-local numeric handle,
// by a globally unique token valid across zone boundaries, or by a plain
// name. Only global tokens are eligible for federated rerouting; handles
// and names never cross a zone boundary.
package identity

import (
	"strconv"

	"github.com/google/uuid"
)

// Kind classifies an identifier.
type Kind int

const (
	// KindLocal is a zone-local numeric handle.
	KindLocal Kind = iota
	// KindGlobal is a globally unique token (a UUID).
	KindGlobal
	// KindName is any other string; resolved by name lookup only.
	KindName
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindGlobal:
		return "global"
	case KindName:
		return "name"
	default:
		return "unknown"
	}
}

// Ref is a tagged resource identifier.
//
// The zero Ref is a local handle 0; construct Refs with ParseRef,
// LocalRef, or GlobalRef.
type Ref struct {
	kind   Kind
	handle int64
	raw    string
}

// ParseRef classifies a raw identifier string. Numeric strings become
// local handles, UUID-shaped strings become global tokens, and anything
// else is a name.
func ParseRef(raw string) Ref {
	if handle, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return Ref{kind: KindLocal, handle: handle, raw: raw}
	}
	if IsGlobalToken(raw) {
		return Ref{kind: KindGlobal, raw: raw}
	}
	return Ref{kind: KindName, raw: raw}
}

// LocalRef builds a Ref from a zone-local handle.
func LocalRef(handle int64) Ref {
	return Ref{kind: KindLocal, handle: handle, raw: strconv.FormatInt(handle, 10)}
}

// GlobalRef builds a Ref from a global token. It returns false when the
// token is not UUID-shaped.
func GlobalRef(token string) (Ref, bool) {
	if !IsGlobalToken(token) {
		return Ref{}, false
	}
	return Ref{kind: KindGlobal, raw: token}, true
}

// NewGlobalToken generates a fresh global token.
func NewGlobalToken() string {
	return uuid.NewString()
}

// IsGlobalToken reports whether s is shaped like a global token.
func IsGlobalToken(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// Kind returns the identifier's classification.
func (r Ref) Kind() Kind { return r.kind }

// IsGlobal reports whether the Ref is a global token.
func (r Ref) IsGlobal() bool { return r.kind == KindGlobal }

// Handle returns the local handle and true when the Ref is local.
func (r Ref) Handle() (int64, bool) {
	if r.kind != KindLocal {
		return 0, false
	}
	return r.handle, true
}

// Token returns the global token and true when the Ref is global.
func (r Ref) Token() (string, bool) {
	if r.kind != KindGlobal {
		return "", false
	}
	return r.raw, true
}

// String returns the identifier exactly as it arrived.
func (r Ref) String() string { return r.raw }
