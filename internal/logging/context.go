package logging

import (
	"context"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey int

const (
	requestIDKey contextKey = iota
	loggerKey
)

// WithRequestIDCtx returns a new context carrying the request ID.
func WithRequestIDCtx(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromCtx extracts the request ID from the context, if any.
func RequestIDFromCtx(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithLoggerCtx returns a new context with the logger attached.
func WithLoggerCtx(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromCtx returns the logger attached to the context. If none is attached,
// the global logger is returned, tagged with the context's request ID when
// one is present.
func FromCtx(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}

	l := Global()
	if id := RequestIDFromCtx(ctx); id != "" {
		l = l.WithRequestID(id)
	}
	return l
}
