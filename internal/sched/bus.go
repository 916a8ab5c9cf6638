// Package sched talks to the zone scheduler over the message bus.
//
// The scheduler is a separate process reached through a Kafka topic.
// Call publishes a request envelope and blocks for the matching reply on
// a private reply topic; Cast publishes fire-and-forget. The Scheduler
// type layers the well-known scheduler methods on top of the raw bus.
package sched

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrCallTimeout means no reply arrived within the call timeout.
	ErrCallTimeout = errors.New("sched: call timed out")
	// ErrBusClosed is returned for operations on a closed bus.
	ErrBusClosed = errors.New("sched: bus is closed")
)

// RemoteError is a failure reported by the scheduler itself, as opposed
// to a transport failure reaching it.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("sched: %s failed remotely: %s", e.Method, e.Message)
}

// Bus publishes requests to the scheduler.
type Bus interface {
	// Call publishes a request and blocks until the scheduler replies,
	// the context is done, or the call timeout elapses.
	Call(ctx context.Context, method string, args map[string]any) (json.RawMessage, error)
	// Cast publishes a request without waiting for any reply.
	Cast(ctx context.Context, method string, args map[string]any) error
	Close() error
}

// envelope is the wire form of a scheduler request.
type envelope struct {
	Method        string         `json:"method"`
	Args          map[string]any `json:"args,omitempty"`
	ReplyTo       string         `json:"replyTo,omitempty"`
	CorrelationID string         `json:"correlationId,omitempty"`
}

// reply is the wire form of a scheduler response.
type reply struct {
	CorrelationID string          `json:"correlationId"`
	Result        json.RawMessage `json:"result,omitempty"`
	Error         string          `json:"error,omitempty"`
}
