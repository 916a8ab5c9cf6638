package sched

import (
	"context"
	"encoding/json"
	"sync"
)

// MockBus is an in-memory Bus for tests. Calls answer from Replies by
// method name; casts are recorded.
type MockBus struct {
	mu sync.Mutex

	// Replies maps method name to the value returned for a Call. Values
	// are marshaled to JSON on the way out.
	Replies map[string]any
	// Errs maps method name to a forced error.
	Errs map[string]error

	Calls  []RecordedRequest
	Casts  []RecordedRequest
	closed bool
}

// RecordedRequest is one captured bus request.
type RecordedRequest struct {
	Method string
	Args   map[string]any
}

// NewMockBus creates an empty mock bus.
func NewMockBus() *MockBus {
	return &MockBus{
		Replies: make(map[string]any),
		Errs:    make(map[string]error),
	}
}

// Call implements Bus.
func (m *MockBus) Call(_ context.Context, method string, args map[string]any) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrBusClosed
	}
	m.Calls = append(m.Calls, RecordedRequest{Method: method, Args: args})
	if err, ok := m.Errs[method]; ok {
		return nil, err
	}
	val, ok := m.Replies[method]
	if !ok {
		return nil, nil
	}
	return json.Marshal(val)
}

// Cast implements Bus.
func (m *MockBus) Cast(_ context.Context, method string, args map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrBusClosed
	}
	m.Casts = append(m.Casts, RecordedRequest{Method: method, Args: args})
	if err, ok := m.Errs[method]; ok {
		return err
	}
	return nil
}

// Close implements Bus.
func (m *MockBus) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ Bus = (*MockBus)(nil)
