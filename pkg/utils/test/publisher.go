package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/reel/pkg/eventstream"
)

// ErrPublishFailed is returned by MockPublisher when FailPublish is set.
var ErrPublishFailed = errors.New("mock publish failure")

// MockPublisher is a test eventstream publisher that records envelopes.
type MockPublisher struct {
	mu sync.Mutex

	// Published accumulates all envelopes passed to Publish.
	Published []*eventstream.Envelope

	// FailPublish causes Publish to return ErrPublishFailed.
	FailPublish bool

	Closed bool
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(_ context.Context, env *eventstream.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if env == nil {
		return eventstream.ErrNilEnvelope
	}
	if m.FailPublish {
		return ErrPublishFailed
	}
	m.Published = append(m.Published, env)
	return nil
}

// Envelopes returns a copy of what has been published so far.
func (m *MockPublisher) Envelopes() []*eventstream.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*eventstream.Envelope(nil), m.Published...)
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}
