package sink

import (
	"context"
	"sync"
)

// MockSink records published messages for tests.
type MockSink struct {
	Messages   []MockMessage
	PublishErr error
	Closed     bool
	mu         sync.Mutex
}

type MockMessage struct {
	Topic string
	Key   string
	Value []byte
}

func (m *MockSink) Publish(_ context.Context, topic, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Messages = append(m.Messages, MockMessage{Topic: topic, Key: key, Value: value})
	return nil
}

func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Snapshot returns a copy of the recorded messages.
func (m *MockSink) Snapshot() []MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockMessage(nil), m.Messages...)
}

// Reset clears recorded messages and the injected error.
func (m *MockSink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = nil
	m.PublishErr = nil
}
