package gateway

import (
	"context"
	"fmt"
	"sync"
)

// SentMessage records one Send call on the MockAdapter.
type SentMessage struct {
	ChannelID string
	Text      string
}

// MockAdapter implements Adapter for testing. It records sent messages and
// created/deleted threads, and allows simulating inbound messages.
type MockAdapter struct {
	mu            sync.Mutex
	connected     bool
	closed        bool
	inbound       chan InboundMessage
	sent          []SentMessage
	created       []string
	deleted       []string
	typing        []string
	threadCounter int

	// Failure injection.
	SendErr         error
	CreateThreadErr error
	DeleteThreadErr error
}

// NewMockAdapter creates a MockAdapter with a buffered inbound channel.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{inbound: make(chan InboundMessage, 100)}
}

// Connect marks the adapter as connected.
func (m *MockAdapter) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mock adapter: already closed")
	}
	m.connected = true
	return nil
}

// Listen returns the inbound message channel.
func (m *MockAdapter) Listen(ctx context.Context) (<-chan InboundMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, fmt.Errorf("mock adapter: not connected")
	}
	return m.inbound, nil
}

// Send records the outbound message.
func (m *MockAdapter) Send(ctx context.Context, channelID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.sent = append(m.sent, SentMessage{ChannelID: channelID, Text: text})
	return nil
}

// Typing records the typing indicator call.
func (m *MockAdapter) Typing(ctx context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typing = append(m.typing, channelID)
	return nil
}

// CreateThread returns a synthetic thread ID ("thread-1", "thread-2", ...).
func (m *MockAdapter) CreateThread(ctx context.Context, channelID, name string, private bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateThreadErr != nil {
		return "", m.CreateThreadErr
	}
	m.threadCounter++
	id := fmt.Sprintf("thread-%d", m.threadCounter)
	m.created = append(m.created, id)
	return id, nil
}

// DeleteThread records the deletion.
func (m *MockAdapter) DeleteThread(ctx context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteThreadErr != nil {
		return m.DeleteThreadErr
	}
	m.deleted = append(m.deleted, threadID)
	return nil
}

// Close closes the inbound channel.
func (m *MockAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.connected = false
	close(m.inbound)
	return nil
}

// SimulateInbound pushes a message onto the inbound channel.
func (m *MockAdapter) SimulateInbound(msg InboundMessage) {
	m.inbound <- msg
}

// Sent returns a copy of all recorded Send calls.
func (m *MockAdapter) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// CreatedThreads returns the IDs of threads created so far.
func (m *MockAdapter) CreatedThreads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.created))
	copy(out, m.created)
	return out
}

// DeletedThreads returns the IDs of threads deleted so far.
func (m *MockAdapter) DeletedThreads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.deleted))
	copy(out, m.deleted)
	return out
}

// TypingCalls returns the channels a typing indicator was shown in.
func (m *MockAdapter) TypingCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.typing))
	copy(out, m.typing)
	return out
}
