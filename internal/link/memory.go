package link

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Link used by tests and the bench simulation mode.
// Inbound messages are pushed by the test/simulator; outbound commands are
// recorded in send order.
type Memory struct {
	mu        sync.Mutex
	connected bool
	inbound   []Message
	sent      []Command
}

var _ Link = (*Memory)(nil)

// NewMemory creates a disconnected in-memory link.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Start(ctx context.Context) error {
	return nil
}

func (m *Memory) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// SetConnected flips the simulated connection state.
func (m *Memory) SetConnected(up bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = up
}

func (m *Memory) Send(ctx context.Context, cmd Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return fmt.Errorf("link down: cannot send %s", cmd.Type)
	}
	m.sent = append(m.sent, cmd)
	return nil
}

func (m *Memory) Poll() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.inbound
	m.inbound = nil
	return out
}

func (m *Memory) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// Push queues inbound messages for the next Poll.
func (m *Memory) Push(msgs ...Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbound = append(m.inbound, msgs...)
}

// Sent returns a copy of every command sent so far, in order.
func (m *Memory) Sent() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Command, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentOfType returns the sent commands of the given type, in order.
func (m *Memory) SentOfType(t CommandType) []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Command
	for _, c := range m.sent {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}
