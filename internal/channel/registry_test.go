package channel

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soyeahso/nanoagent/internal/domain"
	"github.com/soyeahso/nanoagent/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

// mockChannel is a test double for domain.Channel.
type mockChannel struct {
	id       string
	started  atomic.Bool
	stopped  atomic.Bool
	startErr error
	stopErr  error

	mu      sync.Mutex
	sent    []domain.OutboundMessage
	handler func(domain.InboundMessage)
}

func (m *mockChannel) ID() string { return m.id }
func (m *mockChannel) Start(_ context.Context) error {
	m.started.Store(true)
	return m.startErr
}
func (m *mockChannel) Stop(_ context.Context) error {
	m.stopped.Store(true)
	return m.stopErr
}
func (m *mockChannel) Send(_ context.Context, msg domain.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}
func (m *mockChannel) OnMessage(handler func(domain.InboundMessage)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}
func (m *mockChannel) Status() domain.ChannelStatus {
	up := m.started.Load() && !m.stopped.Load()
	return domain.ChannelStatus{ChannelID: m.id, Connected: up, Running: up}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&mockChannel{id: "test"})

	got, ok := reg.Get("test")
	require.True(t, ok)
	assert.Equal(t, "test", got.ID())

	_, ok = reg.Get("nonexistent")
	assert.False(t, ok)
}

func TestRegistry_ListSorted(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&mockChannel{id: "websocket"})
	reg.Register(&mockChannel{id: "irc"})
	reg.Register(&mockChannel{id: "cli"})

	assert.Equal(t, []string{"cli", "irc", "websocket"}, reg.List())

	var seen []string
	reg.Each(func(ch domain.Channel) { seen = append(seen, ch.ID()) })
	assert.Equal(t, []string{"cli", "irc", "websocket"}, seen)
}

func TestRegistry_Count(t *testing.T) {
	reg := NewRegistry(testLogger())
	assert.Equal(t, 0, reg.Count())

	reg.Register(&mockChannel{id: "irc"})
	assert.Equal(t, 1, reg.Count())
}

func TestRegistry_Status(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&mockChannel{id: "irc"})
	reg.Register(&plainChannel{id: "cli"})

	statuses := reg.Status()
	require.Len(t, statuses, 2)
	assert.Equal(t, domain.ChannelStatus{ChannelID: "cli", Running: true}, statuses[0])
	assert.Equal(t, "irc", statuses[1].ChannelID)
	assert.False(t, statuses[1].Running)
}

// plainChannel has no Status method.
type plainChannel struct{ id string }

func (p *plainChannel) ID() string                                         { return p.id }
func (p *plainChannel) Start(context.Context) error                        { return nil }
func (p *plainChannel) Stop(context.Context) error                         { return nil }
func (p *plainChannel) Send(context.Context, domain.OutboundMessage) error { return nil }
func (p *plainChannel) OnMessage(func(domain.InboundMessage))              {}

func TestRegistry_StartAll(t *testing.T) {
	reg := NewRegistry(testLogger())
	ch1 := &mockChannel{id: "irc"}
	ch2 := &mockChannel{id: "websocket", startErr: assert.AnError}
	reg.Register(ch1)
	reg.Register(ch2)

	// StartAll fires goroutines and always returns nil; errors are logged.
	require.NoError(t, reg.StartAll(context.Background()))
	assert.Eventually(t, ch1.started.Load, time.Second, 10*time.Millisecond)
	assert.Eventually(t, ch2.started.Load, time.Second, 10*time.Millisecond)
}

func TestRegistry_StopAll(t *testing.T) {
	reg := NewRegistry(testLogger())
	ch1 := &mockChannel{id: "irc"}
	ch2 := &mockChannel{id: "websocket", stopErr: assert.AnError}
	reg.Register(ch1)
	reg.Register(ch2)

	reg.StopAll(context.Background())
	assert.True(t, ch1.stopped.Load())
	assert.True(t, ch2.stopped.Load())
}

func TestAllowed(t *testing.T) {
	tests := []struct {
		name   string
		allow  []string
		sender string
		want   bool
	}{
		{"empty list allows everyone", nil, "anyone", true},
		{"listed", []string{"alice", "bob"}, "bob", true},
		{"not listed", []string{"alice"}, "mallory", false},
		{"composite id part", []string{"12345"}, "12345|alice", true},
		{"composite username part", []string{"alice"}, "12345|alice", true},
		{"composite no match", []string{"bob"}, "12345|alice", false},
		{"empty composite parts ignored", []string{""}, "|", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allowed(tt.allow, tt.sender))
		})
	}
}
