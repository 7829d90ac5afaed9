// Package bus connects channels to the agent loop: inbound messages are
// queued for the single consumer, outbound messages are handed to the
// handler registered for their channel.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/soyeahso/nanoagent/internal/domain"
	"github.com/soyeahso/nanoagent/internal/logging"
)

// DefaultBufferSize is the inbound queue capacity when none is configured.
const DefaultBufferSize = 100

const defaultPublishTimeout = 10 * time.Second

var (
	// ErrClosed is returned when publishing to a closed bus.
	ErrClosed = errors.New("bus closed")

	// ErrFull is returned when the inbound queue stayed full for the whole
	// publish timeout.
	ErrFull = errors.New("inbound queue full")

	// ErrNoHandler is returned when no outbound handler exists for a channel.
	ErrNoHandler = errors.New("no outbound handler for channel")
)

// OutboundHandler delivers a reply to a channel.
type OutboundHandler func(ctx context.Context, msg domain.OutboundMessage) error

// Bus routes messages between channels and the agent.
type Bus interface {
	// PublishInbound queues a message for the agent. It blocks while the
	// queue is full, up to the publish timeout or ctx.
	PublishInbound(ctx context.Context, msg domain.InboundMessage) error

	// ConsumeInbound waits for the next inbound message until ctx is done.
	// ok is false when ctx expired or the bus was closed.
	ConsumeInbound(ctx context.Context) (msg domain.InboundMessage, ok bool)

	// PublishOutbound hands msg to the handler subscribed for its channel.
	PublishOutbound(ctx context.Context, msg domain.OutboundMessage) error

	// SubscribeOutbound registers the handler for a channel, replacing any
	// previous one.
	SubscribeOutbound(channelID string, h OutboundHandler)
}

// MemoryBus is an in-process Bus backed by a buffered Go channel.
type MemoryBus struct {
	inbound        chan domain.InboundMessage
	done           chan struct{}
	publishTimeout time.Duration
	log            *logging.Logger

	mu       sync.RWMutex
	handlers map[string]OutboundHandler
	closed   bool
}

// Option configures a MemoryBus.
type Option func(*MemoryBus)

// WithPublishTimeout overrides how long PublishInbound waits on a full queue.
func WithPublishTimeout(d time.Duration) Option {
	return func(b *MemoryBus) { b.publishTimeout = d }
}

// New creates a MemoryBus with the given inbound capacity.
func New(bufferSize int, log *logging.Logger, opts ...Option) *MemoryBus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	b := &MemoryBus{
		inbound:        make(chan domain.InboundMessage, bufferSize),
		done:           make(chan struct{}),
		publishTimeout: defaultPublishTimeout,
		handlers:       make(map[string]OutboundHandler),
		log:            log.Sub("bus"),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *MemoryBus) PublishInbound(ctx context.Context, msg domain.InboundMessage) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	select {
	case b.inbound <- msg:
		return nil
	default:
	}

	b.log.Warn().
		Str("channel", msg.ChannelID).
		Str("sender", msg.SenderID).
		Msg("inbound queue full, waiting")

	timer := time.NewTimer(b.publishTimeout)
	defer timer.Stop()
	select {
	case b.inbound <- msg:
		return nil
	case <-timer.C:
		b.log.Error().
			Str("channel", msg.ChannelID).
			Str("sender", msg.SenderID).
			Dur("waited", b.publishTimeout).
			Msg("inbound message dropped")
		return ErrFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MemoryBus) ConsumeInbound(ctx context.Context) (domain.InboundMessage, bool) {
	select {
	case msg := <-b.inbound:
		return msg, true
	case <-b.done:
		return domain.InboundMessage{}, false
	case <-ctx.Done():
		return domain.InboundMessage{}, false
	}
}

func (b *MemoryBus) PublishOutbound(ctx context.Context, msg domain.OutboundMessage) error {
	b.mu.RLock()
	h, ok := b.handlers[msg.ChannelID]
	closed := b.closed
	b.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if !ok {
		b.log.Warn().Str("channel", msg.ChannelID).Msg("no outbound handler registered")
		return fmt.Errorf("%w %q", ErrNoHandler, msg.ChannelID)
	}
	return h(ctx, msg)
}

func (b *MemoryBus) SubscribeOutbound(channelID string, h OutboundHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channelID] = h
}

// Pending returns the number of queued inbound messages.
func (b *MemoryBus) Pending() int {
	return len(b.inbound)
}

// Close stops accepting messages and wakes any waiting consumer. Queued
// messages that were not consumed are discarded.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
}
