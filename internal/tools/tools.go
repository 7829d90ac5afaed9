// Package tools holds the agent's built-in tools.
package tools

import (
	"context"
	"sync"

	"github.com/soyeahso/nanoagent/internal/domain"
)

// Publisher delivers outbound messages. bus.Bus satisfies it.
type Publisher interface {
	PublishOutbound(ctx context.Context, msg domain.OutboundMessage) error
}

// destination remembers where the message being processed came from.
type destination struct {
	mu       sync.RWMutex
	channel  string
	chatID   string
	metadata map[string]any
}

func (d *destination) SetContext(channel, chatID string, metadata map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channel = channel
	d.chatID = chatID
	d.metadata = domain.CopyMetadata(metadata)
}

func (d *destination) get() (channel, chatID string, metadata map[string]any) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.channel, d.chatID, domain.CopyMetadata(d.metadata)
}
