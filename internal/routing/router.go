// Package routing connects messaging channels to the message bus: inbound
// messages from allowed senders are published for the agent, and outbound
// replies are delivered back through the channel they are addressed to.
package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/nanoagent/internal/bus"
	"github.com/soyeahso/nanoagent/internal/channel"
	"github.com/soyeahso/nanoagent/internal/domain"
	"github.com/soyeahso/nanoagent/internal/logging"
)

// ErrDenied is returned for messages from senders outside a channel's allow list.
var ErrDenied = errors.New("sender not allowed")

// Router wires a channel registry to a bus.
type Router struct {
	channels *channel.Registry
	bus      bus.Bus
	allow    map[string][]string // channel ID → allowFrom
	log      *logging.Logger
}

// NewRouter creates a message router.
func NewRouter(channels *channel.Registry, b bus.Bus, log *logging.Logger) *Router {
	return &Router{
		channels: channels,
		bus:      b,
		allow:    make(map[string][]string),
		log:      log.Sub("routing"),
	}
}

// Allow restricts a channel to the given senders. An empty list allows everyone.
func (r *Router) Allow(channelID string, allowFrom []string) {
	r.allow[channelID] = allowFrom
}

// Attach registers inbound handlers on every channel in the registry and
// subscribes each channel to its outbound messages. Call it after all
// channels are registered and before they are started. ctx bounds inbound
// publishing.
func (r *Router) Attach(ctx context.Context) {
	r.channels.Each(func(ch domain.Channel) {
		ch.OnMessage(func(msg domain.InboundMessage) {
			_ = r.HandleInbound(ctx, msg)
		})
		r.bus.SubscribeOutbound(ch.ID(), r.Deliver)
		r.log.Debug().Str("channel", ch.ID()).Msg("channel attached")
	})
}

// HandleInbound checks the sender against the channel's allow list and
// publishes the message for the agent.
func (r *Router) HandleInbound(ctx context.Context, msg domain.InboundMessage) error {
	if !channel.Allowed(r.allow[msg.ChannelID], msg.SenderID) {
		r.log.Warn().
			Str("channel", msg.ChannelID).
			Str("sender", msg.SenderID).
			Msg("access denied; add the sender to allowFrom to grant access")
		return fmt.Errorf("%w: %s on %s", ErrDenied, msg.SenderID, msg.ChannelID)
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	r.log.Info().
		Str("channel", msg.ChannelID).
		Str("sender", msg.SenderID).
		Str("chatId", msg.ChatID).
		Msg("routing inbound message")

	if err := r.bus.PublishInbound(ctx, msg); err != nil {
		r.log.Error().Err(err).Str("channel", msg.ChannelID).Msg("failed to queue inbound message")
		return err
	}
	return nil
}

// Deliver sends an outbound message through its channel.
func (r *Router) Deliver(ctx context.Context, msg domain.OutboundMessage) error {
	ch, ok := r.channels.Get(msg.ChannelID)
	if !ok {
		r.log.Error().Str("channel", msg.ChannelID).Msg("channel not found for reply")
		return fmt.Errorf("unknown channel %q", msg.ChannelID)
	}

	if err := ch.Send(ctx, msg); err != nil {
		r.log.Error().Err(err).
			Str("channel", msg.ChannelID).
			Str("to", msg.ChatID).
			Msg("failed to send reply")
		return err
	}

	r.log.Info().
		Str("channel", msg.ChannelID).
		Str("to", msg.ChatID).
		Int("length", len(msg.Content)).
		Msg("reply sent")
	return nil
}
