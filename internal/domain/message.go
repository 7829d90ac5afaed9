package domain

import (
	"strings"
	"time"
)

// SystemChannel is the reserved channel tag for messages produced by
// background work. Their ChatID carries "origin_channel:origin_chat_id".
const SystemChannel = "system"

// defaultOriginChannel is used when a system message's ChatID has no channel part.
const defaultOriginChannel = "cli"

// InboundMessage is a message received from a channel.
type InboundMessage struct {
	ID        string         `json:"id"`
	ChannelID string         `json:"channelId"`
	SenderID  string         `json:"senderId"`
	ChatID    string         `json:"chatId"`
	Content   string         `json:"content"`
	Media     []string       `json:"media,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// IsSystem reports whether the message originates from background work
// rather than a chat platform.
func (m InboundMessage) IsSystem() bool {
	return m.ChannelID == SystemChannel
}

// SessionKey returns the key of the session this message belongs to.
// System messages resolve to the session of their decoded origin.
func (m InboundMessage) SessionKey() SessionKey {
	if m.IsSystem() {
		return m.Origin()
	}
	return SessionKey{ChannelID: m.ChannelID, ChatID: m.ChatID}
}

// Origin decodes the "origin_channel:origin_chat_id" destination carried in
// the ChatID of a system message. Only the first colon separates the parts,
// so chat IDs that contain colons survive intact.
func (m InboundMessage) Origin() SessionKey {
	channel, chat, ok := strings.Cut(m.ChatID, ":")
	if !ok {
		return SessionKey{ChannelID: defaultOriginChannel, ChatID: m.ChatID}
	}
	return SessionKey{ChannelID: channel, ChatID: chat}
}

// OutboundMessage is a message to be sent via a channel.
type OutboundMessage struct {
	ChannelID string         `json:"channelId"`
	ChatID    string         `json:"chatId"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// CopyMetadata returns a shallow copy of md that is safe to hand to another
// message. A nil map yields an empty, non-nil map.
func CopyMetadata(md map[string]any) map[string]any {
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
