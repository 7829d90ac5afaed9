package tools

import (
	"context"
	"fmt"

	"github.com/soyeahso/nanoagent/internal/domain"
	"github.com/soyeahso/nanoagent/internal/logging"
)

// MessageTool lets the agent send a message before its final reply, to the
// current conversation or to an explicit channel and chat.
type MessageTool struct {
	destination
	pub Publisher
	log *logging.Logger
}

// NewMessageTool creates the message tool.
func NewMessageTool(pub Publisher, log *logging.Logger) *MessageTool {
	return &MessageTool{pub: pub, log: log.Sub("tools")}
}

func (t *MessageTool) Name() string { return "message" }

func (t *MessageTool) Description() string {
	return "Send a message to the user. Use this to report progress or send something " +
		"before your final answer. Defaults to the current conversation."
}

func (t *MessageTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{
				"type":        "string",
				"description": "The message to send",
			},
			"channel": map[string]any{
				"type":        "string",
				"description": "Optional target channel (irc, websocket, cli, ...)",
			},
			"chat_id": map[string]any{
				"type":        "string",
				"description": "Optional target chat ID",
			},
		},
		"required": []string{"content"},
	}
}

func (t *MessageTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	content, _ := args["content"].(string)
	channel, chatID, metadata := t.get()
	if v, _ := args["channel"].(string); v != "" {
		channel = v
	}
	if v, _ := args["chat_id"].(string); v != "" {
		chatID = v
	}
	if channel == "" || chatID == "" {
		return "Error: No target channel/chat specified", nil
	}
	if t.pub == nil {
		return "Error: Message sending not configured", nil
	}

	err := t.pub.PublishOutbound(ctx, domain.OutboundMessage{
		ChannelID: channel,
		ChatID:    chatID,
		Content:   content,
		Metadata:  metadata,
	})
	if err != nil {
		t.log.Error().Err(err).Str("channel", channel).Str("chatId", chatID).Msg("message tool send failed")
		return fmt.Sprintf("Error sending message: %v", err), nil
	}
	return fmt.Sprintf("Message sent to %s:%s", channel, chatID), nil
}
