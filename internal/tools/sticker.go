package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/soyeahso/nanoagent/internal/domain"
	"github.com/soyeahso/nanoagent/internal/logging"
)

// StickerTool sends image stickers listed in {workspace}/stickers/index.json,
// a JSON object mapping sticker names to image URLs. The agent only offers
// it when the index names at least one sticker; an empty library makes
// Execute report that instead of sending.
type StickerTool struct {
	destination
	workspace string
	pub       Publisher
	log       *logging.Logger

	mu       sync.RWMutex
	stickers map[string]string
}

// NewStickerTool creates the sticker tool and loads the index.
func NewStickerTool(workspace string, pub Publisher, log *logging.Logger) *StickerTool {
	t := &StickerTool{
		workspace: workspace,
		pub:       pub,
		log:       log.Sub("tools"),
		stickers:  map[string]string{},
	}
	t.Reload()
	return t
}

// IndexPath returns the location of the sticker index.
func (t *StickerTool) IndexPath() string {
	return filepath.Join(t.workspace, "stickers", "index.json")
}

// Reload rereads the sticker index. Entries whose value is not a string are
// ignored; an unreadable index leaves the library empty.
func (t *StickerTool) Reload() {
	stickers := map[string]string{}
	defer func() {
		t.mu.Lock()
		t.stickers = stickers
		t.mu.Unlock()
	}()

	data, err := os.ReadFile(t.IndexPath())
	if errors.Is(err, os.ErrNotExist) {
		t.log.Debug().Msg("no sticker index found, sticker tool inactive")
		return
	}
	if err != nil {
		t.log.Warn().Err(err).Msg("failed to read sticker index")
		return
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.log.Warn().Err(err).Msg("failed to parse sticker index")
		return
	}
	for name, v := range raw {
		if url, ok := v.(string); ok {
			stickers[name] = url
		}
	}
	t.log.Info().Int("count", len(stickers)).Msg("loaded stickers")
}

// Names returns the available sticker names in order.
func (t *StickerTool) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.stickers))
	for n := range t.stickers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (t *StickerTool) Name() string { return "sticker" }

func (t *StickerTool) Description() string {
	available := "none"
	if names := t.Names(); len(names) > 0 {
		available = strings.Join(names, ", ")
	}
	return "Send an image sticker to express emotion. " +
		"Available stickers: [" + available + "]. " +
		"The sticker is sent immediately; give your text reply after calling this tool. " +
		"The sticker supplements your words and never replaces them. " +
		"Use one only when the emotion is strong or playful."
}

func (t *StickerTool) Parameters() map[string]any {
	names := t.Names()
	if len(names) == 0 {
		names = []string{"none"}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{
				"type":        "string",
				"description": "The sticker name to send",
				"enum":        names,
			},
		},
		"required": []string{"name"},
	}
}

func (t *StickerTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	name, _ := args["name"].(string)

	t.mu.RLock()
	empty := len(t.stickers) == 0
	url, found := t.stickers[name]
	t.mu.RUnlock()

	if empty {
		return "Sticker library is empty. Ask the user to add stickers to workspace/stickers/index.json.", nil
	}
	if !found {
		return fmt.Sprintf("Sticker '%s' not found. Available: [%s]", name, strings.Join(t.Names(), ", ")), nil
	}

	channel, chatID, metadata := t.get()
	if channel == "" || chatID == "" {
		return "Error: No target channel/chat specified for sticker", nil
	}
	if t.pub == nil {
		return "Error: Message sending not configured", nil
	}

	metadata["msg_type"] = "image"
	metadata["photo_url"] = url
	err := t.pub.PublishOutbound(ctx, domain.OutboundMessage{
		ChannelID: channel,
		ChatID:    chatID,
		Metadata:  metadata,
	})
	if err != nil {
		t.log.Error().Err(err).Str("sticker", name).Msg("failed to send sticker")
		return fmt.Sprintf("Error: Failed to send sticker '%s': %v", name, err), nil
	}
	t.log.Info().Str("sticker", name).Str("channel", channel).Str("chatId", chatID).Msg("sticker sent")
	return fmt.Sprintf("Sticker '%s' sent successfully.", name), nil
}
