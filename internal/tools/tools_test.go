package tools

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/soyeahso/nanoagent/internal/agent"
	"github.com/soyeahso/nanoagent/internal/domain"
	"github.com/soyeahso/nanoagent/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

type recorder struct {
	mu   sync.Mutex
	sent []domain.OutboundMessage
	err  error
}

func (r *recorder) PublishOutbound(_ context.Context, msg domain.OutboundMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func writeIndex(t *testing.T, workspace, body string) {
	t.Helper()
	dir := filepath.Join(workspace, "stickers")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.json"), []byte(body), 0o644))
}

func TestToolsAreContextual(t *testing.T) {
	var _ agent.ContextualTool = (*MessageTool)(nil)
	var _ agent.ContextualTool = (*StickerTool)(nil)
}

func TestMessageTool_CurrentDestination(t *testing.T) {
	rec := &recorder{}
	tool := NewMessageTool(rec, silentLog())
	tool.SetContext("irc", "#room", map[string]any{"chat_type": "channel"})

	out, err := tool.Execute(context.Background(), map[string]any{"content": "working on it"})
	require.NoError(t, err)
	assert.Equal(t, "Message sent to irc:#room", out)
	require.Len(t, rec.sent, 1)
	assert.Equal(t, domain.OutboundMessage{
		ChannelID: "irc",
		ChatID:    "#room",
		Content:   "working on it",
		Metadata:  map[string]any{"chat_type": "channel"},
	}, rec.sent[0])
}

func TestMessageTool_ExplicitTarget(t *testing.T) {
	rec := &recorder{}
	tool := NewMessageTool(rec, silentLog())
	tool.SetContext("irc", "#room", nil)

	out, err := tool.Execute(context.Background(), map[string]any{"content": "ping", "channel": "websocket", "chat_id": "c9"})
	require.NoError(t, err)
	assert.Equal(t, "Message sent to websocket:c9", out)
	assert.Equal(t, "websocket", rec.sent[0].ChannelID)
	assert.Equal(t, "c9", rec.sent[0].ChatID)
}

func TestMessageTool_Errors(t *testing.T) {
	out, err := NewMessageTool(&recorder{}, silentLog()).Execute(context.Background(), map[string]any{"content": "x"})
	require.NoError(t, err)
	assert.Equal(t, "Error: No target channel/chat specified", out)

	noPub := NewMessageTool(nil, silentLog())
	noPub.SetContext("cli", "direct", nil)
	out, _ = noPub.Execute(context.Background(), map[string]any{"content": "x"})
	assert.Equal(t, "Error: Message sending not configured", out)

	failing := NewMessageTool(&recorder{err: assert.AnError}, silentLog())
	failing.SetContext("cli", "direct", nil)
	out, _ = failing.Execute(context.Background(), map[string]any{"content": "x"})
	assert.Contains(t, out, "Error sending message")
}

func TestMessageTool_RequiresContentViaRegistry(t *testing.T) {
	reg := agent.NewToolRegistry()
	require.NoError(t, reg.Register(NewMessageTool(&recorder{}, silentLog())))
	assert.Equal(t, "Error: Invalid parameters for tool 'message': missing required parameter 'content'",
		reg.Execute(context.Background(), "message", nil))
}

func TestStickerTool_Send(t *testing.T) {
	ws := t.TempDir()
	writeIndex(t, ws, `{"happy": "https://example.com/happy.png", "sad": "https://example.com/sad.png", "broken": 42}`)

	rec := &recorder{}
	tool := NewStickerTool(ws, rec, silentLog())
	assert.Equal(t, []string{"happy", "sad"}, tool.Names())
	assert.Contains(t, tool.Description(), "Available stickers: [happy, sad]")

	tool.SetContext("websocket", "c1", map[string]any{"thread": "t1"})
	out, err := tool.Execute(context.Background(), map[string]any{"name": "happy"})
	require.NoError(t, err)
	assert.Equal(t, "Sticker 'happy' sent successfully.", out)

	require.Len(t, rec.sent, 1)
	msg := rec.sent[0]
	assert.Equal(t, "websocket", msg.ChannelID)
	assert.Equal(t, "c1", msg.ChatID)
	assert.Empty(t, msg.Content)
	assert.Equal(t, map[string]any{
		"thread":    "t1",
		"msg_type":  "image",
		"photo_url": "https://example.com/happy.png",
	}, msg.Metadata)
}

func TestStickerTool_DoesNotLeakMetadata(t *testing.T) {
	ws := t.TempDir()
	writeIndex(t, ws, `{"happy": "https://example.com/happy.png"}`)

	meta := map[string]any{"thread": "t1"}
	tool := NewStickerTool(ws, &recorder{}, silentLog())
	tool.SetContext("cli", "direct", meta)
	_, err := tool.Execute(context.Background(), map[string]any{"name": "happy"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"thread": "t1"}, meta)
}

func TestStickerTool_Empty(t *testing.T) {
	tool := NewStickerTool(t.TempDir(), &recorder{}, silentLog())
	tool.SetContext("cli", "direct", nil)

	assert.Contains(t, tool.Description(), "Available stickers: [none]")
	props := tool.Parameters()["properties"].(map[string]any)
	assert.Equal(t, []string{"none"}, props["name"].(map[string]any)["enum"])

	out, err := tool.Execute(context.Background(), map[string]any{"name": "happy"})
	require.NoError(t, err)
	assert.Equal(t, "Sticker library is empty. Ask the user to add stickers to workspace/stickers/index.json.", out)
}

func TestStickerTool_Errors(t *testing.T) {
	ws := t.TempDir()
	writeIndex(t, ws, `{"happy": "https://example.com/happy.png"}`)

	tool := NewStickerTool(ws, &recorder{}, silentLog())
	out, _ := tool.Execute(context.Background(), map[string]any{"name": "happy"})
	assert.Equal(t, "Error: No target channel/chat specified for sticker", out)

	tool.SetContext("cli", "direct", nil)
	out, _ = tool.Execute(context.Background(), map[string]any{"name": "angry"})
	assert.Equal(t, "Sticker 'angry' not found. Available: [happy]", out)

	failing := NewStickerTool(ws, &recorder{err: assert.AnError}, silentLog())
	failing.SetContext("cli", "direct", nil)
	out, _ = failing.Execute(context.Background(), map[string]any{"name": "happy"})
	assert.Contains(t, out, "Error: Failed to send sticker 'happy'")
}

func TestStickerTool_Reload(t *testing.T) {
	ws := t.TempDir()
	tool := NewStickerTool(ws, &recorder{}, silentLog())
	assert.Empty(t, tool.Names())

	writeIndex(t, ws, `{"wave": "https://example.com/wave.gif"}`)
	tool.Reload()
	assert.Equal(t, []string{"wave"}, tool.Names())

	writeIndex(t, ws, `not json`)
	tool.Reload()
	assert.Empty(t, tool.Names())
}
