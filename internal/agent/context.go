package agent

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/soyeahso/nanoagent/internal/domain"
	"github.com/soyeahso/nanoagent/internal/llm"
	"github.com/soyeahso/nanoagent/internal/logging"
)

// maxInlineImageBytes caps local media files inlined as data URLs.
const maxInlineImageBytes = 5 << 20

// ContextInput is everything the context builder needs for one turn.
type ContextInput struct {
	History []domain.Message
	Summary string
	Input   string
	Media   []string
	Channel string
	ChatID  string
}

// ContextBuilder turns session history and new input into provider-ready messages.
type ContextBuilder interface {
	Build(in ContextInput) ([]llm.Message, error)
	AppendAssistant(msgs []llm.Message, content string, calls []llm.ToolCall, reasoning string) []llm.Message
	AppendToolResult(msgs []llm.Message, callID, toolName, result string) []llm.Message
}

// DefaultContextBuilder builds a system prompt, the sanitized history and the
// user turn, with media references attached as image parts.
type DefaultContextBuilder struct {
	workspace   string
	extraPrompt string
	tools       *ToolRegistry
	log         *logging.Logger
}

// NewContextBuilder creates the default context builder.
func NewContextBuilder(workspace, extraPrompt string, tools *ToolRegistry, log *logging.Logger) *DefaultContextBuilder {
	return &DefaultContextBuilder{
		workspace:   workspace,
		extraPrompt: extraPrompt,
		tools:       tools,
		log:         log.Sub("context"),
	}
}

// Build assembles the ordered message list for one provider exchange.
func (b *DefaultContextBuilder) Build(in ContextInput) ([]llm.Message, error) {
	var defs []llm.ToolDefinition
	if b.tools != nil {
		defs = b.tools.Definitions()
	}
	system := BuildSystemPrompt(PromptConfig{
		Workspace:   b.workspace,
		Tools:       defs,
		ChannelID:   in.Channel,
		ChatID:      in.ChatID,
		Summary:     in.Summary,
		ExtraPrompt: b.extraPrompt,
	})

	history := SanitizeHistory(toLLMMessages(in.History))
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})
	msgs = append(msgs, history...)

	user := llm.Message{Role: llm.RoleUser, Content: in.Input}
	for _, ref := range in.Media {
		url, err := mediaURL(ref)
		if err != nil {
			b.log.Warn().Err(err).Str("media", ref).Msg("skipping media reference")
			continue
		}
		user.Parts = append(user.Parts, llm.ContentPart{Type: "image_url", ImageURL: url})
	}
	msgs = append(msgs, user)

	b.log.Debug().
		Int("historyLen", len(history)).
		Int("systemChars", len(system)).
		Bool("hasSummary", in.Summary != "").
		Msg("context built")
	return msgs, nil
}

// AppendAssistant adds an assistant turn carrying the raw tool calls.
func (b *DefaultContextBuilder) AppendAssistant(msgs []llm.Message, content string, calls []llm.ToolCall, reasoning string) []llm.Message {
	return append(msgs, llm.Message{
		Role:             llm.RoleAssistant,
		Content:          content,
		ToolCalls:        calls,
		ReasoningContent: reasoning,
	})
}

// AppendToolResult adds a tool-result turn tagged with the originating call.
func (b *DefaultContextBuilder) AppendToolResult(msgs []llm.Message, callID, toolName, result string) []llm.Message {
	return append(msgs, llm.Message{
		Role:       llm.RoleTool,
		Content:    result,
		ToolCallID: callID,
		Name:       toolName,
	})
}

func toLLMMessages(history []domain.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		msg := llm.Message{Role: m.Role, Content: m.Content}
		for _, p := range m.Parts {
			msg.Parts = append(msg.Parts, llm.ContentPart{Type: p.Type, Text: p.Text, ImageURL: p.ImageURL})
		}
		out = append(out, msg)
	}
	return out
}

// SanitizeHistory drops entries a provider would reject: tool results with no
// matching assistant tool call, and assistant tool-call turns whose results
// are incomplete (together with the partial results).
func SanitizeHistory(history []llm.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	pending := map[string]bool{}
	groupStart := 0
	for _, m := range history {
		if m.Role == llm.RoleTool {
			if pending[m.ToolCallID] {
				delete(pending, m.ToolCallID)
				out = append(out, m)
			}
			continue
		}
		if len(pending) > 0 {
			out = out[:groupStart]
			pending = map[string]bool{}
		}
		if m.Role == llm.RoleAssistant && len(m.ToolCalls) > 0 {
			groupStart = len(out)
			for _, tc := range m.ToolCalls {
				pending[tc.ID] = true
			}
		}
		out = append(out, m)
	}
	if len(pending) > 0 {
		out = out[:groupStart]
	}
	return out
}

// mediaURL turns a media reference into something a provider can fetch:
// http(s) and data URLs pass through, local files are inlined.
func mediaURL(ref string) (string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "data:") {
		return ref, nil
	}
	info, err := os.Stat(ref)
	if err != nil {
		return "", err
	}
	if info.Size() > maxInlineImageBytes {
		return "", fmt.Errorf("media file too large (%d bytes)", info.Size())
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return "", err
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("unsupported media type %s", mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
