package agent

import (
	"context"
	"sync"

	"github.com/soyeahso/nanoagent/internal/domain"
	"github.com/soyeahso/nanoagent/internal/llm"
	"github.com/soyeahso/nanoagent/internal/logging"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// stubTool records its invocations and answers through fn.
type stubTool struct {
	name   string
	params map[string]any
	fn     func(args map[string]any) (string, error)

	mu      sync.Mutex
	calls   []map[string]any
	channel string
	chatID  string
}

func newStubTool(name string, fn func(args map[string]any) (string, error)) *stubTool {
	if fn == nil {
		fn = func(map[string]any) (string, error) { return name + " ok", nil }
	}
	return &stubTool{name: name, fn: fn}
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub " + s.name }

func (s *stubTool) Parameters() map[string]any {
	if s.params != nil {
		return s.params
	}
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (s *stubTool) Execute(_ context.Context, args map[string]any) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, args)
	s.mu.Unlock()
	return s.fn(args)
}

func (s *stubTool) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// contextTool is a stubTool that records the destination pushed into it.
type contextTool struct {
	*stubTool
	metadata map[string]any
}

func (c *contextTool) SetContext(channel, chatID string, metadata map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channel = channel
	c.chatID = chatID
	c.metadata = metadata
}

func toolCallResponse(calls ...llm.ToolCall) *llm.CompletionResponse {
	return &llm.CompletionResponse{ToolCalls: calls, FinishReason: "tool_calls"}
}

func textResponse(content string) *llm.CompletionResponse {
	return &llm.CompletionResponse{Content: content, FinishReason: "stop"}
}

type loopFixture struct {
	loop     *Loop
	mock     *llm.MockClient
	sessions *MemorySessionStore
	tools    *ToolRegistry
}

func newLoopFixture(cfg LoopConfig, responses ...*llm.CompletionResponse) *loopFixture {
	mock := &llm.MockClient{ProviderName: "mock"}
	if len(responses) > 0 {
		mock.CompleteFunc = llm.ScriptedResponses(responses...)
	}
	sessions := NewMemorySessionStore()
	tools := NewToolRegistry()
	builder := NewContextBuilder("", "", tools, silentLog())
	return &loopFixture{
		loop:     NewLoop(cfg, mock, sessions, tools, builder, silentLog()),
		mock:     mock,
		sessions: sessions,
		tools:    tools,
	}
}

func inbound(channel, chat, content string) domain.InboundMessage {
	return domain.InboundMessage{
		ID:        "m-" + content,
		ChannelID: channel,
		SenderID:  "alice",
		ChatID:    chat,
		Content:   content,
	}
}

func seedSession(store *MemorySessionStore, key string, contents ...string) *domain.Session {
	sess, _ := store.GetOrCreate(key)
	for i, c := range contents {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		sess.Append(domain.Message{Role: role, Content: c})
	}
	return sess
}

func contentsOf(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}
