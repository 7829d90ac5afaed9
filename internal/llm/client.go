// Package llm defines the LLM client interface and pluggable provider system.
//
// Providers are stateless: every Complete call carries the full message
// sequence and the tool definitions the model may call. Tool calls come back
// as structured ToolCall values and are answered with RoleTool messages that
// carry the originating call ID.
package llm

import (
	"context"
	"time"
)

// Role constants for messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// FinishReasonError is the finish reason reported when the provider failed to
// produce a usable completion.
const FinishReasonError = "error"

// ContentPart is one element of a multi-part message body.
type ContentPart struct {
	Type     string `json:"type"` // "text" | "image_url"
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Message is a single turn in a conversation.
type Message struct {
	Role    string        `json:"role"`
	Content string        `json:"content"`
	Parts   []ContentPart `json:"parts,omitempty"`

	// Assistant turns that request tools.
	ToolCalls        []ToolCall `json:"toolCalls,omitempty"`
	ReasoningContent string     `json:"reasoningContent,omitempty"`

	// Tool result turns.
	ToolCallID string `json:"toolCallId,omitempty"`
	Name       string `json:"name,omitempty"`
}

// ToolDefinition describes a tool the LLM can invoke.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema object
}

// ToolCall is an LLM request to invoke a tool.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// CompletionRequest is the input to a Complete call.
type CompletionRequest struct {
	Model       string           `json:"model,omitempty"`
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	MaxTokens   int              `json:"maxTokens,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
}

// CompletionResponse is the result of a completion.
type CompletionResponse struct {
	Content          string        `json:"content"`
	ReasoningContent string        `json:"reasoningContent,omitempty"`
	ToolCalls        []ToolCall    `json:"toolCalls,omitempty"`
	FinishReason     string        `json:"finishReason,omitempty"`
	Usage            Usage         `json:"usage"`
	Model            string        `json:"model,omitempty"`
	Duration         time.Duration `json:"duration,omitempty"`
}

// HasToolCalls reports whether the model asked for at least one tool.
func (r *CompletionResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// Failed reports whether the provider signalled an error finish.
func (r *CompletionResponse) Failed() bool {
	return r.FinishReason == FinishReasonError
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Client is the interface all LLM providers must implement.
type Client interface {
	// Complete sends a request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name (e.g., "openai", "ollama").
	Name() string
}

// Float returns a pointer to v, for optional request fields.
func Float(v float64) *float64 { return &v }
