package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/soyeahso/nanoagent/internal/llm"
)

// ErrDuplicateTool is returned when a tool name is already registered.
var ErrDuplicateTool = errors.New("tool already registered")

// Tool is a capability the agent can invoke during a conversation.
type Tool interface {
	// Name returns the tool's identifier.
	Name() string

	// Description returns a human-readable description for the LLM.
	Description() string

	// Parameters returns the JSON Schema object describing the tool's arguments.
	Parameters() map[string]any

	// Execute runs the tool. Ordinary failures should be reported as text
	// starting with "Error:" rather than as an error value.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// ContextualTool is a tool that needs the destination of the message being
// processed, e.g. to send messages of its own.
type ContextualTool interface {
	Tool
	SetContext(channel, chatID string, metadata map[string]any)
}

// ToolRegistry holds available tools. Registration order is preserved so the
// definitions handed to the provider are stable.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewToolRegistry creates an empty tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds a tool. A name that is already taken is rejected with
// ErrDuplicateTool and the existing registration is kept.
func (r *ToolRegistry) Register(t Tool) error {
	name := t.Name()
	if name == "" {
		return errors.New("tool name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Get returns a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Has reports whether a tool with the given name is registered.
func (r *ToolRegistry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns tool names in registration order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Definitions returns LLM-ready tool definitions in registration order.
func (r *ToolRegistry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// SetContext pushes the current destination into every ContextualTool.
func (r *ToolRegistry) SetContext(channel, chatID string, metadata map[string]any) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		if ct, ok := r.tools[name].(ContextualTool); ok {
			ct.SetContext(channel, chatID, metadata)
		}
	}
}

// Execute runs the named tool and always returns text for the provider:
// unknown tools, invalid arguments and tool errors become "Error..." results.
// Panics are not recovered here; they abort processing of the whole message.
func (r *ToolRegistry) Execute(ctx context.Context, name string, args map[string]any) string {
	t, ok := r.Get(name)
	if !ok {
		return fmt.Sprintf("Error: Tool '%s' not found", name)
	}
	if args == nil {
		args = map[string]any{}
	}
	if errs := validateArgs(t.Parameters(), args); len(errs) > 0 {
		return fmt.Sprintf("Error: Invalid parameters for tool '%s': %s", name, strings.Join(errs, "; "))
	}

	out, err := t.Execute(ctx, args)
	if err != nil {
		return fmt.Sprintf("Error executing %s: %v", name, err)
	}
	return out
}

// validateArgs checks required properties and primitive JSON types.
func validateArgs(schema map[string]any, args map[string]any) []string {
	if schema == nil {
		return nil
	}
	var errs []string

	for _, req := range stringList(schema["required"]) {
		if _, ok := args[req]; !ok {
			errs = append(errs, fmt.Sprintf("missing required parameter '%s'", req))
		}
	}

	props, _ := schema["properties"].(map[string]any)
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		prop, ok := props[k].(map[string]any)
		if !ok {
			continue
		}
		want, _ := prop["type"].(string)
		if want != "" && !matchesType(want, args[k]) {
			errs = append(errs, fmt.Sprintf("parameter '%s' should be %s", k, want))
		}
	}
	return errs
}

func stringList(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, x := range vals {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func matchesType(want string, v any) bool {
	switch want {
	case "string":
		_, ok := v.(string)
		return ok
	case "integer":
		switch n := v.(type) {
		case int, int32, int64:
			return true
		case float64:
			return n == float64(int64(n))
		}
		return false
	case "number":
		switch v.(type) {
		case int, int32, int64, float32, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "array":
		switch v.(type) {
		case []any, []string:
			return true
		}
		return false
	case "object":
		_, ok := v.(map[string]any)
		return ok
	}
	return true
}
