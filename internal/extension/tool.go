package extension

import (
	"context"
	"fmt"

	"github.com/soyeahso/nanoagent/pkg/toolkit"
)

// Tool adapts an extension's toolkit.Spec to the agent's tool interface.
type Tool struct {
	spec toolkit.Spec
	file string
}

func newTool(spec toolkit.Spec, file string) *Tool {
	return &Tool{spec: spec, file: file}
}

func (t *Tool) Name() string        { return t.spec.Name }
func (t *Tool) Description() string { return t.spec.Description }

// File returns the source file the tool was loaded from.
func (t *Tool) File() string { return t.file }

func (t *Tool) Parameters() map[string]any {
	if t.spec.Parameters == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return t.spec.Parameters
}

// Execute runs the interpreted tool. A panic in extension code is reported
// as an error instead of unwinding the caller.
func (t *Tool) Execute(ctx context.Context, args map[string]any) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = "", fmt.Errorf("panic in extension %s: %v", t.file, r)
		}
	}()
	return t.spec.Execute(ctx, args)
}
