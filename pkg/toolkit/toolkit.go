// Package toolkit is the API available to workspace extension tools.
//
// An extension is a single Go file in {workspace}/tools that is interpreted at
// runtime. It must declare a function named New with one of the signatures
//
//	func New() toolkit.Spec
//	func New(cfg toolkit.Config) toolkit.Spec
//
// A minimal extension:
//
//	package greet
//
//	import (
//		"context"
//
//		"github.com/soyeahso/nanoagent/pkg/toolkit"
//	)
//
//	func New() toolkit.Spec {
//		return toolkit.Spec{
//			Name:        "greet",
//			Description: "Greets someone by name",
//			Parameters: map[string]any{
//				"type": "object",
//				"properties": map[string]any{
//					"name": map[string]any{"type": "string"},
//				},
//				"required": []any{"name"},
//			},
//			Execute: func(ctx context.Context, args map[string]any) (string, error) {
//				return "Hello, " + args["name"].(string) + "!", nil
//			},
//		}
//	}
package toolkit

import (
	"context"
	"path/filepath"
	"strings"
)

// Spec describes one tool provided by an extension.
type Spec struct {
	Name        string
	Description string

	// Parameters is a JSON Schema object. Nil means the tool takes no
	// arguments.
	Parameters map[string]any

	// Execute runs the tool. Returned errors are reported to the model as
	// "Error executing <name>: ..." text.
	Execute func(ctx context.Context, args map[string]any) (string, error)
}

// Config is shared configuration handed to extensions whose New accepts it.
type Config struct {
	Workspace      string
	ProtectedPaths []string
}

// IsProtected reports whether path is, or is inside, one of the protected
// paths. Relative paths are resolved against the workspace.
func (c Config) IsProtected(path string) bool {
	abs := c.resolve(path)
	for _, p := range c.ProtectedPaths {
		pp := c.resolve(p)
		if abs == pp || strings.HasPrefix(abs, pp+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (c Config) resolve(p string) string {
	if !filepath.IsAbs(p) && c.Workspace != "" {
		p = filepath.Join(c.Workspace, p)
	}
	return filepath.Clean(p)
}
