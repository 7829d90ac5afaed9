// Package plugin hosts compiled-in observers of agent lifecycle events.
// Plugins subscribe to hooks during Init and unsubscribe on Close.
package plugin

import (
	"context"

	"github.com/soyeahso/nanoagent/internal/hooks"
	"github.com/soyeahso/nanoagent/internal/logging"
)

// Plugin is a compiled-in observer.
type Plugin interface {
	ID() string
	Init(ctx context.Context, api API) error
	Close() error
}

// API is what a plugin receives at Init.
type API struct {
	Hooks *hooks.Manager
	Log   *logging.Logger
}
