package plugin

import (
	"context"
	"fmt"
	"sync"

	"github.com/soyeahso/nanoagent/internal/hooks"
	"github.com/soyeahso/nanoagent/internal/logging"
)

// Registry owns plugin lifecycle. Plugins are initialized in registration
// order and closed in reverse.
type Registry struct {
	mu          sync.Mutex
	plugins     []Plugin
	initialized int // plugins[:initialized] have been initialized
	hooks       *hooks.Manager
	log         *logging.Logger
}

// NewRegistry creates a plugin registry bound to a hook manager.
func NewRegistry(hm *hooks.Manager, log *logging.Logger) *Registry {
	return &Registry{hooks: hm, log: log.Sub("plugins")}
}

// Register adds a plugin without initializing it.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.plugins {
		if existing.ID() == p.ID() {
			return fmt.Errorf("plugin already registered: %s", p.ID())
		}
	}
	r.plugins = append(r.plugins, p)
	r.log.Debug().Str("id", p.ID()).Msg("plugin registered")
	return nil
}

// InitAll initializes every plugin not yet initialized. It stops at the
// first failure; plugins initialized before it are still closed by CloseAll.
func (r *Registry) InitAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ; r.initialized < len(r.plugins); r.initialized++ {
		p := r.plugins[r.initialized]
		api := API{Hooks: r.hooks, Log: r.log.Sub(p.ID())}
		if err := p.Init(ctx, api); err != nil {
			return fmt.Errorf("init plugin %s: %w", p.ID(), err)
		}
	}
	return nil
}

// CloseAll closes initialized plugins in reverse order.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := r.initialized - 1; i >= 0; i-- {
		p := r.plugins[i]
		if err := p.Close(); err != nil {
			r.log.Error().Err(err).Str("id", p.ID()).Msg("plugin close error")
		}
	}
	r.initialized = 0
}

// Get returns a plugin by ID, or nil if not found.
func (r *Registry) Get(id string) Plugin {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.plugins {
		if p.ID() == id {
			return p
		}
	}
	return nil
}

// List returns plugin IDs in registration order.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.plugins))
	for i, p := range r.plugins {
		out[i] = p.ID()
	}
	return out
}
