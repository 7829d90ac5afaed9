package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/nanoagent/internal/agent"
	"github.com/soyeahso/nanoagent/internal/bus"
	"github.com/soyeahso/nanoagent/internal/config"
	"github.com/soyeahso/nanoagent/internal/extension"
	"github.com/soyeahso/nanoagent/internal/hooks"
	"github.com/soyeahso/nanoagent/internal/llm"
	"github.com/soyeahso/nanoagent/internal/logging"
	"github.com/soyeahso/nanoagent/internal/plugin"
	"github.com/soyeahso/nanoagent/internal/store"
	"github.com/soyeahso/nanoagent/internal/tools"
	"github.com/soyeahso/nanoagent/pkg/toolkit"
)

// loadConfig reads and validates the config file. The workspace defaults to
// the one under the nanoagent home, and the logger is rebuilt from the
// logging section unless --log-level was given.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	if cfg.Agent.Workspace == "" {
		cfg.Agent.Workspace = paths.Workspace
	}

	if logLevel == "" {
		l, closer, err := logging.NewWithOptions(logging.Options{
			Level: cfg.Logging.Level,
			Style: cfg.Logging.ConsoleStyle,
			File:  cfg.Logging.File,
		})
		if err != nil {
			return cfg, err
		}
		log, logCloser = l, closer
	}

	if issues := config.Validate(&cfg); len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return cfg, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	return cfg, nil
}

// extensionConfig is the configuration handed to extensions.
func extensionConfig(cfg config.Config) toolkit.Config {
	return toolkit.Config{
		Workspace:      cfg.Agent.Workspace,
		ProtectedPaths: cfg.Extensions.ProtectedPaths,
	}
}

// app holds the assembled agent and the resources it owns.
type app struct {
	cfg      config.Config
	hooks    *hooks.Manager
	plugins  *plugin.Registry
	db       *store.DB
	sessions agent.SessionStore
	tools    *agent.ToolRegistry
	bus      *bus.MemoryBus
	pool     *agent.Pool
	loader   *extension.Loader
	loop     *agent.Loop
}

// newApp wires the session store, provider, tools, extensions and
// summarizer into an agent loop fed by an in-memory bus.
func newApp(cfg config.Config) (_ *app, err error) {
	a := &app{cfg: cfg, hooks: hooks.NewManager(log)}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.plugins = plugin.NewRegistry(a.hooks, log)
	if err := a.plugins.Register(plugin.NewActivity()); err != nil {
		return nil, err
	}
	if err := a.plugins.InitAll(context.Background()); err != nil {
		return nil, err
	}

	switch cfg.Session.Store {
	case "memory":
		a.sessions = agent.NewMemorySessionStore()
		log.Info().Msg("using in-memory session store")
	default:
		if err := paths.EnsureDirs(); err != nil {
			return nil, fmt.Errorf("creating data dirs: %w", err)
		}
		a.db, err = store.Open(paths.Database(), log)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		a.sessions = store.NewSQLiteSessionStore(a.db)
		log.Info().Str("path", paths.Database()).Msg("using SQLite session store")
	}

	registry, err := llm.NewRegistryFromConfig(cfg.Providers, cfg.Agent.Provider, log)
	if err != nil {
		return nil, err
	}
	providers := registry.List()
	if len(providers) == 0 {
		return nil, errors.New("no LLM providers configured; add one under providers in " + paths.Config)
	}
	log.Info().Strs("providers", providers).Str("model", cfg.Agent.Model).Msg("LLM providers available")
	client := agent.NewFailoverClient(registry, cfg.Agent.Model, cfg.Agent.Fallbacks, log)

	a.bus = bus.New(cfg.Bus.BufferSize, log)

	a.tools = agent.NewToolRegistry()
	for _, t := range builtinTools(cfg, a.bus) {
		if err := a.tools.Register(t); err != nil {
			return nil, err
		}
	}

	builder := agent.NewContextBuilder(cfg.Agent.Workspace, cfg.Agent.ExtraPrompt, a.tools, log)
	opts := []agent.LoopOption{agent.WithBus(a.bus), agent.WithHooks(a.hooks)}

	if cfg.Extensions.IsEnabled() {
		a.loader = extension.NewLoader(cfg.ExtensionsDir(), extensionConfig(cfg), a.hooks, log)
		opts = append(opts, agent.WithExtensions(a.loader))
		log.Info().Str("dir", a.loader.Dir()).Msg("extension loading enabled")
	}

	if s := cfg.Summarizer; s.IsEnabled() {
		a.pool = agent.NewPool(s.Workers, log)
		summarizer := agent.NewSummarizer(client, agent.SummarizerConfig{
			Model:   cfg.SummarizerModel(),
			Timeout: time.Duration(s.TimeoutSeconds) * time.Second,
		}, a.pool, a.hooks, log)
		compactor := agent.NewCompactor(agent.CompactionConfig{
			MaxMessages: s.MaxMessages,
			TokenBudget: s.TokenBudget,
			KeepRecent:  s.KeepRecent,
		}, summarizer, a.sessions, log)
		opts = append(opts, agent.WithCompactor(compactor))
	}

	a.loop = agent.NewLoop(agent.LoopConfig{
		Model:         cfg.Agent.Model,
		MaxIterations: cfg.Agent.MaxIterations,
		MaxTokens:     cfg.Agent.MaxTokens,
		Temperature:   cfg.Agent.Temperature,
	}, client, a.sessions, a.tools, builder, log, opts...)

	return a, nil
}

// builtinTools returns the tools every agent starts with. The sticker tool
// is left out while the sticker library is empty.
func builtinTools(cfg config.Config, pub tools.Publisher) []agent.Tool {
	out := []agent.Tool{tools.NewMessageTool(pub, log)}
	if st := tools.NewStickerTool(cfg.Agent.Workspace, pub, log); len(st.Names()) > 0 {
		out = append(out, st)
	}
	return out
}

// Close stops background summaries and releases the bus and database.
func (a *app) Close() {
	if a.plugins != nil {
		a.plugins.CloseAll()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.bus != nil {
		a.bus.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Warn().Err(err).Msg("closing database")
		}
	}
}
