package config

import (
	"fmt"
	"slices"
	"sort"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Agent validation
	if cfg.Agent.MaxIterations < 1 {
		add("agent.maxIterations", "must be at least 1, got %d", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.MaxTokens < 0 {
		add("agent.maxTokens", "must not be negative, got %d", cfg.Agent.MaxTokens)
	}
	if t := cfg.Agent.Temperature; t != nil && (*t < 0 || *t > 2) {
		add("agent.temperature", "must be 0-2, got %g", *t)
	}
	if cfg.Agent.Provider != "" {
		if _, ok := cfg.Providers[cfg.Agent.Provider]; !ok {
			add("agent.provider", "unknown provider %q", cfg.Agent.Provider)
		}
	}

	// Provider validation
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	validAPIs := []string{"openai"}
	for _, name := range names {
		p := cfg.Providers[name]
		if p.API != "" && !slices.Contains(validAPIs, p.API) {
			add("providers."+name+".api", "must be one of %v, got %q", validAPIs, p.API)
		}
		if p.BaseURL == "" {
			add("providers."+name+".baseUrl", "baseUrl is required")
		}
	}

	// Summarizer validation
	s := cfg.Summarizer
	if s.KeepRecent < 0 {
		add("summarizer.keepRecent", "must not be negative, got %d", s.KeepRecent)
	}
	if s.MaxMessages > 0 && s.KeepRecent >= s.MaxMessages {
		add("summarizer.keepRecent", "must be less than maxMessages (%d), got %d", s.MaxMessages, s.KeepRecent)
	}
	if s.Workers < 0 {
		add("summarizer.workers", "must not be negative, got %d", s.Workers)
	}

	// Session validation
	validStores := []string{"sqlite", "memory"}
	if cfg.Session.Store != "" && !slices.Contains(validStores, cfg.Session.Store) {
		add("session.store", "must be one of %v, got %q", validStores, cfg.Session.Store)
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}
	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	// IRC validation (only if configured)
	if irc := cfg.Channels.IRC; irc != nil {
		if irc.Server == "" {
			add("channels.irc.server", "server is required")
		}
		if irc.Nick == "" {
			add("channels.irc.nick", "nick is required")
		}
		if irc.Port < 0 || irc.Port > 65535 {
			add("channels.irc.port", "port must be 0-65535, got %d", irc.Port)
		}
		if irc.SASL && irc.Password == "" {
			add("channels.irc.sasl", "SASL requires a password to be set")
		}
	}

	if ws := cfg.Channels.WebSocket; ws != nil {
		if ws.Path != "" && ws.Path[0] != '/' {
			add("channels.websocket.path", "must start with '/', got %q", ws.Path)
		}
	}

	if cfg.Bus.BufferSize < 0 {
		add("bus.bufferSize", "must not be negative, got %d", cfg.Bus.BufferSize)
	}

	return issues
}
