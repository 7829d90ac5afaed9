package config

import (
	"fmt"
	"path/filepath"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

// ExtensionsDir returns the directory scanned for extension tools.
func (c *Config) ExtensionsDir() string {
	if c.Extensions.Dir != "" {
		return c.Extensions.Dir
	}
	return filepath.Join(c.Agent.Workspace, "tools")
}

// SummarizerModel returns the model used for summaries.
func (c *Config) SummarizerModel() string {
	if c.Summarizer.Model != "" {
		return c.Summarizer.Model
	}
	return c.Agent.Model
}
