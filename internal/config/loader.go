package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default values applied to zero fields.
const (
	DefaultMaxIterations      = 20
	DefaultMaxTokens          = 4096
	DefaultSummaryMaxMessages = 40
	DefaultSummaryTokenBudget = 8000
	DefaultSummaryKeepRecent  = 10
	DefaultSummaryTimeout     = 120
	DefaultSummaryWorkers     = 2
	DefaultBusBufferSize      = 100
	DefaultProviderTimeout    = 120
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so passwords and tokens can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	if cfg.Channels.IRC != nil {
		cfg.Channels.IRC.Password = expandEnvVars(cfg.Channels.IRC.Password)
	}
	if cfg.Channels.WebSocket != nil {
		cfg.Channels.WebSocket.Token = expandEnvVars(cfg.Channels.WebSocket.Token)
	}
	for name, provider := range cfg.Providers {
		provider.APIKey = expandEnvVars(provider.APIKey)
		provider.BaseURL = expandEnvVars(provider.BaseURL)
		cfg.Providers[name] = provider
	}
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Agent.MaxIterations == 0 {
		cfg.Agent.MaxIterations = DefaultMaxIterations
	}
	if cfg.Agent.MaxTokens == 0 {
		cfg.Agent.MaxTokens = DefaultMaxTokens
	}
	if cfg.Summarizer.MaxMessages == 0 {
		cfg.Summarizer.MaxMessages = DefaultSummaryMaxMessages
	}
	if cfg.Summarizer.TokenBudget == 0 {
		cfg.Summarizer.TokenBudget = DefaultSummaryTokenBudget
	}
	if cfg.Summarizer.KeepRecent == 0 {
		cfg.Summarizer.KeepRecent = DefaultSummaryKeepRecent
	}
	if cfg.Summarizer.TimeoutSeconds == 0 {
		cfg.Summarizer.TimeoutSeconds = DefaultSummaryTimeout
	}
	if cfg.Summarizer.Workers == 0 {
		cfg.Summarizer.Workers = DefaultSummaryWorkers
	}
	for name, p := range cfg.Providers {
		if p.API == "" {
			p.API = "openai"
		}
		if p.TimeoutSeconds == 0 {
			p.TimeoutSeconds = DefaultProviderTimeout
		}
		cfg.Providers[name] = p
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = "sqlite"
	}
	if cfg.Bus.BufferSize == 0 {
		cfg.Bus.BufferSize = DefaultBusBufferSize
	}
	if ws := cfg.Channels.WebSocket; ws != nil {
		if ws.Addr == "" {
			ws.Addr = "127.0.0.1:18790"
		}
		if ws.Path == "" {
			ws.Path = "/ws"
		}
	}
	if irc := cfg.Channels.IRC; irc != nil && irc.Port == 0 {
		if irc.UseTLS {
			irc.Port = 6697
		} else {
			irc.Port = 6667
		}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = "pretty"
	}
}

// applyEnvOverrides reads NANOAGENT_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NANOAGENT_MODEL"); v != "" {
		cfg.Agent.Model = v
	}
	if v := os.Getenv("NANOAGENT_WORKSPACE"); v != "" {
		cfg.Agent.Workspace = v
	}
	if v := os.Getenv("NANOAGENT_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Agent.MaxIterations = n
		}
	}
	if v := os.Getenv("NANOAGENT_SESSION_STORE"); v != "" {
		cfg.Session.Store = strings.ToLower(v)
	}
	if v := os.Getenv("NANOAGENT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
