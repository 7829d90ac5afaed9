package config

// Config is the root configuration for nanoagent.
type Config struct {
	Agent      AgentConfig               `yaml:"agent,omitempty"`
	Providers  map[string]ProviderConfig `yaml:"providers,omitempty"`
	Summarizer SummarizerConfig          `yaml:"summarizer,omitempty"`
	Extensions ExtensionsConfig          `yaml:"extensions,omitempty"`
	Session    SessionConfig             `yaml:"session,omitempty"`
	Channels   ChannelsConfig            `yaml:"channels,omitempty"`
	Bus        BusConfig                 `yaml:"bus,omitempty"`
	Logging    LoggingConfig             `yaml:"logging,omitempty"`
}

// AgentConfig controls the agent loop.
type AgentConfig struct {
	Provider      string   `yaml:"provider,omitempty"` // default provider name
	Model         string   `yaml:"model,omitempty"`
	Fallbacks     []string `yaml:"fallbacks,omitempty"` // models tried when the primary fails with a retryable error
	MaxIterations int      `yaml:"maxIterations,omitempty"`
	MaxTokens     int      `yaml:"maxTokens,omitempty"`
	Temperature   *float64 `yaml:"temperature,omitempty"`
	Workspace     string   `yaml:"workspace,omitempty"`
	ExtraPrompt   string   `yaml:"extraPrompt,omitempty"`
}

// ProviderConfig defines one LLM provider endpoint.
type ProviderConfig struct {
	API            string   `yaml:"api,omitempty"` // "openai"
	BaseURL        string   `yaml:"baseUrl"`
	APIKey         string   `yaml:"apiKey,omitempty"`
	Model          string   `yaml:"model,omitempty"`  // model sent when the request names none
	Models         []string `yaml:"models,omitempty"` // model names that resolve to this provider
	TimeoutSeconds int      `yaml:"timeoutSeconds,omitempty"`
}

// SummarizerConfig controls background context-window eviction.
type SummarizerConfig struct {
	Enabled        *bool  `yaml:"enabled,omitempty"` // defaults to true
	MaxMessages    int    `yaml:"maxMessages,omitempty"`
	TokenBudget    int    `yaml:"tokenBudget,omitempty"`
	KeepRecent     int    `yaml:"keepRecent,omitempty"`
	Model          string `yaml:"model,omitempty"` // defaults to agent.model
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
	Workers        int    `yaml:"workers,omitempty"`
}

// IsEnabled reports whether summarization is turned on.
func (s SummarizerConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// ExtensionsConfig controls hot-loaded workspace tools.
type ExtensionsConfig struct {
	Enabled        *bool    `yaml:"enabled,omitempty"` // defaults to true
	Dir            string   `yaml:"dir,omitempty"`     // defaults to {workspace}/tools
	ProtectedPaths []string `yaml:"protectedPaths,omitempty"`
}

// IsEnabled reports whether extension loading is turned on.
func (e ExtensionsConfig) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// SessionConfig defines session persistence.
type SessionConfig struct {
	Store string `yaml:"store,omitempty"` // "sqlite" | "memory"
}

// ChannelsConfig defines channel-specific configurations.
type ChannelsConfig struct {
	CLI       *CLIChannelConfig `yaml:"cli,omitempty"`
	IRC       *IRCConfig        `yaml:"irc,omitempty"`
	WebSocket *WebSocketConfig  `yaml:"websocket,omitempty"`
}

// CLIChannelConfig enables the stdin/stdout channel.
type CLIChannelConfig struct {
	Enabled   bool     `yaml:"enabled"`
	AllowFrom []string `yaml:"allowFrom,omitempty"`
}

// IRCConfig defines IRC channel settings.
type IRCConfig struct {
	Server    string   `yaml:"server"`
	Port      int      `yaml:"port,omitempty"`
	Nick      string   `yaml:"nick"`
	Password  string   `yaml:"password,omitempty"`
	Channels  []string `yaml:"channels"`
	UseTLS    bool     `yaml:"useTLS,omitempty"`
	SASL      bool     `yaml:"sasl,omitempty"`
	AllowFrom []string `yaml:"allowFrom,omitempty"` // nicks allowed to talk to the agent; empty allows everyone
}

// WebSocketConfig defines the websocket channel listener.
type WebSocketConfig struct {
	Addr      string   `yaml:"addr,omitempty"`
	Path      string   `yaml:"path,omitempty"`
	Token     string   `yaml:"token,omitempty"` // optional bearer token required on upgrade
	AllowFrom []string `yaml:"allowFrom,omitempty"`
}

// BusConfig sizes the message bus.
type BusConfig struct {
	BufferSize int `yaml:"bufferSize,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}
