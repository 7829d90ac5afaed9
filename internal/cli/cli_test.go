package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/soyeahso/nanoagent/internal/bus"
	"github.com/soyeahso/nanoagent/internal/channel"
	"github.com/soyeahso/nanoagent/internal/config"
	"github.com/soyeahso/nanoagent/internal/logging"
	"github.com/soyeahso/nanoagent/internal/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCmd executes the root command against a fresh NANOAGENT_HOME.
func runCmd(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("NANOAGENT_HOME", home)
	cfgFile, logLevel = "", ""

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--log-level", "silent"}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, home, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(body), 0o600))
}

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "nanoagent")
}

func TestConfigSetGetUnset(t *testing.T) {
	home := t.TempDir()

	out, err := runCmd(t, home, "config", "set", "agent.model", "gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "Set agent.model = gpt-4o-mini\n", out)

	out, err = runCmd(t, home, "config", "get", "agent.model")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini\n", out)

	_, err = runCmd(t, home, "config", "unset", "agent.model")
	require.NoError(t, err)

	_, err = runCmd(t, home, "config", "get", "agent.model")
	assert.ErrorContains(t, err, "not found")
}

func TestConfigPath(t *testing.T) {
	home := t.TempDir()
	out, err := runCmd(t, home, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.yaml")+"\n", out)

	out, err = runCmd(t, home, "--config", "/tmp/other.yaml", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.yaml\n", out)
}

func TestConfigValidate(t *testing.T) {
	home := t.TempDir()
	out, err := runCmd(t, home, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, ": ok")

	writeConfig(t, home, "session:\n  store: redis\nproviders:\n  local:\n    api: openai\n")
	out, err = runCmd(t, home, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 validation issue(s)")
	assert.Contains(t, out, "providers.local.baseUrl")
	assert.Contains(t, out, "session.store")
}

func TestStatusCmd(t *testing.T) {
	home := t.TempDir()
	writeConfig(t, home, `
agent:
  model: gpt-4o
providers:
  openai:
    baseUrl: https://api.openai.com/v1
channels:
  websocket:
    addr: 127.0.0.1:0
    path: /chat
`)
	out, err := runCmd(t, home, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Providers:  openai")
	assert.Contains(t, out, "model=gpt-4o")
	assert.Contains(t, out, "Workspace:  "+filepath.Join(home, "workspace"))
	assert.Contains(t, out, "IRC:        (not configured)")
	assert.Contains(t, out, "WebSocket:  addr=127.0.0.1:0 path=/chat token=false")
	assert.NotContains(t, out, "Validation issues")
}

const greetExt = `package greet

import (
	"context"

	"github.com/soyeahso/nanoagent/pkg/toolkit"
)

func New() toolkit.Spec {
	return toolkit.Spec{
		Name: "greet",
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return "hi", nil
		},
	}
}
`

func TestExtensionsCheck(t *testing.T) {
	home := t.TempDir()
	dir := filepath.Join(home, "ext")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	out, err := runCmd(t, home, "extensions", "check", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No extension files")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "greet.go"), []byte(greetExt), 0o644))
	out, err = runCmd(t, home, "extensions", "check", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "tool=greet")

	// A tool named like a built-in is a collision.
	impostor := bytes.Replace([]byte(greetExt), []byte(`Name: "greet"`), []byte(`Name: "message"`), 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "message.go"), impostor, 0o644))
	out, err = runCmd(t, home, "extensions", "check", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")
	assert.Contains(t, out, "name collision")
}

func TestExtensionsPatterns(t *testing.T) {
	out, err := runCmd(t, t.TempDir(), "extensions", "patterns")
	require.NoError(t, err)
	assert.Contains(t, out, "os/exec import")
}

func TestSessionsRequireSQLite(t *testing.T) {
	home := t.TempDir()
	writeConfig(t, home, "session:\n  store: memory\n")
	_, err := runCmd(t, home, "sessions", "list")
	require.Error(t, err)
}

func TestSessionsListEmpty(t *testing.T) {
	out, err := runCmd(t, t.TempDir(), "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions")
}

func TestBuiltinTools(t *testing.T) {
	log = logging.New(nil, "silent")
	cfg := config.Defaults()
	cfg.Agent.Workspace = t.TempDir()

	names := func() []string {
		var out []string
		for _, tool := range builtinTools(cfg, nil) {
			out = append(out, tool.Name())
		}
		return out
	}
	assert.Equal(t, []string{"message"}, names(), "no stickers, no sticker tool")

	dir := filepath.Join(cfg.Agent.Workspace, "stickers")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.json"), []byte(`{}`), 0o644))
	assert.Equal(t, []string{"message"}, names())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.json"), []byte(`{"wave":"https://example.com/wave.png"}`), 0o644))
	assert.Equal(t, []string{"message", "sticker"}, names())
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, false, parseValue("FALSE"))
	assert.Equal(t, 42, parseValue("42"))
	assert.Equal(t, 0.5, parseValue("0.5"))
	assert.Equal(t, "hello", parseValue("hello"))
}

func TestRegisterChannels(t *testing.T) {
	log = logging.New(nil, "silent")
	b := bus.New(4, log)
	defer b.Close()
	reg := channel.NewRegistry(log)
	router := routing.NewRouter(reg, b, log)

	registerChannels(config.ChannelsConfig{
		CLI:       &config.CLIChannelConfig{Enabled: true},
		WebSocket: &config.WebSocketConfig{Addr: "127.0.0.1:0", AllowFrom: []string{"alice"}},
	}, reg, router)
	assert.Equal(t, []string{"cli", "websocket"}, reg.List())
}
