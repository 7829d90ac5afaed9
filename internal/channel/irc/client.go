// Package irc implements the IRC messaging channel using the girc library.
package irc

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lrstanley/girc"
	"github.com/soyeahso/nanoagent/internal/config"
	"github.com/soyeahso/nanoagent/internal/domain"
	"github.com/soyeahso/nanoagent/internal/logging"
	"github.com/soyeahso/nanoagent/internal/version"
)

// ChannelID is the channel tag of IRC messages.
const ChannelID = "irc"

// maxLineLen keeps PRIVMSG lines well under the 512 byte protocol limit.
const maxLineLen = 400

// Channel implements domain.Channel for IRC.
//
// Messages in a joined channel are handled only when they mention the bot's
// nick; private messages are always handled and replied to privately.
type Channel struct {
	cfg    config.IRCConfig
	client *girc.Client
	log    *logging.Logger

	mu      sync.RWMutex
	handler func(msg domain.InboundMessage)
	running bool
	lastErr string
}

// New creates an IRC channel from configuration.
func New(cfg config.IRCConfig, log *logging.Logger) *Channel {
	return &Channel{
		cfg: cfg,
		log: log.Sub("irc"),
	}
}

func (c *Channel) ID() string { return ChannelID }

func (c *Channel) OnMessage(handler func(msg domain.InboundMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Status returns the current runtime status.
func (c *Channel) Status() domain.ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelStatus{
		ChannelID: ChannelID,
		Connected: c.client != nil && c.client.IsConnected(),
		Running:   c.running,
		LastError: c.lastErr,
	}
}

// port returns the configured port or the protocol default.
func (c *Channel) port() int {
	switch {
	case c.cfg.Port != 0:
		return c.cfg.Port
	case c.cfg.UseTLS:
		return 6697
	default:
		return 6667
	}
}

func (c *Channel) clientConfig() girc.Config {
	cfg := girc.Config{
		Server:  c.cfg.Server,
		Port:    c.port(),
		Nick:    c.cfg.Nick,
		User:    c.cfg.Nick,
		Name:    "nanoagent",
		SSL:     c.cfg.UseTLS,
		Version: version.UserAgent(),
	}
	if c.cfg.UseTLS {
		cfg.TLSConfig = &tls.Config{ServerName: c.cfg.Server}
	}
	if c.cfg.SASL && c.cfg.Password != "" {
		cfg.SASL = &girc.SASLPlain{User: c.cfg.Nick, Pass: c.cfg.Password}
	} else if c.cfg.Password != "" {
		cfg.ServerPass = c.cfg.Password
	}
	return cfg
}

// Start connects to the IRC server and processes messages until the
// connection ends or ctx is cancelled.
func (c *Channel) Start(ctx context.Context) error {
	client := girc.New(c.clientConfig())
	client.Handlers.Add(girc.CONNECTED, c.onConnected)
	client.Handlers.Add(girc.PRIVMSG, c.onPrivmsg)
	client.Handlers.Add(girc.DISCONNECTED, c.onDisconnected)

	c.mu.Lock()
	c.client = client
	c.running = true
	c.lastErr = ""
	c.mu.Unlock()

	c.log.Info().
		Str("server", c.cfg.Server).
		Int("port", c.port()).
		Str("nick", c.cfg.Nick).
		Strs("channels", c.cfg.Channels).
		Bool("tls", c.cfg.UseTLS).
		Msg("connecting to IRC")

	// Connect blocks for the life of the connection.
	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Connect()
	}()

	select {
	case err := <-errCh:
		c.mu.Lock()
		c.running = false
		if err != nil {
			c.lastErr = err.Error()
		}
		c.mu.Unlock()
		if err != nil {
			return fmt.Errorf("irc connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		client.Close()
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		return ctx.Err()
	}
}

// Stop gracefully disconnects from the IRC server.
func (c *Channel) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.client.IsConnected() {
		c.log.Info().Msg("disconnecting from IRC")
		c.client.Quit("nanoagent shutting down")
	}
	c.running = false
	return nil
}

// Send delivers a message to an IRC channel or nick. Image messages are
// sent as their URL since IRC has no attachments.
func (c *Channel) Send(ctx context.Context, msg domain.OutboundMessage) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil || !client.IsConnected() {
		return fmt.Errorf("irc: not connected")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("irc: no target specified")
	}

	lines := outboundLines(msg)
	for _, line := range lines {
		client.Cmd.Message(msg.ChatID, line)
	}

	c.log.Debug().
		Str("to", msg.ChatID).
		Int("lines", len(lines)).
		Msg("sent IRC message")
	return nil
}

func (c *Channel) onConnected(client *girc.Client, _ girc.Event) {
	c.log.Info().Str("nick", client.GetNick()).Msg("connected to IRC")
	for _, ch := range c.cfg.Channels {
		c.log.Info().Str("channel", ch).Msg("joining channel")
		client.Cmd.Join(ch)
	}
}

func (c *Channel) onPrivmsg(client *girc.Client, e girc.Event) {
	msg, ok := toInbound(client.GetNick(), e)
	if !ok {
		return
	}

	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()
	if handler != nil {
		handler(msg)
	}
}

func (c *Channel) onDisconnected(_ *girc.Client, _ girc.Event) {
	c.log.Warn().Msg("disconnected from IRC")
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

// toInbound converts a PRIVMSG into an inbound message. Messages from self,
// and channel messages that do not mention self, are dropped.
func toInbound(self string, e girc.Event) (domain.InboundMessage, bool) {
	if e.Source == nil || len(e.Params) < 2 {
		return domain.InboundMessage{}, false
	}
	if strings.EqualFold(e.Source.Name, self) {
		return domain.InboundMessage{}, false
	}

	body := e.Last()
	if e.IsAction() {
		body = e.StripAction()
	}

	chatID := e.Source.Name
	chatType := "private"
	if e.IsFromChannel() {
		addressed, ok := stripMention(self, body)
		if !ok {
			return domain.InboundMessage{}, false
		}
		body = addressed
		chatID = e.Params[0]
		chatType = "channel"
	}

	return domain.InboundMessage{
		ID:        uuid.NewString(),
		ChannelID: ChannelID,
		SenderID:  e.Source.Name,
		ChatID:    chatID,
		Content:   body,
		Metadata:  map[string]any{"chat_type": chatType},
		Timestamp: time.Now(),
	}, true
}

// stripMention reports whether body mentions nick. A leading "nick:" or
// "nick," address is removed from the returned text.
func stripMention(nick, body string) (string, bool) {
	lower := strings.ToLower(body)
	n := strings.ToLower(nick)
	if n == "" || !strings.Contains(lower, n) {
		return body, false
	}
	if strings.HasPrefix(lower, n) {
		rest := body[len(n):]
		if r := strings.TrimLeft(rest, ":, "); len(r) < len(rest) {
			return r, true
		}
	}
	return body, true
}

// outboundLines renders a message as PRIVMSG lines.
func outboundLines(msg domain.OutboundMessage) []string {
	text := msg.Content
	if msg.Metadata["msg_type"] == "image" {
		if url, _ := msg.Metadata["photo_url"].(string); url != "" {
			text = strings.TrimSpace(text + "\n" + url)
		}
	}
	return splitMessage(text, maxLineLen)
}

// splitMessage breaks a long message into chunks suitable for IRC.
// Each newline in the input produces a separate chunk because IRC
// PRIVMSG does not support embedded newlines. Blank lines are dropped
// and lines longer than maxLen are split at the byte boundary.
func splitMessage(text string, maxLen int) []string {
	var chunks []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		for len(line) > maxLen {
			chunks = append(chunks, line[:maxLen])
			line = line[maxLen:]
		}
		if strings.TrimSpace(line) != "" {
			chunks = append(chunks, line)
		}
	}
	return chunks
}
