// Package cli implements a line-oriented channel over a reader and writer,
// normally the process's stdin and stdout.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/nanoagent/internal/domain"
	"github.com/soyeahso/nanoagent/internal/logging"
)

const (
	// ChannelID is the channel tag of terminal messages.
	ChannelID = "cli"
	// ChatID is the single conversation a terminal carries.
	ChatID = "direct"
	// SenderID identifies the person at the terminal.
	SenderID = "user"
)

// Channel reads one message per line and writes replies as plain text.
type Channel struct {
	in     io.Reader
	out    io.Writer
	prompt string
	log    *logging.Logger

	mu      sync.RWMutex
	handler func(domain.InboundMessage)
	running bool
	writeMu sync.Mutex
}

// Option configures a Channel.
type Option func(*Channel)

// WithPrompt prints prompt before reading each line.
func WithPrompt(prompt string) Option {
	return func(c *Channel) { c.prompt = prompt }
}

// New creates a terminal channel.
func New(in io.Reader, out io.Writer, log *logging.Logger, opts ...Option) *Channel {
	c := &Channel{in: in, out: out, log: log.Sub("cli")}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Channel) ID() string { return ChannelID }

func (c *Channel) OnMessage(handler func(domain.InboundMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Status returns the current runtime status.
func (c *Channel) Status() domain.ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelStatus{ChannelID: ChannelID, Connected: c.running, Running: c.running}
}

// Start reads lines until the input ends or ctx is cancelled. Blank lines
// are ignored. The reader is not closed on cancellation, so a blocked read
// returns only when the next line (or EOF) arrives.
func (c *Channel) Start(ctx context.Context) error {
	c.setRunning(true)
	defer c.setRunning(false)

	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(c.in)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- sc.Err()
	}()

	c.showPrompt()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("cli read: %w", err)
			}
			c.log.Debug().Msg("input closed")
			return nil
		case line := <-lines:
			text := strings.TrimSpace(line)
			if text == "" {
				c.showPrompt()
				continue
			}
			c.dispatch(text)
		}
	}
}

// Stop is a no-op; Start returns when its context is cancelled.
func (c *Channel) Stop(ctx context.Context) error {
	c.setRunning(false)
	return nil
}

// Send writes a reply. Image messages are written as their URL.
func (c *Channel) Send(ctx context.Context, msg domain.OutboundMessage) error {
	text := msg.Content
	if msg.Metadata["msg_type"] == "image" {
		if url, _ := msg.Metadata["photo_url"].(string); url != "" {
			text = strings.TrimSpace(text + "\n[image] " + url)
		}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := fmt.Fprintln(c.out, text); err != nil {
		return fmt.Errorf("cli write: %w", err)
	}
	if c.prompt != "" {
		_, _ = io.WriteString(c.out, c.prompt)
	}
	return nil
}

func (c *Channel) dispatch(text string) {
	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()
	if handler == nil {
		return
	}
	handler(domain.InboundMessage{
		ID:        uuid.NewString(),
		ChannelID: ChannelID,
		SenderID:  SenderID,
		ChatID:    ChatID,
		Content:   text,
		Timestamp: time.Now(),
	})
}

func (c *Channel) showPrompt() {
	if c.prompt == "" {
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, _ = io.WriteString(c.out, c.prompt)
}

func (c *Channel) setRunning(v bool) {
	c.mu.Lock()
	c.running = v
	c.mu.Unlock()
}
