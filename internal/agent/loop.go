package agent

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/nanoagent/internal/bus"
	"github.com/soyeahso/nanoagent/internal/domain"
	"github.com/soyeahso/nanoagent/internal/hooks"
	"github.com/soyeahso/nanoagent/internal/llm"
	"github.com/soyeahso/nanoagent/internal/logging"
)

// DefaultMaxIterations bounds the provider round-trips per message.
const DefaultMaxIterations = 20

// DirectSessionKey is the session used by ProcessDirect when none is given.
const DirectSessionKey = "cli:direct"

const (
	ResetReply        = "🔄 Conversation history cleared. Let's start fresh!"
	NoResponseReply   = "I've completed processing but have no response to give."
	BackgroundDone    = "Background task completed."
	errorReplyPrefix  = "Sorry, I encountered an error: "
	pollInterval      = time.Second
	systemTurnPattern = "[System: %s] %s"
)

var resetCommands = map[string]bool{
	"/reset": true,
	"/clear": true,
	"/new":   true,
}

// IsResetCommand reports whether content asks for the conversation to be cleared.
func IsResetCommand(content string) bool {
	return resetCommands[strings.ToLower(strings.TrimSpace(content))]
}

// ExtensionLoader discovers tool code added at runtime and registers it.
type ExtensionLoader interface {
	// LoadNew registers tools from files not seen before and returns how
	// many were added.
	LoadNew(ctx context.Context, tools *ToolRegistry) int
}

// LoopConfig configures the agent loop.
type LoopConfig struct {
	Model         string
	MaxIterations int
	MaxTokens     int
	Temperature   *float64
}

// Loop takes inbound messages, runs the bounded tool-calling exchange with
// the provider and produces at most one reply per message. Messages are
// processed one at a time.
type Loop struct {
	cfg        LoopConfig
	client     llm.Client
	sessions   SessionStore
	tools      *ToolRegistry
	builder    ContextBuilder
	bus        bus.Bus
	extensions ExtensionLoader
	compactor  *Compactor
	hooks      *hooks.Manager
	log        *logging.Logger

	running atomic.Bool
}

// LoopOption configures optional Loop collaborators.
type LoopOption func(*Loop)

// WithBus sets the bus that Run consumes from and replies to.
func WithBus(b bus.Bus) LoopOption { return func(l *Loop) { l.bus = b } }

// WithExtensions enables runtime tool discovery before each message.
func WithExtensions(e ExtensionLoader) LoopOption { return func(l *Loop) { l.extensions = e } }

// WithCompactor enables background summarization of long sessions.
func WithCompactor(c *Compactor) LoopOption { return func(l *Loop) { l.compactor = c } }

// WithHooks sets the hook manager notified of loop events.
func WithHooks(h *hooks.Manager) LoopOption { return func(l *Loop) { l.hooks = h } }

// NewLoop creates an agent loop.
func NewLoop(
	cfg LoopConfig,
	client llm.Client,
	sessions SessionStore,
	tools *ToolRegistry,
	builder ContextBuilder,
	log *logging.Logger,
	opts ...LoopOption,
) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if tools == nil {
		tools = NewToolRegistry()
	}
	l := &Loop{
		cfg:      cfg,
		client:   client,
		sessions: sessions,
		tools:    tools,
		builder:  builder,
		log:      log.Sub("agent"),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Tools returns the loop's tool registry.
func (l *Loop) Tools() *ToolRegistry { return l.tools }

// Run consumes inbound messages from the bus until ctx is cancelled, Stop is
// called or the bus is closed. A failing message never stops the loop.
func (l *Loop) Run(ctx context.Context) error {
	if l.bus == nil {
		return errors.New("agent loop has no bus")
	}
	l.running.Store(true)
	defer l.running.Store(false)
	l.log.Info().Msg("agent loop started")

	for l.running.Load() {
		if err := ctx.Err(); err != nil {
			return err
		}

		waitCtx, cancel := context.WithTimeout(ctx, pollInterval)
		msg, ok := l.bus.ConsumeInbound(waitCtx)
		expired := waitCtx.Err() != nil
		cancel()
		if !ok {
			if !expired {
				l.log.Info().Msg("bus closed, agent loop exiting")
				return nil
			}
			continue
		}

		out, err := l.Process(ctx, msg)
		if err != nil {
			l.log.Error().Err(err).Str("channel", msg.ChannelID).Msg("message not processed")
			continue
		}
		if out == nil {
			continue
		}
		l.hooks.Emit(ctx, hooks.EventMessageSending, map[string]any{
			"channel": out.ChannelID,
			"chatId":  out.ChatID,
		})
		if err := l.bus.PublishOutbound(ctx, *out); err != nil {
			l.log.Error().Err(err).Str("channel", out.ChannelID).Str("chatId", out.ChatID).Msg("reply not delivered")
		}
	}

	l.log.Info().Msg("agent loop stopped")
	return nil
}

// Stop asks Run to return after its current wait.
func (l *Loop) Stop() {
	l.running.Store(false)
}

// Running reports whether Run is active.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Process handles one inbound message. Failures while building context,
// calling the provider or running a tool (including panics) are turned into
// an apology addressed to the same destination; the returned error is only
// non-nil when ctx was already done.
func (l *Loop) Process(ctx context.Context, msg domain.InboundMessage) (out *domain.OutboundMessage, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dest := msg.SessionKey()
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().
				Str("panic", fmt.Sprint(r)).
				Str("stack", string(debug.Stack())).
				Msg("panic while processing message")
			out, err = l.errorReply(dest, msg, fmt.Errorf("%v", r)), nil
		}
	}()

	reply, perr := l.process(ctx, msg, dest)
	if perr != nil {
		l.log.Error().
			Err(perr).
			Str("channel", dest.ChannelID).
			Str("chatId", dest.ChatID).
			Msg("error processing message")
		return l.errorReply(dest, msg, perr), nil
	}
	return reply, nil
}

// ProcessDirect runs content through the loop as if it came from the session
// identified by sessionKey ("channel:chat_id") and returns the reply text.
func (l *Loop) ProcessDirect(ctx context.Context, content, sessionKey string) (string, error) {
	if sessionKey == "" {
		sessionKey = DirectSessionKey
	}
	channel, chat, ok := strings.Cut(sessionKey, ":")
	if !ok {
		channel, chat = "cli", sessionKey
	}
	out, err := l.Process(ctx, domain.InboundMessage{
		ID:        uuid.NewString(),
		ChannelID: channel,
		SenderID:  "user",
		ChatID:    chat,
		Content:   content,
		Timestamp: time.Now(),
	})
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", nil
	}
	return out.Content, nil
}

func (l *Loop) process(ctx context.Context, msg domain.InboundMessage, dest domain.SessionKey) (*domain.OutboundMessage, error) {
	start := time.Now()

	if l.extensions != nil {
		if n := l.extensions.LoadNew(ctx, l.tools); n > 0 {
			l.log.Info().Int("added", n).Int("tools", l.tools.Len()).Msg("extensions loaded")
		}
	}

	l.hooks.Emit(ctx, hooks.EventMessageReceived, map[string]any{
		"channel": msg.ChannelID,
		"chatId":  msg.ChatID,
		"sender":  msg.SenderID,
		"system":  msg.IsSystem(),
	})

	if !msg.IsSystem() && IsResetCommand(msg.Content) {
		return l.reset(ctx, msg, dest)
	}

	sess, err := l.sessions.GetOrCreate(dest.String())
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	l.log.Info().
		Str("session", sess.Key).
		Str("sender", msg.SenderID).
		Bool("system", msg.IsSystem()).
		Int("historyLen", sess.Len()).
		Msg("processing message")

	l.tools.SetContext(dest.ChannelID, dest.ChatID, msg.Metadata)

	messages, err := l.builder.Build(ContextInput{
		History: sess.History(),
		Summary: sess.CurrentSummary(),
		Input:   msg.Content,
		Media:   msg.Media,
		Channel: dest.ChannelID,
		ChatID:  dest.ChatID,
	})
	if err != nil {
		return nil, fmt.Errorf("building context: %w", err)
	}

	l.hooks.Emit(ctx, hooks.EventBeforeAgentRun, map[string]any{
		"session":  sess.Key,
		"messages": len(messages),
	})

	final, iterations, err := l.iterate(ctx, messages)
	if err != nil {
		return nil, err
	}

	userTurn := msg.Content
	if msg.IsSystem() {
		userTurn = fmt.Sprintf(systemTurnPattern, msg.SenderID, msg.Content)
	}
	if final == "" {
		final = NoResponseReply
		if msg.IsSystem() {
			final = BackgroundDone
		}
	}

	sess.Append(
		domain.Message{Role: domain.RoleUser, Content: userTurn, Timestamp: msg.Timestamp},
		domain.Message{Role: domain.RoleAssistant, Content: final},
	)
	if err := l.sessions.Save(sess); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	if l.compactor != nil {
		l.compactor.MaybeCompact(sess)
	}

	l.log.Info().
		Str("session", sess.Key).
		Int("iterations", iterations).
		Dur("duration", time.Since(start)).
		Msg("response generated")
	l.hooks.Emit(ctx, hooks.EventAfterAgentRun, map[string]any{
		"session":    sess.Key,
		"iterations": iterations,
		"duration":   time.Since(start).String(),
	})

	return &domain.OutboundMessage{
		ChannelID: dest.ChannelID,
		ChatID:    dest.ChatID,
		Content:   final,
		Metadata:  domain.CopyMetadata(msg.Metadata),
	}, nil
}

// iterate drives the provider exchange. It returns the final content, empty
// when the provider gave none or the budget ran out, and the number of
// provider calls made.
func (l *Loop) iterate(ctx context.Context, messages []llm.Message) (string, int, error) {
	for i := 1; i <= l.cfg.MaxIterations; i++ {
		resp, err := l.client.Complete(ctx, llm.CompletionRequest{
			Model:       l.cfg.Model,
			Messages:    messages,
			Tools:       l.tools.Definitions(),
			MaxTokens:   l.cfg.MaxTokens,
			Temperature: l.cfg.Temperature,
		})
		if err != nil {
			return "", i, fmt.Errorf("LLM completion: %w", err)
		}
		if resp.Failed() {
			return "", i, fmt.Errorf("LLM completion: %s", resp.Content)
		}

		if !resp.HasToolCalls() {
			return resp.Content, i, nil
		}

		l.log.Info().Int("toolCalls", len(resp.ToolCalls)).Int("iteration", i).Msg("executing tool calls")
		messages = l.builder.AppendAssistant(messages, resp.Content, resp.ToolCalls, resp.ReasoningContent)
		for _, call := range resp.ToolCalls {
			started := time.Now()
			result := l.tools.Execute(ctx, call.Name, call.Arguments)
			l.log.Debug().
				Str("tool", call.Name).
				Str("callId", call.ID).
				Dur("duration", time.Since(started)).
				Msg("tool executed")
			l.hooks.Emit(ctx, hooks.EventToolExecuted, map[string]any{
				"tool":   call.Name,
				"callId": call.ID,
				"failed": strings.HasPrefix(result, "Error"),
			})
			messages = l.builder.AppendToolResult(messages, call.ID, call.Name, result)
		}
	}

	l.log.Warn().Int("maxIterations", l.cfg.MaxIterations).Msg("iteration budget exhausted")
	return "", l.cfg.MaxIterations, nil
}

func (l *Loop) reset(ctx context.Context, msg domain.InboundMessage, dest domain.SessionKey) (*domain.OutboundMessage, error) {
	sess, err := l.sessions.GetOrCreate(dest.String())
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	removed := sess.Clear()
	if err := l.sessions.Save(sess); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	l.log.Info().Str("session", sess.Key).Int("removed", removed).Msg("session reset")
	l.hooks.Emit(ctx, hooks.EventSessionReset, map[string]any{
		"session": sess.Key,
		"removed": removed,
	})

	return &domain.OutboundMessage{
		ChannelID: dest.ChannelID,
		ChatID:    dest.ChatID,
		Content:   ResetReply,
		Metadata:  domain.CopyMetadata(msg.Metadata),
	}, nil
}

func (l *Loop) errorReply(dest domain.SessionKey, msg domain.InboundMessage, err error) *domain.OutboundMessage {
	return &domain.OutboundMessage{
		ChannelID: dest.ChannelID,
		ChatID:    dest.ChatID,
		Content:   errorReplyPrefix + err.Error(),
		Metadata:  domain.CopyMetadata(msg.Metadata),
	}
}
