package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/soyeahso/nanoagent/internal/domain"
	"github.com/soyeahso/nanoagent/internal/hooks"
	"github.com/soyeahso/nanoagent/internal/llm"
	"github.com/soyeahso/nanoagent/internal/logging"
)

// SummaryPrompt is the system instruction for eviction summaries.
const SummaryPrompt = `The following messages are being evicted from the conversation window.
Write a concise summary that captures what happened in these messages.

This summary will be provided as background context for future conversations. Include:

1. **What happened**: The conversations, tasks, and exchanges that took place.
2. **Important details**: Specific names, data, or facts that were discussed.
3. **Ongoing context**: Any unfinished tasks, pending questions, or commitments made.

If there is a previous summary provided, incorporate it to maintain continuity
and avoid losing track of long-term context.

Keep your summary under 200 words. Only output the summary.`

const (
	summaryMaxTokens   = 1024
	summaryTemperature = 0.3
)

var (
	// ErrEmptySummary means the provider returned no usable summary.
	ErrEmptySummary = errors.New("summarizer returned empty or error response")

	// ErrStaleSnapshot means the session was cleared or evicted while the
	// summary was being computed; the result was discarded.
	ErrStaleSnapshot = errors.New("session changed since snapshot")

	// ErrSummaryUnsaved means the summary was committed to the live session
	// but the store rejected it. The next successful save of the session
	// persists it.
	ErrSummaryUnsaved = errors.New("summary committed but not persisted")
)

// SummarizerConfig configures the Summarizer.
type SummarizerConfig struct {
	Model   string
	Timeout time.Duration
}

// Summarizer compresses old session messages into the rolling summary in the
// background, so the loop never waits on it.
type Summarizer struct {
	client llm.Client
	cfg    SummarizerConfig
	pool   *Pool
	hooks  *hooks.Manager
	log    *logging.Logger
}

// NewSummarizer creates a summarizer that submits its work to pool.
func NewSummarizer(client llm.Client, cfg SummarizerConfig, pool *Pool, hm *hooks.Manager, log *logging.Logger) *Summarizer {
	return &Summarizer{
		client: client,
		cfg:    cfg,
		pool:   pool,
		hooks:  hm,
		log:    log.Sub("summarizer"),
	}
}

// Trigger schedules a summary of snap. The caller must already have set the
// session's in-progress flag (Session.BeginSummary); it is cleared when the
// task ends, whatever the outcome.
func (s *Summarizer) Trigger(sess *domain.Session, store SessionStore, snap domain.Snapshot, keep int) (*Task, error) {
	var started atomic.Bool
	task, err := s.pool.Submit("summarize "+snap.Key, s.cfg.Timeout, func(ctx context.Context) error {
		started.Store(true)
		_, err := s.Summarize(ctx, sess, store, snap, keep)
		return err
	}, func(err error) {
		// Summarize clears the flag itself; this covers tasks cancelled
		// before they got a worker.
		if !started.Load() {
			sess.EndSummary()
		}
	})
	if err != nil {
		sess.EndSummary()
		return nil, err
	}
	return task, nil
}

// Summarize runs one summary synchronously. On success the session's summary
// is replaced, the summarized messages are evicted and the session is saved.
// On any failure before the commit the messages and summary are left
// untouched. A failed save after the commit returns ErrSummaryUnsaved; the
// live session keeps the summary.
func (s *Summarizer) Summarize(ctx context.Context, sess *domain.Session, store SessionStore, snap domain.Snapshot, keep int) (res domain.CommitResult, err error) {
	committed := false
	defer func() {
		if !committed {
			sess.EndSummary()
		}
		if err != nil && !errors.Is(err, ErrStaleSnapshot) && !errors.Is(err, ErrSummaryUnsaved) {
			s.hooks.Emit(ctx, hooks.EventSummaryFailed, map[string]any{"session": snap.Key, "error": err.Error()})
		}
	}()

	s.log.Info().
		Str("session", snap.Key).
		Int("messages", len(snap.Messages)).
		Int("keep", keep).
		Msg("starting summarization")

	resp, err := s.client.Complete(ctx, llm.CompletionRequest{
		Model: s.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: SummaryPrompt},
			{Role: llm.RoleUser, Content: FormatTranscript(snap.Messages, snap.Summary)},
		},
		MaxTokens:   summaryMaxTokens,
		Temperature: llm.Float(summaryTemperature),
	})
	if err != nil {
		return res, fmt.Errorf("summary completion: %w", err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" || resp.Failed() {
		return res, ErrEmptySummary
	}

	res = sess.CommitSummary(snap, text, keep)
	committed = true
	if res.Stale {
		s.log.Info().Str("session", snap.Key).Msg("session changed during summarization, discarding summary")
		return res, ErrStaleSnapshot
	}

	if err := store.Save(sess); err != nil {
		s.log.Warn().
			Err(err).
			Str("session", snap.Key).
			Int("before", res.Before).
			Int("after", res.After).
			Msg("summary committed in memory, save failed; next save persists it")
		s.hooks.Emit(ctx, hooks.EventSummaryCommitted, map[string]any{
			"session":   snap.Key,
			"before":    res.Before,
			"after":     res.After,
			"persisted": false,
		})
		return res, fmt.Errorf("%w: %w", ErrSummaryUnsaved, err)
	}

	s.log.Info().
		Str("session", snap.Key).
		Int("before", res.Before).
		Int("after", res.After).
		Str("preview", preview(text, 120)).
		Msg("summary committed")
	s.hooks.Emit(ctx, hooks.EventSummaryCommitted, map[string]any{
		"session":   snap.Key,
		"before":    res.Before,
		"after":     res.After,
		"persisted": true,
	})
	return res, nil
}

// FormatTranscript renders messages as a plain-text transcript. Multi-part
// bodies contribute only their text parts.
func FormatTranscript(msgs []domain.Message, previousSummary string) string {
	var parts []string
	if previousSummary != "" {
		parts = append(parts,
			"--- Previous Summary ---",
			previousSummary,
			"--- End Previous Summary ---\n",
		)
	}
	parts = append(parts, "--- Conversation Transcript ---")
	for _, m := range msgs {
		role := m.Role
		if role == "" {
			role = "unknown"
		}
		parts = append(parts, role+": "+m.Text())
	}
	parts = append(parts, "--- End Transcript ---")
	return strings.Join(parts, "\n")
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
