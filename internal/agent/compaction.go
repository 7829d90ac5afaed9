package agent

import (
	"strings"

	"github.com/soyeahso/nanoagent/internal/domain"
	"github.com/soyeahso/nanoagent/internal/logging"
)

// Words-to-tokens ratio approximation (1 token ~ 0.75 words for English).
const wordsPerToken = 0.75

// CompactionConfig sets when a session is handed to the summarizer.
type CompactionConfig struct {
	MaxMessages int // trigger when the history is longer than this
	TokenBudget int // or when the estimated history tokens exceed this
	KeepRecent  int // messages kept verbatim after eviction
}

// Compactor watches session size after each turn and starts a background
// summary when the history outgrows its budget.
type Compactor struct {
	cfg        CompactionConfig
	summarizer *Summarizer
	store      SessionStore
	log        *logging.Logger
}

// NewCompactor creates a compactor that hands work to summarizer.
func NewCompactor(cfg CompactionConfig, summarizer *Summarizer, store SessionStore, log *logging.Logger) *Compactor {
	return &Compactor{
		cfg:        cfg,
		summarizer: summarizer,
		store:      store,
		log:        log.Sub("compactor"),
	}
}

// NeedsCompaction reports whether msgs exceed the configured budget.
func (c *Compactor) NeedsCompaction(msgs []domain.Message) bool {
	if len(msgs) <= c.cfg.KeepRecent {
		return false
	}
	if c.cfg.MaxMessages > 0 && len(msgs) > c.cfg.MaxMessages {
		return true
	}
	return c.cfg.TokenBudget > 0 && EstimateTokens(msgs) > c.cfg.TokenBudget
}

// MaybeCompact triggers a background summary of sess if it is over budget and
// none is already running. It returns the scheduled task, or nil.
func (c *Compactor) MaybeCompact(sess *domain.Session) *Task {
	if sess.SummarizingNow() || !c.NeedsCompaction(sess.History()) {
		return nil
	}
	snap, ok := sess.BeginSummary()
	if !ok {
		return nil
	}
	// Re-check on the snapshot itself; the history may have changed.
	if !c.NeedsCompaction(snap.Messages) {
		sess.EndSummary()
		return nil
	}

	task, err := c.summarizer.Trigger(sess, c.store, snap, c.cfg.KeepRecent)
	if err != nil {
		c.log.Warn().Err(err).Str("session", sess.Key).Msg("could not schedule summary")
		return nil
	}
	c.log.Debug().
		Str("session", sess.Key).
		Int("messages", len(snap.Messages)).
		Msg("summary scheduled")
	return task
}

// EstimateTokens returns a rough token count for a message slice.
func EstimateTokens(msgs []domain.Message) int {
	total := 0
	for _, m := range msgs {
		total += estimateStringTokens(m.Text())
	}
	return total
}

func estimateStringTokens(s string) int {
	words := len(strings.Fields(s))
	if words == 0 {
		return 0
	}
	tokens := int(float64(words) / wordsPerToken)
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}
