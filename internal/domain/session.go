package domain

import (
	"strings"
	"sync"
	"time"
)

// Role constants for session messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// SessionKey uniquely identifies a conversation session.
type SessionKey struct {
	ChannelID string `json:"channelId"`
	ChatID    string `json:"chatId"`
}

// String returns the canonical "{channel}:{chat_id}" form of the key.
func (k SessionKey) String() string {
	return k.ChannelID + ":" + k.ChatID
}

// ContentPart is one element of a multi-part message body.
type ContentPart struct {
	Type     string `json:"type"` // "text" | "image_url"
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Message is a single turn in a conversation (used in session history).
type Message struct {
	Role      string        `json:"role"`
	Content   string        `json:"content"`
	Parts     []ContentPart `json:"parts,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Text returns the text-bearing content of the message. Multi-part bodies
// contribute only their text parts, joined by a space.
func (m Message) Text() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var texts []string
	if m.Content != "" {
		texts = append(texts, m.Content)
	}
	for _, p := range m.Parts {
		if p.Type == "text" && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, " ")
}

// Session tracks a conversation between a chat and the agent.
//
// The agent loop and the background summarizer share one *Session, so all
// mutation goes through methods that hold mu. Revision increases on every
// mutation; Epoch increases only on mutations that remove messages (Clear,
// eviction). A summary commit is a compare-and-swap against the Epoch of the
// snapshot it was computed from.
type Session struct {
	Key       string    `json:"key"`
	Messages  []Message `json:"messages"`
	Summary   string    `json:"summary,omitempty"`
	Revision  uint64    `json:"revision"`
	Epoch     uint64    `json:"epoch"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// SummaryInProgress is process-local and never persisted.
	SummaryInProgress bool `json:"-"`

	mu sync.Mutex
}

// NewSession creates an empty session for key.
func NewSession(key string) *Session {
	now := time.Now()
	return &Session{
		Key:       key,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds messages to the end of the history.
func (s *Session) Append(msgs ...Message) {
	if len(msgs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, m := range msgs {
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		s.Messages = append(s.Messages, m)
	}
	s.touch(now)
}

// Clear empties the history and the rolling summary in place and returns the
// number of messages removed.
func (s *Session) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.Messages)
	s.Messages = []Message{}
	s.Summary = ""
	s.Epoch++
	s.touch(time.Now())
	return n
}

// History returns a copy of the message history.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}

// Len returns the number of messages in the history.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Messages)
}

// CurrentSummary returns the rolling summary.
func (s *Session) CurrentSummary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Summary
}

// Snapshot is an immutable copy of a session's history taken at one point in
// time, together with the counters needed to commit work derived from it.
type Snapshot struct {
	Key      string
	Messages []Message
	Summary  string
	Revision uint64
	Epoch    uint64
}

// Snapshot copies the current history and summary.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]Message, len(s.Messages))
	copy(msgs, s.Messages)
	return Snapshot{
		Key:      s.Key,
		Messages: msgs,
		Summary:  s.Summary,
		Revision: s.Revision,
		Epoch:    s.Epoch,
	}
}

// BeginSummary sets the in-progress flag if it was clear and takes a snapshot
// under the same lock. ok is false when a summary is already in flight.
func (s *Session) BeginSummary() (snap Snapshot, ok bool) {
	s.mu.Lock()
	if s.SummaryInProgress {
		s.mu.Unlock()
		return Snapshot{}, false
	}
	s.SummaryInProgress = true
	s.mu.Unlock()
	return s.Snapshot(), true
}

// EndSummary clears the in-progress flag.
func (s *Session) EndSummary() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SummaryInProgress = false
}

// SummarizingNow reports whether a summary is in flight.
func (s *Session) SummarizingNow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SummaryInProgress
}

// CommitResult describes the outcome of CommitSummary.
type CommitResult struct {
	Committed bool
	Before    int
	After     int
	Stale     bool
}

// CommitSummary replaces the summary with summary and evicts the messages
// that snap summarized, keeping the last keep entries of the snapshot plus
// anything appended since it was taken. When no message was appended after
// the snapshot the history ends up as exactly its trailing keep entries.
//
// If the session was cleared or evicted after snap was taken (Epoch moved),
// nothing is changed and Stale is set. The in-progress flag is cleared in
// both cases.
func (s *Session) CommitSummary(snap Snapshot, summary string, keep int) CommitResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SummaryInProgress = false

	res := CommitResult{Before: len(s.Messages), After: len(s.Messages)}
	if s.Epoch != snap.Epoch || len(s.Messages) < len(snap.Messages) {
		res.Stale = true
		return res
	}
	if keep < 0 {
		keep = 0
	}

	evict := len(snap.Messages) - keep
	if evict < 0 {
		evict = 0
	}
	kept := make([]Message, len(s.Messages)-evict)
	copy(kept, s.Messages[evict:])

	s.Messages = kept
	s.Summary = summary
	s.Epoch++
	s.touch(time.Now())

	res.Committed = true
	res.After = len(kept)
	return res
}

// touch must be called with mu held.
func (s *Session) touch(now time.Time) {
	s.Revision++
	s.UpdatedAt = now
}
