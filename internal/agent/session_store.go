package agent

import (
	"sort"
	"sync"

	"github.com/soyeahso/nanoagent/internal/domain"
)

// SessionStore creates, fetches and persists sessions by key.
//
// GetOrCreate must return the same *domain.Session for a key for as long as
// the process lives, so the loop and the summarizer share one object.
type SessionStore interface {
	// GetOrCreate finds an existing session by key or creates a new one.
	GetOrCreate(key string) (*domain.Session, error)

	// Save persists the session's current state.
	Save(sess *domain.Session) error
}

// MemorySessionStore is an in-memory SessionStore implementation.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session // key → session
	saves    map[string]int
}

// NewMemorySessionStore creates an in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*domain.Session),
		saves:    make(map[string]int),
	}
}

func (s *MemorySessionStore) GetOrCreate(key string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[key]; ok {
		return sess, nil
	}
	sess := domain.NewSession(key)
	s.sessions[key] = sess
	return sess, nil
}

func (s *MemorySessionStore) Save(sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Key] = sess
	s.saves[sess.Key]++
	return nil
}

// Get returns a session by key, or nil if not found.
func (s *MemorySessionStore) Get(key string) *domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[key]
}

// SaveCount returns how many times the session with key was saved.
func (s *MemorySessionStore) SaveCount(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves[key]
}

// List returns all session keys, sorted.
func (s *MemorySessionStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.sessions))
	for k := range s.sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
