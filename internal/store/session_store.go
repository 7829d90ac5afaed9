package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/nanoagent/internal/domain"
)

const timeFormat = time.RFC3339Nano

// SessionInfo is a summary row for listing sessions.
type SessionInfo struct {
	Key        string    `json:"key"`
	ID         string    `json:"id"`
	Messages   int       `json:"messages"`
	HasSummary bool      `json:"hasSummary"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// SQLiteSessionStore implements agent.SessionStore backed by SQLite.
//
// Loaded sessions are cached, so every caller asking for a key gets the same
// *domain.Session for the life of the store. Save rewrites the session's
// rows from a consistent snapshot.
type SQLiteSessionStore struct {
	db *DB

	mu    sync.Mutex // guards live and serializes writes
	live  map[string]*domain.Session
	saved map[string]uint64 // key → revision last written
}

// NewSQLiteSessionStore creates a session store using the given database.
func NewSQLiteSessionStore(db *DB) *SQLiteSessionStore {
	return &SQLiteSessionStore{
		db:    db,
		live:  make(map[string]*domain.Session),
		saved: make(map[string]uint64),
	}
}

// GetOrCreate returns the session for key, loading it from the database or
// creating an empty one.
func (s *SQLiteSessionStore) GetOrCreate(key string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.live[key]; ok {
		return sess, nil
	}

	sess, err := s.load(key)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		sess = domain.NewSession(key)
		if err := s.write(sess.Snapshot(), sess.CreatedAt, sess.UpdatedAt); err != nil {
			return nil, err
		}
		s.db.log.Debug().Str("session", key).Msg("session created")
	}
	s.live[key] = sess
	s.saved[key] = sess.Revision
	return sess, nil
}

// Save persists the session's current messages and summary.
func (s *SQLiteSessionStore) Save(sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := sess.Snapshot()
	if rev, ok := s.saved[snap.Key]; ok && rev == snap.Revision {
		return nil
	}
	if err := s.write(snap, sess.CreatedAt, time.Now()); err != nil {
		return err
	}
	s.live[snap.Key] = sess
	s.saved[snap.Key] = snap.Revision
	return nil
}

// Get returns the session for key without creating it. The bool is false if
// no such session exists.
func (s *SQLiteSessionStore) Get(key string) (*domain.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.live[key]; ok {
		return sess, true, nil
	}
	sess, err := s.load(key)
	if err != nil || sess == nil {
		return nil, false, err
	}
	s.live[key] = sess
	s.saved[key] = sess.Revision
	return sess, true, nil
}

// List returns all stored sessions, most recently updated first.
func (s *SQLiteSessionStore) List() ([]SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.sql.Query(`
		SELECT s.key, s.id, s.summary != '', s.updated_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.session_key = s.key)
		FROM sessions s`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var updated string
		if err := rows.Scan(&info.Key, &info.ID, &info.HasSummary, &updated, &info.Messages); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		info.UpdatedAt, _ = time.Parse(timeFormat, updated)
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].Key < out[j].Key
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// load reads a session from the database; it returns nil if none exists.
func (s *SQLiteSessionStore) load(key string) (*domain.Session, error) {
	var summary, created, updated string
	var revision, epoch uint64
	err := s.db.sql.QueryRow(
		`SELECT summary, revision, epoch, created_at, updated_at FROM sessions WHERE key = ?`, key,
	).Scan(&summary, &revision, &epoch, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", key, err)
	}

	msgs, err := s.loadMessages(key)
	if err != nil {
		return nil, err
	}

	sess := &domain.Session{
		Key:      key,
		Messages: msgs,
		Summary:  summary,
		Revision: revision,
		Epoch:    epoch,
	}
	sess.CreatedAt, _ = time.Parse(timeFormat, created)
	sess.UpdatedAt, _ = time.Parse(timeFormat, updated)
	return sess, nil
}

func (s *SQLiteSessionStore) loadMessages(key string) ([]domain.Message, error) {
	rows, err := s.db.sql.Query(
		`SELECT role, content, parts, timestamp FROM messages WHERE session_key = ? ORDER BY seq`, key,
	)
	if err != nil {
		return nil, fmt.Errorf("loading messages for %s: %w", key, err)
	}
	defer rows.Close()

	msgs := []domain.Message{}
	for rows.Next() {
		var m domain.Message
		var parts sql.NullString
		var ts string
		if err := rows.Scan(&m.Role, &m.Content, &parts, &ts); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Timestamp, _ = time.Parse(timeFormat, ts)
		if parts.Valid && parts.String != "" {
			if err := json.Unmarshal([]byte(parts.String), &m.Parts); err != nil {
				s.db.log.Warn().Err(err).Str("session", key).Msg("dropping unreadable message parts")
			}
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// write replaces the stored state of a session with snap in one transaction.
func (s *SQLiteSessionStore) write(snap domain.Snapshot, created, updated time.Time) error {
	channel, chat, _ := strings.Cut(snap.Key, ":")

	tx, err := s.db.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin save %s: %w", snap.Key, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO sessions (key, id, channel_id, chat_id, summary, revision, epoch, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			summary = excluded.summary,
			revision = excluded.revision,
			epoch = excluded.epoch,
			updated_at = excluded.updated_at`,
		snap.Key, uuid.NewString(), channel, chat, snap.Summary, snap.Revision, snap.Epoch,
		created.Format(timeFormat), updated.Format(timeFormat),
	); err != nil {
		return fmt.Errorf("saving session %s: %w", snap.Key, err)
	}

	if _, err := tx.Exec(`DELETE FROM messages WHERE session_key = ?`, snap.Key); err != nil {
		return fmt.Errorf("clearing messages for %s: %w", snap.Key, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO messages (session_key, seq, role, content, parts, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing message insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range snap.Messages {
		var parts sql.NullString
		if len(m.Parts) > 0 {
			data, err := json.Marshal(m.Parts)
			if err != nil {
				return fmt.Errorf("encoding message parts: %w", err)
			}
			parts = sql.NullString{String: string(data), Valid: true}
		}
		ts := m.Timestamp
		if ts.IsZero() {
			ts = updated
		}
		if _, err := stmt.Exec(snap.Key, i, m.Role, m.Content, parts, ts.Format(timeFormat)); err != nil {
			return fmt.Errorf("saving message %d of %s: %w", i, snap.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save %s: %w", snap.Key, err)
	}
	return nil
}
