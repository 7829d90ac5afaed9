package store

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/soyeahso/nanoagent/internal/domain"
	"github.com/soyeahso/nanoagent/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// --- DB/Migration tests ---

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	assert.NotNil(t, db)
	assert.NotNil(t, db.SQL())
}

func TestOpen_SingleConnection(t *testing.T) {
	db := testDB(t)
	assert.Equal(t, 1, db.SQL().Stats().MaxOpenConnections)

	// Every query must see the migrated in-memory database, including ones
	// issued from several goroutines.
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var n int
			errs <- db.SQL().QueryRow("SELECT COUNT(*) FROM sessions").Scan(&n)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestMigrations_Applied(t *testing.T) {
	db := testDB(t)

	var count int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)

	err := db.migrate()
	require.NoError(t, err)

	var count int
	err = db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestSchema_TablesExist(t *testing.T) {
	db := testDB(t)

	for _, table := range []string{"sessions", "messages"} {
		var name string
		err := db.sql.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

// --- Session store tests ---

func TestSessionStore_GetOrCreate_New(t *testing.T) {
	ss := NewSQLiteSessionStore(testDB(t))

	sess, err := ss.GetOrCreate("irc:#test")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "irc:#test", sess.Key)
	assert.Equal(t, 0, sess.Len())

	list, err := ss.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "irc:#test", list[0].Key)
	assert.NotEmpty(t, list[0].ID)
}

func TestSessionStore_GetOrCreate_SameInstance(t *testing.T) {
	ss := NewSQLiteSessionStore(testDB(t))

	a, err := ss.GetOrCreate("cli:direct")
	require.NoError(t, err)
	b, err := ss.GetOrCreate("cli:direct")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestSessionStore_SaveAndReload(t *testing.T) {
	db := testDB(t)
	ss := NewSQLiteSessionStore(db)

	sess, err := ss.GetOrCreate("irc:#room")
	require.NoError(t, err)
	sess.Append(
		domain.Message{Role: domain.RoleUser, Content: "hello"},
		domain.Message{Role: domain.RoleAssistant, Content: "hi"},
		domain.Message{Role: domain.RoleUser, Parts: []domain.ContentPart{
			{Type: "text", Text: "see"},
			{Type: "image_url", ImageURL: "https://example.com/x.png"},
		}},
	)
	snap, ok := sess.BeginSummary()
	require.True(t, ok)
	res := sess.CommitSummary(snap, "they said hello", 2)
	require.True(t, res.Committed)
	require.NoError(t, ss.Save(sess))

	// A fresh store over the same database sees the persisted state.
	reloaded, err := NewSQLiteSessionStore(db).GetOrCreate("irc:#room")
	require.NoError(t, err)
	assert.NotSame(t, sess, reloaded)
	assert.Equal(t, "they said hello", reloaded.CurrentSummary())

	hist := reloaded.History()
	require.Len(t, hist, 2)
	assert.Equal(t, "hi", hist[0].Content)
	assert.Equal(t, domain.RoleAssistant, hist[0].Role)
	require.Len(t, hist[1].Parts, 2)
	assert.Equal(t, "https://example.com/x.png", hist[1].Parts[1].ImageURL)
	assert.Equal(t, "see", hist[1].Text())

	assert.Equal(t, sess.Snapshot().Revision, reloaded.Revision)
	assert.Equal(t, sess.Snapshot().Epoch, reloaded.Epoch)
	assert.False(t, reloaded.SummarizingNow())
}

func TestSessionStore_ClearPersists(t *testing.T) {
	db := testDB(t)
	ss := NewSQLiteSessionStore(db)

	sess, err := ss.GetOrCreate("ws:u1")
	require.NoError(t, err)
	sess.Append(domain.Message{Role: domain.RoleUser, Content: "x"})
	require.NoError(t, ss.Save(sess))

	sess.Clear()
	require.NoError(t, ss.Save(sess))

	reloaded, err := NewSQLiteSessionStore(db).GetOrCreate("ws:u1")
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.Len())
}

func TestSessionStore_Get(t *testing.T) {
	db := testDB(t)
	ss := NewSQLiteSessionStore(db)

	_, ok, err := ss.Get("irc:#missing")
	require.NoError(t, err)
	assert.False(t, ok)

	sess, err := ss.GetOrCreate("irc:#here")
	require.NoError(t, err)
	sess.Append(domain.Message{Role: domain.RoleUser, Content: "x"})
	require.NoError(t, ss.Save(sess))

	got, ok, err := NewSQLiteSessionStore(db).Get("irc:#here")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, got.Len())
}

func TestSessionStore_List(t *testing.T) {
	ss := NewSQLiteSessionStore(testDB(t))

	a, err := ss.GetOrCreate("irc:#a")
	require.NoError(t, err)
	a.Append(domain.Message{Role: domain.RoleUser, Content: "1"}, domain.Message{Role: domain.RoleAssistant, Content: "2"})
	a.Summary = "s"
	require.NoError(t, ss.Save(a))

	b, err := ss.GetOrCreate("cli:direct")
	require.NoError(t, err)
	b.Append(domain.Message{Role: domain.RoleUser, Content: "1"})
	require.NoError(t, ss.Save(b))

	list, err := ss.List()
	require.NoError(t, err)
	require.Len(t, list, 2)

	byKey := map[string]SessionInfo{}
	for _, info := range list {
		byKey[info.Key] = info
	}
	assert.Equal(t, 2, byKey["irc:#a"].Messages)
	assert.True(t, byKey["irc:#a"].HasSummary)
	assert.Equal(t, 1, byKey["cli:direct"].Messages)
	assert.False(t, byKey["cli:direct"].HasSummary)
	assert.Equal(t, "cli:direct", list[0].Key, "most recently updated first")
}

func TestSessionStore_ChatIDWithColon(t *testing.T) {
	db := testDB(t)
	ss := NewSQLiteSessionStore(db)

	_, err := ss.GetOrCreate("ws:client:42")
	require.NoError(t, err)

	var channel, chat string
	require.NoError(t, db.sql.QueryRow(`SELECT channel_id, chat_id FROM sessions WHERE key = ?`, "ws:client:42").Scan(&channel, &chat))
	assert.Equal(t, "ws", channel)
	assert.Equal(t, "client:42", chat)
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "nanoagent.db")
	db, err := Open(path, logging.New(nil, "silent"))
	require.NoError(t, err)

	ss := NewSQLiteSessionStore(db)
	sess, err := ss.GetOrCreate("cli:direct")
	require.NoError(t, err)
	sess.Append(domain.Message{Role: domain.RoleUser, Content: "persist me"})
	require.NoError(t, ss.Save(sess))
	require.NoError(t, db.Close())

	db2, err := Open(path, logging.New(nil, "silent"))
	require.NoError(t, err)
	defer db2.Close()
	again, err := NewSQLiteSessionStore(db2).GetOrCreate("cli:direct")
	require.NoError(t, err)
	assert.Equal(t, []string{"persist me"}, []string{again.History()[0].Content})
}
