package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create sessions and messages",
		SQL: `
			CREATE TABLE sessions (
				key         TEXT PRIMARY KEY,
				id          TEXT NOT NULL,
				channel_id  TEXT NOT NULL,
				chat_id     TEXT NOT NULL,
				summary     TEXT NOT NULL DEFAULT '',
				revision    INTEGER NOT NULL DEFAULT 0,
				epoch       INTEGER NOT NULL DEFAULT 0,
				created_at  TEXT NOT NULL,
				updated_at  TEXT NOT NULL
			);

			CREATE UNIQUE INDEX idx_sessions_id ON sessions (id);
			CREATE INDEX idx_sessions_channel ON sessions (channel_id);

			CREATE TABLE messages (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				session_key  TEXT NOT NULL REFERENCES sessions(key) ON DELETE CASCADE,
				seq          INTEGER NOT NULL,
				role         TEXT NOT NULL,
				content      TEXT NOT NULL,
				parts        TEXT,
				timestamp    TEXT NOT NULL
			);

			CREATE UNIQUE INDEX idx_messages_session ON messages (session_key, seq);
		`,
	},
}
