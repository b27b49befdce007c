package sqlite

// Schema DDL for all tables.
const (
	createSessions = `CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    guild_id TEXT NOT NULL,
    channel_id TEXT NOT NULL,
    channel_name TEXT NOT NULL,
    dir TEXT NOT NULL,
    state TEXT NOT NULL,
    started_at TEXT NOT NULL,
    ended_at TEXT
);`

	createTracks = `CREATE TABLE IF NOT EXISTS tracks (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    track_id TEXT NOT NULL UNIQUE,
    session_id TEXT NOT NULL,
    user_id TEXT,
    display_name TEXT NOT NULL,
    path TEXT NOT NULL,
    composite INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
);`

	createTranscripts = `CREATE TABLE IF NOT EXISTS transcripts (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    transcript_id TEXT NOT NULL UNIQUE,
    session_id TEXT NOT NULL,
    track_id TEXT,
    speaker TEXT NOT NULL,
    text TEXT,
    error TEXT,
    created_at TEXT NOT NULL,
    FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
);`
)

// Index DDL for common queries.
const (
	idxSessionsStarted    = `CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);`
	idxSessionsChannel    = `CREATE INDEX IF NOT EXISTS idx_sessions_channel ON sessions(channel_id);`
	idxTracksSession      = `CREATE INDEX IF NOT EXISTS idx_tracks_session ON tracks(session_id);`
	idxTranscriptsSession = `CREATE INDEX IF NOT EXISTS idx_transcripts_session ON transcripts(session_id);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createSessions,
	createTracks,
	createTranscripts,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxSessionsStarted,
	idxSessionsChannel,
	idxTracksSession,
	idxTranscriptsSession,
}
