// Package sqlite implements the SQLite storage backend for recording
// sessions, tracks, and transcripts.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Shonas301/plutarch/pkg/types"
)

// DBFileName is the database file created inside the data directory.
const DBFileName = "plutarch.db"

// Compile-time interface check.
var _ types.Store = (*Backend)(nil)

// Backend implements the Store interface using SQLite.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach initializes the backend with the given configuration.
// Creates DataDir if it does not exist and applies the schema.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}

	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	dsn := filepath.Join(dataDir, DBFileName) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, ddl := range append(append([]string{}, schemaDDL...), indexDDL...) {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	b.db = db
	b.config = config
	b.attached = true
	return nil
}

// Detach releases all resources held by the backend.
// After Detach, all operations return ErrDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	return nil
}

// CreateSession inserts a new session row.
func (b *Backend) CreateSession(s *types.Session) error {
	if s == nil || s.ChannelID == "" {
		return types.ErrInvalidSession
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.ErrDetached
	}

	if s.ID == "" {
		s.ID = generateUUID()
	}
	if s.State == "" {
		s.State = types.SessionRecording
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}

	_, err := b.db.Exec(
		`INSERT INTO sessions (session_id, guild_id, channel_id, channel_name, dir, state, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.GuildID, s.ChannelID, s.ChannelName, s.Dir, s.State,
		formatTime(s.StartedAt), formatTimePtr(s.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", s.ID, err)
	}
	return nil
}

// FinishSession marks the session stopped.
func (b *Backend) FinishSession(id string, endedAt time.Time) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.ErrDetached
	}

	res, err := b.db.Exec(
		"UPDATE sessions SET state = ?, ended_at = ? WHERE session_id = ?",
		types.SessionStopped, formatTime(endedAt), id,
	)
	if err != nil {
		return fmt.Errorf("finish session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish session %s: %w", id, err)
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

// GetSession returns a session by ID.
func (b *Backend) GetSession(id string) (*types.Session, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrDetached
	}

	row := b.db.QueryRow(sessionSelect+" WHERE session_id = ?", id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return s, nil
}

// ListSessions returns sessions newest first.
func (b *Backend) ListSessions(limit int) ([]*types.Session, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrDetached
	}

	query := sessionSelect + " ORDER BY started_at DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := b.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*types.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// AddTrack inserts a track row.
func (b *Backend) AddTrack(t *types.Track) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.ErrDetached
	}

	if t.ID == "" {
		t.ID = generateUUID()
	}
	_, err := b.db.Exec(
		`INSERT INTO tracks (track_id, session_id, user_id, display_name, path, composite)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.SessionID, nullString(t.UserID), t.DisplayName, t.Path, boolToInt(t.Composite),
	)
	if err != nil {
		return fmt.Errorf("insert track %s: %w", t.ID, err)
	}
	return nil
}

// ListTracks returns the tracks of a session in insertion order.
func (b *Backend) ListTracks(sessionID string) ([]*types.Track, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrDetached
	}

	rows, err := b.db.Query(
		`SELECT track_id, session_id, user_id, display_name, path, composite
		 FROM tracks WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*types.Track
	for rows.Next() {
		var (
			t         types.Track
			userID    sql.NullString
			composite int
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &userID, &t.DisplayName, &t.Path, &composite); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		t.UserID = userID.String
		t.Composite = composite != 0
		tracks = append(tracks, &t)
	}
	return tracks, rows.Err()
}

// SaveTranscript inserts a transcript row.
func (b *Backend) SaveTranscript(t *types.Transcript) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.ErrDetached
	}

	if t.ID == "" {
		t.ID = generateUUID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := b.db.Exec(
		`INSERT INTO transcripts (transcript_id, session_id, track_id, speaker, text, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.SessionID, nullString(t.TrackID), t.Speaker, t.Text, nullString(t.Error), formatTime(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert transcript %s: %w", t.ID, err)
	}
	return nil
}

// ListTranscripts returns the transcripts of a session in insertion order.
func (b *Backend) ListTranscripts(sessionID string) ([]*types.Transcript, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrDetached
	}

	rows, err := b.db.Query(
		`SELECT transcript_id, session_id, track_id, speaker, text, error, created_at
		 FROM transcripts WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	defer rows.Close()

	var out []*types.Transcript
	for rows.Next() {
		var (
			t                    types.Transcript
			trackID, text, errSt sql.NullString
			created              string
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &trackID, &t.Speaker, &text, &errSt, &created); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		t.TrackID = trackID.String
		t.Text = text.String
		t.Error = errSt.String
		if t.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

const sessionSelect = `SELECT session_id, guild_id, channel_id, channel_name, dir, state, started_at, ended_at FROM sessions`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*types.Session, error) {
	var (
		s       types.Session
		started string
		ended   sql.NullString
	)
	if err := row.Scan(&s.ID, &s.GuildID, &s.ChannelID, &s.ChannelName, &s.Dir, &s.State, &started, &ended); err != nil {
		return nil, err
	}
	var err error
	if s.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if ended.Valid {
		t, err := parseTime(ended.String)
		if err != nil {
			return nil, err
		}
		s.EndedAt = &t
	}
	return &s, nil
}

// generateUUID generates a new UUID v7 for entity IDs.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}

// timeLayout is fixed width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
