package sqlite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shonas301/plutarch/pkg/types"
)

func setupBackend(t *testing.T) *Backend {
	t.Helper()
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { _ = b.Detach() })
	return b
}

func newSession(channel string, started time.Time) *types.Session {
	return &types.Session{
		GuildID:     "g1",
		ChannelID:   channel,
		ChannelName: "general",
		Dir:         "/rec/general_" + channel,
		StartedAt:   started,
	}
}

func TestBackend_Attach(t *testing.T) {
	tmpDir := t.TempDir()
	dataDir := filepath.Join(tmpDir, "nested", "data")

	b := NewBackend()
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: dataDir}
	require.NoError(t, b.Attach(cfg))
	defer b.Detach()

	_, err := os.Stat(filepath.Join(dataDir, DBFileName))
	assert.NoError(t, err, "database file created")

	assert.ErrorIs(t, b.Attach(cfg), types.ErrAlreadyAttached)
}

func TestBackend_AttachValidatesConfig(t *testing.T) {
	b := NewBackend()
	err := b.Attach(types.Config{Backend: "postgres", DataDir: t.TempDir()})
	assert.ErrorIs(t, err, types.ErrBackendUnknown)
}

func TestBackend_Detach(t *testing.T) {
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))

	require.NoError(t, b.Detach())
	assert.NoError(t, b.Detach(), "second Detach is a no-op")

	_, err := b.ListSessions(0)
	assert.ErrorIs(t, err, types.ErrDetached)
	assert.ErrorIs(t, b.CreateSession(newSession("c1", time.Now())), types.ErrDetached)
}

func TestBackend_PersistsAcrossAttach(t *testing.T) {
	dir := t.TempDir()
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: dir}

	b := NewBackend()
	require.NoError(t, b.Attach(cfg))
	s := newSession("c1", time.Now())
	require.NoError(t, b.CreateSession(s))
	require.NoError(t, b.Detach())

	b2 := NewBackend()
	require.NoError(t, b2.Attach(cfg))
	defer b2.Detach()
	got, err := b2.GetSession(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ChannelID)
}

func TestBackend_SessionLifecycle(t *testing.T) {
	b := setupBackend(t)
	start := time.Date(2026, 3, 1, 20, 15, 0, 0, time.UTC)

	s := newSession("c1", start)
	require.NoError(t, b.CreateSession(s))
	assert.NotEmpty(t, s.ID, "ID generated")
	assert.Equal(t, types.SessionRecording, s.State)

	got, err := b.GetSession(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "general", got.ChannelName)
	assert.True(t, got.StartedAt.Equal(start))
	assert.Nil(t, got.EndedAt)

	end := start.Add(5 * time.Minute)
	require.NoError(t, b.FinishSession(s.ID, end))

	got, err = b.GetSession(s.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SessionStopped, got.State)
	require.NotNil(t, got.EndedAt)
	assert.Equal(t, 5*time.Minute, got.Duration())
}

func TestBackend_SessionErrors(t *testing.T) {
	b := setupBackend(t)

	assert.ErrorIs(t, b.CreateSession(&types.Session{}), types.ErrInvalidSession)

	_, err := b.GetSession("missing")
	assert.ErrorIs(t, err, types.ErrNotFound)

	assert.ErrorIs(t, b.FinishSession("missing", time.Now()), types.ErrNotFound)
}

func TestBackend_ListSessions(t *testing.T) {
	b := setupBackend(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Sub-second offsets check that ordering is chronological, not lexical.
	offsets := []time.Duration{0, 1500 * time.Millisecond, time.Second, 2 * time.Hour}
	for i, off := range offsets {
		require.NoError(t, b.CreateSession(newSession(string(rune('a'+i)), base.Add(off))))
	}

	tests := []struct {
		name     string
		limit    int
		wantChan []string
	}{
		{name: "all newest first", limit: 0, wantChan: []string{"d", "b", "c", "a"}},
		{name: "limited", limit: 2, wantChan: []string{"d", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.ListSessions(tt.limit)
			require.NoError(t, err)
			var chans []string
			for _, s := range got {
				chans = append(chans, s.ChannelID)
			}
			assert.Equal(t, tt.wantChan, chans)
		})
	}
}

func TestBackend_TracksAndTranscripts(t *testing.T) {
	b := setupBackend(t)
	s := newSession("c1", time.Now())
	require.NoError(t, b.CreateSession(s))

	alice := &types.Track{SessionID: s.ID, UserID: "u1", DisplayName: "alice", Path: "/rec/a.wav"}
	mix := &types.Track{SessionID: s.ID, DisplayName: types.CompositeKey, Path: "/rec/mix.wav", Composite: true}
	require.NoError(t, b.AddTrack(alice))
	require.NoError(t, b.AddTrack(mix))

	tracks, err := b.ListTracks(s.ID)
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, "alice", tracks[0].DisplayName)
	assert.Equal(t, "u1", tracks[0].UserID)
	assert.False(t, tracks[0].Composite)
	assert.True(t, tracks[1].Composite)
	assert.Empty(t, tracks[1].UserID)

	require.NoError(t, b.SaveTranscript(&types.Transcript{SessionID: s.ID, TrackID: alice.ID, Speaker: "alice", Text: "hello there"}))
	require.NoError(t, b.SaveTranscript(&types.Transcript{SessionID: s.ID, Speaker: "bob", Error: "whisper exited 1"}))

	got, err := b.ListTranscripts(s.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hello there", got[0].Text)
	assert.Equal(t, alice.ID, got[0].TrackID)
	assert.False(t, got[0].Failed())
	assert.True(t, got[1].Failed())
	assert.False(t, got[1].CreatedAt.IsZero())

	other, err := b.ListTranscripts("other-session")
	require.NoError(t, err)
	assert.Empty(t, other)
}
