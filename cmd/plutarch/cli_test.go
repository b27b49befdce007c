package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shonas301/plutarch/internal/arc"
	"github.com/Shonas301/plutarch/internal/sqlite"
	"github.com/Shonas301/plutarch/pkg/types"
)

// testEnv is an isolated config and data directory pair.
type testEnv struct {
	ConfigDir string
	DataDir   string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("LOGGING_LEVEL", "error")
	return testEnv{
		ConfigDir: filepath.Join(tmp, "config"),
		DataDir:   filepath.Join(tmp, "data"),
	}
}

// run executes the root command in-process and returns its stdout.
func (e testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	flagJSON = false
	flagSessionsLimit = 20
	flagExportOut = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"--config-dir", e.ConfigDir, "--data-dir", e.DataDir}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func (e testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, "plutarch %s", strings.Join(args, " "))
	return out
}

// seed writes sessions straight into the data directory's store.
func (e testEnv) seed(t *testing.T, fn func(s types.Store)) {
	t.Helper()
	b := sqlite.NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: e.DataDir}))
	defer b.Detach()
	fn(b)
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t)
	out := env.mustRun(t, "version")
	assert.Equal(t, "plutarch dev\n", out)
}

func TestInitWritesDefaultConfig(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "init")
	assert.Contains(t, out, "plutarch initialized successfully")
	assert.Contains(t, out, env.ConfigDir)
	assert.Contains(t, out, env.DataDir)

	body, err := os.ReadFile(filepath.Join(env.ConfigDir, configFileExt))
	require.NoError(t, err)
	assert.Contains(t, string(body), "# plutarch configuration")
	assert.Contains(t, string(body), "command_prefix:")
	assert.Equal(t, "%", appConfig.Discord.CommandPrefix)

	_, err = os.Stat(env.DataDir)
	assert.NoError(t, err)
}

func TestInitKeepsExistingConfig(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.MkdirAll(env.ConfigDir, 0o755))
	custom := "discord:\n  command_prefix: '!'\n"
	require.NoError(t, os.WriteFile(filepath.Join(env.ConfigDir, configFileExt), []byte(custom), 0o644))

	env.mustRun(t, "init")

	body, err := os.ReadFile(filepath.Join(env.ConfigDir, configFileExt))
	require.NoError(t, err)
	assert.Equal(t, custom, string(body))
	assert.Equal(t, "!", appConfig.Discord.CommandPrefix)
}

func TestInvalidConfigFails(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("TRANSCRIBE_BACKEND", "cloud")

	_, err := env.run(t, "version")
	assert.Error(t, err)
}

func TestSessionsList(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "sessions", "list", "--json")
	assert.Equal(t, "[]\n", out)

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	env.seed(t, func(s types.Store) {
		for i, name := range []string{"General", "Raid"} {
			sess := &types.Session{
				ID:          "s" + name,
				ChannelID:   "c" + name,
				ChannelName: name,
				Dir:         "recordings/" + name,
				StartedAt:   start.Add(time.Duration(i) * time.Hour),
			}
			require.NoError(t, s.CreateSession(sess))
		}
		require.NoError(t, s.FinishSession("sGeneral", start.Add(90*time.Second)))
	})

	out = env.mustRun(t, "sessions", "list", "--json")
	var sessions []types.Session
	require.NoError(t, json.Unmarshal([]byte(out), &sessions))
	require.Len(t, sessions, 2)
	assert.Equal(t, "sRaid", sessions[0].ID)
	assert.Equal(t, "sGeneral", sessions[1].ID)

	out = env.mustRun(t, "sessions", "list", "--limit", "1")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "Raid")
	assert.Contains(t, lines[1], types.SessionRecording)

	_, err := env.run(t, "sessions", "list", "--limit", "0")
	assert.Error(t, err)
}

func TestSessionsShow(t *testing.T) {
	env := newTestEnv(t)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	env.seed(t, func(s types.Store) {
		require.NoError(t, s.CreateSession(&types.Session{ID: "s1", ChannelID: "c1", ChannelName: "General", StartedAt: start}))
		require.NoError(t, s.FinishSession("s1", start.Add(time.Minute)))
		tr := &types.Track{SessionID: "s1", UserID: "u-alice", DisplayName: "alice", Path: "a.wav"}
		require.NoError(t, s.AddTrack(tr))
		require.NoError(t, s.SaveTranscript(&types.Transcript{SessionID: "s1", TrackID: tr.ID, Speaker: "alice", Text: "hello", CreatedAt: start}))
		require.NoError(t, s.SaveTranscript(&types.Transcript{SessionID: "s1", Speaker: "bob", Error: "boom", CreatedAt: start}))
	})

	out := env.mustRun(t, "sessions", "show", "s1")
	assert.Contains(t, out, "Session s1")
	assert.Contains(t, out, "duration: 1m0s")
	assert.Contains(t, out, "Tracks (1)")
	assert.Contains(t, out, "alice: hello")
	assert.Contains(t, out, "bob: (transcription failed: boom)")

	out = env.mustRun(t, "sessions", "show", "s1", "--json")
	var d sessionDetail
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, "General", d.Session.ChannelName)
	assert.Len(t, d.Tracks, 1)
	assert.Len(t, d.Transcripts, 2)

	_, err := env.run(t, "sessions", "show", "missing")
	assert.ErrorContains(t, err, `session "missing" not found`)
}

func TestSessionsExport(t *testing.T) {
	env := newTestEnv(t)
	dir := filepath.Join(t.TempDir(), "General_20250101_000000")
	env.seed(t, func(s types.Store) {
		require.NoError(t, s.CreateSession(&types.Session{ID: "s1", ChannelID: "c1", Dir: dir}))
		require.NoError(t, s.SaveTranscript(&types.Transcript{SessionID: "s1", Speaker: "alice", Text: "hello", CreatedAt: time.Now()}))
	})

	out := env.mustRun(t, "sessions", "export", "s1")
	path := filepath.Join(dir, sqlite.TranscriptFileName)
	assert.Equal(t, "wrote 1 transcripts to "+path+"\n", out)

	got, err := sqlite.ReadTranscripts(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Text)

	_, err = env.run(t, "sessions", "export", "missing")
	assert.Error(t, err)
}

func TestPlainPage(t *testing.T) {
	assert.Equal(t, "a\nb\nfooter", plainPage("```\na\nb\n```\nfooter"))
}

func TestWritePages(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writePages(&buf, "Sell", []string{"one"}))
	assert.Equal(t, "Sell\none\n\n", buf.String())

	buf.Reset()
	require.NoError(t, writePages(&buf, "Sell", []string{"one", "two"}))
	assert.Equal(t, "Sell (1/2)\none\n\nSell (2/2)\ntwo\n\n", buf.String())
}

func TestWriteOptimizeSummary(t *testing.T) {
	res := arc.OptimizeResult{
		Sell:           []arc.Recommendation{{Name: "Ruby Gem", Quantity: 1, SellValue: 12500}},
		TotalSellValue: 12500,
		TotalHoldCount: 3,
	}
	var buf bytes.Buffer
	require.NoError(t, writeOptimize(&buf, res, arc.DefaultOptimizeParams()))

	out := buf.String()
	assert.Contains(t, out, "SELL\n")
	assert.Contains(t, out, "Ruby Gem")
	assert.NotContains(t, out, "```")
	assert.Contains(t, out, "Sell:    12,500 credits from 1 items\n")
	assert.Contains(t, out, "Hold:    3 items (quest-aware: true)\n")
}

func TestSessionDuration(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	running := &types.Session{State: types.SessionRecording, StartedAt: start}
	assert.Equal(t, types.SessionRecording, sessionDuration(running))

	stopped := &types.Session{StartedAt: start}
	stopped.Stop(start.Add(1500 * time.Millisecond))
	assert.Equal(t, "2s", sessionDuration(stopped))
}
