package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/Shonas301/plutarch/internal/config"
	"github.com/Shonas301/plutarch/internal/sqlite"
	"github.com/Shonas301/plutarch/pkg/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupStore(t *testing.T) *sqlite.Backend {
	t.Helper()
	b := sqlite.NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { _ = b.Detach() })
	return b
}

func seedSession(t *testing.T, store types.Store, channel string, started time.Time) *types.Session {
	t.Helper()
	s := &types.Session{
		GuildID:     "g1",
		ChannelID:   channel,
		ChannelName: "General",
		Dir:         "/rec/General_" + channel,
		State:       types.SessionRecording,
		StartedAt:   started,
	}
	require.NoError(t, store.CreateSession(s))
	return s
}

func get(t *testing.T, h http.Handler, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndIndex(t *testing.T) {
	cfg := config.Defaults()
	srv := New(cfg, nil, WithLogger(quietLogger()))

	rec := get(t, srv.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = get(t, srv.Handler(), "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>plutarch</h1>")
	assert.NotContains(t, rec.Body.String(), "/login", "no login link without oauth2 settings")
}

func TestOAuthDisabled(t *testing.T) {
	srv := New(config.Defaults(), nil, WithLogger(quietLogger()))
	assert.Equal(t, http.StatusServiceUnavailable, get(t, srv.Handler(), "/login").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, srv.Handler(), "/oauth2/callback?code=x&state=y").Code)
}

// fakeDiscord serves the token and user endpoints.
func fakeDiscord(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/users/@me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"id":"42","username":"raider"}`)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func oauthServer(t *testing.T) *Server {
	t.Helper()
	discord := fakeDiscord(t)
	cfg := config.Defaults()
	cfg.Discord.ClientID = "client"
	cfg.Discord.ClientSecret = "secret"
	cfg.Discord.RedirectURI = "http://localhost:8080/oauth2/callback"
	ep := oauth2.Endpoint{AuthURL: discord.URL + "/authorize", TokenURL: discord.URL + "/token", AuthStyle: oauth2.AuthStyleInParams}
	return New(cfg, nil, WithEndpoint(ep, discord.URL+"/users/@me"), WithLogger(quietLogger()))
}

func TestLoginRedirect(t *testing.T) {
	srv := oauthServer(t)

	rec := get(t, srv.Handler(), "/login")
	require.Equal(t, http.StatusFound, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, stateCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/authorize", loc.Path)
	q := loc.Query()
	assert.Equal(t, "client", q.Get("client_id"))
	assert.Equal(t, "identify", q.Get("scope"))
	assert.Equal(t, cookies[0].Value, q.Get("state"))
	assert.Equal(t, "http://localhost:8080/oauth2/callback", q.Get("redirect_uri"))
}

func TestCallback(t *testing.T) {
	srv := oauthServer(t)
	state := &http.Cookie{Name: stateCookie, Value: "s1"}

	tests := []struct {
		name    string
		target  string
		cookies []*http.Cookie
		status  int
		body    string
	}{
		{name: "authorized", target: "/oauth2/callback?code=good-code&state=s1", cookies: []*http.Cookie{state}, status: http.StatusOK, body: "Authorized as raider"},
		{name: "state mismatch", target: "/oauth2/callback?code=good-code&state=other", cookies: []*http.Cookie{state}, status: http.StatusBadRequest},
		{name: "no cookie", target: "/oauth2/callback?code=good-code&state=s1", status: http.StatusBadRequest},
		{name: "missing code", target: "/oauth2/callback?state=s1", cookies: []*http.Cookie{state}, status: http.StatusBadRequest},
		{name: "exchange rejected", target: "/oauth2/callback?code=bad&state=s1", cookies: []*http.Cookie{state}, status: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, srv.Handler(), tt.target, tt.cookies...)
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Contains(t, rec.Body.String(), tt.body)
			}
		})
	}
}

func TestListSessions(t *testing.T) {
	store := setupStore(t)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	seedSession(t, store, "c1", base)
	seedSession(t, store, "c2", base.Add(time.Hour))
	seedSession(t, store, "c3", base.Add(2*time.Hour))
	srv := New(config.Defaults(), store, WithLogger(quietLogger()))

	rec := get(t, srv.Handler(), "/api/sessions?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got []types.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "c3", got[0].ChannelID, "newest first")
	assert.Equal(t, "c2", got[1].ChannelID)

	rec = get(t, srv.Handler(), "/api/sessions")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 3)

	assert.Equal(t, http.StatusBadRequest, get(t, srv.Handler(), "/api/sessions?limit=many").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, srv.Handler(), "/api/sessions?limit=-1").Code)
}

func TestListSessionsEmpty(t *testing.T) {
	srv := New(config.Defaults(), setupStore(t), WithLogger(quietLogger()))
	rec := get(t, srv.Handler(), "/api/sessions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestGetSession(t *testing.T) {
	store := setupStore(t)
	s := seedSession(t, store, "c1", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	track := &types.Track{SessionID: s.ID, UserID: "u1", DisplayName: "alice", Path: "/rec/a.wav"}
	require.NoError(t, store.AddTrack(track))
	require.NoError(t, store.SaveTranscript(&types.Transcript{SessionID: s.ID, TrackID: track.ID, Speaker: "alice", Text: "hello", CreatedAt: time.Now()}))
	srv := New(config.Defaults(), store, WithLogger(quietLogger()))

	rec := get(t, srv.Handler(), "/api/sessions/"+s.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	var got SessionDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, s.ID, got.Session.ID)
	require.Len(t, got.Tracks, 1)
	assert.Equal(t, "alice", got.Tracks[0].DisplayName)
	require.Len(t, got.Transcripts, 1)
	assert.Equal(t, "hello", got.Transcripts[0].Text)

	assert.Equal(t, http.StatusNotFound, get(t, srv.Handler(), "/api/sessions/missing").Code)
}

// failingStore breaks one of the per-session listings.
type failingStore struct {
	*sqlite.Backend
	tracksErr      error
	transcriptsErr error
}

func (f failingStore) ListTracks(id string) ([]*types.Track, error) {
	if f.tracksErr != nil {
		return nil, f.tracksErr
	}
	return f.Backend.ListTracks(id)
}

func (f failingStore) ListTranscripts(id string) ([]*types.Transcript, error) {
	if f.transcriptsErr != nil {
		return nil, f.transcriptsErr
	}
	return f.Backend.ListTranscripts(id)
}

func TestGetSessionStoreErrors(t *testing.T) {
	broken := errors.New("database is locked")
	tests := []struct {
		name  string
		store failingStore
	}{
		{name: "tracks", store: failingStore{tracksErr: broken}},
		{name: "transcripts", store: failingStore{transcriptsErr: broken}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := setupStore(t)
			s := seedSession(t, backend, "c1", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
			tt.store.Backend = backend
			srv := New(config.Defaults(), tt.store, WithLogger(quietLogger()))

			rec := get(t, srv.Handler(), "/api/sessions/"+s.ID)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Contains(t, rec.Body.String(), "could not load session")
		})
	}
}

func TestSessionsWithoutStore(t *testing.T) {
	srv := New(config.Defaults(), nil, WithLogger(quietLogger()))
	assert.Equal(t, http.StatusServiceUnavailable, get(t, srv.Handler(), "/api/sessions").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, srv.Handler(), "/api/sessions/x").Code)
}

func TestRunShutsDown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	cfg := config.Defaults()
	cfg.Web.Addr = addr
	srv := New(cfg, nil, WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
