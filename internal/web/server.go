// Package web serves the Discord OAuth2 callback and a read-only JSON API
// over recorded sessions.
package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/oauth2"

	"github.com/Shonas301/plutarch/internal/config"
	"github.com/Shonas301/plutarch/internal/logging"
	"github.com/Shonas301/plutarch/pkg/types"
)

// DiscordEndpoint is Discord's OAuth2 authorization server.
var DiscordEndpoint = oauth2.Endpoint{
	AuthURL:   "https://discord.com/oauth2/authorize",
	TokenURL:  "https://discord.com/api/oauth2/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// DiscordUserURL returns the user behind an access token.
const DiscordUserURL = "https://discord.com/api/users/@me"

const (
	stateCookie     = "plutarch_oauth_state"
	stateTTL        = 5 * time.Minute
	defaultLimit    = 20
	shutdownTimeout = 5 * time.Second
)

// Server is the HTTP front end.
type Server struct {
	addr    string
	botName string
	store   types.Store
	oauth   *oauth2.Config
	userURL string
	log     *slog.Logger
	router  *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithEndpoint points the OAuth2 flow at another provider, for tests.
func WithEndpoint(ep oauth2.Endpoint, userURL string) Option {
	return func(s *Server) {
		if s.oauth != nil {
			s.oauth.Endpoint = ep
		}
		s.userURL = userURL
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// New builds the server. OAuth2 routes answer 503 unless the Discord client
// credentials and redirect URI are configured. The session API answers 503
// without a store.
func New(cfg config.Config, store types.Store, opts ...Option) *Server {
	s := &Server{
		addr:    cfg.Web.Addr,
		botName: cfg.Discord.BotName,
		store:   store,
		userURL: DiscordUserURL,
		log:     logging.OrDefault(nil),
	}
	if cfg.OAuthEnabled() {
		s.oauth = &oauth2.Config{
			ClientID:     cfg.Discord.ClientID,
			ClientSecret: cfg.Discord.ClientSecret,
			RedirectURL:  cfg.Discord.RedirectURI,
			Scopes:       []string{"identify"},
			Endpoint:     DiscordEndpoint,
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "web")

	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodGet)
	r.HandleFunc("/oauth2/callback", s.handleCallback).Methods(http.MethodGet)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	s.router = r
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("web server listening", "addr", s.addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", s.addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown web server: %w", err)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

var indexPage = template.Must(template.New("index").Parse(`<!doctype html>
<html><head><title>{{.Name}}</title></head>
<body>
<h1>{{.Name}}</h1>
{{if .Login}}<p><a href="/login">Log in with Discord</a></p>{{end}}
</body></html>
`))

var authorizedPage = template.Must(template.New("authorized").Parse(`<!doctype html>
<html><head><title>Authorized</title></head>
<body><p>Authorized as {{.}}</p></body></html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		Name  string
		Login bool
	}{Name: s.botName, Login: s.oauth != nil}
	if err := indexPage.Execute(w, data); err != nil {
		s.log.Warn("render index", "error", err)
	}
}

func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		http.Error(w, "oauth2 is not configured", http.StatusServiceUnavailable)
		return
	}
	state, err := newState()
	if err != nil {
		http.Error(w, "could not start login", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.oauth.AuthCodeURL(state), http.StatusFound)
}

type discordUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		http.Error(w, "oauth2 is not configured", http.StatusServiceUnavailable)
		return
	}
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		http.Error(w, "invalid oauth2 state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.log.Warn("oauth2 exchange failed", "error", err)
		http.Error(w, "authorization failed", http.StatusBadGateway)
		return
	}
	user, err := s.fetchUser(ctx, token)
	if err != nil {
		s.log.Warn("fetch discord user", "error", err)
		http.Error(w, "could not read discord user", http.StatusBadGateway)
		return
	}

	s.log.Info("user authorized", "user_id", user.ID, "user", user.Username)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := authorizedPage.Execute(w, user.Username); err != nil {
		s.log.Warn("render authorized", "error", err)
	}
}

func (s *Server) fetchUser(ctx context.Context, token *oauth2.Token) (*discordUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("users/@me: status %d", resp.StatusCode)
	}
	var u discordUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no session store")
		return
	}
	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	sessions, err := s.store.ListSessions(limit)
	if err != nil {
		s.log.Error("list sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "could not list sessions")
		return
	}
	if sessions == nil {
		sessions = []*types.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// SessionDetail is a session with everything recorded for it.
type SessionDetail struct {
	Session     *types.Session      `json:"session"`
	Tracks      []*types.Track      `json:"tracks"`
	Transcripts []*types.Transcript `json:"transcripts"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no session store")
		return
	}
	id := mux.Vars(r)["id"]
	sess, err := s.store.GetSession(id)
	if errors.Is(err, types.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		s.log.Error("get session", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load session")
		return
	}

	detail := SessionDetail{Session: sess, Tracks: []*types.Track{}, Transcripts: []*types.Transcript{}}
	tracks, err := s.store.ListTracks(id)
	if err != nil {
		s.log.Error("list tracks", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load session")
		return
	}
	if tracks != nil {
		detail.Tracks = tracks
	}
	transcripts, err := s.store.ListTranscripts(id)
	if err != nil {
		s.log.Error("list transcripts", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load session")
		return
	}
	if transcripts != nil {
		detail.Transcripts = transcripts
	}
	writeJSON(w, http.StatusOK, detail)
}
