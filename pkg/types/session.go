package types

import "time"

// Session states.
const (
	SessionRecording = "recording"
	SessionStopped   = "stopped"
)

// CompositeKey is the file key used for the mixed-down track of a session.
const CompositeKey = "_composite"

// Session is one recording of a voice channel.
type Session struct {
	ID          string     `json:"session_id"`
	GuildID     string     `json:"guild_id"`
	ChannelID   string     `json:"channel_id"`
	ChannelName string     `json:"channel_name"`
	Dir         string     `json:"dir"`
	State       string     `json:"state"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// Stop marks the session as stopped at t.
func (s *Session) Stop(t time.Time) {
	s.State = SessionStopped
	s.EndedAt = &t
}

// Duration returns how long the session ran. A session still recording
// reports zero.
func (s *Session) Duration() time.Duration {
	if s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Track is one WAV file produced by a session: a single speaker or the
// composite mix.
type Track struct {
	ID          string `json:"track_id"`
	SessionID   string `json:"session_id"`
	UserID      string `json:"user_id,omitempty"`
	DisplayName string `json:"display_name"`
	Path        string `json:"path"`
	Composite   bool   `json:"composite"`
}

// Transcript is the text recognized from a track. Error is set instead of
// Text when transcription failed.
type Transcript struct {
	ID        string    `json:"transcript_id"`
	SessionID string    `json:"session_id"`
	TrackID   string    `json:"track_id,omitempty"`
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Failed reports whether the transcript records a failed transcription.
func (t *Transcript) Failed() bool {
	return t.Error != ""
}
