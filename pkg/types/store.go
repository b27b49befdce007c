package types

import (
	"errors"
	"time"
)

// Store persists recording sessions, their tracks, and transcripts.
// Callers attach to a backend, use it, and detach when done.
type Store interface {
	// Attach connects the Store to the backend described by config.
	// Creates the DataDir if it does not exist. Returns ErrAlreadyAttached if
	// called while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent: multiple calls succeed.
	// After Detach, all other operations return ErrDetached.
	Detach() error

	// CreateSession inserts a new session. An empty ID is filled in.
	CreateSession(s *Session) error

	// FinishSession marks a session stopped at endedAt.
	// Returns ErrNotFound when no session has that ID.
	FinishSession(id string, endedAt time.Time) error

	// GetSession returns the session with the given ID or ErrNotFound.
	GetSession(id string) (*Session, error)

	// ListSessions returns up to limit sessions, newest first. A limit of
	// zero or less returns all sessions.
	ListSessions(limit int) ([]*Session, error)

	// AddTrack inserts a track. An empty ID is filled in.
	AddTrack(t *Track) error

	// ListTracks returns the tracks of a session in insertion order.
	ListTracks(sessionID string) ([]*Track, error)

	// SaveTranscript inserts a transcript. An empty ID is filled in.
	SaveTranscript(t *Transcript) error

	// ListTranscripts returns the transcripts of a session in insertion order.
	ListTranscripts(sessionID string) ([]*Transcript, error)
}

// Store lifecycle and lookup errors.
var (
	ErrDetached        = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
	ErrNotFound        = errors.New("not found")
	ErrInvalidSession  = errors.New("session requires a channel id")
)
