package recorder

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Shonas301/plutarch/internal/voice"
	"github.com/Shonas301/plutarch/pkg/types"
)

// ErrSinkClosed is returned by Write after Close.
var ErrSinkClosed = errors.New("recording sink closed")

// SinkOptions configures a Sink.
type SinkOptions struct {
	// Composite also records a mix of every speaker.
	Composite bool
	// MixWindow is the compositor window in slots; zero uses DefaultMixWindow.
	MixWindow int
	// Now is the session clock; nil uses time.Now.
	Now       func() time.Time
	Logger    *slog.Logger
}

// Sink writes a recording session to disk: one WAV track per non-bot
// member and, optionally, a composite track. It is safe for concurrent use.
type Sink struct {
	dir       string
	sessionID string
	now       func() time.Time
	start     time.Time
	log       *slog.Logger

	mu     sync.Mutex
	tracks map[string]*wavTrack // by member ID
	files  []voice.File
	mix    *mixer
	closed bool
}

// NewSink creates dir and opens a track for each non-bot member.
func NewSink(dir, sessionID string, members []Member, opts SinkOptions) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Sink{
		dir:       dir,
		sessionID: sessionID,
		now:       now,
		start:     now(),
		log:       log.With("session", sessionID),
		tracks:    make(map[string]*wavTrack),
	}

	for _, m := range members {
		if m.Bot {
			continue
		}
		if _, err := s.addTrack(m); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	if opts.Composite {
		path := filepath.Join(dir, sessionID+"_composite.wav")
		t, err := newWAVTrack(types.CompositeKey, path)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.mix = newMixer(t, opts.MixWindow)
		s.files = append(s.files, voice.File{Name: types.CompositeKey, Path: path})
	}
	return s, nil
}

// addTrack opens a track for m. The caller holds mu or owns s exclusively.
func (s *Sink) addTrack(m Member) (*wavTrack, error) {
	if t, ok := s.tracks[m.ID]; ok {
		return t, nil
	}
	name := m.DisplayName
	if name == "" {
		name = m.ID
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s_%s.wav", s.sessionID, SafeName(name), m.ID))
	t, err := newWAVTrack(name, path)
	if err != nil {
		return nil, err
	}
	s.tracks[m.ID] = t
	s.files = append(s.files, voice.File{Name: name, Path: path, UserID: m.ID})
	s.log.Info("added recording track", "user", name, "path", path)
	return t, nil
}

// slot is the current 20 ms slot on the session clock.
func (s *Sink) slot() int64 {
	return int64(s.now().Sub(s.start) / FrameDuration)
}

// Write records one decoded frame from m. Frames from bots or without a
// member ID are ignored. A member without a track, who joined after the
// recording started, gets one.
func (s *Sink) Write(m Member, pcm []int16) error {
	if m.ID == "" || m.Bot {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}

	t, err := s.addTrack(m)
	if err != nil {
		return err
	}
	// The composite mixes at the slot the speaker's track used.
	slot, err := t.writeAt(s.slot(), pcm)
	if err != nil {
		return fmt.Errorf("write track %s: %w", t.name, err)
	}
	if s.mix != nil {
		if err := s.mix.add(slot, pcm); err != nil {
			return fmt.Errorf("write composite: %w", err)
		}
	}
	return nil
}

// Files lists the session's tracks in creation order. The composite, when
// recorded, is named types.CompositeKey.
func (s *Sink) Files() []voice.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]voice.File(nil), s.files...)
}

// Dir is the session directory.
func (s *Sink) Dir() string {
	return s.dir
}

// Close finalizes every track. Errors are logged per track and returned
// joined. Closing twice is a no-op.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for _, t := range s.tracks {
		if err := t.close(); err != nil {
			s.log.Error("error closing track", "user", t.name, "error", err)
			errs = append(errs, err)
		}
	}
	if s.mix != nil {
		if s.mix.dropped > 0 {
			s.log.Warn("dropped late composite frames", "frames", s.mix.dropped)
		}
		if err := s.mix.close(); err != nil {
			s.log.Error("error closing composite track", "error", err)
			errs = append(errs, err)
		}
	}
	s.log.Info("recording session closed", "tracks", len(s.files))
	return errors.Join(errs...)
}
