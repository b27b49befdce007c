// Package voice tracks the bot's voice channel connections and the
// playback and recording state attached to each one.
package voice

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrNoChannel is returned when connecting a state with no channel ID.
var ErrNoChannel = errors.New("no voice channel")

// PlayerState is the playback queue of one channel.
type PlayerState struct {
	Queue           []string
	Playing         string
	RemainConnected bool
}

// File is one recorded track.
type File struct {
	Name   string
	Path   string
	UserID string // empty for the composite
}

// Capture is a running recording.
type Capture interface {
	// Stop ends the recording and finalizes its files.
	Stop() error
	// Files lists the tracks written so far, in creation order.
	Files() []File
}

// RecorderState is the recording running in one channel.
type RecorderState struct {
	SessionID string
	Files     map[string]string // display name -> path
	Capture   Capture
}

// ChannelState is everything the bot holds for one voice channel.
type ChannelState struct {
	GuildID   string
	ChannelID string
	Name      string

	mu       sync.Mutex
	conn     Conn
	player   *PlayerState
	recorder *RecorderState
}

// Connect joins the channel unless a connection already exists.
func (s *ChannelState) Connect(ctx context.Context, j Joiner) (Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn, nil
	}
	if s.ChannelID == "" {
		return nil, ErrNoChannel
	}
	conn, err := j.Join(ctx, s.GuildID, s.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("join voice channel %s: %w", s.ChannelID, err)
	}
	s.conn = conn
	return conn, nil
}

// Conn returns the current connection, or nil.
func (s *ChannelState) Conn() Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// Disconnect drops the connection. It is a no-op when not connected.
func (s *ChannelState) Disconnect() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Disconnect()
}

// Player returns the playback state, creating it on first use.
func (s *ChannelState) Player() *PlayerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == nil {
		s.player = &PlayerState{}
	}
	return s.player
}

// Recorder returns the running recording, or nil.
func (s *ChannelState) Recorder() *RecorderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorder
}

// SetRecorder replaces the recording state; nil clears it.
func (s *ChannelState) SetRecorder(r *RecorderState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder = r
}

// Manager is the set of channel states keyed by channel ID. It is safe for
// concurrent use.
type Manager struct {
	mu       sync.Mutex
	channels map[string]*ChannelState
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{channels: make(map[string]*ChannelState)}
}

// Get returns the state for channelID.
func (m *Manager) Get(channelID string) (*ChannelState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.channels[channelID]
	return s, ok
}

// GetOrCreate returns the state for channelID, creating it if needed.
func (m *Manager) GetOrCreate(guildID, channelID, name string) *ChannelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.channels[channelID]
	if !ok {
		s = &ChannelState{GuildID: guildID, ChannelID: channelID, Name: name}
		m.channels[channelID] = s
	}
	return s
}

// Remove deletes and returns the state for channelID.
func (m *Manager) Remove(channelID string) (*ChannelState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.channels[channelID]
	delete(m.channels, channelID)
	return s, ok
}

// Set stores s under its channel ID, replacing any existing state.
func (m *Manager) Set(s *ChannelState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[s.ChannelID] = s
}

// Contains reports whether channelID has a state.
func (m *Manager) Contains(channelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.channels[channelID]
	return ok
}

// ChannelIDs returns every channel ID in sorted order.
func (m *Manager) ChannelIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.channels))
	for id := range m.channels {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
