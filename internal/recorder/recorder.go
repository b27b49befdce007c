// Package recorder captures a voice channel into one WAV track per speaker
// plus an optional composite mix of everyone.
//
// All audio is 48 kHz, 16-bit, interleaved stereo PCM. Received frames are
// placed on a session clock in 20 ms slots so that every track, including
// the composite, stays aligned with wall-clock time: a speaker who is silent
// for ten seconds gets ten seconds of silence in their track.
package recorder

import (
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// PCM format.
const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameSamples  = 960                     // samples per channel in one frame
	FrameLen      = FrameSamples * Channels // interleaved samples in one frame
	FrameDuration = 20 * time.Millisecond
)

// sessionLayout formats session IDs.
const sessionLayout = "20060102_150405"

// Member is a channel participant.
type Member struct {
	ID          string
	DisplayName string
	Bot         bool
}

// SessionID returns the recording session ID for t, in UTC.
func SessionID(t time.Time) string {
	return t.UTC().Format(sessionLayout)
}

// SafeName replaces every rune that is not a letter or digit with '_'.
func SafeName(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, s)
}

// SessionDir returns the directory holding one session's files.
func SessionDir(outputDir, channelName, sessionID string) string {
	return filepath.Join(outputDir, channelName+"_"+sessionID)
}
