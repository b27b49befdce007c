// Package transcribe turns recorded WAV tracks into text, either with a
// local whisper install or with the OpenAI transcription API.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Shonas301/plutarch/internal/config"
	"github.com/Shonas301/plutarch/internal/voice"
	"github.com/Shonas301/plutarch/pkg/types"
)

// Backend names.
const (
	BackendWhisper = "whisper"
	BackendOpenAI  = "openai"
)

// MessageLimit keeps transcript messages under Discord's 2000-character cap.
const MessageLimit = 1900

// Errors.
var (
	ErrUnknownBackend = errors.New("unknown transcription backend")
	ErrUnavailable    = errors.New("transcription backend unavailable")
	ErrFileTooLarge   = errors.New("audio file exceeds the 25MB upload limit")
)

// Transcriber converts one audio file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// New builds the backend named by cfg.Backend. It returns ErrUnavailable
// when the backend cannot run here: whisper is not on PATH, or no OpenAI
// key is set.
func New(cfg config.TranscribeConfig) (Transcriber, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendWhisper:
		bin := cfg.WhisperBin
		if bin == "" {
			bin = "whisper"
		}
		if _, err := exec.LookPath(bin); err != nil {
			return nil, fmt.Errorf("%w: %s not found", ErrUnavailable, bin)
		}
		return &WhisperCLI{Bin: bin, Model: cfg.WhisperModel}, nil
	case BackendOpenAI:
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrUnavailable)
		}
		return NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// Result is the transcript of one track.
type Result struct {
	Name string
	Path string
	Text string
	Err  error
}

// TranscribeAll transcribes every file except the composite, at most
// concurrency at a time. Results keep the input order and carry their own
// errors; only context cancellation fails the batch.
func TranscribeAll(ctx context.Context, t Transcriber, files []voice.File, concurrency int) ([]Result, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	var todo []voice.File
	for _, f := range files {
		if f.Name != types.CompositeKey {
			todo = append(todo, f)
		}
	}

	results := make([]Result, len(todo))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, f := range todo {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text, err := t.Transcribe(gctx, f.Path)
			results[i] = Result{Name: f.Name, Path: f.Path, Text: strings.TrimSpace(text), Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// FormatResults renders results as "**name**: text" lines. Failed
// transcriptions are reported inline; empty ones are skipped.
func FormatResults(results []Result) []string {
	var lines []string
	for _, r := range results {
		switch {
		case r.Err != nil:
			lines = append(lines, fmt.Sprintf("**%s**: (transcription failed: %v)", r.Name, r.Err))
		case r.Text != "":
			lines = append(lines, fmt.Sprintf("**%s**: %s", r.Name, r.Text))
		}
	}
	return lines
}

// Chunk packs lines into messages. When everything fits within limit the
// lines go out as one message separated by blank lines; otherwise each line
// is its own message, cut to limit runes.
func Chunk(lines []string, limit int) []string {
	if len(lines) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = MessageLimit
	}
	joined := strings.Join(lines, "\n\n")
	if len([]rune(joined)) <= limit {
		return []string{joined}
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		if r := []rune(l); len(r) > limit {
			l = string(r[:limit])
		}
		out[i] = l
	}
	return out
}
