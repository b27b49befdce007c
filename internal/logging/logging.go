// Package logging sets up the process-wide slog logger with a rotating log
// file and bridges discordgo's internal logger into it.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures Setup.
type Options struct {
	Level      string
	File       string // empty disables the file sink
	MaxSizeMB  int
	MaxBackups int
	Stderr     io.Writer // nil means os.Stderr
}

var (
	mu     sync.RWMutex
	global = slog.New(slog.NewTextHandler(io.Discard, nil))
)

// ParseLevel maps debug, info, warn(ing) and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Setup builds the logger, installs it as slog's default and as L(), and
// routes discordgo's logging through it. The returned cleanup closes the
// log file.
func Setup(opts Options) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = os.Stderr
	if opts.Stderr != nil {
		out = opts.Stderr
	}

	cleanup := func() error { return nil }
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		out = io.MultiWriter(out, rotator)
		cleanup = rotator.Close
	}

	l := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))

	mu.Lock()
	global = l
	mu.Unlock()
	slog.SetDefault(l)
	discordgo.Logger = DiscordLogger(l)

	return l, cleanup, nil
}

// L returns the logger installed by Setup, or a discarding logger before
// Setup is called.
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// OrDefault returns l, or slog.Default() when l is nil.
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

// DiscordLogger adapts l to discordgo's package-level Logger hook.
func DiscordLogger(l *slog.Logger) func(msgL, caller int, format string, a ...any) {
	dl := l.With("component", "discordgo")
	return func(msgL, _ int, format string, a ...any) {
		dl.Log(context.Background(), discordLevel(msgL), fmt.Sprintf(format, a...))
	}
}

func discordLevel(msgL int) slog.Level {
	switch msgL {
	case discordgo.LogError:
		return slog.LevelError
	case discordgo.LogWarning:
		return slog.LevelWarn
	case discordgo.LogInformational:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
