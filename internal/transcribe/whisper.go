package transcribe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// WhisperCLI transcribes with the openai-whisper command line tool.
type WhisperCLI struct {
	Bin     string
	Model   string
	// TempDir holds whisper's output; empty uses the system default.
	TempDir string
	Run     Runner
}

// Args returns the whisper arguments for one file.
func (w *WhisperCLI) Args(path, outDir string) []string {
	model := w.Model
	if model == "" {
		model = "base"
	}
	return []string{path, "--model", model, "--output_format", "txt", "--output_dir", outDir, "--verbose", "False"}
}

// Transcribe runs whisper on path and reads the text file it writes.
func (w *WhisperCLI) Transcribe(ctx context.Context, path string) (string, error) {
	outDir, err := os.MkdirTemp(w.TempDir, "whisper-*")
	if err != nil {
		return "", fmt.Errorf("create whisper output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	run := w.Run
	if run == nil {
		run = ExecRunner
	}
	if out, err := run(ctx, w.Bin, w.Args(path, outDir)...); err != nil {
		return "", fmt.Errorf("run whisper: %w: %s", err, strings.TrimSpace(string(out)))
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	text, err := os.ReadFile(filepath.Join(outDir, base+".txt"))
	if err != nil {
		return "", fmt.Errorf("read whisper output: %w", err)
	}
	return strings.TrimSpace(string(text)), nil
}
