// Shared helpers for plutarch CLI commands.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Shonas301/plutarch/internal/sqlite"
	"github.com/Shonas301/plutarch/pkg/types"
)

// attachBackend resolves the data directory, creates a SQLite backend, and
// attaches it. The caller must defer backend.Detach().
func attachBackend() (*sqlite.Backend, error) {
	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}

	cfg := types.Config{
		Backend: types.BackendSQLite,
		DataDir: dataDir,
	}

	backend := sqlite.NewBackend()
	if err := backend.Attach(cfg); err != nil {
		return nil, fmt.Errorf("attach backend: %w", err)
	}

	return backend, nil
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}

// plainPage drops the code fences that wrap a table for Discord embeds.
func plainPage(page string) string {
	lines := strings.Split(page, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if l != "```" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}
