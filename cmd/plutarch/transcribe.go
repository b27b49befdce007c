// Transcribe command: runs the configured transcription backend over WAV
// files outside of a recording session.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Shonas301/plutarch/internal/logging"
	"github.com/Shonas301/plutarch/internal/transcribe"
	"github.com/Shonas301/plutarch/internal/voice"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <wav>...",
	Short: "Transcribe audio files with the configured backend",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scribe, err := transcribe.New(appConfig.Transcribe)
		if err != nil {
			return err
		}

		files := make([]voice.File, 0, len(args))
		for _, path := range args {
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}
			logging.L().Info("transcribing", "file", path, "size", humanize.Bytes(uint64(info.Size())))
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			files = append(files, voice.File{Name: name, Path: path})
		}

		results, err := transcribe.TranscribeAll(cmd.Context(), scribe, files, appConfig.Transcribe.Concurrency)
		if err != nil {
			return err
		}
		if flagJSON {
			return writeJSON(cmd.OutOrStdout(), transcriptRows(results))
		}
		for _, line := range transcribe.FormatResults(results) {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

type transcriptRow struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

func transcriptRows(results []transcribe.Result) []transcriptRow {
	rows := make([]transcriptRow, len(results))
	for i, r := range results {
		rows[i] = transcriptRow{Name: r.Name, Path: r.Path, Text: r.Text}
		if r.Err != nil {
			rows[i].Error = r.Err.Error()
		}
	}
	return rows
}
