// Sessions commands list recorded voice sessions and show one session with
// its tracks and transcripts.
package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Shonas301/plutarch/internal/sqlite"
	"github.com/Shonas301/plutarch/pkg/types"
)

var (
	flagSessionsLimit int
	flagExportOut     string
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect recorded voice sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagSessionsLimit <= 0 {
			return fmt.Errorf("invalid --limit %d (must be positive)", flagSessionsLimit)
		}
		backend, err := attachBackend()
		if err != nil {
			return err
		}
		defer backend.Detach()

		sessions, err := backend.ListSessions(flagSessionsLimit)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if sessions == nil {
			sessions = []*types.Session{}
		}
		if flagJSON {
			return writeJSON(cmd.OutOrStdout(), sessions)
		}
		return writeSessionTable(cmd.OutOrStdout(), sessions, time.Now())
	},
}

// sessionDetail is the JSON shape of sessions show.
type sessionDetail struct {
	Session     *types.Session      `json:"session"`
	Tracks      []*types.Track      `json:"tracks"`
	Transcripts []*types.Transcript `json:"transcripts"`
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a session with its tracks and transcripts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			return err
		}
		defer backend.Detach()

		s, err := backend.GetSession(args[0])
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return fmt.Errorf("session %q not found", args[0])
			}
			return fmt.Errorf("get session: %w", err)
		}
		tracks, err := backend.ListTracks(s.ID)
		if err != nil {
			return fmt.Errorf("list tracks: %w", err)
		}
		transcripts, err := backend.ListTranscripts(s.ID)
		if err != nil {
			return fmt.Errorf("list transcripts: %w", err)
		}

		d := sessionDetail{Session: s, Tracks: tracks, Transcripts: transcripts}
		if flagJSON {
			return writeJSON(cmd.OutOrStdout(), d)
		}
		return writeSessionDetail(cmd.OutOrStdout(), d, time.Now())
	},
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Write a session's transcripts as JSONL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			return err
		}
		defer backend.Detach()

		s, err := backend.GetSession(args[0])
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return fmt.Errorf("session %q not found", args[0])
			}
			return fmt.Errorf("get session: %w", err)
		}
		out := flagExportOut
		if out == "" {
			out = filepath.Join(s.Dir, sqlite.TranscriptFileName)
		}
		n, err := backend.ExportTranscripts(s.ID, out)
		if err != nil {
			return fmt.Errorf("export transcripts: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d transcripts to %s\n", n, out)
		return nil
	},
}

func init() {
	sessionsListCmd.Flags().IntVar(&flagSessionsLimit, "limit", 20, "maximum number of sessions")
	sessionsExportCmd.Flags().StringVar(&flagExportOut, "out", "", "output file (default: <session dir>/transcript.jsonl)")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)
}

// sessionDuration renders a stopped session's duration, or the state of a
// running one.
func sessionDuration(s *types.Session) string {
	if s.EndedAt == nil {
		return s.State
	}
	return s.Duration().Round(time.Second).String()
}

func writeSessionTable(w io.Writer, sessions []*types.Session, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCHANNEL\tSTARTED\tDURATION\tDIR")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.ChannelName, humanize.RelTime(s.StartedAt, now, "ago", "from now"), sessionDuration(s), s.Dir)
	}
	return tw.Flush()
}

func writeSessionDetail(w io.Writer, d sessionDetail, now time.Time) error {
	s := d.Session
	fmt.Fprintf(w, "Session %s\n", s.ID)
	fmt.Fprintf(w, "  channel:  %s (%s)\n", s.ChannelName, s.ChannelID)
	fmt.Fprintf(w, "  started:  %s (%s)\n", s.StartedAt.Format(time.RFC3339), humanize.RelTime(s.StartedAt, now, "ago", "from now"))
	fmt.Fprintf(w, "  duration: %s\n", sessionDuration(s))
	fmt.Fprintf(w, "  dir:      %s\n", s.Dir)

	fmt.Fprintf(w, "\nTracks (%d)\n", len(d.Tracks))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, t := range d.Tracks {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", t.DisplayName, strconv.FormatBool(t.Composite), t.Path)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nTranscripts (%d)\n", len(d.Transcripts))
	for _, t := range d.Transcripts {
		if t.Failed() {
			fmt.Fprintf(w, "  %s: (transcription failed: %s)\n", t.Speaker, t.Error)
			continue
		}
		fmt.Fprintf(w, "  %s: %s\n", t.Speaker, t.Text)
	}
	return nil
}
