package sqlite

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Shonas301/plutarch/pkg/types"
)

// TranscriptFileName is the export written next to a session's WAV files.
const TranscriptFileName = "transcript.jsonl"

// maxLineBytes bounds one JSONL record.
const maxLineBytes = 16 << 20

// ExportTranscripts writes every transcript of a session to path, one JSON
// object per line. The file is replaced atomically. Returns ErrNotFound
// when the session does not exist.
func (b *Backend) ExportTranscripts(sessionID, path string) (int, error) {
	if _, err := b.GetSession(sessionID); err != nil {
		return 0, err
	}
	transcripts, err := b.ListTranscripts(sessionID)
	if err != nil {
		return 0, err
	}

	records := make([]json.RawMessage, 0, len(transcripts))
	for _, t := range transcripts {
		rec, err := json.Marshal(t)
		if err != nil {
			return 0, fmt.Errorf("marshal transcript %s: %w", t.ID, err)
		}
		records = append(records, rec)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create export dir: %w", err)
	}
	if err := writeJSONL(path, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// ReadTranscripts loads a transcript export. Lines that are not valid
// transcript objects are skipped.
func ReadTranscripts(path string) ([]*types.Transcript, error) {
	records, err := readJSONL(path)
	if err != nil {
		return nil, err
	}
	var out []*types.Transcript
	for _, rec := range records {
		var t types.Transcript
		if err := json.Unmarshal(rec, &t); err != nil {
			continue
		}
		out = append(out, &t)
	}
	return out, nil
}

// readJSONL reads a JSONL file and returns each non-empty, parseable line as
// a json.RawMessage. Malformed lines are skipped.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL atomically writes records to a JSONL file using the temp-file,
// fsync, rename pattern.
func writeJSONL(path string, records []json.RawMessage) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(format string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf(format, err)
	}

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return fail("writing record: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail("writing newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fail("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
