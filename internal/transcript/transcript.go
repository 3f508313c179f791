// Package transcript persists a session's conversation as an
// append-only line-delimited JSON log: one file per session, one
// self-contained JSON record per line, header first.
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/myclaw-dev/myclaw/internal/sessionkey"
	"github.com/myclaw-dev/myclaw/pkg/types"
)

// Log reads and writes transcript files under a sessions directory.
type Log struct {
	sessionsDir string
}

// New creates a transcript log rooted at sessionsDir.
func New(sessionsDir string) *Log {
	return &Log{sessionsDir: sessionsDir}
}

func (l *Log) path(key string) string {
	return filepath.Join(l.sessionsDir, sessionkey.ToSlug(key)+".jsonl")
}

// Append writes a single message to the session's file, creating the
// file (with its header line) first if it does not already exist.
// Each append is one write of record + "\n".
func (l *Log) Append(key string, msg types.TranscriptRecord) error {
	return l.AppendBatch(key, []types.TranscriptRecord{msg})
}

// AppendBatch writes all of msgs in a single write, joined by
// newlines, to minimise the chance of a partial-batch truncation on
// interruption.
func (l *Log) AppendBatch(key string, msgs []types.TranscriptRecord) error {
	if len(msgs) == 0 {
		return nil
	}

	path := l.path(key)
	var headerPrefix []byte

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("transcript: stat %s: %w", path, err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("transcript: mkdir: %w", err)
		}
		header := types.SessionHeader{
			Type:       "session",
			SessionKey: key,
			CreatedAt:  time.Now().UnixMilli(),
		}
		line, err := json.Marshal(header)
		if err != nil {
			return fmt.Errorf("transcript: marshal header: %w", err)
		}
		headerPrefix = append(line, '\n')
	}

	var b strings.Builder
	if headerPrefix != nil {
		b.Write(headerPrefix)
	}
	for _, m := range msgs {
		line, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("transcript: marshal message: %w", err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("transcript: open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("transcript: write %s: %w", path, err)
	}
	return nil
}

// Load returns the ordered list of messages for key, skipping the
// header line, blank lines, and malformed lines. A missing file
// yields an empty, non-error result.
func (l *Log) Load(key string) ([]types.TranscriptRecord, error) {
	path := l.path(key)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("transcript: open %s: %w", path, err)
	}
	defer f.Close()

	var out []types.TranscriptRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			var hdr types.SessionHeader
			if err := json.Unmarshal([]byte(line), &hdr); err == nil && hdr.Type == "session" {
				continue
			}
			// Not a recognisable header; fall through and try to
			// parse this line as a message too.
		}
		var rec types.TranscriptRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("transcript: read %s: %w", path, err)
	}
	return out, nil
}

// Count returns the number of message lines for key.
func (l *Log) Count(key string) (int, error) {
	msgs, err := l.Load(key)
	if err != nil {
		return 0, err
	}
	return len(msgs), nil
}

// Delete removes the session's transcript file. It is idempotent and
// reports whether a file actually existed.
func (l *Log) Delete(key string) (bool, error) {
	path := l.path(key)
	err := os.Remove(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("transcript: delete %s: %w", path, err)
	}
	return true, nil
}
