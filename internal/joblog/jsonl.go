package joblog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// AppendFile appends outcomes to the JSONL log at path, one record per line.
// The batch is encoded up front and written with a single O_APPEND write, so
// concurrent workers and even concurrent runners never tear each other's
// lines.
func AppendFile(path string, outcomes []Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, o := range outcomes {
		if err := enc.Encode(o); err != nil {
			return fmt.Errorf("failed to encode outcome for %s: %w", o.DocID, err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open job log %s: %w", path, err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("failed to write job log %s: %w", path, err)
	}
	return f.Close()
}

// LoadFile reads a JSONL log into memory. A missing file is an empty
// history. Corrupt lines are skipped with a warning so one torn write never
// breaks retry accounting for the whole corpus.
func LoadFile(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("failed to open job log %s: %w", path, err)
	}
	defer f.Close()

	log := New()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var o Outcome
		if err := json.Unmarshal(raw, &o); err != nil {
			slog.Warn("skipping corrupt job log line", "path", path, "line", line, "reason", err.Error())
			continue
		}
		log.Append(o)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read job log %s: %w", path, err)
	}
	return log, nil
}
