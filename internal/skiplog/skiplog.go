// Package skiplog appends rejected records to a per-run CSV so failed
// submissions can be inspected and resubmitted after correction.
package skiplog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Log writes one CSV of rejected records and keeps per-reason counters.
type Log struct {
	f       *os.File
	w       *csv.Writer
	reasons map[string]int
}

// New creates the dump file (and its directory) and writes the header.
func New(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	_ = w.Write([]string{"reason", "index", "uuid", "raw_record"})
	return &Log{f: f, w: w, reasons: make(map[string]int)}, nil
}

// Add records one rejection.
func (l *Log) Add(reason string, index int, uuid, raw string) {
	l.reasons[reason]++
	_ = l.w.Write([]string{reason, strconv.Itoa(index), uuid, raw})
}

// Reasons returns a copy of the per-reason counters.
func (l *Log) Reasons() map[string]int {
	out := make(map[string]int, len(l.reasons))
	for k, v := range l.reasons {
		out[k] = v
	}
	return out
}

// Close flushes and closes the dump file.
func (l *Log) Close() error {
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		_ = l.f.Close()
		return err
	}
	return l.f.Close()
}
