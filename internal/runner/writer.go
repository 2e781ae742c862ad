package runner

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
)

// LogWriter appends records to a newline-delimited JSON log, one complete
// line per record, flushed on every write. Writes are serialized so lines
// from concurrent workers never interleave; a crash mid-run leaves a valid
// prefix of complete records.
type LogWriter struct {
	mu sync.Mutex
	f  *os.File
}

// NewLogWriter opens (creating parents as needed) the log at path in
// append mode.
func NewLogWriter(path string) (*LogWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrapf(err, "runner: mkdir for %s", path)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, eris.Wrapf(err, "runner: open log %s", path)
	}
	return &LogWriter{f: f}, nil
}

// Write marshals record and appends it as one line.
func (w *LogWriter) Write(record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return eris.Wrap(err, "runner: marshal record")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.f.Write(append(data, '\n')); err != nil {
		return eris.Wrap(err, "runner: write record")
	}
	return eris.Wrap(w.f.Sync(), "runner: sync log")
}

// Close closes the underlying file.
func (w *LogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}
