package llm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ErrorLog appends structured error entries to a per-run text file for
// offline triage. Logging must never fail the call that triggered it, so
// every error here is swallowed after a zap warning.
type ErrorLog struct {
	dir string
	mu  sync.Mutex
}

// NewErrorLog creates an error log rooted at dir. Files are named
// <run_id>.txt and created lazily.
func NewErrorLog(dir string) *ErrorLog {
	return &ErrorLog{dir: dir}
}

// Log appends one entry. Safe for concurrent use.
func (l *ErrorLog) Log(runID, recordID, context, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		zap.L().Warn("error log mkdir failed", zap.Error(err))
		return
	}

	f, err := os.OpenFile(filepath.Join(l.dir, runID+".txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		zap.L().Warn("error log open failed", zap.Error(err))
		return
	}
	defer f.Close()

	rule := strings.Repeat("=", 80)
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "Run ID: %s\n", runID)
	fmt.Fprintf(&b, "Record ID: %s\n", recordID)
	fmt.Fprintf(&b, "%s\n", rule)
	if context != "" {
		fmt.Fprintf(&b, "%s Error:\n", context)
	}
	fmt.Fprintf(&b, "%s\n", message)
	fmt.Fprintf(&b, "%s\n\n", rule)

	if _, err := f.WriteString(b.String()); err != nil {
		zap.L().Warn("error log write failed", zap.Error(err))
	}
}
