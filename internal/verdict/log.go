package verdict

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/argos-eval/debate-cli/internal/model"
)

const maxLineBytes = 64 * 1024 * 1024

// ReadDebateLog loads every record of a debate run's JSONL log. A torn or
// malformed line is skipped with a warning so a crashed run's valid prefix
// stays judgeable.
func ReadDebateLog(path string) ([]model.DebateRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "verdict: open debate log %s", path)
	}
	defer f.Close()

	var records []model.DebateRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1024*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		var rec model.DebateRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			zap.L().Warn("skipping malformed debate log line",
				zap.String("path", path),
				zap.Int("line", line),
				zap.Error(err),
			)
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrapf(err, "verdict: scan debate log %s", path)
	}
	return records, nil
}

// snapshotString reads a string field out of an embedded config snapshot.
func snapshotString(s model.Snapshot, key string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return ""
}

// snapshotInt reads a numeric field out of an embedded config snapshot.
// Snapshots round-trip through JSON, so numbers arrive as float64.
func snapshotInt(s model.Snapshot, key string) int {
	switch v := s[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
