// Package evalcache indexes completed QA work so reruns schedule only what is
// missing. The index is built once from the QA log before scheduling and not
// updated mid-run: duplicate scheduling within a single run is possible and
// acceptable; cross-run duplication is what the cache prevents.
package evalcache

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Key is the natural dedup key of a QA record.
type Key struct {
	QuestionIdx int
	ModelName   string
	Prompt      string // whitespace-normalized
}

// NewKey builds a Key, normalizing the prompt.
func NewKey(questionIdx int, modelName, prompt string) Key {
	return Key{
		QuestionIdx: questionIdx,
		ModelName:   modelName,
		Prompt:      NormalizeWhitespace(prompt),
	}
}

// NormalizeWhitespace collapses every whitespace run to a single space. This
// is the correctness-critical piece of the dedup key: an incidental blank
// line in a prompt template must not invalidate the whole cache.
func NormalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// qaLogLine is the subset of a QA record the index needs.
type qaLogLine struct {
	QuestionIdx int    `json:"question_idx"`
	Prompt      string `json:"prompt"`
	Success     *bool  `json:"success"`
	Config      struct {
		ModelName string `json:"model_name"`
	} `json:"config"`
}

// ExistingKeys scans a QA log and returns the set of covered keys. A record
// counts as covered unless its success flag is explicitly false; an absent
// flag (legacy records) counts as covered. A missing log file yields an
// empty set, not an error.
func ExistingKeys(logPath string) (map[Key]struct{}, error) {
	keys := make(map[Key]struct{})

	f, err := os.Open(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return keys, nil
		}
		return nil, eris.Wrapf(err, "evalcache: open %s", logPath)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		var rec qaLogLine
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			// A torn final line from a crashed run is not fatal.
			zap.L().Warn("evalcache: skipping unparseable log line",
				zap.String("path", logPath),
				zap.Int("line", lineNo),
				zap.Error(err),
			)
			continue
		}
		if rec.Success != nil && !*rec.Success {
			continue
		}
		keys[NewKey(rec.QuestionIdx, rec.Config.ModelName, rec.Prompt)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "evalcache: scan %s", logPath)
	}

	return keys, nil
}

// Item is one candidate unit of QA work.
type Item struct {
	QuestionIdx int
	Prompt      string
}

// Missing filters items down to those whose key is not covered for the given
// model. Order is preserved.
func Missing(items []Item, modelName string, existing map[Key]struct{}) []Item {
	var missing []Item
	for _, it := range items {
		if _, ok := existing[NewKey(it.QuestionIdx, modelName, it.Prompt)]; !ok {
			missing = append(missing, it)
		}
	}
	return missing
}
