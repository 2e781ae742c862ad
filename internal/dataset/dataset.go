// Package dataset selects questions and answer options from local dataset
// snapshots. Selection is deterministic: the run seed fixes which questions
// are drawn, and each question's own index seeds its option sampling, so the
// same question always presents the same options regardless of which run
// requests it.
package dataset

import (
	"bufio"
	"encoding/json"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/argos-eval/debate-cli/internal/model"
)

// Spec identifies one dataset snapshot.
type Spec struct {
	Name   string
	Subset string
	Split  string
}

// SnapshotFile returns the snapshot path for this spec under dir. Dataset
// names contain slashes; they are flattened for the filesystem.
func (s Spec) SnapshotFile(dir string) string {
	parts := []string{strings.ReplaceAll(s.Name, "/", "_")}
	if s.Subset != "" {
		parts = append(parts, s.Subset)
	}
	parts = append(parts, s.Split)
	return filepath.Join(dir, strings.Join(parts, "__")+".jsonl")
}

// Dataset is a loaded snapshot: one JSON object per line, schema per source
// dataset.
type Dataset struct {
	spec  Spec
	items []map[string]any
}

// Load reads the snapshot for spec from dir.
func Load(dir string, spec Spec) (*Dataset, error) {
	path := spec.SnapshotFile(dir)
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open snapshot %s", path)
	}
	defer f.Close()

	var items []map[string]any
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var item map[string]any
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			return nil, eris.Wrapf(err, "dataset: parse snapshot line %d", len(items)+1)
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "dataset: scan snapshot %s", path)
	}

	return &Dataset{spec: spec, items: items}, nil
}

// Len returns the number of items in the snapshot.
func (d *Dataset) Len() int { return len(d.items) }

// Select draws count questions using seed, or exactly the explicit indices
// when provided, and samples numChoices options per question. The returned
// order follows the draw (or the explicit list).
func (d *Dataset) Select(count, numChoices int, seed int64, explicit []int) ([]model.Question, error) {
	var indices []int
	if len(explicit) > 0 {
		indices = explicit
	} else {
		if count > len(d.items) {
			count = len(d.items)
		}
		rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
		indices = rng.Perm(len(d.items))[:count]
	}

	questions := make([]model.Question, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(d.items) {
			return nil, eris.Errorf("dataset: question index %d out of range [0, %d)", idx, len(d.items))
		}

		question, correct, choices, err := parseItem(d.spec.Name, d.items[idx])
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: item %d", idx)
		}

		options, correctIdx := sampleOptions(idx, correct, choices, numChoices)
		questions = append(questions, model.Question{
			OriginalIdx: idx,
			Question:    question,
			Options:     options,
			CorrectIdx:  correctIdx,
		})
	}

	return questions, nil
}

// sampleOptions picks numChoices options including the correct answer,
// shuffled. The question index seeds the RNG so option presentation is
// reproducible per question independent of the run seed.
func sampleOptions(questionIdx int, correct string, choices []string, numChoices int) ([]string, int) {
	rng := rand.New(rand.NewPCG(uint64(questionIdx), uint64(questionIdx)))

	var selected []string
	if len(choices) >= numChoices {
		var incorrect []string
		for _, c := range choices {
			if c != correct {
				incorrect = append(incorrect, c)
			}
		}
		perm := rng.Perm(len(incorrect))
		selected = []string{correct}
		for _, i := range perm[:numChoices-1] {
			selected = append(selected, incorrect[i])
		}
	} else {
		selected = append(selected, choices...)
	}

	rng.Shuffle(len(selected), func(i, j int) {
		selected[i], selected[j] = selected[j], selected[i]
	})

	correctIdx := 0
	for i, opt := range selected {
		if opt == correct {
			correctIdx = i
			break
		}
	}
	return selected, correctIdx
}

func parseItem(datasetName string, item map[string]any) (question, correct string, choices []string, err error) {
	switch datasetName {
	case "Idavidrein/gpqa":
		return parseGPQA(item)
	case "TIGER-Lab/MMLU-Pro":
		return parseMMLUPro(item)
	default:
		return "", "", nil, eris.Errorf("unsupported dataset %q", datasetName)
	}
}

func parseGPQA(item map[string]any) (string, string, []string, error) {
	question, _ := item["Question"].(string)
	correct, _ := item["Correct Answer"].(string)
	correct = strings.TrimSpace(correct)
	if question == "" || correct == "" {
		return "", "", nil, eris.New("gpqa item missing question or correct answer")
	}

	var choices []string
	for _, key := range []string{"Correct Answer", "Incorrect Answer 1", "Incorrect Answer 2", "Incorrect Answer 3"} {
		if v, ok := item[key].(string); ok && strings.TrimSpace(v) != "" {
			choices = append(choices, strings.TrimSpace(v))
		}
	}
	return question, correct, choices, nil
}

func parseMMLUPro(item map[string]any) (string, string, []string, error) {
	question, _ := item["question"].(string)
	rawOptions, _ := item["options"].([]any)
	answerIdx, hasIdx := item["answer_index"].(float64)

	var choices []string
	for _, o := range rawOptions {
		if s, ok := o.(string); ok && strings.TrimSpace(s) != "" {
			choices = append(choices, strings.TrimSpace(s))
		}
	}
	if question == "" || !hasIdx || int(answerIdx) < 0 || int(answerIdx) >= len(choices) {
		return "", "", nil, eris.New("mmlu-pro item missing question or answer index")
	}
	return question, choices[int(answerIdx)], choices, nil
}

// FormatOptions renders options as a numbered list for prompt embedding.
func FormatOptions(options []string) string {
	var b strings.Builder
	for i, opt := range options {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strconv.Itoa(i))
		b.WriteString(". ")
		b.WriteString(opt)
	}
	return b.String()
}
