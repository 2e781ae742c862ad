// Package qa collects direct question-answering baselines: one model call
// per question with no debate context, deduplicated against the shared QA
// log by the evaluation cache. The verdict pipeline reuses the same runner
// for its baseline backfill.
package qa

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/argos-eval/debate-cli/internal/cost"
	"github.com/argos-eval/debate-cli/internal/dataset"
	"github.com/argos-eval/debate-cli/internal/evalcache"
	"github.com/argos-eval/debate-cli/internal/llm"
	"github.com/argos-eval/debate-cli/internal/model"
	"github.com/argos-eval/debate-cli/internal/parse"
	"github.com/argos-eval/debate-cli/internal/prompts"
	"github.com/argos-eval/debate-cli/internal/runner"
)

// Params configures one QA pass: one model over a set of questions.
type Params struct {
	ModelName          string
	Temperature        float64
	MaxOutputTokens    int
	ReasoningEffort    string
	ReasoningMaxTokens int
	NumChoices         int
	MaxWorkers         int
	// Rerun bypasses the evaluation cache and schedules every question,
	// legitimately appending duplicates to the shared log.
	Rerun   bool
	Lenient bool
	// Config is embedded verbatim in every record.
	Config model.Snapshot
	// RunID is generated when empty.
	RunID string
}

// Summary reports what one QA pass did.
type Summary struct {
	RunID     string
	Requested int
	Skipped   int
	Completed int
	Failed    int
}

// Runner issues QA baselines.
type Runner struct {
	exec    *llm.Executor
	reg     *prompts.Registry
	tracker *cost.Tracker
}

// NewRunner builds a QA runner. tracker may be nil; progress lines then omit
// spend.
func NewRunner(exec *llm.Executor, reg *prompts.Registry, tracker *cost.Tracker) *Runner {
	return &Runner{exec: exec, reg: reg, tracker: tracker}
}

// FormatPrompt renders the QA prompt for one question.
func (r *Runner) FormatPrompt(q model.Question, numChoices int) (string, error) {
	tmpl, err := r.reg.Get(prompts.QA)
	if err != nil {
		return "", err
	}
	shared, err := r.reg.Get(prompts.Shared)
	if err != nil {
		return "", err
	}

	choices := make([]string, numChoices)
	for i := range choices {
		choices[i] = strconv.Itoa(i)
	}

	return prompts.Render(tmpl, map[string]string{
		"question":               q.Question,
		"options_text":           dataset.FormatOptions(q.Options),
		"letter_choices":         strings.Join(choices, ", "),
		"response_format_prompt": shared,
	}), nil
}

// Run executes QA for the given questions, appending records to logPath.
// Already-covered (question, model, prompt) keys are skipped unless Rerun is
// set; the cache snapshot is read once before scheduling.
func (r *Runner) Run(ctx context.Context, questions []model.Question, p Params, logPath string) (Summary, error) {
	if p.RunID == "" {
		p.RunID = model.NewRunID()
	}
	s := Summary{RunID: p.RunID, Requested: len(questions)}

	// The record id is fixed per job up front so a failed job's record and
	// its error-log entries share the same id.
	type job struct {
		question model.Question
		prompt   string
		recordID string
	}
	jobs := make([]job, 0, len(questions))
	for _, q := range questions {
		prompt, err := r.FormatPrompt(q, p.NumChoices)
		if err != nil {
			return s, err
		}
		jobs = append(jobs, job{question: q, prompt: prompt, recordID: model.NewRunID()})
	}

	if !p.Rerun {
		existing, err := evalcache.ExistingKeys(logPath)
		if err != nil {
			return s, eris.Wrap(err, "qa: load existing keys")
		}
		items := make([]evalcache.Item, len(jobs))
		for i, j := range jobs {
			items[i] = evalcache.Item{QuestionIdx: j.question.OriginalIdx, Prompt: j.prompt}
		}
		missing := make(map[int]struct{}, len(items))
		for _, it := range evalcache.Missing(items, p.ModelName, existing) {
			missing[it.QuestionIdx] = struct{}{}
		}
		kept := jobs[:0]
		for _, j := range jobs {
			if _, ok := missing[j.question.OriginalIdx]; ok {
				kept = append(kept, j)
			}
		}
		jobs = kept
	}
	s.Skipped = s.Requested - len(jobs)
	if len(jobs) == 0 {
		zap.L().Info("qa fully covered, nothing to schedule",
			zap.String("model", p.ModelName),
			zap.Int("requested", s.Requested),
		)
		return s, nil
	}

	w, err := runner.NewLogWriter(logPath)
	if err != nil {
		return s, err
	}
	defer w.Close()

	datetime := time.Now().Format(time.RFC3339)
	progress := runner.NewProgressReporter(fmt.Sprintf("qa %s %s", p.RunID, p.ModelName), r.tracker)

	summary, err := runner.Run(ctx, jobs, func(ctx context.Context, j job) (any, error) {
		return r.processQuestion(ctx, j.question, j.prompt, j.recordID, p, datetime)
	}, runner.Options[job]{
		Workers: p.MaxWorkers,
		Writer:  w,
		OnFailure: func(j job, errMsg string) any {
			return &model.QARecord{
				RunID:        p.RunID,
				RecordID:     j.recordID,
				Datetime:     datetime,
				Config:       p.Config,
				QuestionIdx:  j.question.OriginalIdx,
				Question:     j.question.Question,
				Options:      j.question.Options,
				CorrectIdx:   j.question.CorrectIdx,
				Prompt:       j.prompt,
				Success:      false,
				ErrorMessage: model.StrPtr(errMsg),
			}
		},
		OnProgress: progress.Report,
	})
	s.Completed = summary.Succeeded
	s.Failed = summary.Failed
	return s, err
}

func (r *Runner) processQuestion(ctx context.Context, q model.Question, prompt, recordID string, p Params, datetime string) (*model.QARecord, error) {
	result, err := r.exec.Execute(ctx, llm.Request{
		Prompt:             prompt,
		Model:              p.ModelName,
		Temperature:        p.Temperature,
		MaxTokens:          p.MaxOutputTokens,
		ReasoningEffort:    p.ReasoningEffort,
		ReasoningMaxTokens: p.ReasoningMaxTokens,
	}, llm.Meta{RunID: p.RunID, RecordID: recordID, Context: "QA"})
	if err != nil {
		return nil, err
	}

	mode := parse.Strict
	if p.Lenient {
		mode = parse.Lenient
	}
	parsed := parse.Answer(result.Text, mode)

	return &model.QARecord{
		RunID:             p.RunID,
		RecordID:          recordID,
		Datetime:          datetime,
		Config:            p.Config,
		QuestionIdx:       q.OriginalIdx,
		Question:          q.Question,
		Options:           q.Options,
		CorrectIdx:        q.CorrectIdx,
		Prompt:            prompt,
		RawResponse:       result.Text,
		InternalReasoning: result.InternalReasoning,
		Parsed:            &parsed,
		TokenUsage:        result.Usage,
		Success:           true,
	}, nil
}
