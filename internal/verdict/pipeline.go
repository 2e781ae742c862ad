// Package verdict judges completed debates: it renders the public-only
// transcript (optionally truncated to the first N main turns), invokes the
// judge model once per record, scores correctness against the stored ground
// truth, and backfills missing QA baselines beforehand so every verdict is
// comparable to the judge's and debaters' unaided accuracy.
package verdict

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/argos-eval/debate-cli/internal/debate"
	"github.com/argos-eval/debate-cli/internal/llm"
	"github.com/argos-eval/debate-cli/internal/model"
	"github.com/argos-eval/debate-cli/internal/parse"
	"github.com/argos-eval/debate-cli/internal/prompts"
)

// JudgeParams configures one judge invocation.
type JudgeParams struct {
	VerdictRunID       string
	DebateRunID        string
	Datetime           string
	Config             model.Snapshot
	JudgeModel         string
	Temperature        float64
	MaxOutputTokens    int
	ReasoningEffort    string
	ReasoningMaxTokens int
	// UptoTurns truncates the transcript to the first N main debater turns;
	// nil judges the full transcript.
	UptoTurns *int
}

// Pipeline issues judge calls over debate records.
type Pipeline struct {
	exec *llm.Executor
	reg  *prompts.Registry
}

// NewPipeline builds a verdict pipeline.
func NewPipeline(exec *llm.Executor, reg *prompts.Registry) *Pipeline {
	return &Pipeline{exec: exec, reg: reg}
}

// Judge renders the debate's public transcript, asks the judge model for a
// verdict, and scores it. Exactly one executor invocation is made; there is
// no pipeline-level retry. The returned record is always usable: a failed
// call yields success=false, an unparseable answer yields a success record
// with a nil parsed answer and nil is_correct.
func (p *Pipeline) Judge(ctx context.Context, rec model.DebateRecord, jp JudgeParams) *model.VerdictRecord {
	out := &model.VerdictRecord{
		VerdictRunID: jp.VerdictRunID,
		DebateRunID:  jp.DebateRunID,
		RecordID:     rec.RecordID,
		Datetime:     jp.Datetime,
		Config:       jp.Config,
		Question:     rec.Question,
		Options:      rec.Options,
		CorrectIdx:   rec.CorrectIdx,
	}

	prompt, err := p.judgePrompt(rec, jp.UptoTurns)
	if err != nil {
		out.ErrorMessage = model.StrPtr(err.Error())
		return out
	}

	result, err := p.exec.Execute(ctx, llm.Request{
		Prompt:             prompt,
		Model:              jp.JudgeModel,
		Temperature:        jp.Temperature,
		MaxTokens:          jp.MaxOutputTokens,
		ReasoningEffort:    jp.ReasoningEffort,
		ReasoningMaxTokens: jp.ReasoningMaxTokens,
	}, llm.Meta{RunID: jp.VerdictRunID, RecordID: rec.RecordID, Context: "Judge"})
	if err != nil {
		out.ErrorMessage = model.StrPtr(err.Error())
		return out
	}

	parsed := parse.Answer(result.Text, parse.Lenient)
	out.JudgeVerdict = &model.Verdict{
		RawResponse:       result.Text,
		InternalReasoning: result.InternalReasoning,
		Parsed:            parsed,
		Prompt:            prompt,
		TokenUsage:        result.Usage,
	}
	if parsed.Answer != nil {
		out.IsCorrect = model.BoolPtr(*parsed.Answer == rec.CorrectIdx)
	}
	out.Success = true
	return out
}

// judgePrompt builds the judge prompt from the public transcript. Private
// reasoning and internal model reasoning never reach the judge.
func (p *Pipeline) judgePrompt(rec model.DebateRecord, uptoTurns *int) (string, error) {
	tmpl, err := p.reg.Get(prompts.Judge)
	if err != nil {
		return "", err
	}
	shared, err := p.reg.Get(prompts.Shared)
	if err != nil {
		return "", err
	}

	history := rec.History
	if uptoTurns != nil {
		history = debate.Truncate(history, *uptoTurns)
	}
	transcript := debate.FormatHistory(history, debate.Visibility{})

	var options strings.Builder
	for i, opt := range rec.Options {
		fmt.Fprintf(&options, "Debater %d is arguing for: %s\n", i, opt)
	}

	// informational hint only, never enforced
	minConfidence := 100 / len(rec.Options)

	return prompts.Render(tmpl, map[string]string{
		"question":                   rec.Question,
		"num_debaters":               strconv.Itoa(len(rec.Options)),
		"options_text":               strings.TrimSpace(options.String()),
		"public_debate_history_text": transcript,
		"min_confidence":             strconv.Itoa(minConfidence),
		"response_format_prompt":     shared,
	}), nil
}
