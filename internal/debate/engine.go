package debate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/argos-eval/debate-cli/internal/config"
	"github.com/argos-eval/debate-cli/internal/llm"
	"github.com/argos-eval/debate-cli/internal/model"
	"github.com/argos-eval/debate-cli/internal/parse"
	"github.com/argos-eval/debate-cli/internal/prompts"
)

// Engine runs one debate per question. A single Engine is shared by all
// workers of a run; per-question state lives entirely in the record each Run
// call builds.
type Engine struct {
	exec *llm.Executor
	reg  *prompts.Registry
	cfg  config.DebateConfig
	ctrl TurnController

	// OnTurn, when set, observes each debater turn as it is appended. Used
	// for live display in interactive runs; must not mutate the turn.
	OnTurn func(model.Turn)
}

// NewEngine builds a debate engine. ctrl defaults to RoundRobin.
func NewEngine(exec *llm.Executor, reg *prompts.Registry, cfg config.DebateConfig, ctrl TurnController) *Engine {
	if ctrl == nil {
		ctrl = RoundRobin{}
	}
	return &Engine{exec: exec, reg: reg, cfg: cfg, ctrl: ctrl}
}

// RunParams identifies the run a record belongs to.
type RunParams struct {
	RunID    string
	Datetime string
	Config   model.Snapshot
}

// Run debates one question to completion. The returned record is always
// usable: on any failure it carries success=false, an error message, and the
// partial history ending at the failing turn. Partial debates are never
// silently continued.
func (e *Engine) Run(ctx context.Context, q model.Question, p RunParams) *model.DebateRecord {
	rec := &model.DebateRecord{
		RunID:       p.RunID,
		RecordID:    model.NewRunID(),
		Datetime:    p.Datetime,
		Config:      p.Config,
		QuestionIdx: q.OriginalIdx,
		Question:    q.Question,
		Options:     q.Options,
		CorrectIdx:  q.CorrectIdx,
	}

	// Controllers that issue model calls log errors under this record.
	if m, ok := e.ctrl.(interface{ setCallMeta(runID, recordID string) }); ok {
		m.setCallMeta(p.RunID, rec.RecordID)
	}

	history, nextTurn, err := e.mainTurns(ctx, q, rec)
	if err == nil && e.cfg.ClosingArguments {
		history, err = e.closingTurns(ctx, q, rec, history, nextTurn)
	}

	rec.History = history
	if err != nil {
		rec.Success = false
		rec.ErrorMessage = model.StrPtr(err.Error())
		return rec
	}
	rec.Success = true
	return rec
}

// mainTurns runs the main loop in the configured mode and returns the
// history plus the first free turn number for the closing phase.
func (e *Engine) mainTurns(ctx context.Context, q model.Question, rec *model.DebateRecord) ([]model.Turn, int, error) {
	if e.cfg.Mode == "simultaneous" {
		return e.simultaneousTurns(ctx, q, rec)
	}
	return e.sequentialTurns(ctx, q, rec)
}

// sequentialTurns activates exactly one debater per turn. The controller is
// consulted before each turn; its action is recorded as a judge entry when
// the controller is interactive. Rotation starts before debater 0 so the
// first round-robin advance lands on debater 0.
func (e *Engine) sequentialTurns(ctx context.Context, q model.Question, rec *model.DebateRecord) ([]model.Turn, int, error) {
	var history []model.Turn
	numDebaters := len(q.Options)
	cur := -1

	for turn := 0; turn < e.cfg.NumTurns; turn++ {
		action, err := e.ctrl.NextAction(ctx, turn, q, history)
		if err != nil {
			return history, 0, fmt.Errorf("turn controller at turn %d: %s", turn, err)
		}
		if e.ctrl.Interactive() {
			history = append(history, model.Turn{
				Turn:         turn,
				Persona:      model.PersonaJudge,
				Success:      true,
				Action:       action.Raw,
				JudgeMessage: action.Message,
				IsHuman:      action.IsHuman,
			})
		}

		switch action.Kind {
		case ActionEnd:
			return history, turn + 1, nil
		case ActionDirect:
			if action.DebaterIdx < 0 || action.DebaterIdx >= numDebaters {
				return history, 0, fmt.Errorf("turn controller at turn %d: debater index %d out of range", turn, action.DebaterIdx)
			}
			cur = action.DebaterIdx
		default:
			cur = (cur + 1) % numDebaters
		}

		t := e.debaterTurn(ctx, turn, cur, q, history, false, rec)
		history = append(history, t)
		e.observe(t)
		if !t.Success {
			return history, 0, turnError(t)
		}
	}
	return history, e.cfg.NumTurns, nil
}

// simultaneousTurns collects one response per debater per turn. Prompts for
// a turn are built against the history as of the turn's start, so debaters
// cannot see same-turn responses.
func (e *Engine) simultaneousTurns(ctx context.Context, q model.Question, rec *model.DebateRecord) ([]model.Turn, int, error) {
	var history []model.Turn
	for turn := 0; turn < e.cfg.NumTurns; turn++ {
		base := history
		for idx := range q.Options {
			t := e.debaterTurn(ctx, turn, idx, q, base, false, rec)
			history = append(history, t)
			e.observe(t)
			if !t.Success {
				return history, 0, turnError(t)
			}
		}
	}
	return history, e.cfg.NumTurns, nil
}

// closingTurns gives every debater one final turn, rendered with the closing
// prompt section.
func (e *Engine) closingTurns(ctx context.Context, q model.Question, rec *model.DebateRecord, history []model.Turn, nextTurn int) ([]model.Turn, error) {
	for idx := range q.Options {
		t := e.debaterTurn(ctx, nextTurn, idx, q, history, true, rec)
		history = append(history, t)
		e.observe(t)
		if !t.Success {
			return history, turnError(t)
		}
		nextTurn++
	}
	return history, nil
}

// debaterTurn issues one model call and parses the response under the
// debater contract. Failures are embedded in the returned turn, never
// raised: the caller decides record-level consequences.
func (e *Engine) debaterTurn(ctx context.Context, turnNum, idx int, q model.Question, history []model.Turn, closing bool, rec *model.DebateRecord) model.Turn {
	t := model.Turn{
		Turn:       turnNum,
		Persona:    model.PersonaDebater,
		DebaterIdx: model.IntPtr(idx),
		Closing:    closing,
	}

	prompt, err := e.debaterPrompt(q, idx, history, closing)
	if err != nil {
		t.Error = model.StrPtr(err.Error())
		return t
	}

	start := time.Now()
	result, err := e.exec.Execute(ctx, llm.Request{
		Prompt:             prompt,
		Model:              e.cfg.DebaterModel,
		Temperature:        e.cfg.DebaterTemperature,
		MaxTokens:          e.cfg.MaxOutputTokens,
		ReasoningEffort:    e.cfg.DebaterReasoningEffort,
		ReasoningMaxTokens: e.cfg.DebaterReasoningMaxTokens,
	}, llm.Meta{
		RunID:    rec.RunID,
		RecordID: rec.RecordID,
		Context:  fmt.Sprintf("Debater %d Turn %d", idx, turnNum),
	})
	t.ElapsedSeconds = time.Since(start).Seconds()
	if err != nil {
		t.Error = model.StrPtr(err.Error())
		return t
	}

	t.RawResponse = result.Text
	t.InternalReasoning = result.InternalReasoning
	t.TokenUsage = result.Usage

	parsed, err := parse.DebaterResponse(result.Text, e.cfg.PrivateScratchpad, e.parseMode())
	if err != nil {
		t.Error = model.StrPtr(fmt.Sprintf("parsing error: %s", err))
		return t
	}
	t.Parsed = parsed
	t.Success = true
	return t
}

func (e *Engine) debaterPrompt(q model.Question, idx int, history []model.Turn, closing bool) (string, error) {
	tmpl, err := e.reg.Get(prompts.Debater)
	if err != nil {
		return "", err
	}

	var opponents strings.Builder
	opponents.WriteString("\nYour opponents are arguing for:\n")
	for i, opt := range q.Options {
		if i != idx {
			fmt.Fprintf(&opponents, "- Debater %d: %s\n", i, opt)
		}
	}

	vis := Visibility{}
	if e.cfg.SelfReasoning {
		vis.SelfIdx = model.IntPtr(idx)
	}
	historyText := FormatHistory(history, vis)
	if historyText == "" {
		historyText = "\nThis is the first turn of the debate."
	}

	privateText := ""
	if e.cfg.PrivateScratchpad {
		pr, err := e.reg.Get(prompts.PrivateReasoning)
		if err != nil {
			return "", err
		}
		privateText = prompts.Render(pr, map[string]string{
			"private_reasoning_word_limit": strconv.Itoa(e.cfg.PrivateReasoningWordLimit),
		})
	}

	closingText := ""
	if closing {
		closingText, err = e.reg.Get(prompts.Closing)
		if err != nil {
			return "", err
		}
	}

	return prompts.Render(tmpl, map[string]string{
		"role":                       strconv.Itoa(idx),
		"question":                   q.Question,
		"my_answer":                  q.Options[idx],
		"opponents_arguing_for_text": opponents.String(),
		"public_debate_history_text": historyText,
		"private_reasoning_prompt":   privateText,
		"closing_prompt":             closingText,
		"public_argument_word_limit": strconv.Itoa(e.cfg.PublicArgumentWordLimit),
	}), nil
}

func (e *Engine) parseMode() parse.Mode {
	if e.cfg.LenientArgumentParsing {
		return parse.Lenient
	}
	return parse.Strict
}

func (e *Engine) observe(t model.Turn) {
	if e.OnTurn != nil {
		e.OnTurn(t)
	}
}

func turnError(t model.Turn) error {
	msg := "unknown turn failure"
	if t.Error != nil {
		msg = *t.Error
	}
	idx := -1
	if t.DebaterIdx != nil {
		idx = *t.DebaterIdx
	}
	return fmt.Errorf("Debater %d Turn %d: %s", idx, t.Turn, msg)
}
