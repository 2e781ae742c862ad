// Package debate implements the turn engine: sequential and simultaneous
// turn modes, debater rotation under a pluggable turn controller, the
// closing-argument phase, and the atomic per-question failure policy.
package debate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/argos-eval/debate-cli/internal/llm"
	"github.com/argos-eval/debate-cli/internal/model"
	"github.com/argos-eval/debate-cli/internal/prompts"
)

// ActionKind is a judge action issued before a main turn.
type ActionKind int

const (
	// ActionNext advances the active debater round-robin.
	ActionNext ActionKind = iota
	// ActionEnd terminates the main loop early.
	ActionEnd
	// ActionDirect names the next active debater, optionally injecting a
	// judge message into the shared history.
	ActionDirect
)

// Action is one turn-control decision.
type Action struct {
	Kind       ActionKind
	DebaterIdx int    // ActionDirect only
	Message    string // ActionDirect only, may be empty
	Raw        string
	IsHuman    bool
}

// TurnController decides, before each main turn, which debater speaks next.
// Interactive controllers have their actions recorded as judge entries in
// the shared history.
type TurnController interface {
	NextAction(ctx context.Context, turn int, q model.Question, history []model.Turn) (Action, error)
	Interactive() bool
}

// ParseAction interprets a judge action line: "next", "end", or
// "<debater_idx>: <message>".
func ParseAction(line string) (Action, error) {
	trimmed := strings.TrimSpace(line)
	switch strings.ToLower(trimmed) {
	case "next":
		return Action{Kind: ActionNext, Raw: trimmed}, nil
	case "end":
		return Action{Kind: ActionEnd, Raw: trimmed}, nil
	}
	if before, after, found := strings.Cut(trimmed, ":"); found {
		idx, err := strconv.Atoi(strings.TrimSpace(before))
		if err != nil {
			return Action{}, eris.Errorf("debate: invalid action %q, use <debater_idx>: <message>", trimmed)
		}
		return Action{
			Kind:       ActionDirect,
			DebaterIdx: idx,
			Message:    strings.TrimSpace(after),
			Raw:        trimmed,
		}, nil
	}
	return Action{}, eris.Errorf("debate: invalid action %q", trimmed)
}

// RoundRobin is the non-interactive controller: always advance.
type RoundRobin struct{}

func (RoundRobin) NextAction(context.Context, int, model.Question, []model.Turn) (Action, error) {
	return Action{Kind: ActionNext, Raw: "next"}, nil
}

func (RoundRobin) Interactive() bool { return false }

// HumanController reads judge actions from an interactive terminal,
// re-prompting until the input parses.
type HumanController struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewHumanController reads actions from in and writes prompts to out.
func NewHumanController(in io.Reader, out io.Writer) *HumanController {
	return &HumanController{scanner: bufio.NewScanner(in), out: out}
}

func (h *HumanController) Interactive() bool { return true }

func (h *HumanController) NextAction(ctx context.Context, _ int, _ model.Question, _ []model.Turn) (Action, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Action{}, err
		}
		fmt.Fprintln(h.out, strings.Repeat("=", 80))
		fmt.Fprintln(h.out, "Actions: 'next', 'end', or '<debater_idx>: <message>'")
		fmt.Fprintln(h.out, strings.Repeat("=", 80))
		fmt.Fprint(h.out, "> ")
		if !h.scanner.Scan() {
			if err := h.scanner.Err(); err != nil {
				return Action{}, eris.Wrap(err, "debate: read action")
			}
			return Action{}, eris.New("debate: input closed before action")
		}
		action, err := ParseAction(h.scanner.Text())
		if err != nil {
			fmt.Fprintln(h.out, "Invalid action.")
			continue
		}
		action.IsHuman = true
		return action, nil
	}
}

// JudgeControllerConfig parameterizes the model call behind an LLM judge.
// RunID and RecordID attribute the judge's calls in the error log; the
// engine fills them in per record before the debate starts.
type JudgeControllerConfig struct {
	Model              string
	Temperature        float64
	MaxTokens          int
	ReasoningEffort    string
	ReasoningMaxTokens int
	RunID              string
	RecordID           string
}

// JudgeController asks a judge model for the next action each turn. The
// interactive template instructs the model to end its response with a single
// action line; the last non-empty line is parsed.
type JudgeController struct {
	exec     *llm.Executor
	template string
	cfg      JudgeControllerConfig
}

// NewJudgeController builds an LLM-backed controller from the interactive
// prompt template.
func NewJudgeController(exec *llm.Executor, template string, cfg JudgeControllerConfig) *JudgeController {
	return &JudgeController{exec: exec, template: template, cfg: cfg}
}

func (j *JudgeController) Interactive() bool { return true }

// setCallMeta attributes the controller's model calls to the record being
// debated. Interactive controllers run single-worker, so no lock is needed.
func (j *JudgeController) setCallMeta(runID, recordID string) {
	j.cfg.RunID = runID
	j.cfg.RecordID = recordID
}

func (j *JudgeController) NextAction(ctx context.Context, turn int, q model.Question, history []model.Turn) (Action, error) {
	historyText := FormatHistory(history, Visibility{})
	if historyText == "" {
		historyText = "\nThe debate has not started yet."
	}

	var debaters strings.Builder
	for i, opt := range q.Options {
		fmt.Fprintf(&debaters, "Debater %d is arguing for: %s\n", i, opt)
	}

	prompt := prompts.Render(j.template, map[string]string{
		"question":                   q.Question,
		"num_debaters":               strconv.Itoa(len(q.Options)),
		"options_text":               strings.TrimSpace(debaters.String()),
		"public_debate_history_text": historyText,
		"turn":                       strconv.Itoa(turn),
	})

	result, err := j.exec.Execute(ctx, llm.Request{
		Prompt:             prompt,
		Model:              j.cfg.Model,
		Temperature:        j.cfg.Temperature,
		MaxTokens:          j.cfg.MaxTokens,
		ReasoningEffort:    j.cfg.ReasoningEffort,
		ReasoningMaxTokens: j.cfg.ReasoningMaxTokens,
	}, llm.Meta{
		RunID:    j.cfg.RunID,
		RecordID: j.cfg.RecordID,
		Context:  fmt.Sprintf("Interactive Judge Turn %d", turn),
	})
	if err != nil {
		return Action{}, err
	}

	action, err := parseActionResponse(result.Text)
	if err != nil {
		return Action{}, err
	}
	return action, nil
}

// parseActionResponse extracts the action from the last non-empty line of a
// judge response.
func parseActionResponse(text string) (Action, error) {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		return ParseAction(line)
	}
	return Action{}, eris.New("debate: empty judge action response")
}
