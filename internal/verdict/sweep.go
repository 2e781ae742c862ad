package verdict

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/argos-eval/debate-cli/internal/model"
)

// SweepSpec enumerates a grid of verdict runs: every judge model against
// every debate run at every transcript length, repeated Repeats times.
type SweepSpec struct {
	JudgeModels  []string `json:"judge_models"`
	DebateRunIDs []string `json:"debate_run_ids"`
	// UptoTurns lists transcript truncation points; empty means one run per
	// combination over the full transcript.
	UptoTurns []int `json:"upto_turns,omitempty"`
	Repeats   int   `json:"runs_per_combination"`
}

// SweepRun is the outcome of one grid cell.
type SweepRun struct {
	JudgeModel   string  `json:"model"`
	DebateRunID  string  `json:"debate_run_id"`
	UptoTurns    *int    `json:"upto_turns"`
	RunIdx       int     `json:"run_idx"`
	VerdictRunID string  `json:"verdict_run_id,omitempty"`
	Error        string  `json:"error,omitempty"`
	Correct      int     `json:"correct"`
	Incorrect    int     `json:"incorrect"`
	NullAnswers  int     `json:"null_answers"`
	Accuracy     float64 `json:"accuracy"`
}

// SweepResult is the group summary written alongside the per-run logs.
type SweepResult struct {
	GroupRunID      string     `json:"group_run_id"`
	Datetime        string     `json:"datetime"`
	DurationSeconds float64    `json:"duration_seconds"`
	Spec            SweepSpec  `json:"spec"`
	Runs            []SweepRun `json:"runs"`
	OutputPath      string     `json:"-"`
}

// Sweep executes the grid with at most MaxParallelRuns verdict runs in
// flight and writes a group summary JSON. A failed cell is recorded in the
// summary, not fatal to its siblings.
func (r *Runner) Sweep(ctx context.Context, spec SweepSpec) (*SweepResult, error) {
	if spec.Repeats < 1 {
		spec.Repeats = 1
	}
	uptoTurns := []*int{nil}
	if len(spec.UptoTurns) > 0 {
		uptoTurns = uptoTurns[:0]
		for _, n := range spec.UptoTurns {
			n := n
			uptoTurns = append(uptoTurns, &n)
		}
	}

	var cells []SweepRun
	for rep := 0; rep < spec.Repeats; rep++ {
		for _, upto := range uptoTurns {
			for _, debateRunID := range spec.DebateRunIDs {
				for _, judge := range spec.JudgeModels {
					cells = append(cells, SweepRun{
						JudgeModel:  judge,
						DebateRunID: debateRunID,
						UptoTurns:   upto,
						RunIdx:      rep,
					})
				}
			}
		}
	}

	result := &SweepResult{
		GroupRunID: model.NewRunID(),
		Datetime:   time.Now().Format(time.RFC3339),
		Spec:       spec,
		Runs:       make([]SweepRun, len(cells)),
	}
	zap.L().Info("starting verdict sweep",
		zap.String("group_run_id", result.GroupRunID),
		zap.Int("combinations", len(cells)),
		zap.Int("max_parallel_runs", r.cfg.Verdict.MaxParallelRuns),
	)

	start := time.Now()
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Verdict.MaxParallelRuns)
	for i, cell := range cells {
		i, cell := i, cell
		g.Go(func() error {
			res, err := r.RunOne(ctx, cell.DebateRunID, cell.JudgeModel, cell.UptoTurns)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				cell.Error = err.Error()
				zap.L().Warn("sweep cell failed",
					zap.String("model", cell.JudgeModel),
					zap.String("debate_run_id", cell.DebateRunID),
					zap.Error(err),
				)
			} else {
				cell.VerdictRunID = res.VerdictRunID
				cell.Correct = res.Correct
				cell.Incorrect = res.Incorrect
				cell.NullAnswers = res.NullAnswers
				cell.Accuracy, _ = res.Accuracy()
			}
			result.Runs[i] = cell
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	result.DurationSeconds = time.Since(start).Seconds()

	groupDir := filepath.Join(r.cfg.Results.Dir, "verdict_groups")
	if err := os.MkdirAll(groupDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "verdict: mkdir group dir")
	}
	result.OutputPath = filepath.Join(groupDir, result.GroupRunID+".json")
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "verdict: marshal group summary")
	}
	if err := os.WriteFile(result.OutputPath, data, 0o644); err != nil {
		return nil, eris.Wrap(err, "verdict: write group summary")
	}
	return result, nil
}
