package debate

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/argos-eval/debate-cli/internal/config"
	"github.com/argos-eval/debate-cli/internal/cost"
	"github.com/argos-eval/debate-cli/internal/dataset"
	"github.com/argos-eval/debate-cli/internal/llm"
	"github.com/argos-eval/debate-cli/internal/model"
	"github.com/argos-eval/debate-cli/internal/prompts"
	"github.com/argos-eval/debate-cli/internal/runner"
	"github.com/argos-eval/debate-cli/internal/store"
)

// Runner drives full debate runs: select questions, debate each one under a
// worker pool, and stream records to a per-run log.
type Runner struct {
	cfg     *config.Config
	engine  *Engine
	ctrl    TurnController
	tracker *cost.Tracker

	// Registry, when set, records the run's lifecycle. Registry failures are
	// logged and never abort a run; the JSONL log stays the source of truth.
	Registry store.Store
}

// NewRunner builds a debate runner. ctrl defaults to RoundRobin; tracker may
// be nil.
func NewRunner(cfg *config.Config, exec *llm.Executor, reg *prompts.Registry, ctrl TurnController, tracker *cost.Tracker) *Runner {
	if ctrl == nil {
		ctrl = RoundRobin{}
	}
	return &Runner{
		cfg:     cfg,
		engine:  NewEngine(exec, reg, cfg.Debate, ctrl),
		ctrl:    ctrl,
		tracker: tracker,
	}
}

// OnTurn forwards a turn observer to the engine. Used by interactive runs to
// display turns as they complete.
func (r *Runner) OnTurn(fn func(model.Turn)) {
	r.engine.OnTurn = fn
}

// RunResult summarizes one debate run.
type RunResult struct {
	RunID      string
	OutputPath string
	Total      int
	Succeeded  int
	Failed     int
}

// Run debates the configured number of questions, or exactly the questions in
// explicitIdxs when non-empty. Every question yields one record in the log,
// failed debates included.
func (r *Runner) Run(ctx context.Context, explicitIdxs []int) (*RunResult, error) {
	spec := dataset.Spec{
		Name:   r.cfg.Dataset.Name,
		Subset: r.cfg.Dataset.Subset,
		Split:  r.cfg.Dataset.Split,
	}
	ds, err := dataset.Load(r.cfg.Dataset.SnapshotDir, spec)
	if err != nil {
		return nil, err
	}
	questions, err := ds.Select(r.cfg.Debate.NumQuestions, r.cfg.Debate.NumChoices, r.cfg.Debate.RandomSeed, explicitIdxs)
	if err != nil {
		return nil, err
	}

	runID := model.NewRunID()
	outPath := filepath.Join(r.cfg.Results.Dir, "debate", runID+".jsonl")
	w, err := runner.NewLogWriter(outPath)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	rp := RunParams{
		RunID:    runID,
		Datetime: time.Now().Format(time.RFC3339),
		Config:   r.cfg.DebateSnapshot(),
	}

	reg := store.Register(ctx, r.Registry, runID, model.RunKindDebate, rp.Config, outPath)

	// An interactive controller reads one shared input stream, so questions
	// must run one at a time.
	workers := r.cfg.Debate.MaxWorkers
	if r.ctrl.Interactive() {
		workers = 1
	}

	var succeeded atomic.Int64
	progress := runner.NewProgressReporter(fmt.Sprintf("debate %s", runID), r.tracker)

	sum, err := runner.Run(ctx, questions, func(ctx context.Context, q model.Question) (any, error) {
		rec := r.engine.Run(ctx, q, rp)
		if rec.Success {
			succeeded.Add(1)
		}
		return rec, nil
	}, runner.Options[model.Question]{
		Workers: workers,
		Writer:  w,
		OnFailure: func(q model.Question, errMsg string) any {
			return &model.DebateRecord{
				RunID:        runID,
				RecordID:     model.NewRunID(),
				Datetime:     rp.Datetime,
				Config:       rp.Config,
				QuestionIdx:  q.OriginalIdx,
				Question:     q.Question,
				Options:      q.Options,
				CorrectIdx:   q.CorrectIdx,
				Success:      false,
				ErrorMessage: model.StrPtr(errMsg),
			}
		},
		OnProgress: progress.Report,
	})
	if err != nil {
		reg.Fail(ctx)
		return nil, err
	}

	res := &RunResult{
		RunID:      runID,
		OutputPath: outPath,
		Total:      sum.Total,
		Succeeded:  int(succeeded.Load()),
		Failed:     sum.Total - int(succeeded.Load()),
	}
	reg.Finish(ctx, res.Total, res.Succeeded, res.Failed)
	return res, nil
}
