package verdict

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/argos-eval/debate-cli/internal/config"
	"github.com/argos-eval/debate-cli/internal/cost"
	"github.com/argos-eval/debate-cli/internal/dataset"
	"github.com/argos-eval/debate-cli/internal/llm"
	"github.com/argos-eval/debate-cli/internal/model"
	"github.com/argos-eval/debate-cli/internal/prompts"
	"github.com/argos-eval/debate-cli/internal/qa"
	"github.com/argos-eval/debate-cli/internal/runner"
	"github.com/argos-eval/debate-cli/internal/store"
)

// Runner drives full verdict runs: load a debate log, backfill QA baselines,
// judge every record, and stream verdicts to a per-run log.
type Runner struct {
	cfg     *config.Config
	pipe    *Pipeline
	qa      *qa.Runner
	tracker *cost.Tracker

	// Registry, when set, records each verdict run's lifecycle. Registry
	// failures are logged and never abort a run.
	Registry store.Store
}

// NewRunner builds a verdict runner. tracker may be nil.
func NewRunner(cfg *config.Config, exec *llm.Executor, reg *prompts.Registry, tracker *cost.Tracker) *Runner {
	return &Runner{
		cfg:     cfg,
		pipe:    NewPipeline(exec, reg),
		qa:      qa.NewRunner(exec, reg, tracker),
		tracker: tracker,
	}
}

// RunResult summarizes one verdict run.
type RunResult struct {
	VerdictRunID string
	OutputPath   string
	Total        int
	Succeeded    int
	Failed       int
	Correct      int
	Incorrect    int
	// NullAnswers counts verdicts whose answer could not be parsed; they are
	// kept in the log but excluded from accuracy.
	NullAnswers int
}

// Accuracy returns the share of correct verdicts among those with a usable
// answer, and false when no verdict is scorable.
func (r RunResult) Accuracy() (float64, bool) {
	scorable := r.Correct + r.Incorrect
	if scorable == 0 {
		return 0, false
	}
	return float64(r.Correct) / float64(scorable), true
}

// RunOne judges every successful record of one debate run with one judge
// model, optionally truncating transcripts to uptoTurns main turns.
func (r *Runner) RunOne(ctx context.Context, debateRunID, judgeModel string, uptoTurns *int) (*RunResult, error) {
	debatePath := filepath.Join(r.cfg.Results.Dir, "debate", debateRunID+".jsonl")
	all, err := ReadDebateLog(debatePath)
	if err != nil {
		return nil, err
	}

	records := make([]model.DebateRecord, 0, len(all))
	for _, rec := range all {
		if rec.Success {
			records = append(records, rec)
		}
	}
	if len(records) == 0 {
		return nil, eris.Errorf("verdict: no successful debate records in %s", debatePath)
	}
	if skipped := len(all) - len(records); skipped > 0 {
		zap.L().Info("skipping failed debate records", zap.Int("skipped", skipped))
	}

	if !r.cfg.Verdict.SkipBackfill {
		if err := r.Backfill(ctx, records, judgeModel); err != nil {
			return nil, err
		}
	}

	verdictRunID := model.NewRunID()
	outPath := filepath.Join(r.cfg.Results.Dir, "verdicts", verdictRunID+".jsonl")
	w, err := runner.NewLogWriter(outPath)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	datetime := time.Now().Format(time.RFC3339)
	jp := JudgeParams{
		VerdictRunID:       verdictRunID,
		DebateRunID:        debateRunID,
		Datetime:           datetime,
		Config:             r.cfg.VerdictSnapshot(judgeModel, debateRunID, uptoTurns),
		JudgeModel:         judgeModel,
		Temperature:        r.cfg.Verdict.JudgeTemperature,
		MaxOutputTokens:    r.cfg.Verdict.MaxOutputTokens,
		ReasoningEffort:    r.cfg.Verdict.ReasoningEffort,
		ReasoningMaxTokens: r.cfg.Verdict.ReasoningMaxTokens,
		UptoTurns:          uptoTurns,
	}

	reg := store.Register(ctx, r.Registry, verdictRunID, model.RunKindVerdict, jp.Config, outPath)

	var correct, incorrect, nulls, failed atomic.Int64
	progress := runner.NewProgressReporter(fmt.Sprintf("verdict %s %s", verdictRunID, judgeModel), r.tracker)

	_, err = runner.Run(ctx, records, func(ctx context.Context, rec model.DebateRecord) (any, error) {
		vr := r.pipe.Judge(ctx, rec, jp)
		switch {
		case !vr.Success:
			failed.Add(1)
		case vr.IsCorrect == nil:
			nulls.Add(1)
		case *vr.IsCorrect:
			correct.Add(1)
		default:
			incorrect.Add(1)
		}
		return vr, nil
	}, runner.Options[model.DebateRecord]{
		Workers: r.cfg.Verdict.MaxWorkers,
		Writer:  w,
		OnFailure: func(rec model.DebateRecord, errMsg string) any {
			failed.Add(1)
			return &model.VerdictRecord{
				VerdictRunID: verdictRunID,
				DebateRunID:  debateRunID,
				RecordID:     rec.RecordID,
				Datetime:     datetime,
				Config:       jp.Config,
				Question:     rec.Question,
				Options:      rec.Options,
				CorrectIdx:   rec.CorrectIdx,
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
		VerdictRunID: verdictRunID,
		OutputPath:   outPath,
		Total:        len(records),
		Failed:       int(failed.Load()),
		Correct:      int(correct.Load()),
		Incorrect:    int(incorrect.Load()),
		NullAnswers:  int(nulls.Load()),
	}
	res.Succeeded = res.Total - res.Failed
	reg.Finish(ctx, res.Total, res.Succeeded, res.Failed)
	return res, nil
}

// Backfill guarantees QA baselines exist for the judge model and every
// debater model referenced by the records, grouped by dataset identity to
// avoid redundant loads. The evaluation cache keeps already-covered work
// from being rescheduled.
func (r *Runner) Backfill(ctx context.Context, records []model.DebateRecord, judgeModel string) error {
	type group struct {
		spec       dataset.Spec
		numChoices int
		idxs       map[int]struct{}
		models     map[string]struct{}
	}
	groups := make(map[dataset.Spec]*group)

	for _, rec := range records {
		spec := dataset.Spec{
			Name:   snapshotString(rec.Config, "dataset_name"),
			Subset: snapshotString(rec.Config, "dataset_subset"),
			Split:  snapshotString(rec.Config, "dataset_split"),
		}
		g, ok := groups[spec]
		if !ok {
			g = &group{
				spec:       spec,
				numChoices: snapshotInt(rec.Config, "num_choices"),
				idxs:       make(map[int]struct{}),
				models:     map[string]struct{}{judgeModel: {}},
			}
			groups[spec] = g
		}
		g.idxs[rec.QuestionIdx] = struct{}{}
		// the debater model lookup is skipped entirely when it matches the
		// judge; the set makes that implicit
		if m := snapshotString(rec.Config, "debater_model"); m != "" {
			g.models[m] = struct{}{}
		}
	}

	qaLogPath := filepath.Join(r.cfg.Results.Dir, "qa", "qa_results.jsonl")

	for _, g := range groups {
		if g.numChoices == 0 {
			g.numChoices = len(records[0].Options)
		}
		ds, err := dataset.Load(r.cfg.Dataset.SnapshotDir, g.spec)
		if err != nil {
			return eris.Wrapf(err, "verdict: backfill dataset %s", g.spec.Name)
		}

		idxs := make([]int, 0, len(g.idxs))
		for idx := range g.idxs {
			idxs = append(idxs, idx)
		}
		sort.Ints(idxs)

		questions, err := ds.Select(len(idxs), g.numChoices, 0, idxs)
		if err != nil {
			return eris.Wrap(err, "verdict: backfill select questions")
		}

		models := make([]string, 0, len(g.models))
		for m := range g.models {
			models = append(models, m)
		}
		sort.Strings(models)

		for _, m := range models {
			snapshot := r.cfg.QASnapshot(m)
			snapshot["dataset_name"] = g.spec.Name
			snapshot["dataset_subset"] = g.spec.Subset
			snapshot["dataset_split"] = g.spec.Split
			snapshot["num_choices"] = g.numChoices

			summary, err := r.qa.Run(ctx, questions, qa.Params{
				ModelName:          m,
				Temperature:        r.cfg.QA.Temperature,
				MaxOutputTokens:    r.cfg.QA.MaxOutputTokens,
				ReasoningEffort:    r.cfg.QA.ReasoningEffort,
				ReasoningMaxTokens: r.cfg.QA.ReasoningMaxTokens,
				NumChoices:         g.numChoices,
				MaxWorkers:         r.cfg.QA.MaxWorkers,
				Lenient:            r.cfg.QA.LenientParsing,
				Config:             snapshot,
			}, qaLogPath)
			if err != nil {
				return eris.Wrapf(err, "verdict: backfill qa for %s", m)
			}
			zap.L().Info("qa backfill",
				zap.String("model", m),
				zap.String("dataset", g.spec.Name),
				zap.Int("requested", summary.Requested),
				zap.Int("skipped", summary.Skipped),
				zap.Int("completed", summary.Completed),
				zap.Int("failed", summary.Failed),
			)
		}
	}
	return nil
}
