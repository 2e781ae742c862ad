package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/argos-eval/debate-cli/internal/model"
)

// RegisteredRun ties an in-flight run to its registry row. The zero value is
// a no-op, so callers can register unconditionally against a nil store.
type RegisteredRun struct {
	st Store
	id string
}

// Register records the start of a run. Registry failures are logged and
// degrade to a no-op handle; output logs stay the source of truth.
func Register(ctx context.Context, st Store, runID string, kind model.RunKind, cfg model.Snapshot, outputPath string) RegisteredRun {
	if st == nil {
		return RegisteredRun{}
	}
	run, err := st.CreateRun(ctx, runID, kind, cfg, outputPath)
	if err != nil {
		zap.L().Warn("run registry create failed", zap.String("run_id", runID), zap.Error(err))
		return RegisteredRun{}
	}
	return RegisteredRun{st: st, id: run.ID}
}

// Finish marks the run completed with its final counts.
func (r RegisteredRun) Finish(ctx context.Context, total, succeeded, failed int) {
	if r.st == nil {
		return
	}
	if err := r.st.FinishRun(ctx, r.id, model.RunStatusCompleted, total, succeeded, failed); err != nil {
		zap.L().Warn("run registry finish failed", zap.Error(err))
	}
}

// Fail marks the run failed without touching its counts.
func (r RegisteredRun) Fail(ctx context.Context) {
	if r.st == nil {
		return
	}
	if err := r.st.UpdateRunStatus(ctx, r.id, model.RunStatusFailed); err != nil {
		zap.L().Warn("run registry update failed", zap.Error(err))
	}
}
