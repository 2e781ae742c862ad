package runner

import (
	"context"

	"go.uber.org/zap"

	"github.com/argos-eval/debate-cli/internal/cost"
)

// ProgressReporter logs completion counts alongside the spend observed
// since the run started. Reporting is advisory; a cost poll failure only
// drops the spend field.
type ProgressReporter struct {
	tracker *cost.Tracker
	label   string
}

func NewProgressReporter(label string, tracker *cost.Tracker) *ProgressReporter {
	return &ProgressReporter{tracker: tracker, label: label}
}

// Report is shaped to plug into Options.OnProgress.
func (r *ProgressReporter) Report(done, total int) {
	fields := []zap.Field{
		zap.String("run", r.label),
		zap.Int("done", done),
		zap.Int("total", total),
	}
	if r.tracker != nil {
		if spent, ok := r.tracker.SpentSince(context.Background()); ok {
			fields = append(fields, zap.Float64("spent_usd", spent))
		}
	}
	zap.L().Info("progress", fields...)
}
