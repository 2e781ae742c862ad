// Package store persists the run registry. Result records live in JSONL
// logs on disk; the registry only records run metadata so runs can be
// listed and browsed without scanning log files.
package store

import (
	"context"

	"github.com/argos-eval/debate-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Kind   model.RunKind   `json:"kind,omitempty"`
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the run registry.
type Store interface {
	// CreateRun registers a new run in status running.
	CreateRun(ctx context.Context, runID string, kind model.RunKind, config model.Snapshot, outputPath string) (*model.Run, error)
	// UpdateRunStatus changes a run's status by registry id.
	UpdateRunStatus(ctx context.Context, id string, status model.RunStatus) error
	// FinishRun records final counts, sets the status, and stamps finished_at.
	FinishRun(ctx context.Context, id string, status model.RunStatus, total, succeeded, failed int) error
	// GetRun looks a run up by registry id.
	GetRun(ctx context.Context, id string) (*model.Run, error)
	// FindRun looks a run up by its user-facing run id.
	FindRun(ctx context.Context, runID string) (*model.Run, error)
	// ListRuns returns runs matching the filter, newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
