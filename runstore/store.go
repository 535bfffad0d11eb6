package runstore

import (
	"context"
	"time"
)

// ListOptions narrows ListRuns.
type ListOptions struct {
	DAGID  string
	Status RunStatus
	// Limit caps the result; 0 means 50.
	Limit int
}

func (o ListOptions) limit() int {
	if o.Limit <= 0 {
		return 50
	}
	return o.Limit
}

// Store persists runs and their task attempts.
type Store interface {
	// SaveRun inserts or updates a run.
	SaveRun(ctx context.Context, run *Run) error
	// GetRun returns a run or a NOT_FOUND AppError.
	GetRun(ctx context.Context, id string) (*Run, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, opts ListOptions) ([]Run, error)
	// RecordAttempt appends a task transition.
	RecordAttempt(ctx context.Context, a *TaskAttempt) error
	// Attempts returns a run's task transitions in order.
	Attempts(ctx context.Context, runID string) ([]TaskAttempt, error)
	// LastLogicalDate returns the latest scheduled logical date for a DAG,
	// or "" when none was ever triggered.
	LastLogicalDate(ctx context.Context, dagID string) (string, error)
	// FailUnfinished marks every pending or running run of a DAG failed at
	// at with code and message, and returns the IDs it changed. Only call it
	// when no live process can still own those runs.
	FailUnfinished(ctx context.Context, dagID string, at time.Time, code, message string) ([]string, error)
}
