package dag

import (
	"context"
	"time"

	apperrors "github.com/kbukum/caseflow/errors"
)

// TaskStatus is a node's state within one run.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusRetrying  TaskStatus = "retrying"
	StatusSucceeded TaskStatus = "succeeded"
	StatusFailed    TaskStatus = "failed"
	StatusSkipped   TaskStatus = "skipped"
)

// Terminal reports whether no further transition can follow.
func (s TaskStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusSkipped
}

// TaskState is the executor's record of one node.
type TaskState struct {
	Name      string
	Status    TaskStatus
	Attempts  int
	Err       error
	StartedAt time.Time
	EndedAt   time.Time
	Output    any
}

// Transition is one task state change.
type Transition struct {
	RunID   string
	Task    string
	From    TaskStatus
	To      TaskStatus
	Attempt int
	Err     error
	// Backoff is the wait before the next attempt, set when To is retrying.
	Backoff time.Duration
	At      time.Time
}

// Observer receives every transition. Calls for one task arrive in order;
// calls for different tasks may be concurrent.
type Observer interface {
	OnTransition(ctx context.Context, t Transition)
}

// ObserverFunc adapts a function into an Observer.
type ObserverFunc func(ctx context.Context, t Transition)

func (f ObserverFunc) OnTransition(ctx context.Context, t Transition) { f(ctx, t) }

// RunStatus is the aggregate outcome of Execute.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Report is the outcome of one Execute call.
type Report struct {
	RunID  string
	Status RunStatus
	// Order lists tasks topologically.
	Order []string
	Tasks map[string]*TaskState
	// FailedTask is the first failed task in Order.
	FailedTask string
	Err        error
	StartedAt  time.Time
	EndedAt    time.Time
}

// Succeeded reports whether every task succeeded.
func (r *Report) Succeeded() bool { return r.Status == RunSucceeded }

// Duration returns the run wall time.
func (r *Report) Duration() time.Duration { return r.EndedAt.Sub(r.StartedAt) }

// Task returns the state of name, or nil.
func (r *Report) Task(name string) *TaskState { return r.Tasks[name] }

// Failure returns the failing task, its error code and attempt count.
func (r *Report) Failure() (task string, code apperrors.ErrorCode, attempts int) {
	if r.Status != RunFailed {
		return "", "", 0
	}
	if ts := r.Tasks[r.FailedTask]; ts != nil {
		attempts = ts.Attempts
	}
	return r.FailedTask, apperrors.CodeOf(r.Err), attempts
}
