package workflow

import (
	"context"

	"github.com/kbukum/caseflow/dag"
	apperrors "github.com/kbukum/caseflow/errors"
	"github.com/kbukum/caseflow/events"
	"github.com/kbukum/caseflow/logger"
	"github.com/kbukum/caseflow/observability"
	"github.com/kbukum/caseflow/runstore"
)

// attemptRecorder persists every task transition as a TaskAttempt row and
// announces it on the event sink.
type attemptRecorder struct {
	runs    runstore.Store
	events  events.Sink
	metrics *observability.Metrics
	log     *logger.Logger
}

func (r *attemptRecorder) OnTransition(ctx context.Context, t dag.Transition) {
	a := &runstore.TaskAttempt{
		RunID:   t.RunID,
		Task:    t.Task,
		Attempt: t.Attempt,
		Status:  string(t.To),
		At:      t.At.UTC(),
	}
	if t.Err != nil {
		a.ErrorCode = string(apperrors.CodeOf(t.Err))
		a.ErrorMessage = t.Err.Error()
	}
	if err := r.runs.RecordAttempt(ctx, a); err != nil {
		r.log.Warn("failed to record task attempt", logger.Fields(
			logger.FieldRunID, t.RunID,
			logger.FieldTask, t.Task,
			logger.FieldError, err.Error(),
		))
	}
	if t.To == dag.StatusRetrying && r.metrics != nil {
		r.metrics.RecordRetry(ctx, t.Task)
	}

	e := events.Event{
		Type:      events.TaskTransition,
		RunID:     t.RunID,
		Task:      t.Task,
		Attempt:   t.Attempt,
		Status:    a.Status,
		ErrorCode: a.ErrorCode,
		Message:   a.ErrorMessage,
		At:        a.At,
	}
	if rc := observability.RunContextFromContext(ctx); rc != nil {
		e.DAGID, e.LogicalDate = rc.DAGID, rc.LogicalDate
	}
	if err := r.events.Publish(ctx, e); err != nil {
		r.log.Debug("task event not published", logger.Fields(logger.FieldRunID, t.RunID, logger.FieldError, err.Error()))
	}
}
