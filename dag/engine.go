package dag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/kbukum/caseflow/errors"
	"github.com/kbukum/caseflow/logger"
	"github.com/kbukum/caseflow/resilience"
)

// Engine executes graphs. An Engine holds no per-run state and may execute
// several runs at once.
type Engine struct {
	// MaxParallel limits concurrent nodes per run (0 = unlimited).
	MaxParallel int
	// Observer, when set, receives every task transition.
	Observer Observer
	Log      *logger.Logger
	// Sleep replaces the backoff wait between attempts.
	Sleep func(ctx context.Context, d time.Duration) error
}

type taskResult struct {
	name string
	err  error
}

// execution is the mutable state of one Execute call.
type execution struct {
	engine   *Engine
	ctx      context.Context
	runID    string
	graph    *Graph
	state    *State
	log      *logger.Logger
	bulkhead *resilience.Bulkhead

	mu     sync.Mutex
	report *Report
}

// Execute runs g to completion and reports the outcome. It returns once
// every node is terminal; cancelling ctx fails in-flight nodes with
// CANCELLED at their next attempt or backoff boundary.
func (e *Engine) Execute(ctx context.Context, runID string, g *Graph, state *State) *Report {
	log := e.Log
	if log == nil {
		log = logger.NewNop()
	}
	log = log.WithFields(logger.Fields(logger.FieldRunID, runID))
	if state == nil {
		state = NewState()
	}

	report := &Report{
		RunID:     runID,
		Tasks:     make(map[string]*TaskState, len(g.Nodes)),
		StartedAt: time.Now(),
	}
	for name := range g.Nodes {
		report.Tasks[name] = &TaskState{Name: name, Status: StatusPending}
	}

	x := &execution{engine: e, ctx: ctx, runID: runID, graph: g, state: state, log: log, report: report}

	order, err := TopologicalOrder(g)
	if err != nil {
		log.Error("invalid graph", logger.ErrorFields("build_levels", err))
		for name := range g.Nodes {
			x.transition(name, StatusSkipped, 0, nil, 0)
		}
		report.Status = RunFailed
		report.Err = apperrors.InvalidInput("graph", err.Error())
		report.EndedAt = time.Now()
		return report
	}
	report.Order = order

	if e.MaxParallel > 0 {
		x.bulkhead = resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "dag." + runID,
			MaxConcurrent: e.MaxParallel,
		})
	}

	x.walk()
	x.finish()
	return report
}

// walk launches every node whose upstream nodes all succeeded and skips the
// downstream closure of every failure.
func (x *execution) walk() {
	unmet := make(map[string]int, len(x.graph.Nodes))
	for name := range x.graph.Nodes {
		unmet[name] = len(x.graph.Upstream(name))
	}

	done := make(chan taskResult)
	inflight := 0
	launch := func(name string) {
		inflight++
		go func() { done <- x.runTask(name) }()
	}

	for _, name := range x.report.Order {
		if unmet[name] == 0 {
			launch(name)
		}
	}

	for inflight > 0 {
		res := <-done
		inflight--

		if res.err != nil {
			x.skipDownstream(res.name)
			continue
		}
		for _, next := range x.graph.Downstream(res.name) {
			unmet[next]--
			if unmet[next] == 0 && x.status(next) == StatusPending {
				launch(next)
			}
		}
	}
}

func (x *execution) skipDownstream(failed string) {
	queue := x.graph.Downstream(failed)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if x.status(name) != StatusPending {
			continue
		}
		x.transition(name, StatusSkipped, 0, nil, 0)
		queue = append(queue, x.graph.Downstream(name)...)
	}
}

func (x *execution) finish() {
	r := x.report
	r.Status = RunSucceeded
	for _, name := range r.Order {
		ts := r.Tasks[name]
		if ts.Status == StatusSucceeded {
			continue
		}
		r.Status = RunFailed
		if ts.Status == StatusFailed && r.FailedTask == "" {
			r.FailedTask = name
			r.Err = ts.Err
		}
	}
	r.EndedAt = time.Now()

	fields := logger.Fields(logger.FieldStatus, string(r.Status), logger.FieldDuration, r.Duration().Milliseconds())
	if r.Status == RunFailed {
		task, code, attempts := r.Failure()
		fields[logger.FieldTask] = task
		fields[logger.FieldErrorCode] = string(code)
		fields[logger.FieldAttempt] = attempts
		x.log.Warn("run failed", fields)
		return
	}
	x.log.Info("run succeeded", fields)
}

func (x *execution) runTask(name string) taskResult {
	node := x.graph.Nodes[name]
	policy := x.graph.Policy(name)

	if x.bulkhead != nil {
		if err := x.bulkhead.Acquire(x.ctx); err != nil {
			err = apperrors.Cancelled(context.Cause(x.ctx))
			x.transition(name, StatusFailed, 0, err, 0)
			return taskResult{name: name, err: err}
		}
		defer x.bulkhead.Release()
	}

	attempts := 0
	cfg := policy.retryConfig()
	cfg.Sleep = x.engine.Sleep
	cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		x.transition(name, StatusRetrying, attempt, err, backoff)
	}

	out, err := resilience.Retry(x.ctx, cfg, func(attempt int) (any, error) {
		attempts = attempt
		x.transition(name, StatusRunning, attempt, nil, 0)
		return x.attempt(name, node, policy, attempt)
	})
	if err != nil {
		err = x.terminalError(err)
		x.transition(name, StatusFailed, attempts, err, 0)
		return taskResult{name: name, err: err}
	}

	x.mu.Lock()
	x.report.Tasks[name].Output = out
	x.mu.Unlock()
	x.transition(name, StatusSucceeded, attempts, nil, 0)
	return taskResult{name: name}
}

// attempt runs node once under the policy timeout. Panics become INTERNAL
// errors; an expired attempt deadline becomes TASK_TIMEOUT; a cancelled run
// becomes CANCELLED.
func (x *execution) attempt(name string, node Node, p Policy, attempt int) (out any, err error) {
	if x.ctx.Err() != nil {
		return nil, apperrors.Cancelled(context.Cause(x.ctx))
	}
	actx, cancel := context.WithTimeout(x.ctx, p.Timeout)
	defer cancel()
	actx = WithTaskInfo(actx, TaskInfo{RunID: x.runID, Task: name, Attempt: attempt})

	defer func() {
		if r := recover(); r != nil {
			out, err = nil, apperrors.Internal(fmt.Errorf("task %s panicked: %v", name, r))
		}
	}()

	out, err = node.Run(actx, x.state)
	if err == nil {
		return out, nil
	}
	switch {
	case x.ctx.Err() != nil:
		return nil, apperrors.Cancelled(context.Cause(x.ctx)).WithDetail("last_error", err.Error())
	case errors.Is(actx.Err(), context.DeadlineExceeded):
		return nil, apperrors.TaskTimeout(name, p.Timeout).WithCause(err)
	}
	return nil, err
}

// terminalError reports CANCELLED when the run ended during a backoff wait.
func (x *execution) terminalError(err error) error {
	if x.ctx.Err() == nil || apperrors.CodeOf(err) == apperrors.ErrCodeCancelled {
		return err
	}
	cancelled := apperrors.Cancelled(context.Cause(x.ctx))
	if err != nil {
		cancelled = cancelled.WithDetail("last_error", err.Error())
	}
	return cancelled
}

func (x *execution) status(name string) TaskStatus {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.report.Tasks[name].Status
}

func (x *execution) transition(name string, to TaskStatus, attempt int, err error, backoff time.Duration) {
	now := time.Now()

	x.mu.Lock()
	ts := x.report.Tasks[name]
	from := ts.Status
	ts.Status = to
	if attempt > ts.Attempts {
		ts.Attempts = attempt
	}
	if to == StatusRunning && ts.StartedAt.IsZero() {
		ts.StartedAt = now
	}
	if err != nil {
		ts.Err = err
	}
	if to.Terminal() {
		ts.EndedAt = now
	}
	x.mu.Unlock()

	fields := logger.Fields(logger.FieldTask, name, logger.FieldAttempt, attempt, logger.FieldStatus, string(to))
	switch to {
	case StatusRetrying:
		fields[logger.FieldErrorCode] = string(apperrors.CodeOf(err))
		fields[logger.FieldError] = err.Error()
		fields["backoff"] = backoff.String()
		x.log.Warn("task attempt failed, retrying", fields)
	case StatusFailed:
		fields[logger.FieldErrorCode] = string(apperrors.CodeOf(err))
		fields[logger.FieldError] = err.Error()
		x.log.Error("task failed", fields)
	case StatusSkipped:
		x.log.Info("task skipped", fields)
	default:
		x.log.Debug("task "+string(to), fields)
	}

	if x.engine.Observer != nil {
		x.engine.Observer.OnTransition(context.WithoutCancel(x.ctx), Transition{
			RunID:   x.runID,
			Task:    name,
			From:    from,
			To:      to,
			Attempt: attempt,
			Err:     err,
			Backoff: backoff,
			At:      now,
		})
	}
}
