package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	apperrors "github.com/kbukum/caseflow/errors"
	"github.com/kbukum/caseflow/logger"
	"github.com/kbukum/caseflow/runstore"
)

var (
	// ErrMaxActiveRuns is the cause when every run slot is taken.
	ErrMaxActiveRuns = errors.New("scheduler: max active runs reached")
	// ErrAlreadyTriggered is the cause when a logical date already has a run.
	ErrAlreadyTriggered = errors.New("scheduler: logical date already triggered")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("scheduler: closed")
)

// Runner executes one run to a terminal state and persists it.
type Runner interface {
	Run(ctx context.Context, run *runstore.Run)
}

// RunnerFunc adapts a function into a Runner.
type RunnerFunc func(ctx context.Context, run *runstore.Run)

func (f RunnerFunc) Run(ctx context.Context, run *runstore.Run) { f(ctx, run) }

// Clock abstracts time for the scheduling loop.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// activeRun keeps a copy of the run as it was created; the runner owns the
// live value.
type activeRun struct {
	view   runstore.Run
	cancel context.CancelFunc
}

// Scheduler creates runs on schedule boundaries and on demand.
type Scheduler struct {
	cfg      Config
	schedule cron.Schedule
	loc      *time.Location
	state    *State
	store    runstore.Store
	runner   Runner
	log      *logger.Logger
	clock    Clock
	recover  bool

	baseCtx   context.Context
	cancelAll context.CancelFunc
	stop      chan struct{}
	stopOnce  sync.Once
	loopDone  chan struct{}
	wg        sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]*activeRun
	closed   bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithoutRecovery stops Init from failing unfinished runs. Use it for
// processes that may run beside the one that owns the schedule.
func WithoutRecovery() Option {
	return func(s *Scheduler) { s.recover = false }
}

// New creates a Scheduler. Call Init before Start to resume the last
// triggered date from store.
func New(cfg Config, store runstore.Store, runner Runner, log *logger.Logger, opts ...Option) (*Scheduler, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sched, loc, err := cfg.parse()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:       cfg,
		schedule:  sched,
		loc:       loc,
		state:     NewState(cfg.MaxActiveRuns),
		store:     store,
		runner:    runner,
		log:       log.WithComponent("scheduler").WithFields(logger.Fields(logger.FieldDAGID, cfg.DAGID)),
		clock:     systemClock{},
		recover:   true,
		baseCtx:   baseCtx,
		cancelAll: cancel,
		stop:      make(chan struct{}),
		inflight:  make(map[string]*activeRun),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// State exposes the scheduling state.
func (s *Scheduler) State() *State { return s.state }

// Init resumes the last triggered logical date from the run store and fails
// runs an earlier process left pending or running.
func (s *Scheduler) Init(ctx context.Context) error {
	last, err := s.store.LastLogicalDate(ctx, s.cfg.DAGID)
	if err != nil {
		return fmt.Errorf("scheduler: load last logical date: %w", err)
	}
	s.state.Restore(last)
	if s.recover {
		ids, err := s.store.FailUnfinished(ctx, s.cfg.DAGID, s.clock.Now().UTC(),
			string(apperrors.ErrCodeInterrupted), "run was unfinished when the scheduler started")
		if err != nil {
			return fmt.Errorf("scheduler: fail unfinished runs: %w", err)
		}
		for _, id := range ids {
			s.log.Warn("interrupted run marked failed", logger.Fields(logger.FieldRunID, id, logger.FieldErrorCode, string(apperrors.ErrCodeInterrupted)))
		}
	}
	s.log.Info("scheduler initialized", logger.Fields("last_triggered", last, "max_active_runs", s.cfg.MaxActiveRuns))
	return nil
}

// LogicalDate returns the day of the interval that ends at fire.
func (s *Scheduler) LogicalDate(fire time.Time) time.Time {
	fire = fire.In(s.loc)
	start := fire.Add(-s.schedule.Next(fire).Sub(fire))
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, s.loc)
}

// LastClosedDate returns the logical date of the latest interval that closed
// at or before now.
func (s *Scheduler) LastClosedDate(now time.Time) time.Time {
	next := s.NextFire(now)
	period := s.schedule.Next(next).Sub(next)
	return s.LogicalDate(next.Add(-period))
}

// Location is the zone schedule boundaries are evaluated in.
func (s *Scheduler) Location() *time.Location { return s.loc }

// NextFire returns the first schedule boundary after t.
func (s *Scheduler) NextFire(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.loc))
}

// Start runs the scheduling loop in the background until Close or ctx ends.
// Only boundaries after the current time fire.
func (s *Scheduler) Start(ctx context.Context) {
	s.loopDone = make(chan struct{})
	go func() {
		defer close(s.loopDone)
		for {
			now := s.clock.Now()
			next := s.NextFire(now)
			s.log.Debug("next schedule boundary", logger.Fields("fire_at", next.Format(time.RFC3339)))
			select {
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			case <-s.clock.After(next.Sub(now)):
			}
			if _, err := s.Tick(ctx, next); err != nil {
				s.log.Warn("scheduled run not created", logger.ErrorFields("tick", err))
			}
		}
	}()
}

// Tick creates the scheduled run for the interval ending at fire.
func (s *Scheduler) Tick(ctx context.Context, fire time.Time) (*runstore.Run, error) {
	return s.launch(ctx, s.LogicalDate(fire), runstore.TriggerScheduled)
}

// Trigger creates a manual run for date. Manual runs share the active-run
// bound and may not overlap an active run of the same date, but they do not
// move the scheduled position.
func (s *Scheduler) Trigger(ctx context.Context, date time.Time) (*runstore.Run, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.loc)
	return s.launch(ctx, day, runstore.TriggerManual)
}

func (s *Scheduler) launch(ctx context.Context, date time.Time, trigger runstore.Trigger) (*runstore.Run, error) {
	run := runstore.NewRun(s.cfg.DAGID, date, trigger)
	fields := logger.Fields(logger.FieldLogicalDate, run.LogicalDate, "trigger", string(trigger))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	for _, a := range s.inflight {
		if a.view.LogicalDate == run.LogicalDate {
			s.mu.Unlock()
			return nil, apperrors.Conflict(fmt.Sprintf("run %s for %s is still active", a.view.ID, run.LogicalDate)).
				WithCause(ErrAlreadyTriggered)
		}
	}
	if !s.state.TryAcquire() {
		s.mu.Unlock()
		s.log.Warn("max active runs reached, skipping", fields)
		return nil, apperrors.Conflict(fmt.Sprintf("%d runs already active", s.cfg.MaxActiveRuns)).
			WithCause(ErrMaxActiveRuns)
	}
	if trigger == runstore.TriggerScheduled && !s.state.Claim(run.LogicalDate) {
		s.state.Release()
		s.mu.Unlock()
		return nil, apperrors.Conflict(fmt.Sprintf("logical date %s already triggered", run.LogicalDate)).
			WithCause(ErrAlreadyTriggered)
	}
	runCtx, cancel := context.WithTimeout(s.baseCtx, s.cfg.RunTimeout)
	active := &activeRun{view: *run, cancel: cancel}
	s.inflight[run.ID] = active
	s.wg.Add(1)
	s.mu.Unlock()

	if err := s.store.SaveRun(ctx, run); err != nil {
		s.finish(run.ID, cancel)
		return nil, fmt.Errorf("scheduler: save run: %w", err)
	}
	// The runner mutates run from here on; callers get a copy.
	created := *run
	s.mu.Lock()
	active.view = created
	s.mu.Unlock()

	fields[logger.FieldRunID] = run.ID
	s.log.Info("run created", fields)

	go func() {
		defer s.finish(run.ID, cancel)
		s.runner.Run(runCtx, run)
	}()
	return &created, nil
}

func (s *Scheduler) finish(runID string, cancel context.CancelFunc) {
	cancel()
	s.mu.Lock()
	delete(s.inflight, runID)
	s.mu.Unlock()
	s.state.Release()
	s.wg.Done()
}

// Cancel stops an active run. The run's tasks fail with CANCELLED at their
// next boundary.
func (s *Scheduler) Cancel(runID string) error {
	s.mu.Lock()
	a, ok := s.inflight[runID]
	s.mu.Unlock()
	if !ok {
		return apperrors.NotFound("active run", runID)
	}
	s.log.Info("cancelling run", logger.Fields(logger.FieldRunID, runID))
	a.cancel()
	return nil
}

// Active lists the runs in flight as they were created, oldest logical
// date first.
func (s *Scheduler) Active() []runstore.Run {
	s.mu.Lock()
	out := make([]runstore.Run, 0, len(s.inflight))
	for _, a := range s.inflight {
		out = append(out, a.view)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].LogicalDate < out[j].LogicalDate })
	return out
}

// Wait blocks until no run is in flight.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Close stops the loop and refuses new runs, then waits for in-flight runs.
// When ctx ends first the remaining runs are cancelled and awaited.
func (s *Scheduler) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if s.loopDone != nil {
		<-s.loopDone
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancelAll()
		return nil
	case <-ctx.Done():
		s.log.Warn("cancelling in-flight runs on shutdown", logger.Fields("active", s.state.Active()))
		s.cancelAll()
		<-done
		return ctx.Err()
	}
}
