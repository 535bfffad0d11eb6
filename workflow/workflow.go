package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/caseflow/archive"
	"github.com/kbukum/caseflow/dag"
	"github.com/kbukum/caseflow/docstore"
	"github.com/kbukum/caseflow/events"
	"github.com/kbukum/caseflow/fetcher"
	"github.com/kbukum/caseflow/handoff"
	"github.com/kbukum/caseflow/httpclient"
	"github.com/kbukum/caseflow/loader"
	"github.com/kbukum/caseflow/logger"
	"github.com/kbukum/caseflow/observability"
	"github.com/kbukum/caseflow/record"
	"github.com/kbukum/caseflow/runstore"
	"github.com/kbukum/caseflow/scheduler"
	"github.com/kbukum/caseflow/sensor"
)

// Task names, in execution order.
const (
	TaskStart      = "start"
	TaskCheckAPI   = "check_api"
	TaskCheckDB    = "check_db_connection"
	TaskGetData    = "get_data"
	TaskInsertData = "insert_data"
	TaskEnd        = "end"
)

// TaskOrder is the fixed chain every run walks.
var TaskOrder = []string{TaskStart, TaskCheckAPI, TaskCheckDB, TaskGetData, TaskInsertData, TaskEnd}

// State keys shared by the task nodes.
var (
	RunIDPort       = dag.Port[string]{Key: "run_id"}
	LogicalDatePort = dag.Port[string]{Key: "logical_date"}
)

// Deps are the collaborators a Workflow runs against.
type Deps struct {
	Runs      runstore.Store
	Documents docstore.Store
	Batches   handoff.Store[record.Batch]
	HTTP      *httpclient.Client
	// Metrics is optional.
	Metrics *observability.Metrics
	// Events receives run and task lifecycle events; nil discards them.
	Events events.Sink
	// Archive keeps a copy of every fetched batch; nil disables it.
	Archive *archive.Archiver
	Log     *logger.Logger
	// Clock drives sensor polling; nil means the wall clock.
	Clock sensor.Clock
	// Sleep replaces retry backoff waits; nil means a real timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Workflow runs the case-timeline ingestion graph for one logical date at a
// time. It is safe for concurrent runs.
type Workflow struct {
	cfg     Config
	deps    Deps
	graph   *dag.Graph
	engine  *dag.Engine
	fetcher *fetcher.Fetcher
	loader  *loader.Loader
	log     *logger.Logger
	now     func() time.Time
}

var _ scheduler.Runner = (*Workflow)(nil)

// New builds the task graph. cfg must already carry its defaults.
func New(cfg Config, deps Deps) (*Workflow, error) {
	if deps.Runs == nil || deps.Documents == nil || deps.Batches == nil || deps.HTTP == nil {
		return nil, fmt.Errorf("workflow: runs, documents, batches and http are required")
	}
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	if deps.Events == nil {
		deps.Events = events.Discard
	}
	log := deps.Log.WithComponent("workflow")

	w := &Workflow{
		cfg:     cfg,
		deps:    deps,
		fetcher: fetcher.New(deps.HTTP, deps.Batches, cfg.Fetch, deps.Log),
		loader:  loader.New(deps.Documents, deps.Batches, cfg.Load, deps.Log),
		log:     log,
		now:     time.Now,
	}
	w.graph = w.buildGraph()
	if _, err := dag.TopologicalOrder(w.graph); err != nil {
		return nil, fmt.Errorf("workflow: %w", err)
	}
	w.engine = &dag.Engine{
		MaxParallel: cfg.Tasks.MaxParallel,
		Observer:    &attemptRecorder{runs: deps.Runs, events: deps.Events, metrics: deps.Metrics, log: log},
		Log:         deps.Log.WithComponent("dag"),
		Sleep:       deps.Sleep,
	}
	return w, nil
}

// Graph returns the task graph.
func (w *Workflow) Graph() *dag.Graph { return w.graph }

func (w *Workflow) buildGraph() *dag.Graph {
	g := dag.NewGraph()
	g.Add(w.wrap(dag.Noop(TaskStart)), dag.Policy{})
	g.Add(w.wrap(dag.Func(TaskCheckAPI, w.checkAPI)), w.cfg.Tasks.CheckAPI)
	g.Add(w.wrap(dag.Func(TaskCheckDB, w.checkDB)), w.cfg.Tasks.CheckDB)
	g.Add(w.wrap(dag.Func(TaskGetData, w.getData)), w.cfg.Tasks.GetData)
	g.Add(w.wrap(dag.Func(TaskInsertData, w.insertData)), w.cfg.Tasks.InsertData)
	g.Add(w.wrap(dag.Noop(TaskEnd)), dag.Policy{})
	return g.Chain(TaskOrder...)
}

func (w *Workflow) wrap(n dag.Node) dag.Node {
	n = dag.WithLogging(n, w.deps.Log.WithComponent("task"))
	n = dag.WithTracing(n, "caseflow")
	if w.deps.Metrics != nil {
		n = dag.WithMetrics(n, w.deps.Metrics)
	}
	return n
}

func (w *Workflow) checkAPI(ctx context.Context, _ *dag.State) (any, error) {
	s := &sensor.Sensor{
		Name:   TaskCheckAPI,
		Check:  sensor.HTTPCheck(w.deps.HTTP, w.cfg.Sensors.API.URL),
		Config: w.cfg.Sensors.API.Config,
		Clock:  w.deps.Clock,
		Log:    w.deps.Log,
	}
	return nil, s.Wait(ctx)
}

func (w *Workflow) checkDB(ctx context.Context, _ *dag.State) (any, error) {
	coll := docstore.Namespace(w.cfg.Load.Database, w.cfg.Sensors.Store.Collection)
	s := &sensor.Sensor{
		Name:   TaskCheckDB,
		Check:  sensor.DocumentCheck(w.deps.Documents, coll, docstore.Filter(w.cfg.Sensors.Store.Filter)),
		Config: w.cfg.Sensors.Store.Config,
		Clock:  w.deps.Clock,
		Log:    w.deps.Log,
	}
	return nil, s.Wait(ctx)
}

func (w *Workflow) getData(ctx context.Context, state *dag.State) (any, error) {
	runID, date, err := runKeys(state)
	if err != nil {
		return nil, err
	}
	batch, err := w.fetcher.Fetch(ctx, runID, date)
	if err != nil {
		return nil, err
	}
	if w.deps.Archive != nil {
		// A lost archive copy never fails the fetch.
		key, err := w.deps.Archive.Save(ctx, w.cfg.Scheduler.DAGID, batch)
		if err != nil {
			w.log.Warn("batch not archived", logger.Fields(logger.FieldRunID, runID, logger.FieldError, err.Error()))
		} else {
			w.log.Debug("batch archived", logger.Fields(logger.FieldRunID, runID, "key", key))
		}
	}
	return batch.Len(), nil
}

func (w *Workflow) insertData(ctx context.Context, state *dag.State) (any, error) {
	runID, date, err := runKeys(state)
	if err != nil {
		return nil, err
	}
	n, err := w.loader.Load(ctx, runID, date)
	if err != nil {
		return nil, err
	}
	if w.deps.Metrics != nil {
		w.deps.Metrics.RecordLoaded(ctx, n)
	}
	return n, nil
}

func runKeys(state *dag.State) (string, string, error) {
	runID, err := dag.Read(state, RunIDPort)
	if err != nil {
		return "", "", err
	}
	date, err := dag.Read(state, LogicalDatePort)
	if err != nil {
		return "", "", err
	}
	return runID, date, nil
}

// Run executes run and discards the report. It satisfies scheduler.Runner.
func (w *Workflow) Run(ctx context.Context, run *runstore.Run) {
	w.Execute(ctx, run)
}

// Execute walks the graph for run, persisting the run's lifecycle and every
// task transition. The handoff slot for the run is released before the
// final status is written, whatever the outcome.
func (w *Workflow) Execute(ctx context.Context, run *runstore.Run) *dag.Report {
	rc := observability.NewRunContext(run.ID, run.DAGID, run.LogicalDate, w.deps.Metrics)
	ctx, span := rc.StartRunSpan(ctx)
	log := w.log.WithFields(logger.Fields(
		logger.FieldRunID, run.ID,
		logger.FieldDAGID, run.DAGID,
		logger.FieldLogicalDate, run.LogicalDate,
	))
	persist := context.WithoutCancel(ctx)

	run.Start(w.now().UTC())
	if err := w.deps.Runs.SaveRun(persist, run); err != nil {
		log.Error("failed to persist run start", logger.ErrorFields("save_run", err))
	}
	log.Info("run started", logger.Fields("trigger", string(run.Trigger)))
	w.announce(persist, events.RunStarted, run, log)

	state := dag.NewState()
	dag.Write(state, RunIDPort, run.ID)
	dag.Write(state, LogicalDatePort, run.LogicalDate)
	report := w.engine.Execute(ctx, run.ID, w.graph, state)

	if err := w.deps.Batches.Release(persist, run.ID); err != nil {
		log.Warn("failed to release handoff slot", logger.ErrorFields("release", err))
	}

	if report.Succeeded() {
		run.Succeed(w.now().UTC())
	} else {
		task, code, attempts := report.Failure()
		msg := ""
		if report.Err != nil {
			msg = report.Err.Error()
		}
		run.Fail(w.now().UTC(), task, string(code), msg, attempts)
	}
	if err := w.deps.Runs.SaveRun(persist, run); err != nil {
		log.Error("failed to persist run result", logger.ErrorFields("save_run", err))
	}
	rc.EndRun(persist, span, string(run.Status), report.Err)
	w.announce(persist, events.RunFinished, run, log)

	fields := logger.Fields(logger.FieldStatus, string(run.Status), logger.FieldDuration, report.Duration().Milliseconds())
	if report.Succeeded() {
		log.Info("run finished", fields)
	} else {
		fields[logger.FieldTask] = run.FailedTask
		fields[logger.FieldErrorCode] = run.ErrorCode
		fields[logger.FieldAttempt] = run.Attempts
		log.Error("run failed", fields)
	}
	return report
}

func (w *Workflow) announce(ctx context.Context, typ events.Type, run *runstore.Run, log *logger.Logger) {
	e := events.Event{
		Type:        typ,
		RunID:       run.ID,
		DAGID:       run.DAGID,
		LogicalDate: run.LogicalDate,
		Task:        run.FailedTask,
		Attempt:     run.Attempts,
		Status:      string(run.Status),
		ErrorCode:   run.ErrorCode,
		Message:     run.ErrorMessage,
		At:          w.now().UTC(),
	}
	if err := w.deps.Events.Publish(ctx, e); err != nil {
		log.Debug("run event not published", logger.Fields("event", string(typ), logger.FieldError, err.Error()))
	}
}
