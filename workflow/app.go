package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/caseflow/archive"
	"github.com/kbukum/caseflow/bootstrap"
	"github.com/kbukum/caseflow/component"
	"github.com/kbukum/caseflow/dag"
	"github.com/kbukum/caseflow/database"
	"github.com/kbukum/caseflow/docstore"
	"github.com/kbukum/caseflow/events"
	"github.com/kbukum/caseflow/handoff"
	"github.com/kbukum/caseflow/httpclient"
	"github.com/kbukum/caseflow/kafka"
	"github.com/kbukum/caseflow/logger"
	"github.com/kbukum/caseflow/observability"
	"github.com/kbukum/caseflow/record"
	"github.com/kbukum/caseflow/redis"
	"github.com/kbukum/caseflow/runstore"
	"github.com/kbukum/caseflow/scheduler"
	"github.com/kbukum/caseflow/server"
	"github.com/kbukum/caseflow/sse"
)

// Mode selects which parts of the runtime a process starts.
type Mode int

const (
	// ModeTask opens the stores and the workflow but runs nothing on its own.
	ModeTask Mode = iota
	// ModeServe also starts the schedule loop, the status API and the
	// event stream.
	ModeServe
)

// Runtime owns the stores, the workflow and the scheduler of one process.
// It is a lifecycle component and must be registered after the database
// and Redis components it reads from.
type Runtime struct {
	cfg   *Config
	log   *logger.Logger
	db    *database.Component
	redis *redis.Component
	hub   *sse.Component
	mode  Mode

	telemetry func(context.Context) error
	publisher *kafka.Publisher
	runs      runstore.Store
	documents docstore.Store
	batches   handoff.Store[record.Batch]
	archive   *archive.Archiver
	workflow  *Workflow
	scheduler *scheduler.Scheduler
}

var (
	_ component.Component   = (*Runtime)(nil)
	_ component.Describable = (*Runtime)(nil)
	_ server.RunService     = (*Runtime)(nil)
)

// NewApp wires a caseflow process: database, optional Redis, the runtime
// and, in ModeServe, the event hub and the status API.
func NewApp(cfg *Config, mode Mode, opts ...bootstrap.Option) (*bootstrap.App[*Config], *Runtime, error) {
	app, err := bootstrap.NewApp(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	log := app.Logger

	rt := &Runtime{cfg: cfg, log: log.WithComponent("runtime"), mode: mode}
	rt.db = database.NewComponent(cfg.Database, log).WithAutoMigrate(runstore.Models()...)
	if err := app.RegisterComponent(rt.db); err != nil {
		return nil, nil, err
	}
	if cfg.Handoff.Backend == HandoffRedis {
		rt.redis, err = redis.NewComponent(cfg.Redis, log)
		if err != nil {
			return nil, nil, err
		}
		if err := app.RegisterComponent(rt.redis); err != nil {
			return nil, nil, err
		}
	}
	if mode == ModeServe {
		rt.hub = sse.NewComponent("/events", log)
		if err := app.RegisterComponent(rt.hub); err != nil {
			return nil, nil, err
		}
	}
	if err := app.RegisterComponent(rt); err != nil {
		return nil, nil, err
	}

	if mode == ModeServe {
		srv := server.New(cfg.Server, log)
		srv.ApplyMiddleware()
		srv.RegisterDefaultEndpoints(cfg.Name, app.Components.HealthAll)
		server.RegisterRunRoutes(srv.GinEngine(), rt)
		srv.GinEngine().GET("/events", sse.Handler(rt.hub.Hub(), cfg.Events.KeepAlive))
		srv.OnShutdown(rt.hub.Hub().Stop)
		if err := app.RegisterComponent(server.NewComponent(srv)); err != nil {
			return nil, nil, err
		}
	}
	return app, rt, nil
}

func (r *Runtime) Name() string { return "runtime" }

// Start builds the stores, the workflow and the scheduler, and in
// ModeServe starts the schedule loop.
func (r *Runtime) Start(ctx context.Context) error {
	shutdown, err := observability.Setup(ctx, r.cfg.Observability, observability.ServiceInfo{
		Name:        r.cfg.Name,
		Version:     r.cfg.Version,
		Environment: r.cfg.Environment,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	r.telemetry = shutdown
	metrics, err := observability.NewMetrics(observability.Meter("caseflow"))
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	db := r.db.DB()
	if db == nil {
		return fmt.Errorf("runtime: database not started")
	}
	if r.runs, err = runstore.NewSQL(db); err != nil {
		return fmt.Errorf("run store: %w", err)
	}
	if r.documents, err = docstore.NewSQL(db); err != nil {
		return fmt.Errorf("document store: %w", err)
	}
	if r.redis != nil {
		r.batches = handoff.NewRedis[record.Batch](r.redis.Client(), r.cfg.Handoff.Prefix, r.cfg.Handoff.TTL)
	} else {
		r.batches = handoff.NewMemory[record.Batch]()
	}
	client, err := httpclient.New(r.cfg.HTTP)
	if err != nil {
		return fmt.Errorf("http client: %w", err)
	}
	if r.cfg.Archive.Enabled {
		store, err := archive.Open(ctx, r.cfg.Archive)
		if err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		r.archive = archive.New(store, r.cfg.Archive.Prefix)
	}
	var sinks events.Fanout
	if r.hub != nil {
		sinks = append(sinks, r.hub.Hub())
	}
	if r.cfg.Events.Kafka.Enabled {
		if r.publisher, err = kafka.NewPublisher(r.cfg.Events.Kafka, r.log); err != nil {
			return fmt.Errorf("event publisher: %w", err)
		}
		sinks = append(sinks, r.publisher)
	}

	r.workflow, err = New(*r.cfg, Deps{
		Runs:      r.runs,
		Documents: r.documents,
		Batches:   r.batches,
		HTTP:      client,
		Metrics:   metrics,
		Events:    sinks,
		Archive:   r.archive,
		Log:       r.log,
	})
	if err != nil {
		return err
	}
	var schedOpts []scheduler.Option
	if r.mode != ModeServe {
		// A one-off process must not fail runs a serving process still owns.
		schedOpts = append(schedOpts, scheduler.WithoutRecovery())
	}
	r.scheduler, err = scheduler.New(r.cfg.Scheduler, r.runs, r.workflow, r.log, schedOpts...)
	if err != nil {
		return err
	}
	if err := r.scheduler.Init(ctx); err != nil {
		return err
	}
	if r.mode == ModeServe {
		r.scheduler.Start(ctx)
	}
	return nil
}

// Stop drains or cancels active runs, then flushes events and telemetry.
func (r *Runtime) Stop(ctx context.Context) error {
	var err error
	if r.scheduler != nil {
		err = r.scheduler.Close(ctx)
	}
	if r.publisher != nil {
		if perr := r.publisher.Close(); perr != nil && err == nil {
			err = perr
		}
	}
	if r.telemetry != nil {
		if terr := r.telemetry(ctx); terr != nil && err == nil {
			err = terr
		}
	}
	return err
}

func (r *Runtime) Health(context.Context) component.Health {
	if r.scheduler == nil {
		return component.Health{Name: r.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{
		Name:    r.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("active_runs=%d last=%s", r.scheduler.State().Active(), r.scheduler.State().LastTriggered()),
	}
}

func (r *Runtime) Describe() component.Description {
	return component.Description{
		Name: "Runtime",
		Type: "workflow",
		Details: fmt.Sprintf("%s schedule=%q max_active=%d handoff=%s kafka=%t archive=%s",
			r.cfg.Scheduler.DAGID, r.cfg.Scheduler.Schedule, r.cfg.Scheduler.MaxActiveRuns, r.cfg.Handoff.Backend,
			r.cfg.Events.Kafka.Enabled, archiveBackend(r.cfg.Archive)),
	}
}

func archiveBackend(c archive.Config) string {
	if !c.Enabled {
		return "off"
	}
	return c.Backend
}

// Archive returns the batch archive, or nil when archiving is off.
func (r *Runtime) Archive() *archive.Archiver { return r.archive }

// Runs returns the run store. Valid after Start.
func (r *Runtime) Runs() runstore.Store { return r.runs }

// Documents returns the document store. Valid after Start.
func (r *Runtime) Documents() docstore.Store { return r.documents }

// Workflow returns the workflow. Valid after Start.
func (r *Runtime) Workflow() *Workflow { return r.workflow }

// Scheduler returns the scheduler. Valid after Start.
func (r *Runtime) Scheduler() *scheduler.Scheduler { return r.scheduler }

// RunOnce executes one manual run for date in the calling goroutine, bounded
// by the scheduler's run timeout.
func (r *Runtime) RunOnce(ctx context.Context, date time.Time) (*runstore.Run, *dag.Report) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Scheduler.RunTimeout)
	defer cancel()
	run := runstore.NewRun(r.cfg.Scheduler.DAGID, date, runstore.TriggerManual)
	return run, r.workflow.Execute(ctx, run)
}

func (r *Runtime) ListRuns(ctx context.Context, opts runstore.ListOptions) ([]runstore.Run, error) {
	return r.runs.ListRuns(ctx, opts)
}

func (r *Runtime) GetRun(ctx context.Context, id string) (*runstore.Run, error) {
	return r.runs.GetRun(ctx, id)
}

func (r *Runtime) Attempts(ctx context.Context, runID string) ([]runstore.TaskAttempt, error) {
	return r.runs.Attempts(ctx, runID)
}

func (r *Runtime) Trigger(ctx context.Context, date time.Time) (*runstore.Run, error) {
	return r.scheduler.Trigger(ctx, date)
}

func (r *Runtime) Cancel(runID string) error {
	return r.scheduler.Cancel(runID)
}
