package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/caseflow/logger"
)

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, cfg Config, info ServiceInfo) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(info)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if cfg.MetricInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.MetricInterval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", info.Name,
		"endpoint", cfg.Endpoint,
		"interval", cfg.MetricInterval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the run and task instruments.
type Metrics struct {
	runsTotal     metric.Int64Counter
	runsActive    metric.Int64UpDownCounter
	runDuration   metric.Float64Histogram
	taskTotal     metric.Int64Counter
	taskDuration  metric.Float64Histogram
	taskRetries   metric.Int64Counter
	errorTotal    metric.Int64Counter
	recordsLoaded metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	runsTotal, err := meter.Int64Counter("caseflow.runs.total",
		metric.WithDescription("Finished runs by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating caseflow.runs.total counter: %w", err)
	}

	runsActive, err := meter.Int64UpDownCounter("caseflow.runs.active",
		metric.WithDescription("Runs currently executing"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating caseflow.runs.active gauge: %w", err)
	}

	runDuration, err := meter.Float64Histogram("caseflow.run.duration",
		metric.WithDescription("Run wall time in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating caseflow.run.duration histogram: %w", err)
	}

	taskTotal, err := meter.Int64Counter("caseflow.task.total",
		metric.WithDescription("Task attempts by task and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating caseflow.task.total counter: %w", err)
	}

	taskDuration, err := meter.Float64Histogram("caseflow.task.duration",
		metric.WithDescription("Task attempt duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating caseflow.task.duration histogram: %w", err)
	}

	taskRetries, err := meter.Int64Counter("caseflow.task.retries",
		metric.WithDescription("Task retries by task"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating caseflow.task.retries counter: %w", err)
	}

	errorTotal, err := meter.Int64Counter("caseflow.error.total",
		metric.WithDescription("Task errors by code and task"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating caseflow.error.total counter: %w", err)
	}

	recordsLoaded, err := meter.Int64Counter("caseflow.records.loaded",
		metric.WithDescription("Documents written to the target collection"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating caseflow.records.loaded counter: %w", err)
	}

	return &Metrics{
		runsTotal:     runsTotal,
		runsActive:    runsActive,
		runDuration:   runDuration,
		taskTotal:     taskTotal,
		taskDuration:  taskDuration,
		taskRetries:   taskRetries,
		errorTotal:    errorTotal,
		recordsLoaded: recordsLoaded,
	}, nil
}

// RecordRunStart increments the active run count.
func (m *Metrics) RecordRunStart(ctx context.Context, dagID string) {
	m.runsActive.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrDAGID, dagID)))
}

// RecordRunEnd decrements active runs and records the finished run.
func (m *Metrics) RecordRunEnd(ctx context.Context, dagID, status string, duration time.Duration) {
	m.runsActive.Add(ctx, -1, metric.WithAttributes(attribute.String(AttrDAGID, dagID)))
	m.runsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrDAGID, dagID),
		attribute.String(AttrStatus, status),
	))
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(AttrDAGID, dagID)))
}

// RecordTask records one task attempt.
func (m *Metrics) RecordTask(ctx context.Context, task, status string, duration time.Duration) {
	m.taskTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrTask, task),
		attribute.String(AttrStatus, status),
	))
	m.taskDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(AttrTask, task)))
}

// RecordRetry counts a task retry.
func (m *Metrics) RecordRetry(ctx context.Context, task string) {
	m.taskRetries.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrTask, task)))
}

// RecordError records an error by code and task.
func (m *Metrics) RecordError(ctx context.Context, code, task string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrErrorCode, code),
		attribute.String(AttrTask, task),
	))
}

// RecordLoaded counts documents written.
func (m *Metrics) RecordLoaded(ctx context.Context, n int) {
	m.recordsLoaded.Add(ctx, int64(n))
}
