package dag

import (
	"context"
	"time"

	apperrors "github.com/kbukum/caseflow/errors"
	"github.com/kbukum/caseflow/logger"
	"github.com/kbukum/caseflow/observability"
)

// WithTracing wraps a Node with OpenTelemetry span creation.
// Each attempt creates a span named "{prefix}.{nodeName}".
func WithTracing(node Node, prefix string) Node {
	return &tracingNode{inner: node, prefix: prefix}
}

type tracingNode struct {
	inner  Node
	prefix string
}

func (n *tracingNode) Name() string { return n.inner.Name() }

func (n *tracingNode) Run(ctx context.Context, state *State) (any, error) {
	ctx, span := observability.StartSpan(ctx, n.prefix+"."+n.inner.Name())
	defer span.End()

	observability.SetSpanAttribute(ctx, observability.AttrTask, n.inner.Name())
	if info, ok := TaskInfoFrom(ctx); ok {
		observability.SetSpanAttribute(ctx, observability.AttrRunID, info.RunID)
		observability.SetSpanAttribute(ctx, observability.AttrAttempt, info.Attempt)
	}

	result, err := n.inner.Run(ctx, state)
	if err != nil {
		observability.SetSpanError(ctx, err)
		observability.SetSpanAttribute(ctx, observability.AttrErrorCode, string(apperrors.CodeOf(err)))
	}

	return result, err
}

// WithMetrics wraps a Node with metric recording.
// Records attempt count, duration, and errors by code.
func WithMetrics(node Node, metrics *observability.Metrics) Node {
	return &metricsNode{inner: node, metrics: metrics}
}

type metricsNode struct {
	inner   Node
	metrics *observability.Metrics
}

func (n *metricsNode) Name() string { return n.inner.Name() }

func (n *metricsNode) Run(ctx context.Context, state *State) (any, error) {
	start := time.Now()
	result, err := n.inner.Run(ctx, state)
	duration := time.Since(start)

	status := string(StatusSucceeded)
	if err != nil {
		status = string(StatusFailed)
		n.metrics.RecordError(ctx, string(apperrors.CodeOf(err)), n.inner.Name())
	}
	n.metrics.RecordTask(ctx, n.inner.Name(), status, duration)

	return result, err
}

// WithLogging wraps a Node with per-attempt logging.
func WithLogging(node Node, log *logger.Logger) Node {
	return &loggingNode{inner: node, log: log}
}

type loggingNode struct {
	inner Node
	log   *logger.Logger
}

func (n *loggingNode) Name() string { return n.inner.Name() }

func (n *loggingNode) Run(ctx context.Context, state *State) (any, error) {
	start := time.Now()
	result, err := n.inner.Run(ctx, state)
	duration := time.Since(start)

	fields := logger.Fields(logger.FieldTask, n.inner.Name(), logger.FieldDuration, duration.Milliseconds())
	if info, ok := TaskInfoFrom(ctx); ok {
		fields[logger.FieldRunID] = info.RunID
		fields[logger.FieldAttempt] = info.Attempt
	}

	if err != nil {
		fields[logger.FieldError] = err.Error()
		fields[logger.FieldErrorCode] = string(apperrors.CodeOf(err))
		n.log.Warn("task attempt returned error", fields)
	} else {
		n.log.Debug("task attempt completed", fields)
	}

	return result, err
}
