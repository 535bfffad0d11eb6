// Package observability wires OpenTelemetry tracing and metrics for runs and
// tasks.
//
// Setup installs OTLP HTTP exporters when enabled and returns a shutdown
// function; when disabled the global no-op providers stay in place and every
// helper here is safe to call.
//
//	shutdown, err := observability.Setup(ctx, cfg, observability.ServiceInfo{Name: "caseflow"})
//	defer shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("caseflow"))
//	rc := observability.NewRunContext(run.ID, run.DAGID, run.LogicalDate, metrics)
//	ctx, span := rc.StartRunSpan(ctx)
//	defer rc.EndRun(ctx, span, "succeeded", nil)
package observability
