// Package observability provides logging, metrics, and tracing
// functionality for the request router.
//
// This package implements the three pillars of observability:
// structured logging via zap, Prometheus metrics collection, and
// distributed tracing via OpenTelemetry with OTLP export.
//
// # Logging
//
// The Logger interface provides structured logging:
//
//	logger, err := observability.NewLogger(observability.LogConfig{
//	    Level:  "info",
//	    Format: "json",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("request dispatched",
//	    observability.String("project_id", "acme"),
//	    observability.Int("status", 200),
//	)
//
// Logger.WithContext enriches log entries with request-scoped fields
// (request ID, project, stage, trace IDs) carried in a context.
//
// # Metrics
//
// Prometheus metrics for dispatched requests, backend invocations,
// and circuit breaker state:
//
//	metrics := observability.NewMetrics("router")
//	handler := metrics.Handler()
//
// Request metrics are labelled by method, outcome, and status. The
// outcome label is drawn from a small fixed set (Outcome* constants)
// so cardinality stays bounded regardless of tenant count.
//
// # Tracing
//
// OpenTelemetry distributed tracing with OTLP export:
//
//	tracer, err := observability.NewTracer(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tracer.Shutdown(ctx)
//
// When tracing is disabled, NewTracer returns a tracer backed by the
// global no-op provider so call sites need no conditional logic.
package observability
