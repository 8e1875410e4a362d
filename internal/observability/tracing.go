package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

// OTLP exporter retry defaults.
const (
	// DefaultRetryInitialInterval is the initial retry backoff interval.
	DefaultRetryInitialInterval = 1 * time.Second
	// DefaultRetryMaxInterval is the maximum retry backoff interval.
	DefaultRetryMaxInterval = 30 * time.Second
	// DefaultRetryMaxElapsedTime is the maximum total retry duration.
	DefaultRetryMaxElapsedTime = 2 * time.Minute
)

// TracerConfig holds configuration for the tracer.
type TracerConfig struct {
	// ServiceName is the name of the service for trace identification.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// Environment is the deployment environment (dev, staging, prod).
	Environment string

	// OTLPEndpoint is the OTLP collector endpoint (host:port).
	OTLPEndpoint string

	// SampleRate is the trace sampling rate (0.0 to 1.0).
	SampleRate float64

	// Enabled determines if tracing is active.
	Enabled bool

	// Insecure disables TLS for the OTLP connection.
	Insecure bool

	// RetryEnabled enables retry for failed export batches.
	RetryEnabled bool

	// RetryInitialInterval is the initial retry backoff interval.
	RetryInitialInterval time.Duration

	// RetryMaxInterval is the maximum retry backoff interval.
	RetryMaxInterval time.Duration

	// RetryMaxElapsedTime is the maximum total time to retry an export.
	RetryMaxElapsedTime time.Duration
}

// DefaultTracerConfig returns a TracerConfig with sane defaults.
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{
		ServiceName:          "polyroute",
		ServiceVersion:       "dev",
		Environment:          "development",
		OTLPEndpoint:         "localhost:4317",
		SampleRate:           1.0,
		Enabled:              false,
		Insecure:             true,
		RetryEnabled:         true,
		RetryInitialInterval: DefaultRetryInitialInterval,
		RetryMaxInterval:     DefaultRetryMaxInterval,
		RetryMaxElapsedTime:  DefaultRetryMaxElapsedTime,
	}
}

// Tracer wraps the OpenTelemetry tracer provider.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	config   TracerConfig
}

// NewTracer creates a new Tracer instance. When cfg.Enabled is false
// the returned Tracer uses a no-op provider and never exports spans.
func NewTracer(ctx context.Context, cfg TracerConfig) (*Tracer, error) {
	if !cfg.Enabled {
		return &Tracer{
			tracer: otel.Tracer(cfg.ServiceName),
			config: cfg,
		}, nil
	}

	exporter, err := otlptracegrpc.New(
		ctx, buildOTLPExporterOptions(cfg)...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(createSampler(cfg.SampleRate)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer(cfg.ServiceName),
		config:   cfg,
	}, nil
}

// buildOTLPExporterOptions builds the gRPC exporter options from the
// tracer configuration.
func buildOTLPExporterOptions(cfg TracerConfig) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
	}

	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	if cfg.RetryEnabled {
		opts = append(opts, otlptracegrpc.WithRetry(buildRetryConfig(cfg)))
	}

	return opts
}

// buildRetryConfig builds the OTLP retry configuration, substituting
// defaults for unset intervals.
func buildRetryConfig(cfg TracerConfig) otlptracegrpc.RetryConfig {
	initial := cfg.RetryInitialInterval
	if initial <= 0 {
		initial = DefaultRetryInitialInterval
	}

	maxInterval := cfg.RetryMaxInterval
	if maxInterval <= 0 {
		maxInterval = DefaultRetryMaxInterval
	}

	maxElapsed := cfg.RetryMaxElapsedTime
	if maxElapsed <= 0 {
		maxElapsed = DefaultRetryMaxElapsedTime
	}

	return otlptracegrpc.RetryConfig{
		Enabled:         true,
		InitialInterval: initial,
		MaxInterval:     maxInterval,
		MaxElapsedTime:  maxElapsed,
	}
}

// createSampler creates a sampler based on the sample rate.
// Rates at or above 1.0 always sample, rates at or below 0.0 never
// sample, anything between is ratio-based with parent respect.
func createSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0.0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// Shutdown gracefully shuts down the tracer provider, flushing any
// buffered spans.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	if err := t.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}
	return nil
}

// StartSpan starts a new span with the given name and options.
func (t *Tracer) StartSpan(
	ctx context.Context,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// Enabled reports whether span export is active.
func (t *Tracer) Enabled() bool {
	return t.config.Enabled
}

// SpanFromContext returns the current span from the context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}
