package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestDefaultTracerConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultTracerConfig()

	assert.Equal(t, "polyroute", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.False(t, cfg.Enabled)
	assert.True(t, cfg.RetryEnabled)
}

func TestNewTracer_Disabled(t *testing.T) {
	t.Parallel()

	cfg := TracerConfig{
		ServiceName: "test-service",
		Enabled:     false,
	}

	tracer, err := NewTracer(context.Background(), cfg)

	require.NoError(t, err)
	assert.NotNil(t, tracer)
	assert.Nil(t, tracer.provider)
	assert.False(t, tracer.Enabled())
}

func TestTracer_Shutdown_Disabled(t *testing.T) {
	t.Parallel()

	cfg := TracerConfig{
		ServiceName: "test-service",
		Enabled:     false,
	}

	tracer, err := NewTracer(context.Background(), cfg)
	require.NoError(t, err)

	err = tracer.Shutdown(context.Background())
	assert.NoError(t, err)
}

func TestTracer_StartSpan(t *testing.T) {
	t.Parallel()

	cfg := TracerConfig{
		ServiceName: "test-service",
		Enabled:     false,
	}

	tracer, err := NewTracer(context.Background(), cfg)
	require.NoError(t, err)

	ctx, span := tracer.StartSpan(context.Background(), "test-span")

	assert.NotNil(t, ctx)
	assert.NotNil(t, span)

	span.End()
}

func TestTracer_StartSpan_WithOptions(t *testing.T) {
	t.Parallel()

	cfg := TracerConfig{
		ServiceName: "test-service",
		Enabled:     false,
	}

	tracer, err := NewTracer(context.Background(), cfg)
	require.NoError(t, err)

	ctx, span := tracer.StartSpan(
		context.Background(),
		"test-span",
		trace.WithSpanKind(trace.SpanKindServer),
	)

	assert.NotNil(t, ctx)
	assert.NotNil(t, span)

	span.End()
}

func TestSpanFromContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	span := SpanFromContext(ctx)

	// Should return a no-op span for empty context
	assert.NotNil(t, span)
}

func TestCreateSampler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rate float64
	}{
		{
			name: "always sample",
			rate: 1.0,
		},
		{
			name: "never sample",
			rate: 0.0,
		},
		{
			name: "ratio based",
			rate: 0.5,
		},
		{
			name: "above 1.0 always samples",
			rate: 2.0,
		},
		{
			name: "negative never samples",
			rate: -1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sampler := createSampler(tt.rate)
			assert.NotNil(t, sampler)
		})
	}
}

func TestBuildOTLPExporterOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      TracerConfig
		wantOpts int
	}{
		{
			name: "endpoint only",
			cfg: TracerConfig{
				OTLPEndpoint: "localhost:4317",
			},
			wantOpts: 1,
		},
		{
			name: "insecure",
			cfg: TracerConfig{
				OTLPEndpoint: "localhost:4317",
				Insecure:     true,
			},
			wantOpts: 2,
		},
		{
			name: "insecure with retry",
			cfg: TracerConfig{
				OTLPEndpoint: "localhost:4317",
				Insecure:     true,
				RetryEnabled: true,
			},
			wantOpts: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := buildOTLPExporterOptions(tt.cfg)
			assert.Len(t, opts, tt.wantOpts)
		})
	}
}

func TestBuildRetryConfig_Defaults(t *testing.T) {
	t.Parallel()

	retryConfig := buildRetryConfig(TracerConfig{RetryEnabled: true})

	assert.True(t, retryConfig.Enabled)
	assert.Equal(t, DefaultRetryInitialInterval, retryConfig.InitialInterval)
	assert.Equal(t, DefaultRetryMaxInterval, retryConfig.MaxInterval)
	assert.Equal(t, DefaultRetryMaxElapsedTime, retryConfig.MaxElapsedTime)
}

func TestBuildRetryConfig_Custom(t *testing.T) {
	t.Parallel()

	cfg := TracerConfig{
		RetryEnabled:         true,
		RetryInitialInterval: 2 * DefaultRetryInitialInterval,
		RetryMaxInterval:     2 * DefaultRetryMaxInterval,
		RetryMaxElapsedTime:  2 * DefaultRetryMaxElapsedTime,
	}

	retryConfig := buildRetryConfig(cfg)

	assert.True(t, retryConfig.Enabled)
	assert.Equal(t, 2*DefaultRetryInitialInterval, retryConfig.InitialInterval)
	assert.Equal(t, 2*DefaultRetryMaxInterval, retryConfig.MaxInterval)
	assert.Equal(t, 2*DefaultRetryMaxElapsedTime, retryConfig.MaxElapsedTime)
}

func TestTracingConstants(t *testing.T) {
	t.Parallel()

	assert.NotZero(t, DefaultRetryInitialInterval)
	assert.NotZero(t, DefaultRetryMaxInterval)
	assert.NotZero(t, DefaultRetryMaxElapsedTime)
}
