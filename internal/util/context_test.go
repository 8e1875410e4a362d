package util

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContextRequestID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = ContextWithRequestID(ctx, "req-123")
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
}

func TestContextProjectAndStage(t *testing.T) {
	t.Parallel()

	ctx := ContextWithProjectID(context.Background(), "my-app")
	ctx = ContextWithStage(ctx, "dev")

	assert.Equal(t, "my-app", ProjectIDFromContext(ctx))
	assert.Equal(t, "dev", StageFromContext(ctx))
}

func TestContextTraceAndSpanID(t *testing.T) {
	t.Parallel()

	ctx := ContextWithTraceID(context.Background(), "trace-1")
	ctx = ContextWithSpanID(ctx, "span-1")

	assert.Equal(t, "trace-1", TraceIDFromContext(ctx))
	assert.Equal(t, "span-1", SpanIDFromContext(ctx))
}

func TestElapsedTime(t *testing.T) {
	t.Parallel()

	assert.Zero(t, ElapsedTime(context.Background()))

	ctx := ContextWithStartTime(context.Background(), time.Now().Add(-time.Second))
	assert.GreaterOrEqual(t, ElapsedTime(ctx), time.Second)
}

func TestNewTimeoutContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := NewTimeoutContext(context.Background(), time.Minute)
	defer cancel()

	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, time.Second)
}
