package invoke

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/polyroute/polyroute/internal/observability"
	"github.com/polyroute/polyroute/internal/util"
)

// invokeTracerName is the OpenTelemetry tracer name for invocations.
const invokeTracerName = "polyroute/invoke"

// maxResponseBytes bounds how much of a runtime response is read.
const maxResponseBytes = 16 << 20

// HTTPOptions configures the HTTP invoker.
type HTTPOptions struct {
	// BaseURL is the function runtime endpoint. The backend id is
	// appended as the final path element.
	BaseURL string
	// Timeout bounds one invocation.
	Timeout time.Duration
	// MaxIdleConns caps the connection pool. Zero means 100.
	MaxIdleConns int
	// MaxIdleConnsPerHost caps idle connections per runtime host.
	// Zero means 10.
	MaxIdleConnsPerHost int
	// IdleConnTimeout closes idle connections after this long.
	// Zero means 90s.
	IdleConnTimeout time.Duration
}

// HTTPInvoker POSTs invocation payloads to a function runtime and
// decodes its response envelopes.
type HTTPInvoker struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	logger  observability.Logger
}

// NewHTTPInvoker creates an HTTP invoker.
func NewHTTPInvoker(opts HTTPOptions, logger observability.Logger) (*HTTPInvoker, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxIdle := opts.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 100
	}
	maxIdlePerHost := opts.MaxIdleConnsPerHost
	if maxIdlePerHost <= 0 {
		maxIdlePerHost = 10
	}
	idleTimeout := opts.IdleConnTimeout
	if idleTimeout <= 0 {
		idleTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        maxIdle,
		MaxIdleConnsPerHost: maxIdlePerHost,
		IdleConnTimeout:     idleTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &HTTPInvoker{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		timeout: timeout,
		client:  &http.Client{Transport: transport},
		logger:  logger,
	}, nil
}

// Invoke sends the payload and decodes the response envelope.
func (h *HTTPInvoker) Invoke(ctx context.Context, backendID string, payload *Payload) (*Result, error) {
	ctx, cancel := util.NewTimeoutContext(ctx, h.timeout)
	defer cancel()

	ctx, span := otel.Tracer(invokeTracerName).Start(ctx, "invoke.Invoke",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("invoke.backend_id", backendID),
		),
	)
	defer span.End()

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, util.NewInvocationErrorWithCause(backendID, "encode payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		h.baseURL+"/"+backendID, bytes.NewReader(encoded))
	if err != nil {
		return nil, util.NewInvocationErrorWithCause(backendID, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)

		if errors.Is(err, context.DeadlineExceeded) {
			h.logger.Error("invocation timed out",
				observability.String("backend_id", backendID),
				observability.Duration("timeout", h.timeout))
			return nil, util.NewTimeoutError("invocation of "+backendID, h.timeout)
		}

		h.logger.Error("invocation failed",
			observability.String("backend_id", backendID),
			observability.Error(err))
		return nil, util.NewInvocationErrorWithCause(backendID, "request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)

		if errors.Is(err, context.DeadlineExceeded) {
			return nil, util.NewTimeoutError("invocation of "+backendID, h.timeout)
		}
		return nil, util.NewInvocationErrorWithCause(backendID, "read response", err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetStatus(codes.Error, fmt.Sprintf("runtime status %d", resp.StatusCode))
		h.logger.Error("runtime rejected invocation",
			observability.String("backend_id", backendID),
			observability.Int("status", resp.StatusCode))
		return nil, util.NewInvocationError(backendID,
			fmt.Sprintf("runtime returned status %d", resp.StatusCode))
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return nil, util.NewInvocationErrorWithCause(backendID, "decode response", err)
	}
	if result.Status == 0 {
		result.Status = http.StatusOK
	}

	h.logger.Debug("invocation completed",
		observability.String("backend_id", backendID),
		observability.Int("status", result.Status),
		observability.Duration("elapsed", time.Since(start)))

	return &result, nil
}

// Ensure HTTPInvoker implements Invoker.
var _ Invoker = (*HTTPInvoker)(nil)
