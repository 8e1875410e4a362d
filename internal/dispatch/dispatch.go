// Package dispatch ties the request path together: it resolves the
// tenant from the Host header, looks up the compiled route index,
// matches the request, enforces API key protection, assembles the
// invocation payload and maps the runtime's envelope onto the
// outward response.
//
// Handle never returns an error. Every failure is classified into
// the outcome taxonomy and rendered as a JSON error response, so the
// HTTP edge stays a thin adapter.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/polyroute/polyroute/internal/auth"
	"github.com/polyroute/polyroute/internal/host"
	"github.com/polyroute/polyroute/internal/invoke"
	"github.com/polyroute/polyroute/internal/observability"
	"github.com/polyroute/polyroute/internal/route"
	"github.com/polyroute/polyroute/internal/util"
)

// dispatchTracerName is the OpenTelemetry tracer name for dispatch operations.
const dispatchTracerName = "polyroute/dispatch"

// Request is the normalized inbound record the dispatcher consumes.
// The HTTP edge fills it from the raw request; tests fill it
// directly.
type Request struct {
	Method  string
	Host    string
	Path    string
	Query   url.Values
	Headers http.Header
	Body    []byte
}

// Response is the normalized outward record. Outcome carries the
// classification label for metrics and access logging.
type Response struct {
	Status  int
	Headers map[string]string
	Body    string
	Outcome string
}

// RouteSource provides compiled route indexes per project and stage.
// The route cache is the production implementation.
type RouteSource interface {
	IndexFor(ctx context.Context, projectID, stage string) (*route.Index, error)
}

// Config wires the dispatcher's collaborators. Routes and Invoker
// are required; the rest default to no-ops.
type Config struct {
	Routes  RouteSource
	Invoker invoke.Invoker

	// Auth validates API keys on protected routes. When nil, every
	// protected route denies.
	Auth auth.Validator

	Metrics *observability.Metrics
	Logger  observability.Logger

	// Debug adds attempted patterns and the candidate count to
	// no-match response bodies.
	Debug bool
}

// Dispatcher orchestrates the request path from host resolution to
// invocation result mapping.
type Dispatcher struct {
	routes  RouteSource
	invoker invoke.Invoker
	auth    auth.Validator
	metrics *observability.Metrics
	logger  observability.Logger
	debug   bool
}

// NewDispatcher creates a dispatcher from the given configuration.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Routes == nil {
		return nil, util.NewConfigError("routes", "route source is required")
	}
	if cfg.Invoker == nil {
		return nil, util.NewConfigError("invoker", "invoker is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &Dispatcher{
		routes:  cfg.Routes,
		invoker: cfg.Invoker,
		auth:    cfg.Auth,
		metrics: cfg.Metrics,
		logger:  logger,
		debug:   cfg.Debug,
	}, nil
}

// Handle runs one request through the dispatch pipeline and returns
// the outward response.
func (d *Dispatcher) Handle(ctx context.Context, req *Request) *Response {
	start := time.Now()

	ctx, span := otel.Tracer(dispatchTracerName).Start(ctx, "dispatch.Handle",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.host", req.Host),
		),
	)
	defer span.End()

	resp := d.handle(ctx, req, span)

	span.SetAttributes(
		attribute.Int("http.status_code", resp.Status),
		attribute.String("dispatch.outcome", resp.Outcome),
	)

	if d.metrics != nil {
		d.metrics.RecordRequest(
			req.Method, resp.Outcome, resp.Status,
			time.Since(start),
			int64(len(req.Body)), int64(len(resp.Body)),
		)
	}

	return resp
}

func (d *Dispatcher) handle(ctx context.Context, req *Request, span trace.Span) *Response {
	tenant, err := host.Resolve(req.Host)
	if err != nil {
		return d.fail(ctx, span, req, err)
	}

	ctx = util.ContextWithProjectID(ctx, tenant.ProjectID)
	ctx = util.ContextWithStage(ctx, tenant.Stage)
	span.SetAttributes(
		attribute.String("project_id", tenant.ProjectID),
		attribute.String("stage", tenant.Stage),
	)

	ix, err := d.routes.IndexFor(ctx, tenant.ProjectID, tenant.Stage)
	if err != nil {
		return d.fail(ctx, span, req, err)
	}

	m, err := ix.Match(req.Method, req.Path)
	if err != nil {
		var noMatch *util.NoMatchError
		if d.debug && errors.As(err, &noMatch) {
			noMatch.Attempted = ix.Patterns()
		}
		return d.fail(ctx, span, req, err)
	}

	def := &m.Route.Definition
	span.SetAttributes(attribute.String("route_id", def.ID))

	if def.RequireAPIKey {
		if err := d.checkAuth(ctx, req, def); err != nil {
			return d.fail(ctx, span, req, err)
		}
	}

	payload := buildPayload(req, tenant, m)
	backendID := BackendID(def.NodeSetupVersionID, tenant.Stage)

	result, err := d.invokeBackend(ctx, backendID, payload)
	if err != nil {
		return d.fail(ctx, span, req, err)
	}

	d.logger.WithContext(ctx).Debug("request dispatched",
		observability.String("route_id", def.ID),
		observability.String("backend_id", backendID),
		observability.Int("status", result.Status),
	)

	return &Response{
		Status:  result.Status,
		Headers: result.Headers,
		Body:    result.Body,
		Outcome: observability.OutcomeMatched,
	}
}

// checkAuth consults the validator for a protected route. A missing
// validator denies, so a misconfigured deployment fails closed.
func (d *Dispatcher) checkAuth(ctx context.Context, req *Request, def *route.RouteDefinition) error {
	if d.auth == nil {
		return util.NewAuthError("no API key validator configured")
	}

	ok, err := d.auth.Check(ctx, &auth.Request{
		Headers: req.Headers,
		Query:   req.Query,
	}, def)
	if err != nil {
		return fmt.Errorf("api key validation: %w", err)
	}
	if !ok {
		return util.NewAuthError("missing or invalid API key")
	}
	return nil
}

// invokeBackend calls the runtime and records invocation metrics.
func (d *Dispatcher) invokeBackend(ctx context.Context, backendID string, payload *invoke.Payload) (*invoke.Result, error) {
	start := time.Now()

	result, err := d.invoker.Invoke(ctx, backendID, payload)

	if d.metrics != nil {
		outcome := observability.OutcomeMatched
		switch {
		case errors.Is(err, util.ErrTimeout):
			outcome = observability.OutcomeTimeout
		case err != nil:
			outcome = observability.OutcomeInvocationFailed
		}
		d.metrics.RecordInvocation(outcome, time.Since(start))
	}

	return result, err
}

// fail classifies an error, logs it and renders the JSON error
// response.
func (d *Dispatcher) fail(ctx context.Context, span trace.Span, req *Request, err error) *Response {
	status, outcome, code := classify(err)

	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)

	logger := d.logger.WithContext(ctx)
	if status >= 500 {
		logger.Error("dispatch failed",
			observability.String("method", req.Method),
			observability.String("path", req.Path),
			observability.String("outcome", outcome),
			observability.Error(err),
		)
	} else {
		logger.Debug("request rejected",
			observability.String("method", req.Method),
			observability.String("path", req.Path),
			observability.String("outcome", outcome),
			observability.Error(err),
		)
	}

	return &Response{
		Status:  status,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    d.errorBody(ctx, code, err),
		Outcome: outcome,
	}
}

// classify maps a pipeline error onto its HTTP status, metrics
// outcome and body error code.
func classify(err error) (status int, outcome, code string) {
	switch {
	case errors.Is(err, util.ErrMalformedHost):
		return http.StatusBadRequest, observability.OutcomeMalformedHost, "malformed_host"
	case errors.Is(err, util.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, observability.OutcomeMethodNotAllowed, "method_not_allowed"
	case errors.Is(err, util.ErrNoMatch):
		return http.StatusNotFound, observability.OutcomeNoMatch, "not_found"
	case errors.Is(err, util.ErrUnauthorized):
		return http.StatusUnauthorized, observability.OutcomeUnauthorized, "unauthorized"
	case errors.Is(err, util.ErrTimeout):
		return http.StatusGatewayTimeout, observability.OutcomeTimeout, "gateway_timeout"
	case errors.Is(err, util.ErrFetchFailed):
		return http.StatusBadGateway, observability.OutcomeFetchFailed, "bad_gateway"
	case errors.Is(err, util.ErrInvocationFailed):
		return http.StatusBadGateway, observability.OutcomeInvocationFailed, "bad_gateway"
	default:
		// Includes route definitions that fail to compile on read.
		return http.StatusInternalServerError, observability.OutcomeInternalError, "internal_error"
	}
}

// errorBody renders the JSON error body. No-match errors in debug
// mode additionally carry the attempted patterns and the candidate
// count.
func (d *Dispatcher) errorBody(ctx context.Context, code string, err error) string {
	requestID := util.RequestIDFromContext(ctx)

	var noMatch *util.NoMatchError
	if d.debug && errors.As(err, &noMatch) && noMatch.Attempted != nil {
		return marshalBody(struct {
			Error             string   `json:"error"`
			Message           string   `json:"message"`
			RequestID         string   `json:"request_id,omitempty"`
			AttemptedPatterns []string `json:"attempted_patterns"`
			CandidateRoutes   int      `json:"candidate_routes"`
		}{
			Error:             code,
			Message:           err.Error(),
			RequestID:         requestID,
			AttemptedPatterns: noMatch.Attempted,
			CandidateRoutes:   len(noMatch.Attempted),
		})
	}

	return marshalBody(struct {
		Error     string `json:"error"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	}{
		Error:     code,
		Message:   err.Error(),
		RequestID: requestID,
	})
}

func marshalBody(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{"error":"internal_error"}`
	}
	return string(b)
}
