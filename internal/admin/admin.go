// Package admin implements the route management operations behind
// the operator API: activating a route in a stage, deactivating it,
// deleting it and listing a project's routes.
//
// Mutations fire a hook after the write so the route cache drops the
// project's entry and the next request sees the change.
package admin

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/polyroute/polyroute/internal/observability"
	"github.com/polyroute/polyroute/internal/route"
	"github.com/polyroute/polyroute/internal/store"
	"github.com/polyroute/polyroute/internal/util"
)

// adminTracerName is the OpenTelemetry tracer name for admin operations.
const adminTracerName = "polyroute/admin"

// MutationHook is called after every successful route mutation with
// the mutated project's id.
type MutationHook func(projectID string)

// Service implements the route management operations.
type Service struct {
	store     store.AdminStore
	logger    observability.Logger
	onMutated MutationHook
}

// Option is a functional option for the admin service.
type Option func(*Service)

// WithMutationHook registers the cache invalidation hook.
func WithMutationHook(hook MutationHook) Option {
	return func(s *Service) {
		s.onMutated = hook
	}
}

// NewService creates an admin service over the given store.
func NewService(st store.AdminStore, logger observability.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}

	s := &Service{
		store:  st,
		logger: logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// PutRoute activates a route definition in a stage. A new route is
// stored with the stage as its only active stage; an existing route
// keeps its other active stages and has its remaining fields
// replaced by the incoming definition. ActiveStages on the incoming
// definition is ignored, the service owns that field.
func (s *Service) PutRoute(ctx context.Context, projectID, stage string, def route.RouteDefinition) (*route.RouteDefinition, error) {
	ctx, span := otel.Tracer(adminTracerName).Start(ctx, "admin.PutRoute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("project_id", projectID),
			attribute.String("route_id", def.ID),
			attribute.String("stage", stage),
		),
	)
	defer span.End()

	if projectID == "" {
		return nil, util.NewRouteDefinitionError(def.ID, "project_id", "must not be empty")
	}
	if stage == "" {
		return nil, util.NewRouteDefinitionError(def.ID, "stage", "must not be empty")
	}

	def.ActiveStages = nil
	if err := def.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// Compiling at the write path keeps a bad pattern out of the
	// store, so matching never sees it.
	if _, err := route.Compile(def); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	existing, err := s.store.GetRoute(ctx, projectID, def.ID)
	switch {
	case err == nil:
		def.ActiveStages = existing.ActiveStages
	case errors.Is(err, util.ErrNotFound):
		// New route, starts with just this stage.
	default:
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	def.AddStage(stage)

	if err := s.store.PutRoute(ctx, projectID, def); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.mutated(projectID)
	s.logger.Info("route activated",
		observability.String("project_id", projectID),
		observability.String("route_id", def.ID),
		observability.String("stage", stage),
		observability.Strings("active_stages", def.ActiveStages),
	)

	return &def, nil
}

// DeactivateRoute removes a route from one stage. The route is
// deleted entirely when no active stage remains. A missing route
// reports util.ErrNotFound; deactivating a stage the route is not
// active in is a no-op.
func (s *Service) DeactivateRoute(ctx context.Context, projectID, stage, routeID string) error {
	ctx, span := otel.Tracer(adminTracerName).Start(ctx, "admin.DeactivateRoute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("project_id", projectID),
			attribute.String("route_id", routeID),
			attribute.String("stage", stage),
		),
	)
	defer span.End()

	existing, err := s.store.GetRoute(ctx, projectID, routeID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if !existing.RemoveStage(stage) {
		return nil
	}

	if len(existing.ActiveStages) == 0 {
		err = s.store.DeleteRoute(ctx, projectID, routeID)
	} else {
		err = s.store.PutRoute(ctx, projectID, *existing)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.mutated(projectID)
	s.logger.Info("route deactivated",
		observability.String("project_id", projectID),
		observability.String("route_id", routeID),
		observability.String("stage", stage),
		observability.Int("remaining_stages", len(existing.ActiveStages)),
	)

	return nil
}

// DeleteRoute removes a route from every stage. A missing route
// reports util.ErrNotFound.
func (s *Service) DeleteRoute(ctx context.Context, projectID, routeID string) error {
	ctx, span := otel.Tracer(adminTracerName).Start(ctx, "admin.DeleteRoute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("project_id", projectID),
			attribute.String("route_id", routeID),
		),
	)
	defer span.End()

	if err := s.store.DeleteRoute(ctx, projectID, routeID); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.mutated(projectID)
	s.logger.Info("route deleted",
		observability.String("project_id", projectID),
		observability.String("route_id", routeID),
	)

	return nil
}

// ListRoutes returns every definition of a project across all
// stages, in match precedence order.
func (s *Service) ListRoutes(ctx context.Context, projectID string) ([]route.RouteDefinition, error) {
	return s.store.ListRoutes(ctx, projectID)
}

func (s *Service) mutated(projectID string) {
	if s.onMutated != nil {
		s.onMutated(projectID)
	}
}
