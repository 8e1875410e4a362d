// Package store provides route definition storage for the request
// router.
package store

import (
	"context"

	"github.com/polyroute/polyroute/internal/route"
)

// Store is the read path used by the route cache. ListRoutes returns
// every definition of a project regardless of stage, in deterministic
// order; that order is the match precedence order. A project with no
// routes yields an empty slice, not an error.
type Store interface {
	ListRoutes(ctx context.Context, projectID string) ([]route.RouteDefinition, error)
}

// AdminStore extends Store with the mutations behind the admin
// surface. GetRoute and DeleteRoute report a missing route with
// util.ErrNotFound.
type AdminStore interface {
	Store

	GetRoute(ctx context.Context, projectID, routeID string) (*route.RouteDefinition, error)
	PutRoute(ctx context.Context, projectID string, def route.RouteDefinition) error
	DeleteRoute(ctx context.Context, projectID, routeID string) error
}
