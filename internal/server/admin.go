package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polyroute/polyroute/internal/admin"
	"github.com/polyroute/polyroute/internal/observability"
	"github.com/polyroute/polyroute/internal/route"
	"github.com/polyroute/polyroute/internal/util"
)

// adminHandlers adapts the admin service to HTTP.
type adminHandlers struct {
	service *admin.Service
	logger  observability.Logger
}

// registerAdminRoutes mounts the route management API under /admin.
func registerAdminRoutes(engine *gin.Engine, service *admin.Service, logger observability.Logger) {
	h := &adminHandlers{service: service, logger: logger}

	group := engine.Group("/admin")
	group.POST("/routes", h.putRoute)
	group.POST("/routes/deactivate", h.deactivateRoute)
	group.DELETE("/routes", h.deleteRoute)
	group.GET("/routes/:project_id", h.listRoutes)
}

// putRouteRequest activates a route definition in one stage.
type putRouteRequest struct {
	ProjectID string                `json:"project_id" binding:"required"`
	Stage     string                `json:"stage" binding:"required"`
	Route     route.RouteDefinition `json:"route"`
}

// deactivateRouteRequest removes a route from one stage.
type deactivateRouteRequest struct {
	ProjectID string `json:"project_id" binding:"required"`
	Stage     string `json:"stage" binding:"required"`
	RouteID   string `json:"route_id" binding:"required"`
}

// deleteRouteRequest removes a route from every stage.
type deleteRouteRequest struct {
	ProjectID string `json:"project_id" binding:"required"`
	RouteID   string `json:"route_id" binding:"required"`
}

func (h *adminHandlers) putRoute(c *gin.Context) {
	var req putRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	stored, err := h.service.PutRoute(c.Request.Context(), req.ProjectID, req.Stage, req.Route)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "route updated successfully",
		"active_stages": stored.ActiveStages,
	})
}

func (h *adminHandlers) deactivateRoute(c *gin.Context) {
	var req deactivateRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	err := h.service.DeactivateRoute(c.Request.Context(), req.ProjectID, req.Stage, req.RouteID)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("stage %q deactivated for route %q", req.Stage, req.RouteID),
	})
}

func (h *adminHandlers) deleteRoute(c *gin.Context) {
	var req deleteRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	err := h.service.DeleteRoute(c.Request.Context(), req.ProjectID, req.RouteID)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "route deleted successfully"})
}

func (h *adminHandlers) listRoutes(c *gin.Context) {
	defs, err := h.service.ListRoutes(c.Request.Context(), c.Param("project_id"))
	if err != nil {
		h.serviceError(c, err)
		return
	}

	if defs == nil {
		defs = []route.RouteDefinition{}
	}
	c.JSON(http.StatusOK, defs)
}

func (h *adminHandlers) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_request",
		"message": err.Error(),
	})
}

// serviceError maps admin service failures onto HTTP statuses.
func (h *adminHandlers) serviceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": err.Error(),
		})
	case errors.Is(err, util.ErrInvalidRoute):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_route",
			"message": err.Error(),
		})
	default:
		h.logger.Error("admin operation failed",
			observability.String("request_id", GetRequestID(c)),
			observability.String("path", c.Request.URL.Path),
			observability.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "operation failed",
		})
	}
}
