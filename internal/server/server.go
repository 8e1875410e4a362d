// Package server is the HTTP edge of the router. The tenant
// catch-all feeds every unmatched request into the dispatcher, the
// /admin group exposes route management and a separate ops server
// serves metrics and health probes.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/polyroute/polyroute/internal/admin"
	"github.com/polyroute/polyroute/internal/dispatch"
	"github.com/polyroute/polyroute/internal/observability"
)

// ginModeOnce ensures gin.SetMode is only called once to avoid race conditions
var ginModeOnce sync.Once

// Options holds configuration for the HTTP server.
type Options struct {
	Address        string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	// MaxRequestBodySize is the maximum allowed request body size in
	// bytes. Zero disables the limit.
	MaxRequestBodySize int64

	AccessLog   bool
	Tracing     bool
	ServiceName string
}

// DefaultOptions returns Options with default values.
func DefaultOptions() Options {
	return Options{
		Port:               8080,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       30 * time.Second,
		IdleTimeout:        120 * time.Second,
		MaxHeaderBytes:     1 << 20,
		MaxRequestBodySize: 10 << 20,
		AccessLog:          true,
		ServiceName:        "polyroute",
	}
}

// Deps wires the server's collaborators. Dispatcher is required;
// Admin and Metrics are optional.
type Deps struct {
	Dispatcher *dispatch.Dispatcher
	Admin      *admin.Service
	Metrics    *observability.Metrics
	Logger     observability.Logger
}

// Server is the tenant-facing HTTP server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	dispatcher *dispatch.Dispatcher
	logger     observability.Logger
	opts       Options

	mu      sync.RWMutex
	running bool
}

// NewServer creates the HTTP server and assembles its middleware
// chain and routes.
func NewServer(opts Options, deps Deps) (*Server, error) {
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	engine := gin.New()

	s := &Server{
		engine:     engine,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		opts:       opts,
	}

	engine.Use(RequestID())
	engine.Use(Recovery(logger))
	if opts.AccessLog {
		engine.Use(AccessLog(logger))
	}
	if opts.Tracing {
		engine.Use(Tracing(opts.ServiceName))
	}
	if deps.Metrics != nil {
		engine.Use(ActiveRequests(deps.Metrics))
	}
	if opts.MaxRequestBodySize > 0 {
		engine.Use(s.maxRequestBodySizeMiddleware())
	}

	if deps.Admin != nil {
		registerAdminRoutes(engine, deps.Admin, logger)
	}

	// Every path that is not an admin route belongs to a tenant.
	engine.NoRoute(s.handleDispatch)

	return s, nil
}

// maxRequestBodySizeMiddleware returns a middleware that limits request body size.
func (s *Server) maxRequestBodySizeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxRequestBodySize)
		c.Next()
	}
}

// handleDispatch feeds a tenant request through the dispatcher and
// writes the outward response.
func (s *Server) handleDispatch(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			c.Set(outcomeKey, observability.OutcomeInternalError)
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":   "request_too_large",
				"message": fmt.Sprintf("request body exceeds %d bytes", maxBytesErr.Limit),
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "bad_request",
			"message": "reading request body failed",
		})
		return
	}

	resp := s.dispatcher.Handle(c.Request.Context(), &dispatch.Request{
		Method:  c.Request.Method,
		Host:    c.Request.Host,
		Path:    c.Request.URL.Path,
		Query:   c.Request.URL.Query(),
		Headers: c.Request.Header,
		Body:    body,
	})

	c.Set(outcomeKey, resp.Outcome)

	contentType := ""
	for name, value := range resp.Headers {
		if http.CanonicalHeaderKey(name) == "Content-Type" {
			contentType = value
			continue
		}
		c.Header(name, value)
	}
	if contentType == "" {
		contentType = "application/json"
	}

	c.Data(resp.Status, contentType, []byte(resp.Body))
}

// Handler returns the underlying handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}

	addr := fmt.Sprintf("%s:%d", s.opts.Address, s.opts.Port)

	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        s.engine,
		ReadTimeout:    s.opts.ReadTimeout,
		WriteTimeout:   s.opts.WriteTimeout,
		IdleTimeout:    s.opts.IdleTimeout,
		MaxHeaderBytes: s.opts.MaxHeaderBytes,
	}

	s.running = true
	s.mu.Unlock()

	s.logger.Info("starting HTTP server",
		observability.String("address", addr),
		observability.Duration("readTimeout", s.opts.ReadTimeout),
		observability.Duration("writeTimeout", s.opts.WriteTimeout),
	)

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.logger.Info("stopping HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("HTTP server stopped")
	return nil
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
