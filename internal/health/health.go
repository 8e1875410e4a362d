// Package health provides liveness and readiness probes for the ops
// server. Liveness reports that the process is up. Readiness runs the
// registered dependency probes, store connectivity chief among them,
// and turns unhealthy when a critical probe fails or the router is
// draining during shutdown.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/polyroute/polyroute/internal/observability"
)

// Status is the reported health of the service or a single probe.
type Status string

const (
	// StatusHealthy indicates the probe passed.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates a critical probe failed.
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded indicates a non-critical probe failed. The
	// router keeps serving traffic in this state.
	StatusDegraded Status = "degraded"
)

// DefaultProbeTimeout bounds each individual readiness probe.
const DefaultProbeTimeout = 5 * time.Second

// Check is the result of a single readiness probe.
type Check struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// HealthResponse reports process health with build information.
type HealthResponse struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadinessResponse reports the aggregate of all registered probes.
type ReadinessResponse struct {
	Status    Status           `json:"status"`
	Draining  bool             `json:"draining,omitempty"`
	Checks    map[string]Check `json:"checks,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// CheckFunc probes one dependency. A nil return means the dependency
// is usable.
type CheckFunc func(ctx context.Context) error

type registeredCheck struct {
	fn       CheckFunc
	critical bool
}

// Checker runs registered readiness probes and serves the probe
// endpoints. All methods are safe for concurrent use.
type Checker struct {
	version      string
	startTime    time.Time
	probeTimeout time.Duration
	logger       observability.Logger

	mu       sync.RWMutex
	checks   map[string]registeredCheck
	draining bool
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithProbeTimeout overrides the per-probe timeout.
func WithProbeTimeout(timeout time.Duration) CheckerOption {
	return func(c *Checker) {
		if timeout > 0 {
			c.probeTimeout = timeout
		}
	}
}

// WithCheckerLogger sets the logger for probe failures.
func WithCheckerLogger(logger observability.Logger) CheckerOption {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewChecker creates a checker reporting the given build version.
func NewChecker(version string, opts ...CheckerOption) *Checker {
	c := &Checker{
		version:      version,
		startTime:    time.Now(),
		probeTimeout: DefaultProbeTimeout,
		logger:       observability.NopLogger(),
		checks:       make(map[string]registeredCheck),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterCheck registers a critical probe. When it fails, readiness
// reports unhealthy and the handler returns 503.
func (c *Checker) RegisterCheck(name string, fn CheckFunc) {
	c.register(name, fn, true)
}

// RegisterNonCriticalCheck registers a probe whose failure degrades
// readiness without failing it.
func (c *Checker) RegisterNonCriticalCheck(name string, fn CheckFunc) {
	c.register(name, fn, false)
}

func (c *Checker) register(name string, fn CheckFunc, critical bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = registeredCheck{fn: fn, critical: critical}
}

// UnregisterCheck removes a probe.
func (c *Checker) UnregisterCheck(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// SetDraining marks the router as draining. A draining router reports
// readiness unhealthy so load balancers stop sending new requests
// while in-flight ones finish.
func (c *Checker) SetDraining(draining bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draining = draining
}

// IsDraining reports whether the router is draining.
func (c *Checker) IsDraining() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.draining
}

// Health reports process health. It runs no probes; a process that
// can answer is alive.
func (c *Checker) Health() HealthResponse {
	GetHealthMetrics().RecordProbe("liveness")
	return HealthResponse{
		Status:    StatusHealthy,
		Version:   c.version,
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	}
}

// Readiness runs every registered probe concurrently, each bounded by
// the probe timeout, and aggregates the results.
func (c *Checker) Readiness(ctx context.Context) ReadinessResponse {
	c.mu.RLock()
	draining := c.draining
	checks := make(map[string]registeredCheck, len(c.checks))
	for name, rc := range c.checks {
		checks[name] = rc
	}
	c.mu.RUnlock()

	GetHealthMetrics().RecordProbe("readiness")

	response := ReadinessResponse{
		Status:    StatusHealthy,
		Draining:  draining,
		Checks:    make(map[string]Check, len(checks)),
		Timestamp: time.Now().UTC(),
	}
	if draining {
		response.Status = StatusUnhealthy
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, rc := range checks {
		wg.Add(1)
		go func(name string, rc registeredCheck) {
			defer wg.Done()

			result := c.runProbe(ctx, name, rc.fn)
			GetHealthMetrics().SetProbeStatus(name, result.Status == StatusHealthy)

			mu.Lock()
			defer mu.Unlock()
			response.Checks[name] = result
			if result.Status != StatusHealthy {
				if rc.critical {
					response.Status = StatusUnhealthy
				} else if response.Status != StatusUnhealthy {
					response.Status = StatusDegraded
				}
			}
		}(name, rc)
	}
	wg.Wait()

	return response
}

// runProbe executes one probe with the configured timeout.
func (c *Checker) runProbe(ctx context.Context, name string, fn CheckFunc) Check {
	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	start := time.Now()
	err := fn(probeCtx)
	elapsed := time.Since(start)

	result := Check{
		Status:   StatusHealthy,
		Duration: elapsed.Round(time.Millisecond).String(),
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
		c.logger.Warn("readiness probe failed",
			observability.String("check", name),
			observability.Error(err),
			observability.Duration("duration", elapsed))
	}
	return result
}

// HealthHandler serves the health endpoint.
func (c *Checker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, c.Health())
	}
}

// ReadinessHandler serves the readiness endpoint. It returns 503 when
// readiness is unhealthy; a degraded router still accepts traffic.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := c.Readiness(r.Context())

		status := http.StatusOK
		if response.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, response)
	}
}

// LivenessHandler serves the liveness endpoint.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
