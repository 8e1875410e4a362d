// Package routecache caches per-project route definitions fetched
// from the store and derives compiled per-stage indexes from them.
//
// Entries cover all stages of one project and expire after a
// configurable TTL. Concurrent lookups for the same project share a
// single store fetch; invalidation detaches any in-flight fetch so
// the next lookup always hits the store again.
package routecache

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/polyroute/polyroute/internal/observability"
	"github.com/polyroute/polyroute/internal/route"
	"github.com/polyroute/polyroute/internal/store"
	"github.com/polyroute/polyroute/internal/util"
)

// cacheTracerName is the OpenTelemetry tracer name for route cache operations.
const cacheTracerName = "polyroute/routecache"

// Entry holds one project's route definitions across all stages,
// plus the per-stage indexes compiled from them on first use.
type Entry struct {
	ProjectID   string
	Definitions []route.RouteDefinition
	FetchedAt   time.Time
	ExpiresAt   time.Time

	mu      sync.RWMutex
	indexes map[string]*route.Index
}

// Expired reports whether the entry's TTL has elapsed.
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// IndexFor returns the compiled index for one stage, building it on
// first use. Compile failures are not memoised: a project whose
// stored definitions do not compile fails on every lookup until the
// definitions are fixed or the entry expires.
func (e *Entry) IndexFor(stage string) (*route.Index, error) {
	e.mu.RLock()
	ix, ok := e.indexes[stage]
	e.mu.RUnlock()
	if ok {
		return ix, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if ix, ok := e.indexes[stage]; ok {
		return ix, nil
	}

	ix, err := route.NewIndex(e.ProjectID, stage, e.Definitions)
	if err != nil {
		return nil, err
	}
	e.indexes[stage] = ix

	return ix, nil
}

// Options configures the route cache.
type Options struct {
	// TTL bounds how long a fetched entry serves before a refetch.
	TTL time.Duration
	// FetchTimeout bounds a single store fetch.
	FetchTimeout time.Duration
	// CleanupInterval is how often expired entries are swept.
	CleanupInterval time.Duration
}

// Cache is the per-project route definition cache.
type Cache struct {
	store  store.Store
	logger observability.Logger

	ttl          time.Duration
	fetchTimeout time.Duration

	mu          sync.RWMutex
	entries     map[string]*Entry
	generations map[string]uint64

	group singleflight.Group

	// stopCh is used to signal the cleanup goroutine to stop
	stopCh chan struct{}
}

// NewCache creates a route cache backed by the given store.
func NewCache(st store.Store, opts Options, logger observability.Logger) *Cache {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Second
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = time.Minute
	}

	c := &Cache{
		store:        st,
		logger:       logger,
		ttl:          opts.TTL,
		fetchTimeout: opts.FetchTimeout,
		entries:      make(map[string]*Entry),
		generations:  make(map[string]uint64),
		stopCh:       make(chan struct{}),
	}

	// Start background cleanup goroutine
	go c.cleanupLoop(opts.CleanupInterval)

	logger.Info("route cache initialized",
		observability.Duration("ttl", c.ttl),
		observability.Duration("fetchTimeout", c.fetchTimeout))

	return c
}

// Get returns the cached entry for a project, fetching it from the
// store on a miss. Concurrent callers for the same project share one
// fetch and all receive its result.
func (c *Cache) Get(ctx context.Context, projectID string) (*Entry, error) {
	_, span := otel.Tracer(cacheTracerName).Start(ctx, "routecache.Get",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("project_id", projectID),
		),
	)
	defer span.End()

	c.mu.RLock()
	entry, ok := c.entries[projectID]
	c.mu.RUnlock()

	if ok && !entry.Expired(time.Now()) {
		GetCacheMetrics().hitsTotal.Inc()
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return entry, nil
	}

	GetCacheMetrics().missesTotal.Inc()
	span.SetAttributes(attribute.Bool("cache.hit", false))

	executed := false
	v, err, _ := c.group.Do(projectID, func() (any, error) {
		executed = true

		// A fetch that completed between the miss above and this
		// flight starting already refreshed the entry.
		c.mu.RLock()
		entry, ok := c.entries[projectID]
		c.mu.RUnlock()
		if ok && !entry.Expired(time.Now()) {
			return entry, nil
		}

		return c.fetch(projectID)
	})
	if !executed {
		GetCacheMetrics().coalescedTotal.Inc()
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return nil, err
	}

	return v.(*Entry), nil
}

// IndexFor returns the compiled route index for one project stage,
// fetching the project's definitions if needed.
func (c *Cache) IndexFor(ctx context.Context, projectID, stage string) (*route.Index, error) {
	entry, err := c.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return entry.IndexFor(stage)
}

// Invalidate drops a project's entry and detaches any in-flight
// fetch, so the next Get always refetches. A flight that started
// before the invalidation still returns its result to the callers
// already waiting on it, but never stores that result.
func (c *Cache) Invalidate(projectID string) {
	c.mu.Lock()
	delete(c.entries, projectID)
	c.generations[projectID]++
	size := len(c.entries)
	c.mu.Unlock()

	c.group.Forget(projectID)

	GetCacheMetrics().invalidationsTotal.Inc()
	GetCacheMetrics().entriesGauge.Set(float64(size))

	c.logger.Debug("project routes invalidated",
		observability.String("project_id", projectID))
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() error {
	close(c.stopCh)
	c.logger.Info("route cache closed")
	return nil
}

// fetch loads one project's definitions from the store. The flight
// is shared by every waiter, so it runs on its own context rather
// than any single caller's; cancelling one request must not abort
// the fetch the others are waiting on.
func (c *Cache) fetch(projectID string) (*Entry, error) {
	gen := c.beginFetch(projectID)

	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	defer cancel()

	ctx, span := otel.Tracer(cacheTracerName).Start(ctx, "routecache.fetch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("project_id", projectID),
		),
	)
	defer span.End()

	start := time.Now()
	defs, err := c.store.ListRoutes(ctx, projectID)
	elapsed := time.Since(start)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)

		if errors.Is(err, context.DeadlineExceeded) {
			GetCacheMetrics().fetchDuration.WithLabelValues("timeout").Observe(elapsed.Seconds())
			c.logger.Error("route fetch timed out",
				observability.String("project_id", projectID),
				observability.Duration("timeout", c.fetchTimeout))
			return nil, util.NewTimeoutError("route fetch", c.fetchTimeout)
		}

		GetCacheMetrics().fetchDuration.WithLabelValues("error").Observe(elapsed.Seconds())
		c.logger.Error("route fetch failed",
			observability.String("project_id", projectID),
			observability.Error(err))
		return nil, util.NewFetchErrorWithCause(projectID, "list routes", err)
	}

	GetCacheMetrics().fetchDuration.WithLabelValues("success").Observe(elapsed.Seconds())

	now := time.Now()
	entry := &Entry{
		ProjectID:   projectID,
		Definitions: defs,
		FetchedAt:   now,
		ExpiresAt:   now.Add(c.ttl),
		indexes:     make(map[string]*route.Index),
	}

	c.mu.Lock()
	// An invalidation during the fetch bumped the generation; the
	// result still serves the waiting callers but is not stored.
	if c.generations[projectID] == gen {
		c.entries[projectID] = entry
	}
	size := len(c.entries)
	c.mu.Unlock()

	GetCacheMetrics().entriesGauge.Set(float64(size))

	span.SetAttributes(attribute.Int("route_count", len(defs)))
	c.logger.Debug("project routes fetched",
		observability.String("project_id", projectID),
		observability.Int("route_count", len(defs)),
		observability.Duration("elapsed", elapsed))

	return entry, nil
}

// beginFetch records the generation this flight fetches for and
// drops any expired entry, so a failed fetch cannot leave stale
// routes behind.
func (c *Cache) beginFetch(projectID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[projectID]; ok && entry.Expired(time.Now()) {
		delete(c.entries, projectID)
	}
	return c.generations[projectID]
}

// cleanupLoop periodically removes expired entries.
func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCh:
			return
		}
	}
}

// cleanup removes expired entries.
func (c *Cache) cleanup() {
	now := time.Now()

	c.mu.Lock()
	removed := 0
	for projectID, entry := range c.entries {
		if entry.Expired(now) {
			delete(c.entries, projectID)
			removed++
		}
	}
	size := len(c.entries)
	c.mu.Unlock()

	if removed > 0 {
		GetCacheMetrics().entriesGauge.Set(float64(size))
		c.logger.Debug("route cache cleanup completed",
			observability.Int("removed", removed))
	}
}
