package routecache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CacheMetrics holds Prometheus metrics for route cache operations.
type CacheMetrics struct {
	hitsTotal          prometheus.Counter
	missesTotal        prometheus.Counter
	coalescedTotal     prometheus.Counter
	invalidationsTotal prometheus.Counter
	entriesGauge       prometheus.Gauge
	fetchDuration      *prometheus.HistogramVec
}

var (
	cacheMetricsInstance *CacheMetrics
	cacheMetricsOnce     sync.Once
)

// GetCacheMetrics returns the singleton route cache metrics instance.
func GetCacheMetrics() *CacheMetrics {
	cacheMetricsOnce.Do(func() {
		cacheMetricsInstance = newCacheMetrics()
	})
	return cacheMetricsInstance
}

// MustRegister registers all route cache metric collectors with the
// given Prometheus registry. promauto registers metrics with the
// default global registry, but the router serves /metrics from a
// custom registry. Calling MustRegister bridges the two so cache
// metrics appear on the router's metrics endpoint.
func (m *CacheMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.hitsTotal,
		m.missesTotal,
		m.coalescedTotal,
		m.invalidationsTotal,
		m.entriesGauge,
		m.fetchDuration,
	)
}

// Init pre-initializes the fetch outcome labels with zero values so
// that the histogram appears in /metrics output immediately after
// startup. This method is idempotent and safe to call multiple times.
func (m *CacheMetrics) Init() {
	for _, outcome := range []string{"success", "error", "timeout"} {
		m.fetchDuration.WithLabelValues(outcome)
	}
}

func newCacheMetrics() *CacheMetrics {
	return &CacheMetrics{
		hitsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "router",
				Subsystem: "route_cache",
				Name:      "hits_total",
				Help: "Total number of " +
					"route cache hits",
			},
		),
		missesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "router",
				Subsystem: "route_cache",
				Name:      "misses_total",
				Help: "Total number of " +
					"route cache misses",
			},
		),
		coalescedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "router",
				Subsystem: "route_cache",
				Name:      "coalesced_total",
				Help: "Total number of lookups " +
					"served by another caller's fetch",
			},
		),
		invalidationsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "router",
				Subsystem: "route_cache",
				Name:      "invalidations_total",
				Help: "Total number of " +
					"project invalidations",
			},
		),
		entriesGauge: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "router",
				Subsystem: "route_cache",
				Name:      "entries",
				Help: "Current number of " +
					"cached project entries",
			},
		),
		fetchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "router",
				Subsystem: "route_cache",
				Name: "fetch_duration" +
					"_seconds",
				Help: "Duration of route " +
					"store fetches",
				Buckets: []float64{
					.001, .005, .01, .025,
					.05, .1, .25, .5, 1, 2.5, 5,
				},
			},
			[]string{"outcome"},
		),
	}
}
