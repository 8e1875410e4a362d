package health

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HealthMetrics holds Prometheus collectors for the probe endpoints.
type HealthMetrics struct {
	probesTotal *prometheus.CounterVec
	probeStatus *prometheus.GaugeVec
}

var (
	healthMetricsInstance *HealthMetrics
	healthMetricsOnce     sync.Once
)

// GetHealthMetrics returns the singleton health metrics instance.
func GetHealthMetrics() *HealthMetrics {
	healthMetricsOnce.Do(func() {
		healthMetricsInstance = &HealthMetrics{
			probesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "router",
					Subsystem: "health",
					Name:      "probes_total",
					Help:      "Total number of liveness and readiness probes served",
				},
				[]string{"type"},
			),
			probeStatus: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: "router",
					Subsystem: "health",
					Name:      "probe_status",
					Help:      "Latest result per readiness probe (1=healthy, 0=failing)",
				},
				[]string{"check"},
			),
		}
	})
	return healthMetricsInstance
}

// RecordProbe counts one served probe of the given type.
func (m *HealthMetrics) RecordProbe(probeType string) {
	m.probesTotal.WithLabelValues(probeType).Inc()
}

// SetProbeStatus records the latest result of a readiness probe.
func (m *HealthMetrics) SetProbeStatus(check string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	m.probeStatus.WithLabelValues(check).Set(v)
}

// MustRegister registers the health collectors with the given
// registry. promauto registers with the global default registry, but
// the ops server serves /metrics from the router's own registry, so
// this bridges the two.
func (m *HealthMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.probesTotal,
		m.probeStatus,
	)
}

// Init pre-populates the probe type labels so the series appear in
// /metrics output before the first probe arrives.
func (m *HealthMetrics) Init() {
	for _, probeType := range []string{"liveness", "readiness"} {
		m.probesTotal.WithLabelValues(probeType)
	}
}
