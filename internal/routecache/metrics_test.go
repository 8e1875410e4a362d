package routecache

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCacheMetrics_Singleton(t *testing.T) {
	m1 := GetCacheMetrics()
	m2 := GetCacheMetrics()

	require.NotNil(t, m1)
	assert.Same(t, m1, m2, "should return same instance")
}

func TestGetCacheMetrics_AllFieldsInitialized(t *testing.T) {
	m := GetCacheMetrics()

	require.NotNil(t, m)
	assert.NotNil(t, m.hitsTotal, "hitsTotal should be initialized")
	assert.NotNil(t, m.missesTotal, "missesTotal should be initialized")
	assert.NotNil(t, m.coalescedTotal, "coalescedTotal should be initialized")
	assert.NotNil(t, m.invalidationsTotal, "invalidationsTotal should be initialized")
	assert.NotNil(t, m.entriesGauge, "entriesGauge should be initialized")
	assert.NotNil(t, m.fetchDuration, "fetchDuration should be initialized")
}

func TestCacheMetrics_RecordHit(t *testing.T) {
	m := GetCacheMetrics()

	before := testutil.ToFloat64(m.hitsTotal)
	m.hitsTotal.Inc()
	after := testutil.ToFloat64(m.hitsTotal)

	assert.Equal(t, before+1, after, "hitsTotal should increment by 1")
}

func TestCacheMetrics_RecordInvalidation(t *testing.T) {
	m := GetCacheMetrics()

	before := testutil.ToFloat64(m.invalidationsTotal)
	m.invalidationsTotal.Inc()
	after := testutil.ToFloat64(m.invalidationsTotal)

	assert.Equal(t, before+1, after, "invalidationsTotal should increment by 1")
}

func TestCacheMetrics_MustRegister(t *testing.T) {
	m := GetCacheMetrics()
	registry := prometheus.NewRegistry()

	assert.NotPanics(t, func() {
		m.MustRegister(registry)
	})

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["router_route_cache_hits_total"])
	assert.True(t, names["router_route_cache_invalidations_total"])
}

func TestCacheMetrics_Init(t *testing.T) {
	m := GetCacheMetrics()

	assert.NotPanics(t, func() {
		m.Init()
		m.Init()
	})
}
