package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, StoreBackendRedis, cfg.StoreBackend)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL.Duration())
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout.Duration())
	assert.Equal(t, "X-API-Key", cfg.APIKeyHeader)
	assert.True(t, cfg.MetricsEnabled)
	assert.False(t, cfg.DebugMode)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid default",
			mutate: func(c *Config) {},
		},
		{
			name:   "valid file store",
			mutate: func(c *Config) { c.StoreBackend = StoreBackendFile; c.RouteFilePath = "routes.yaml" },
		},
		{
			name:    "invalid http port",
			mutate:  func(c *Config) { c.HTTPPort = 0 },
			wantErr: "HTTPPort",
		},
		{
			name:    "metrics port collides",
			mutate:  func(c *Config) { c.MetricsPort = c.HTTPPort },
			wantErr: "MetricsPort must differ",
		},
		{
			name:    "unknown store backend",
			mutate:  func(c *Config) { c.StoreBackend = "dynamo" },
			wantErr: "invalid StoreBackend",
		},
		{
			name:    "file store without path",
			mutate:  func(c *Config) { c.StoreBackend = StoreBackendFile; c.RouteFilePath = "" },
			wantErr: "RouteFilePath is required",
		},
		{
			name:    "redis store without address",
			mutate:  func(c *Config) { c.RedisAddress = "" },
			wantErr: "RedisAddress is required",
		},
		{
			name:    "zero cache ttl",
			mutate:  func(c *Config) { c.CacheTTL = 0 },
			wantErr: "CacheTTL",
		},
		{
			name:    "zero fetch timeout",
			mutate:  func(c *Config) { c.FetchTimeout = 0 },
			wantErr: "FetchTimeout",
		},
		{
			name:    "invoker url without scheme",
			mutate:  func(c *Config) { c.InvokerBaseURL = "localhost:9000" },
			wantErr: "InvokerBaseURL",
		},
		{
			name:    "zero invoke timeout",
			mutate:  func(c *Config) { c.InvokeTimeout = 0 },
			wantErr: "InvokeTimeout",
		},
		{
			name: "breaker enabled without failures",
			mutate: func(c *Config) {
				c.CircuitBreakerEnabled = true
				c.CircuitBreakerMaxFailures = 0
			},
			wantErr: "CircuitBreakerMaxFailures",
		},
		{
			name:    "unknown hash algorithm",
			mutate:  func(c *Config) { c.APIKeyHashAlgorithm = "md5" },
			wantErr: "invalid APIKeyHashAlgorithm",
		},
		{
			name: "no api key source",
			mutate: func(c *Config) {
				c.APIKeyHeader = ""
				c.APIKeyQueryParam = ""
			},
			wantErr: "at least one of APIKeyHeader",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: "invalid LogLevel",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.LogFormat = "text" },
			wantErr: "invalid LogFormat",
		},
		{
			name:    "tracing without endpoint",
			mutate:  func(c *Config) { c.TracingEnabled = true; c.OTLPEndpoint = "" },
			wantErr: "OTLPEndpoint is required",
		},
		{
			name: "sample rate out of range",
			mutate: func(c *Config) {
				c.TracingEnabled = true
				c.OTLPEndpoint = "localhost:4317"
				c.TracingSampleRate = 1.5
			},
			wantErr: "TracingSampleRate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
