// Package config provides configuration management for the router.
// Configuration is loaded from a YAML file with environment variable
// substitution, on top of defaults from DefaultConfig.
package config

import (
	"fmt"
	"time"

	"github.com/polyroute/polyroute/internal/util"
)

// Config holds all configuration settings for the router.
type Config struct {
	// Server settings
	HTTPPort    int `json:"httpPort" yaml:"httpPort"`
	MetricsPort int `json:"metricsPort" yaml:"metricsPort"`

	// Server timeouts
	ReadTimeout     Duration `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout    Duration `json:"writeTimeout" yaml:"writeTimeout"`
	IdleTimeout     Duration `json:"idleTimeout" yaml:"idleTimeout"`
	ShutdownTimeout Duration `json:"shutdownTimeout" yaml:"shutdownTimeout"`

	// Routing
	DebugMode bool `json:"debugMode" yaml:"debugMode"`

	// Route store
	StoreBackend   string   `json:"storeBackend" yaml:"storeBackend"` // redis, file
	StoreKeyPrefix string   `json:"storeKeyPrefix" yaml:"storeKeyPrefix"`
	RedisAddress   string   `json:"redisAddress" yaml:"redisAddress"`
	RedisPassword  string   `json:"redisPassword" yaml:"redisPassword"`
	RedisDB        int      `json:"redisDB" yaml:"redisDB"`
	RedisPoolSize  int      `json:"redisPoolSize" yaml:"redisPoolSize"`
	RouteFilePath  string   `json:"routeFilePath" yaml:"routeFilePath"`
	RouteFileWatch bool     `json:"routeFileWatch" yaml:"routeFileWatch"`
	StoreTimeout   Duration `json:"storeTimeout" yaml:"storeTimeout"`

	// Route cache
	CacheTTL     Duration `json:"cacheTTL" yaml:"cacheTTL"`
	FetchTimeout Duration `json:"fetchTimeout" yaml:"fetchTimeout"`

	// Invoker
	InvokerBaseURL             string   `json:"invokerBaseURL" yaml:"invokerBaseURL"`
	InvokeTimeout              Duration `json:"invokeTimeout" yaml:"invokeTimeout"`
	InvokerMaxIdleConns        int      `json:"invokerMaxIdleConns" yaml:"invokerMaxIdleConns"`
	InvokerMaxIdleConnsPerHost int      `json:"invokerMaxIdleConnsPerHost" yaml:"invokerMaxIdleConnsPerHost"`
	InvokerIdleConnTimeout     Duration `json:"invokerIdleConnTimeout" yaml:"invokerIdleConnTimeout"`

	// Circuit breaker
	CircuitBreakerEnabled     bool     `json:"circuitBreakerEnabled" yaml:"circuitBreakerEnabled"`
	CircuitBreakerMaxFailures int      `json:"circuitBreakerMaxFailures" yaml:"circuitBreakerMaxFailures"`
	CircuitBreakerTimeout     Duration `json:"circuitBreakerTimeout" yaml:"circuitBreakerTimeout"`
	CircuitBreakerHalfOpenMax int      `json:"circuitBreakerHalfOpenMax" yaml:"circuitBreakerHalfOpenMax"`

	// Authentication - API Key
	APIKeyHeader        string   `json:"apiKeyHeader" yaml:"apiKeyHeader"`
	APIKeyQueryParam    string   `json:"apiKeyQueryParam" yaml:"apiKeyQueryParam"`
	APIKeyHashAlgorithm string   `json:"apiKeyHashAlgorithm" yaml:"apiKeyHashAlgorithm"` // plaintext, sha256, sha512, bcrypt
	APIKeys             []string `json:"apiKeys" yaml:"apiKeys"`

	// Observability - Logging
	LogLevel         string `json:"logLevel" yaml:"logLevel"`
	LogFormat        string `json:"logFormat" yaml:"logFormat"`
	LogOutput        string `json:"logOutput" yaml:"logOutput"`
	AccessLogEnabled bool   `json:"accessLogEnabled" yaml:"accessLogEnabled"`

	// Observability - Tracing
	TracingEnabled    bool    `json:"tracingEnabled" yaml:"tracingEnabled"`
	OTLPEndpoint      string  `json:"otlpEndpoint" yaml:"otlpEndpoint"`
	TracingSampleRate float64 `json:"tracingSampleRate" yaml:"tracingSampleRate"`
	ServiceName       string  `json:"serviceName" yaml:"serviceName"`

	// Observability - Metrics
	MetricsEnabled bool   `json:"metricsEnabled" yaml:"metricsEnabled"`
	MetricsPath    string `json:"metricsPath" yaml:"metricsPath"`
}

// Store backend names.
const (
	StoreBackendRedis = "redis"
	StoreBackendFile  = "file"
)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		HTTPPort:    8080,
		MetricsPort: 9091,

		ReadTimeout:     Duration(30 * time.Second),
		WriteTimeout:    Duration(30 * time.Second),
		IdleTimeout:     Duration(120 * time.Second),
		ShutdownTimeout: Duration(30 * time.Second),

		DebugMode: false,

		StoreBackend:   StoreBackendRedis,
		StoreKeyPrefix: "polyroute:",
		RedisAddress:   "localhost:6379",
		RedisDB:        0,
		RedisPoolSize:  10,
		RouteFileWatch: true,
		StoreTimeout:   Duration(5 * time.Second),

		CacheTTL:     Duration(30 * time.Second),
		FetchTimeout: Duration(5 * time.Second),

		InvokerBaseURL:             "http://localhost:9000/functions",
		InvokeTimeout:              Duration(30 * time.Second),
		InvokerMaxIdleConns:        100,
		InvokerMaxIdleConnsPerHost: 10,
		InvokerIdleConnTimeout:     Duration(90 * time.Second),

		CircuitBreakerEnabled:     false,
		CircuitBreakerMaxFailures: 5,
		CircuitBreakerTimeout:     Duration(30 * time.Second),
		CircuitBreakerHalfOpenMax: 2,

		APIKeyHeader:        "X-API-Key",
		APIKeyQueryParam:    "api_key",
		APIKeyHashAlgorithm: "sha256",

		LogLevel:         "info",
		LogFormat:        "json",
		LogOutput:        "stdout",
		AccessLogEnabled: true,

		TracingEnabled:    false,
		TracingSampleRate: 1.0,
		ServiceName:       "polyroute",

		MetricsEnabled: true,
		MetricsPath:    "/metrics",
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if err := c.validatePorts(); err != nil {
		return err
	}

	if err := c.validateStore(); err != nil {
		return err
	}

	if err := c.validateCache(); err != nil {
		return err
	}

	if err := c.validateInvoker(); err != nil {
		return err
	}

	if err := c.validateAuth(); err != nil {
		return err
	}

	return c.validateObservability()
}

func (c *Config) validatePorts() error {
	if err := util.ValidatePort(c.HTTPPort); err != nil {
		return fmt.Errorf("HTTPPort: %w", err)
	}
	if c.MetricsEnabled {
		if err := util.ValidatePort(c.MetricsPort); err != nil {
			return fmt.Errorf("MetricsPort: %w", err)
		}
		if c.MetricsPort == c.HTTPPort {
			return fmt.Errorf("MetricsPort must differ from HTTPPort")
		}
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.StoreBackend {
	case StoreBackendRedis:
		if c.RedisAddress == "" {
			return fmt.Errorf("RedisAddress is required when StoreBackend is redis")
		}
	case StoreBackendFile:
		if c.RouteFilePath == "" {
			return fmt.Errorf("RouteFilePath is required when StoreBackend is file")
		}
	default:
		return fmt.Errorf("invalid StoreBackend: %s, must be one of: redis, file", c.StoreBackend)
	}

	if err := util.ValidatePositiveDuration(c.StoreTimeout.Duration()); err != nil {
		return fmt.Errorf("StoreTimeout: %w", err)
	}

	return nil
}

func (c *Config) validateCache() error {
	if err := util.ValidatePositiveDuration(c.CacheTTL.Duration()); err != nil {
		return fmt.Errorf("CacheTTL: %w", err)
	}
	if err := util.ValidatePositiveDuration(c.FetchTimeout.Duration()); err != nil {
		return fmt.Errorf("FetchTimeout: %w", err)
	}
	return nil
}

func (c *Config) validateInvoker() error {
	if err := util.ValidateURL(c.InvokerBaseURL); err != nil {
		return fmt.Errorf("InvokerBaseURL: %w", err)
	}
	if err := util.ValidatePositiveDuration(c.InvokeTimeout.Duration()); err != nil {
		return fmt.Errorf("InvokeTimeout: %w", err)
	}

	if c.CircuitBreakerEnabled {
		if c.CircuitBreakerMaxFailures <= 0 {
			return fmt.Errorf("CircuitBreakerMaxFailures must be positive")
		}
		if err := util.ValidatePositiveDuration(c.CircuitBreakerTimeout.Duration()); err != nil {
			return fmt.Errorf("CircuitBreakerTimeout: %w", err)
		}
	}

	return nil
}

func (c *Config) validateAuth() error {
	validAlgorithms := map[string]bool{
		"plaintext": true,
		"sha256":    true,
		"sha512":    true,
		"bcrypt":    true,
	}
	if !validAlgorithms[c.APIKeyHashAlgorithm] {
		return fmt.Errorf("invalid APIKeyHashAlgorithm: %s, must be one of: plaintext, sha256, sha512, bcrypt",
			c.APIKeyHashAlgorithm)
	}
	if c.APIKeyHeader == "" && c.APIKeyQueryParam == "" {
		return fmt.Errorf("at least one of APIKeyHeader or APIKeyQueryParam must be set")
	}
	return nil
}

func (c *Config) validateObservability() error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid LogLevel: %s, must be one of: debug, info, warn, error", c.LogLevel)
	}

	validLogFormats := map[string]bool{
		"json":    true,
		"console": true,
	}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("invalid LogFormat: %s, must be one of: json, console", c.LogFormat)
	}

	validLogOutputs := map[string]bool{
		"stdout": true,
		"stderr": true,
	}
	if c.LogOutput != "" && !validLogOutputs[c.LogOutput] {
		// Allow file paths as well
		if c.LogOutput[0] != '/' && c.LogOutput[0] != '.' {
			return fmt.Errorf("invalid LogOutput: %s, must be stdout, stderr, or a file path", c.LogOutput)
		}
	}

	if c.TracingEnabled {
		if c.OTLPEndpoint == "" {
			return fmt.Errorf("OTLPEndpoint is required when tracing is enabled")
		}
		if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
			return fmt.Errorf("TracingSampleRate must be between 0 and 1, got: %f", c.TracingSampleRate)
		}
	}

	return nil
}
