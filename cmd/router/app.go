package main

import (
	"context"
	"net/http"
	"sync"

	"github.com/polyroute/polyroute/internal/admin"
	"github.com/polyroute/polyroute/internal/auth"
	"github.com/polyroute/polyroute/internal/config"
	"github.com/polyroute/polyroute/internal/dispatch"
	"github.com/polyroute/polyroute/internal/health"
	"github.com/polyroute/polyroute/internal/invoke"
	"github.com/polyroute/polyroute/internal/observability"
	"github.com/polyroute/polyroute/internal/routecache"
	"github.com/polyroute/polyroute/internal/server"
	"github.com/polyroute/polyroute/internal/store"
)

// routeStore is the store surface the router wires up: route reads
// for the cache, admin mutations, and lifecycle for probes and
// shutdown. Both backends satisfy it.
type routeStore interface {
	store.AdminStore
	Ping(ctx context.Context) error
	Close() error
}

// application bundles everything main wires together so shutdown can
// walk it in order.
type application struct {
	config        *config.Config
	server        *server.Server
	opsServer     *http.Server
	store         routeStore
	fileStore     *store.FileStore
	cache         *routecache.Cache
	healthChecker *health.Checker
	metrics       *observability.Metrics
	tracer        *observability.Tracer
}

// cacheInvalidator breaks the construction cycle between the file
// store watcher and the route cache: the store is built first with
// this hook, the cache is attached once it exists.
type cacheInvalidator struct {
	mu    sync.Mutex
	cache *routecache.Cache
}

func (ci *cacheInvalidator) attach(c *routecache.Cache) {
	ci.mu.Lock()
	ci.cache = c
	ci.mu.Unlock()
}

func (ci *cacheInvalidator) invalidate(projectID string) {
	ci.mu.Lock()
	c := ci.cache
	ci.mu.Unlock()
	if c != nil {
		c.Invalidate(projectID)
	}
}

func initApplication(cfg *config.Config, logger observability.Logger) *application {
	metrics := observability.NewMetrics("router")
	metrics.SetBuildInfo(version, gitCommit, buildTime)
	metrics.InitVecMetrics()
	routecache.GetCacheMetrics().MustRegister(metrics.Registry())
	routecache.GetCacheMetrics().Init()
	health.GetHealthMetrics().MustRegister(metrics.Registry())
	health.GetHealthMetrics().Init()

	tracer := initTracer(cfg, logger)

	invalidator := &cacheInvalidator{}
	st, fileStore := buildStore(cfg, logger, invalidator.invalidate)

	cache := routecache.NewCache(st, routecache.Options{
		TTL:          cfg.CacheTTL.Duration(),
		FetchTimeout: cfg.FetchTimeout.Duration(),
	}, logger)
	invalidator.attach(cache)

	validator, err := auth.NewKeyValidator(auth.Options{
		Header:        cfg.APIKeyHeader,
		QueryParam:    cfg.APIKeyQueryParam,
		HashAlgorithm: cfg.APIKeyHashAlgorithm,
		Keys:          cfg.APIKeys,
	}, logger)
	if err != nil {
		fatalWithSync(logger, "failed to initialize api key validator",
			observability.Error(err))
		return nil
	}

	httpInvoker, err := invoke.NewHTTPInvoker(invoke.HTTPOptions{
		BaseURL:             cfg.InvokerBaseURL,
		Timeout:             cfg.InvokeTimeout.Duration(),
		MaxIdleConns:        cfg.InvokerMaxIdleConns,
		MaxIdleConnsPerHost: cfg.InvokerMaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.InvokerIdleConnTimeout.Duration(),
	}, logger)
	if err != nil {
		fatalWithSync(logger, "failed to initialize invoker",
			observability.String("base_url", cfg.InvokerBaseURL),
			observability.Error(err))
		return nil
	}

	var invoker invoke.Invoker = httpInvoker
	var breaker *invoke.BreakerInvoker
	if cfg.CircuitBreakerEnabled {
		breaker = invoke.NewBreakerInvoker(httpInvoker, invoke.BreakerOptions{
			Name:        "runtime",
			Threshold:   cfg.CircuitBreakerMaxFailures,
			Timeout:     cfg.CircuitBreakerTimeout.Duration(),
			MaxRequests: cfg.CircuitBreakerHalfOpenMax,
		},
			invoke.WithBreakerLogger(logger),
			invoke.WithBreakerStateCallback(metrics.SetCircuitBreakerState))
		invoker = breaker
	}

	dispatcher, err := dispatch.NewDispatcher(dispatch.Config{
		Routes:  cache,
		Invoker: invoker,
		Auth:    validator,
		Metrics: metrics,
		Logger:  logger,
		Debug:   cfg.DebugMode,
	})
	if err != nil {
		fatalWithSync(logger, "failed to initialize dispatcher",
			observability.Error(err))
		return nil
	}

	adminService := admin.NewService(st, logger,
		admin.WithMutationHook(cache.Invalidate))

	checker := health.NewChecker(version, health.WithCheckerLogger(logger))
	checker.RegisterCheck("store", health.StoreCheck(st))
	checker.RegisterNonCriticalCheck("runtime",
		health.RuntimeCheck(cfg.InvokerBaseURL, nil))
	if breaker != nil {
		checker.RegisterNonCriticalCheck("circuit_breaker",
			health.BreakerCheck(breaker.State))
	}

	opts := server.DefaultOptions()
	opts.Port = cfg.HTTPPort
	opts.ReadTimeout = cfg.ReadTimeout.Duration()
	opts.WriteTimeout = cfg.WriteTimeout.Duration()
	opts.IdleTimeout = cfg.IdleTimeout.Duration()
	opts.AccessLog = cfg.AccessLogEnabled
	opts.Tracing = cfg.TracingEnabled
	opts.ServiceName = cfg.ServiceName

	srv, err := server.NewServer(opts, server.Deps{
		Dispatcher: dispatcher,
		Admin:      adminService,
		Metrics:    metrics,
		Logger:     logger,
	})
	if err != nil {
		fatalWithSync(logger, "failed to initialize server",
			observability.Error(err))
		return nil
	}

	return &application{
		config:        cfg,
		server:        srv,
		store:         st,
		fileStore:     fileStore,
		cache:         cache,
		healthChecker: checker,
		metrics:       metrics,
		tracer:        tracer,
	}
}

// buildStore constructs the configured route store backend. The
// second return value is non-nil only for the file backend, whose
// watcher is started later in runRouter.
func buildStore(cfg *config.Config, logger observability.Logger, onChange func(projectID string)) (routeStore, *store.FileStore) {
	switch cfg.StoreBackend {
	case config.StoreBackendRedis:
		st, err := store.NewRedisStore(store.RedisOptions{
			Address:   cfg.RedisAddress,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			PoolSize:  cfg.RedisPoolSize,
			KeyPrefix: cfg.StoreKeyPrefix,
		}, logger)
		if err != nil {
			fatalWithSync(logger, "failed to connect to redis",
				observability.String("address", cfg.RedisAddress),
				observability.Error(err))
			return nil, nil
		}
		return st, nil

	case config.StoreBackendFile:
		opts := []store.FileStoreOption{store.WithLogger(logger)}
		if cfg.RouteFileWatch {
			opts = append(opts, store.WithOnChange(onChange))
		}
		st, err := store.NewFileStore(cfg.RouteFilePath, opts...)
		if err != nil {
			fatalWithSync(logger, "failed to open route file",
				observability.String("path", cfg.RouteFilePath),
				observability.Error(err))
			return nil, nil
		}
		return st, st

	default:
		fatalWithSync(logger, "unknown store backend",
			observability.String("backend", cfg.StoreBackend))
		return nil, nil
	}
}

func initTracer(cfg *config.Config, logger observability.Logger) *observability.Tracer {
	tracerCfg := observability.DefaultTracerConfig()
	tracerCfg.ServiceName = cfg.ServiceName
	tracerCfg.ServiceVersion = version
	tracerCfg.Enabled = cfg.TracingEnabled
	tracerCfg.OTLPEndpoint = cfg.OTLPEndpoint
	tracerCfg.SampleRate = cfg.TracingSampleRate

	tracer, err := observability.NewTracer(context.Background(), tracerCfg)
	if err != nil {
		fatalWithSync(logger, "failed to initialize tracer",
			observability.String("endpoint", cfg.OTLPEndpoint),
			observability.Error(err))
		return nil
	}

	if tracer.Enabled() {
		logger.Info("tracing enabled",
			observability.String("endpoint", cfg.OTLPEndpoint),
			observability.Float64("sample_rate", cfg.TracingSampleRate))
	}

	return tracer
}
