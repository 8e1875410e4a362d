package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/polyroute/polyroute/internal/observability"
	"github.com/polyroute/polyroute/internal/route"
	"github.com/polyroute/polyroute/internal/util"
)

const storeTracerName = "polyroute/store"

// redisPingTimeout bounds the connection check at construction.
const redisPingTimeout = 5 * time.Second

// RedisOptions configures the Redis route store.
type RedisOptions struct {
	// Address is the host:port of the Redis server.
	Address string

	// Password authenticates the connection, empty for none.
	Password string

	// DB selects the Redis database.
	DB int

	// PoolSize caps the connection pool. Zero uses the client default.
	PoolSize int

	// KeyPrefix namespaces all keys. Defaults to "polyroute:".
	KeyPrefix string
}

// RedisStore stores route definitions in Redis, one hash per project
// at <prefix>routes:<projectID> with the route id as field and the
// definition JSON as value. Hash fields are unordered, so listings
// sort by route id to keep match precedence deterministic.
type RedisStore struct {
	logger    observability.Logger
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore connects to Redis and verifies the connection with a
// ping before returning.
func NewRedisStore(opts RedisOptions, logger observability.Logger) (*RedisStore, error) {
	if opts.Address == "" {
		return nil, errors.New("redis address is required")
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})

	if err := pingRedis(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	keyPrefix := opts.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "polyroute:"
	}

	s := &RedisStore{
		logger:    logger,
		client:    client,
		keyPrefix: keyPrefix,
	}

	logger.Info("redis route store initialized",
		observability.String("address", opts.Address),
		observability.String("keyPrefix", keyPrefix),
		observability.Int("db", opts.DB))

	return s, nil
}

// pingRedis tests the Redis connection with a timeout.
func pingRedis(client *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	return client.Ping(ctx).Err()
}

// routesKey returns the hash key holding a project's routes.
func (s *RedisStore) routesKey(projectID string) string {
	return s.keyPrefix + "routes:" + projectID
}

// ListRoutes returns all route definitions of a project sorted by
// route id.
func (s *RedisStore) ListRoutes(ctx context.Context, projectID string) ([]route.RouteDefinition, error) {
	ctx, span := otel.Tracer(storeTracerName).Start(ctx, "store.ListRoutes",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("store.backend", "redis"),
			attribute.String("store.project_id", projectID),
		),
	)
	defer span.End()

	fields, err := s.client.HGetAll(ctx, s.routesKey(projectID)).Result()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		s.logger.Error("redis list routes failed",
			observability.String("project_id", projectID),
			observability.Error(err))
		return nil, fmt.Errorf("list routes for project %s: %w", projectID, err)
	}

	defs := make([]route.RouteDefinition, 0, len(fields))
	for id, raw := range fields {
		var def route.RouteDefinition
		if err := json.Unmarshal([]byte(raw), &def); err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
			return nil, fmt.Errorf("decode route %s of project %s: %w", id, projectID, err)
		}
		defs = append(defs, def)
	}

	sort.Slice(defs, func(i, j int) bool {
		return defs[i].ID < defs[j].ID
	})

	span.SetAttributes(attribute.Int("store.route_count", len(defs)))

	return defs, nil
}

// GetRoute returns one route definition or util.ErrNotFound.
func (s *RedisStore) GetRoute(ctx context.Context, projectID, routeID string) (*route.RouteDefinition, error) {
	ctx, span := otel.Tracer(storeTracerName).Start(ctx, "store.GetRoute",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("store.backend", "redis"),
			attribute.String("store.project_id", projectID),
			attribute.String("store.route_id", routeID),
		),
	)
	defer span.End()

	raw, err := s.client.HGet(ctx, s.routesKey(projectID), routeID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("route %s of project %s: %w", routeID, projectID, util.ErrNotFound)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return nil, fmt.Errorf("get route %s of project %s: %w", routeID, projectID, err)
	}

	var def route.RouteDefinition
	if err := json.Unmarshal([]byte(raw), &def); err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return nil, fmt.Errorf("decode route %s of project %s: %w", routeID, projectID, err)
	}

	return &def, nil
}

// PutRoute writes a whole route definition, replacing any existing
// one under the same id.
func (s *RedisStore) PutRoute(ctx context.Context, projectID string, def route.RouteDefinition) error {
	ctx, span := otel.Tracer(storeTracerName).Start(ctx, "store.PutRoute",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("store.backend", "redis"),
			attribute.String("store.project_id", projectID),
			attribute.String("store.route_id", def.ID),
		),
	)
	defer span.End()

	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode route %s: %w", def.ID, err)
	}

	if err := s.client.HSet(ctx, s.routesKey(projectID), def.ID, raw).Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		s.logger.Error("redis put route failed",
			observability.String("project_id", projectID),
			observability.String("route_id", def.ID),
			observability.Error(err))
		return fmt.Errorf("put route %s of project %s: %w", def.ID, projectID, err)
	}

	s.logger.Debug("route stored",
		observability.String("project_id", projectID),
		observability.String("route_id", def.ID))

	return nil
}

// DeleteRoute removes one route definition. Deleting an absent route
// returns util.ErrNotFound.
func (s *RedisStore) DeleteRoute(ctx context.Context, projectID, routeID string) error {
	ctx, span := otel.Tracer(storeTracerName).Start(ctx, "store.DeleteRoute",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("store.backend", "redis"),
			attribute.String("store.project_id", projectID),
			attribute.String("store.route_id", routeID),
		),
	)
	defer span.End()

	removed, err := s.client.HDel(ctx, s.routesKey(projectID), routeID).Result()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return fmt.Errorf("delete route %s of project %s: %w", routeID, projectID, err)
	}
	if removed == 0 {
		return fmt.Errorf("route %s of project %s: %w", routeID, projectID, util.ErrNotFound)
	}

	s.logger.Debug("route deleted",
		observability.String("project_id", projectID),
		observability.String("route_id", routeID))

	return nil
}

// Ping verifies the Redis connection is still usable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	s.logger.Info("redis route store closing")
	return s.client.Close()
}
