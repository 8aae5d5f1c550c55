package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/baymax-health/internal/config"
	"github.com/wolfman30/baymax-health/internal/conversation"
	"github.com/wolfman30/baymax-health/internal/healthlog"
	"github.com/wolfman30/baymax-health/internal/prescription"
	"github.com/wolfman30/baymax-health/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// ConnectPostgresPool opens and pings a pgx pool. Empty URLs and failed
// connections return nil.
func ConnectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(databaseURL) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres not reachable", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// Stores groups the repositories selected by STORE_BACKEND.
type Stores struct {
	Turns         conversation.TurnStore
	Prescriptions prescription.Repository
	HealthLogs    healthlog.Repository

	closers []func()
}

// Close releases pools and clients opened by BuildStores.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// BuildStores wires turn, prescription and health log storage. The redis
// backend keeps turns in Redis and uses Postgres for the other repositories
// when DATABASE_URL is set.
func BuildStores(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*Stores, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	stores := &Stores{
		Turns:         conversation.NewInMemoryTurnStore(),
		Prescriptions: prescription.NewInMemoryRepository(),
		HealthLogs:    healthlog.NewInMemoryRepository(),
	}

	switch cfg.StoreBackend {
	case appconfig.BackendMemory, "":
		logger.Warn("using in-memory stores; data is lost on restart")
		return stores, nil

	case appconfig.BackendPostgres:
		pool := ConnectPostgresPool(ctx, cfg.DatabaseURL, logger)
		if pool == nil {
			return nil, fmt.Errorf("bootstrap: postgres backend selected but database is unavailable")
		}
		stores.closers = append(stores.closers, pool.Close)
		stores.Turns = conversation.NewPostgresTurnStore(pool)
		stores.Prescriptions = prescription.NewPostgresRepository(pool)
		stores.HealthLogs = healthlog.NewPostgresRepository(pool)
		return stores, nil

	case appconfig.BackendRedis:
		client := BuildRedisClient(ctx, cfg, logger, true)
		if client == nil {
			return nil, fmt.Errorf("bootstrap: redis backend selected but redis is unavailable")
		}
		stores.closers = append(stores.closers, func() { _ = client.Close() })
		stores.Turns = conversation.NewRedisTurnStore(client)
		if pool := ConnectPostgresPool(ctx, cfg.DatabaseURL, logger); pool != nil {
			stores.closers = append(stores.closers, pool.Close)
			stores.Prescriptions = prescription.NewPostgresRepository(pool)
			stores.HealthLogs = healthlog.NewPostgresRepository(pool)
		}
		return stores, nil

	default:
		return nil, fmt.Errorf("bootstrap: unknown store backend %q", cfg.StoreBackend)
	}
}
