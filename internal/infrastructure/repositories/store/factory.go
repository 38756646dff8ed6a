package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	domainerrors "crypto-price-monitor/internal/domain/errors"
	"crypto-price-monitor/internal/domain/interfaces"
	"crypto-price-monitor/internal/infrastructure/config"
	"crypto-price-monitor/internal/infrastructure/logging"
)

// Backend tipo de implementación del tier durable
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendRedis    Backend = "redis"
	BackendPostgres Backend = "postgres"
)

const connectTimeout = 5 * time.Second

// NewStore crea el tier durable según la configuración
func NewStore(ctx context.Context, cfg config.StoreConfig) (interfaces.PriceStore, error) {
	switch Backend(strings.ToLower(cfg.Backend)) {
	case BackendMemory:
		logging.Info(ctx, "Creating memory price store", logging.Fields{
			"backend": "memory",
		})
		return NewMemoryStore(), nil

	case BackendRedis:
		logging.Info(ctx, "Creating Redis price store", logging.Fields{
			"backend":    "redis",
			"addr":       cfg.Redis.Addr,
			"database":   cfg.Redis.DB,
			"key_prefix": cfg.Redis.KeyPrefix,
		})
		return newRedisStore(ctx, cfg.Redis)

	case BackendPostgres:
		logging.Info(ctx, "Creating Postgres price store", logging.Fields{
			"backend":   "postgres",
			"max_conns": cfg.Postgres.MaxConns,
		})
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		return NewPostgresStore(connectCtx, cfg.Postgres)

	default:
		return nil, fmt.Errorf("%w: unsupported store backend: %s", domainerrors.ErrInvalidConfiguration, cfg.Backend)
	}
}

// newRedisStore crea el cliente y prueba la conexión
func newRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}

	logging.Info(ctx, "Redis connection established successfully", logging.Fields{
		"addr":     cfg.Addr,
		"database": cfg.DB,
	})
	return NewRedisStore(rdb, cfg.KeyPrefix), nil
}
