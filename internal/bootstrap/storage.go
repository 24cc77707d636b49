package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leadforge/sessionkit/config"
	"github.com/leadforge/sessionkit/internal/adapters/bolt"
	"github.com/leadforge/sessionkit/internal/adapters/memory"
	"github.com/leadforge/sessionkit/internal/adapters/postgres"
	redisadapter "github.com/leadforge/sessionkit/internal/adapters/redis"
	"github.com/leadforge/sessionkit/internal/ports"
	goredis "github.com/redis/go-redis/v9"
)

// Backends holds the constructed backend pair and owns the durable
// backend's underlying resources.
type Backends struct {
	Durable   ports.Backend
	Ephemeral ports.Backend

	closers []func() error
}

// Close releases the durable backend's resources.
func (b *Backends) Close() error {
	var first error
	for _, closeFn := range b.closers {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NewBackends constructs the backend pair for the configured driver. The
// ephemeral side is always process memory.
func NewBackends(ctx context.Context, cfg *config.StorageConfig, logger *slog.Logger) (*Backends, error) {
	backends := &Backends{Ephemeral: memory.NewBackend()}

	switch cfg.Driver {
	case config.StorageDriverBolt:
		store, err := bolt.Open(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("open bolt storage: %w", err)
		}
		backends.Durable = store
		backends.closers = append(backends.closers, store.Close)

	case config.StorageDriverRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		backends.Durable = redisadapter.NewBackendWithPrefix(client, cfg.Redis.KeyPrefix)
		backends.closers = append(backends.closers, client.Close)

	case config.StorageDriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		store := postgres.NewBackend(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		backends.Durable = store
		backends.closers = append(backends.closers, func() error { pool.Close(); return nil })

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}

	logger.InfoContext(ctx, "storage backends ready", "durable_driver", string(cfg.Driver))
	return backends, nil
}
