package store

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/PriceImport/internal/config"
	"github.com/JonMunkholm/PriceImport/internal/core"
)

// Stores bundles the persistence a binary needs.
type Stores struct {
	Pool     *pgxpool.Pool
	Products core.Repository
	History  *HistoryStore

	redis *redis.Client
}

// Open connects to Postgres, applies the schema when configured and puts the
// Redis sku cache in front of the product repository when Redis is configured
// and reachable. An unreachable Redis only disables the cache.
func Open(ctx context.Context, cfg *config.Config) (*Stores, error) {
	pool, err := Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	if cfg.Database.EnsureSchema {
		if err := EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	s := &Stores{
		Pool:     pool,
		Products: NewProductRepository(pool),
		History:  NewHistoryStore(pool),
	}

	if cfg.Redis.Enabled() {
		client := NewRedisClient(cfg.Redis)
		if err := client.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unavailable, sku cache disabled", "addr", cfg.Redis.Addr, "error", err)
			client.Close()
		} else {
			s.redis = client
			s.Products = NewCachedRepository(s.Products, NewRedisKV(client), cfg.Redis.TTL, cfg.Redis.Prefix)
			slog.Info("sku cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL)
		}
	}
	return s, nil
}

// Ping checks the database connection.
func (s *Stores) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

// Close releases the pool and the Redis client.
func (s *Stores) Close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			slog.Warn("close redis", "error", err)
		}
	}
	s.Pool.Close()
}
