package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/PriceImport/internal/config"
	"github.com/JonMunkholm/PriceImport/internal/core"
)

// DefaultCacheTTL applies when a CachedRepository is built without a TTL.
const DefaultCacheTTL = 10 * time.Minute

// ErrCacheMiss is returned by a KV when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

// KV is the key/value surface the cache needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// RedisKV adapts a go-redis client to KV.
type RedisKV struct {
	client redis.UniversalClient
}

// NewRedisKV wraps client.
func NewRedisKV(client redis.UniversalClient) *RedisKV {
	return &RedisKV{client: client}
}

// NewRedisClient builds a client from cfg. The connection is not checked.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return val, err
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// cachedProduct is the JSON form of a lookup. Missing marks a negative entry
// written by older builds; such entries are treated as a miss.
type cachedProduct struct {
	ID      int64  `json:"id"`
	SKU     string `json:"sku"`
	Price   string `json:"price"`
	Missing bool   `json:"missing,omitempty"`
}

// CachedRepository puts a read-through cache in front of sku lookups.
//
// Found products are cached for ttl. Not-found answers are never cached, so a
// sku created elsewhere is visible on the next lookup. Updates go straight to
// the underlying repository and then drop every cached key of the touched
// products. Cache errors are logged and never fail a lookup.
type CachedRepository struct {
	next   core.Repository
	kv     KV
	ttl    time.Duration
	prefix string
	logger *slog.Logger

	mu   sync.Mutex
	keys map[int64]map[string]struct{} // product id -> cached keys
}

// NewCachedRepository wraps next.
func NewCachedRepository(next core.Repository, kv KV, ttl time.Duration, prefix string) *CachedRepository {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if prefix == "" {
		prefix = "priceimport"
	}
	return &CachedRepository{
		next:   next,
		kv:     kv,
		ttl:    ttl,
		prefix: prefix,
		logger: slog.Default().With("component", "sku_cache"),
		keys:   make(map[int64]map[string]struct{}),
	}
}

func (c *CachedRepository) key(sku string, store core.StoreID) string {
	return fmt.Sprintf("%s:product:%d:%s", c.prefix, store, sku)
}

// GetBySKU implements core.Repository.
func (c *CachedRepository) GetBySKU(ctx context.Context, sku string, store core.StoreID) (*core.Product, error) {
	key := c.key(sku, store)

	raw, err := c.kv.Get(ctx, key)
	switch {
	case err == nil:
		var cp cachedProduct
		jsonErr := json.Unmarshal(raw, &cp)
		if jsonErr == nil && !cp.Missing {
			c.remember(cp.ID, key)
			return &core.Product{ID: cp.ID, SKU: cp.SKU, Price: cp.Price, StoreID: store}, nil
		}
		if jsonErr != nil {
			c.logger.Warn("dropping undecodable cache entry", "key", key)
		}
	case !errors.Is(err, ErrCacheMiss):
		c.logger.Warn("cache read failed", "key", key, "error", err)
	}

	p, err := c.next.GetBySKU(ctx, sku, store)
	if err != nil {
		return nil, err
	}

	c.put(ctx, key, cachedProduct{ID: p.ID, SKU: p.SKU, Price: p.Price})
	c.remember(p.ID, key)
	return p, nil
}

// UpdateAttributes implements core.Repository.
func (c *CachedRepository) UpdateAttributes(ctx context.Context, ids []int64, attrs map[string]any, store core.StoreID) error {
	if err := c.next.UpdateAttributes(ctx, ids, attrs, store); err != nil {
		return err
	}
	c.invalidate(ctx, ids)
	return nil
}

// Save implements core.EntitySaver. Repositories without Save are patched
// with the product's price instead.
func (c *CachedRepository) Save(ctx context.Context, p *core.Product) error {
	var err error
	if saver, ok := c.next.(core.EntitySaver); ok {
		err = saver.Save(ctx, p)
	} else {
		err = c.next.UpdateAttributes(ctx, []int64{p.ID}, map[string]any{core.ColumnPrice: p.Price}, p.StoreID)
	}
	if err != nil {
		return err
	}
	c.invalidate(ctx, []int64{p.ID})
	return nil
}

func (c *CachedRepository) put(ctx context.Context, key string, cp cachedProduct) {
	data, err := json.Marshal(cp)
	if err != nil {
		return
	}
	if err := c.kv.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

func (c *CachedRepository) remember(id int64, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keys[id] == nil {
		c.keys[id] = make(map[string]struct{})
	}
	c.keys[id][key] = struct{}{}
}

func (c *CachedRepository) invalidate(ctx context.Context, ids []int64) {
	c.mu.Lock()
	var keys []string
	for _, id := range ids {
		for k := range c.keys[id] {
			keys = append(keys, k)
		}
		delete(c.keys, id)
	}
	c.mu.Unlock()

	if len(keys) == 0 {
		return
	}
	if err := c.kv.Del(ctx, keys...); err != nil {
		c.logger.Warn("cache invalidation failed", "keys", len(keys), "error", err)
	}
}
