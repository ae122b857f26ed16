package entitlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL bounds how stale a cached access decision may be.
// Webhook processing invalidates eagerly, so the TTL only matters when
// an invalidation is missed.
const DefaultCacheTTL = 5 * time.Minute

const cacheKeyPrefix = "entitlement:premium:"

// Cache is a redis-backed store for premium access decisions. All
// operations are best-effort: a cache failure is logged and treated as a
// miss, never surfaced to the caller.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCacheTTL overrides the default decision TTL.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// NewCache creates a decision cache backed by the given redis client.
// Panics if client is nil.
func NewCache(client *redis.Client, log *slog.Logger, opts ...CacheOption) *Cache {
	if client == nil {
		panic("entitlement: redis client is required")
	}
	if log == nil {
		log = slog.Default()
	}

	c := &Cache{
		client: client,
		ttl:    DefaultCacheTTL,
		log:    log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached decision and whether one was present.
func (c *Cache) Get(ctx context.Context, userID uuid.UUID) (granted bool, ok bool) {
	val, err := c.client.Get(ctx, cacheKeyPrefix+userID.String()).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.WarnContext(ctx, "entitlement cache read failed",
				slog.String("user_id", userID.String()),
				slog.String("error", err.Error()))
		}
		return false, false
	}
	return val == "1", true
}

// Set stores a decision for the configured TTL.
func (c *Cache) Set(ctx context.Context, userID uuid.UUID, granted bool) {
	val := "0"
	if granted {
		val = "1"
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+userID.String(), val, c.ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "entitlement cache write failed",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
	}
}

// Invalidate removes any cached decision for the user.
func (c *Cache) Invalidate(ctx context.Context, userID uuid.UUID) {
	if err := c.client.Del(ctx, cacheKeyPrefix+userID.String()).Err(); err != nil {
		c.log.WarnContext(ctx, "entitlement cache invalidation failed",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
	}
}
