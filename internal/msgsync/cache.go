package msgsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	logx "jobpulse/pkg/logx"
)

const DefaultCacheTTL = 10 * time.Minute

// ChannelCache maps webhook keys (id bound to its token) to channel ids. Implementations must be
// safe for concurrent use. A cache failure is a miss, never an error.
type ChannelCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, channelID string)
}

// NopCache never remembers anything.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (string, bool) { return "", false }
func (NopCache) Set(context.Context, string, string)        {}

type memEntry struct {
	channelID string
	expires   time.Time
}

// MemoryCache is an in-process TTL cache.
type MemoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	items map[string]memEntry
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{ttl: ttl, now: time.Now, items: make(map[string]memEntry)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok {
		return "", false
	}
	if !c.now().Before(e.expires) {
		delete(c.items, key)
		return "", false
	}
	return e.channelID, true
}

func (c *MemoryCache) Set(_ context.Context, key, channelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	// sweep on write so dead webhooks do not pile up
	for k, e := range c.items {
		if !now.Before(e.expires) {
			delete(c.items, k)
		}
	}
	c.items[key] = memEntry{channelID: channelID, expires: now.Add(c.ttl)}
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// RedisCache shares resolutions between bot instances.
type RedisCache struct {
	c      *redis.Client
	prefix string
	ttl    time.Duration
	log    logx.Logger
}

func NewRedisCache(addr string, db int, prefix string, ttl time.Duration, log logx.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if prefix == "" {
		prefix = "jobpulse:webhook:"
	}
	return &RedisCache{
		c:      redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		prefix: prefix,
		ttl:    ttl,
		log:    log.With(logx.String("comp", "msgsync.cache.redis")),
	}
}

func (r *RedisCache) Close() error { return r.c.Close() }

// Ping checks connectivity; used at startup so a bad address is reported early.
func (r *RedisCache) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }

func (r *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	v, err := r.c.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Debug("cache get failed", logx.String("key", key), logx.Err(err))
		}
		return "", false
	}
	return v, v != ""
}

func (r *RedisCache) Set(ctx context.Context, key, channelID string) {
	if err := r.c.Set(ctx, r.prefix+key, channelID, r.ttl).Err(); err != nil {
		r.log.Debug("cache set failed", logx.String("key", key), logx.Err(err))
	}
}
