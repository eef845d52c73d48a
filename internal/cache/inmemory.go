package cache

import (
	"context"
	"strings"
	"time"

	"github.com/lm-legal/payments/internal/config"
	goCache "github.com/patrickmn/go-cache"
)

// DefaultCleanupInterval is how often expired items are removed from the cache
const DefaultCleanupInterval = 10 * time.Minute

// InMemoryCache implements Cache on top of github.com/patrickmn/go-cache.
// A disabled cache misses on every read and drops every write.
type InMemoryCache struct {
	cache   *goCache.Cache
	enabled bool
	ttl     time.Duration
}

var _ Cache = (*InMemoryCache)(nil)

// NewInMemoryCache builds the process wide cache from configuration
func NewInMemoryCache(cfg *config.Configuration) Cache {
	return &InMemoryCache{
		cache:   goCache.New(cfg.Cache.TTL, DefaultCleanupInterval),
		enabled: cfg.Cache.Enabled,
		ttl:     cfg.Cache.TTL,
	}
}

func (c *InMemoryCache) Get(ctx context.Context, key string) (any, bool) {
	if !c.enabled {
		return nil, false
	}

	span := StartCacheSpan(ctx, "memory", "get", map[string]any{"key": key})
	defer FinishSpan(span)

	return c.cache.Get(key)
}

func (c *InMemoryCache) Set(_ context.Context, key string, value any, expiration time.Duration) {
	if !c.enabled {
		return
	}
	if expiration == 0 {
		expiration = c.ttl
	}
	c.cache.Set(key, value, expiration)
}

func (c *InMemoryCache) Delete(_ context.Context, key string) {
	if !c.enabled {
		return
	}
	c.cache.Delete(key)
}

func (c *InMemoryCache) DeleteByPrefix(_ context.Context, prefix string) {
	if !c.enabled {
		return
	}
	for k := range c.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			c.cache.Delete(k)
		}
	}
}

func (c *InMemoryCache) Flush(_ context.Context) {
	if !c.enabled {
		return
	}
	c.cache.Flush()
}
