package cache

import (
	"context"
	"testing"
	"time"

	"github.com/lm-legal/payments/internal/config"
	"github.com/stretchr/testify/assert"
)

func newTestCache(enabled bool) Cache {
	return NewInMemoryCache(&config.Configuration{
		Cache: config.CacheConfig{Enabled: enabled, TTL: time.Minute},
	})
}

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(true)

	c.Set(ctx, GenerateKey(PrefixPlan, 1), "basic", 0)
	c.Set(ctx, GenerateKey(PrefixPlan, 2), "premium", 0)
	c.Set(ctx, GenerateKey(PrefixPlanList, "active"), []string{"basic"}, 0)

	v, ok := c.Get(ctx, "plan:v1:1")
	assert.True(t, ok)
	assert.Equal(t, "basic", v)

	c.DeleteByPrefix(ctx, PrefixPlan)
	_, ok = c.Get(ctx, GenerateKey(PrefixPlan, 2))
	assert.False(t, ok)
	_, ok = c.Get(ctx, GenerateKey(PrefixPlanList, "active"))
	assert.True(t, ok)
}

func TestInMemoryCacheDisabled(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(false)

	c.Set(ctx, "k", "v", 0)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}
