package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Cache defines the interface for caching operations
type Cache interface {
	// Get returns the value and whether the key was found
	Get(ctx context.Context, key string) (any, bool)

	// Set adds a value with the given expiration. Zero uses the configured TTL.
	Set(ctx context.Context, key string, value any, expiration time.Duration)

	Delete(ctx context.Context, key string)

	// DeleteByPrefix removes all keys with the given prefix
	DeleteByPrefix(ctx context.Context, prefix string)

	Flush(ctx context.Context)
}

const (
	PrefixPlan      = "plan:v1:"
	PrefixPlanList  = "plan_list:v1:"
	PrefixLegalCase = "legal_case:v1:"
)

// GenerateKey joins prefix and params with colons
func GenerateKey(prefix string, params ...any) string {
	parts := make([]string, len(params)+1)
	parts[0] = strings.TrimSuffix(prefix, ":")

	for i, param := range params {
		parts[i+1] = fmt.Sprintf("%v", param)
	}

	return strings.Join(parts, ":")
}
