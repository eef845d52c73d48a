package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/lm-legal/payments/internal/pyroscope"
)

// PyroscopeMiddleware labels the profile samples of a request with its route
func PyroscopeMiddleware(profiler *pyroscope.Service) gin.HandlerFunc {
	if !profiler.IsEnabled() {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		labels := map[string]string{
			"method":   c.Request.Method,
			"endpoint": c.FullPath(),
		}
		if provider := c.Param("provider"); provider != "" {
			labels["provider"] = provider
		}

		profiler.TagWrapper(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
