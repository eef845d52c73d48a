package middleware

import (
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/lm-legal/payments/internal/config"
	"github.com/lm-legal/payments/internal/types"
)

// SentryMiddleware attaches a hub to every request so errors reported later
// in the chain are grouped per request
func SentryMiddleware(cfg *config.Configuration) gin.HandlerFunc {
	if !cfg.Sentry.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return sentrygin.New(sentrygin.Options{
		Repanic: true,
		Timeout: 2 * time.Second,
	})
}

// SentryScopeMiddleware tags the request hub with the request id and the
// authenticated caller. It runs after AuthenticateMiddleware.
func SentryScopeMiddleware(c *gin.Context) {
	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		ctx := c.Request.Context()
		hub.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetTag("request_id", types.GetRequestID(ctx))
			if userID := types.GetUserID(ctx); userID != 0 {
				scope.SetUser(sentry.User{ID: strconv.FormatInt(userID, 10)})
			}
		})
	}
	c.Next()
}
