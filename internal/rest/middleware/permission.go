package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/types"
)

// RequireRole aborts requests whose authenticated role is not role. It must run
// after AuthenticateMiddleware.
func RequireRole(role string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if types.GetUserRole(ctx) == role {
			c.Next()
			return
		}

		log.Infow("permission denied",
			"user_id", types.GetUserID(ctx),
			"role", types.GetUserRole(ctx),
			"required_role", role,
			"path", c.Request.URL.Path,
		)
		abortWithError(c, http.StatusForbidden, "You are not allowed to access this resource")
	}
}
