package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/types"
)

const safeDetailsPrefix = "__json__:"

// ErrorHandler renders the last handler error as an ErrorResponse with the
// status of its sentinel. Server errors are logged and reported.
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status := ierr.HTTPStatusFromErr(err)
		details := getSafeDetails(err)

		response := ierr.ErrorResponse{
			Success: false,
			Error: ierr.ErrorDetail{
				Display: getDisplayMessage(err),
				Details: details,
			},
		}
		if code, ok := details["code"].(string); ok {
			response.Error.Code = code
		}

		if status >= http.StatusInternalServerError {
			log.Errorw("request failed",
				"error", err,
				"status", status,
				"path", c.Request.URL.Path,
				"request_id", types.GetRequestID(c.Request.Context()),
			)
			if hub := sentrygin.GetHubFromContext(c); hub != nil {
				hub.CaptureException(err)
			}
		}

		c.JSON(status, response)
	}
}

func getDisplayMessage(err error) string {
	// GetAllHints walks the chain outermost first
	for _, hint := range errors.GetAllHints(err) {
		if hint = strings.TrimSpace(hint); hint != "" {
			return hint
		}
	}
	return "An unexpected error occurred"
}

func getSafeDetails(err error) map[string]any {
	details := make(map[string]any)

	for _, sdp := range errors.GetAllSafeDetails(err) {
		for _, payload := range sdp.SafeDetails {
			jsonStr, ok := strings.CutPrefix(payload, safeDetailsPrefix)
			if !ok {
				continue
			}
			var fields map[string]any
			if err := json.Unmarshal([]byte(jsonStr), &fields); err == nil {
				for k, v := range fields {
					details[k] = v
				}
			}
		}
	}

	return details
}

func abortWithError(c *gin.Context, status int, display string) {
	c.AbortWithStatusJSON(status, ierr.ErrorResponse{
		Success: false,
		Error:   ierr.ErrorDetail{Display: display},
	})
}
