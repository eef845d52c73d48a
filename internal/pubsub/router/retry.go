package router

import (
	"context"
	"net"
	"net/http"

	"github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/httpclient"
	"github.com/lm-legal/payments/internal/logger"
)

// shouldRetry reports whether a consumer error is transient. Business errors
// would fail the same way on every attempt.
func shouldRetry(logger *logger.Logger, err error) bool {
	if httpErr, ok := httpclient.IsHTTPError(err); ok {
		switch httpErr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			logger.Debugw("retrying due to HTTP error",
				"status_code", httpErr.StatusCode,
				"error", httpErr,
			)
			return true
		}
		logger.Debugw("non-retryable HTTP error",
			"status_code", httpErr.StatusCode,
			"error", httpErr,
		)
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		logger.Debugw("retrying due to network timeout", "error", netErr)
		return true
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	if errors.IsDatabase(err) {
		logger.Debugw("retrying due to database error", "error", err)
		return true
	}

	if errors.IsValidation(err) ||
		errors.IsNotFound(err) ||
		errors.IsPermissionDenied(err) ||
		errors.IsInvalidOperation(err) {
		return false
	}

	return true
}
