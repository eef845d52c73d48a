package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lm-legal/payments/internal/api/dto"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/service"
	"github.com/lm-legal/payments/internal/types"
)

type AdminHandler struct {
	payments service.PaymentService
}

func NewAdminHandler(payments service.PaymentService) *AdminHandler {
	return &AdminHandler{payments: payments}
}

// @Summary List all payments
// @Description Admin listing with status, method, service type and time filters
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param filter query types.PaymentFilter false "Filter"
// @Success 200 {object} dto.ListPaymentsResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 403 {object} ierr.ErrorResponse
// @Router /admin/payments [get]
func (h *AdminHandler) ListPayments(c *gin.Context) {
	filter := types.NewPaymentFilter()
	if err := c.ShouldBindQuery(filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.payments.ListAdminPayments(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Payment statistics
// @Description Count and revenue of completed payments per method over a period
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param period query string false "day, week, month or year"
// @Success 200 {object} dto.PaymentStatsResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 403 {object} ierr.ErrorResponse
// @Router /admin/payments/stats [get]
func (h *AdminHandler) GetStats(c *gin.Context) {
	var req dto.PaymentStatsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid query parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.payments.GetStats(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
