package v1

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lm-legal/payments/internal/api/dto"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/service"
	"github.com/lm-legal/payments/internal/types"
)

type PaymentHandler struct {
	checkout service.CheckoutService
	payments service.PaymentService
	invoices service.InvoiceService
	log      *logger.Logger
}

func NewPaymentHandler(
	checkout service.CheckoutService,
	payments service.PaymentService,
	invoices service.InvoiceService,
	log *logger.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		checkout: checkout,
		payments: payments,
		invoices: invoices,
		log:      log,
	}
}

// @Summary Start a checkout
// @Description Creates a pending payment for a case and returns the provider redirect
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param checkout body dto.CheckoutRequest true "Case and plan to pay for"
// @Success 201 {object} dto.CheckoutResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 403 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Failure 503 {object} ierr.ErrorResponse
// @Router /payments/checkout [post]
func (h *PaymentHandler) CreateCheckout(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.checkout.CreateCheckout(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary List my payments
// @Description Lists the caller's payments, newest first
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param filter query types.QueryFilter false "Pagination"
// @Success 200 {object} dto.ListPaymentsResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Router /payments [get]
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	filter := types.NewPaymentFilter()
	if err := c.ShouldBindQuery(filter.QueryFilter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid pagination parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.payments.ListPayments(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get a payment
// @Description Returns one payment owned by the caller
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Payment ID"
// @Success 200 {object} dto.PaymentResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /payments/{id} [get]
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	id, err := paymentIDParam(c)
	if err != nil {
		c.Error(err)
		return
	}

	resp, err := h.payments.GetPayment(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get payment status
// @Description Read-only status used by the return page after the provider redirect
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Payment ID"
// @Success 200 {object} dto.PaymentStatusResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /payments/{id}/status [get]
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	id, err := paymentIDParam(c)
	if err != nil {
		c.Error(err)
		return
	}

	resp, err := h.payments.GetStatus(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get the invoice of a payment
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Payment ID"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /payments/{id}/invoice [get]
func (h *PaymentHandler) GetInvoice(c *gin.Context) {
	id, err := paymentIDParam(c)
	if err != nil {
		c.Error(err)
		return
	}

	resp, err := h.invoices.GetInvoice(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Download the invoice document
// @Tags Payments
// @Produce html
// @Security BearerAuth
// @Param id path int true "Payment ID"
// @Success 200 {file} file
// @Failure 404 {object} ierr.ErrorResponse
// @Router /payments/{id}/invoice/download [get]
func (h *PaymentHandler) DownloadInvoice(c *gin.Context) {
	id, err := paymentIDParam(c)
	if err != nil {
		c.Error(err)
		return
	}

	doc, err := h.invoices.DownloadInvoice(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	c.Data(http.StatusOK, doc.ContentType, doc.Data)
}

func paymentIDParam(c *gin.Context) (int64, error) {
	raw := c.Param("id")
	id, ok := types.ParseID(raw)
	if !ok {
		return 0, ierr.NewErrorf("invalid payment id %q", raw).
			WithHint("Payment ID must be a positive number").
			Mark(ierr.ErrValidation)
	}
	return id, nil
}
