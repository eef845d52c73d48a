package v1

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/service"
)

// maxWebhookBody bounds a single provider delivery
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	webhooks service.WebhookService
	log      *logger.Logger
}

func NewWebhookHandler(webhooks service.WebhookService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhooks: webhooks,
		log:      log,
	}
}

// @Summary Receive a payment provider webhook
// @Description Verifies the delivery signature and applies the event to the ledger.
// @Description Redeliveries and late events are acknowledged without changes.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param provider path string true "Provider name (stripe or paypal)"
// @Success 200 {object} dto.WebhookResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /payments/webhook/{provider} [post]
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	provider := c.Param("provider")

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		h.log.Warnw("failed to read webhook body", "provider", provider, "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Failed to read request body").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.webhooks.ProcessDelivery(c.Request.Context(), provider, body, c.Request.Header)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
