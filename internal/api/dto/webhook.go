package dto

import "github.com/lm-legal/payments/internal/types"

// WebhookResponse acknowledges a provider delivery
type WebhookResponse struct {
	Received bool                 `json:"received"`
	Outcome  types.WebhookOutcome `json:"outcome"`
}
