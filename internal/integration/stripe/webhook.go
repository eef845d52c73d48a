package stripe

import (
	"encoding/json"

	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/gateway"
	"github.com/lm-legal/payments/internal/types"
	"github.com/samber/lo"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// parseEvent verifies the Stripe-Signature header and normalizes the event
func parseEvent(payload []byte, signature string, secret string) (*gateway.VerifiedEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid webhook signature or payload").
			WithReportableDetails(map[string]any{
				"provider": types.PaymentProviderStripe,
			}).
			Mark(ierr.ErrInvalidSignature)
	}

	verified := &gateway.VerifiedEvent{
		Provider:  types.PaymentProviderStripe,
		EventID:   event.ID,
		EventType: string(event.Type),
		Kind:      types.WebhookEventKindIgnored,
	}
	if event.Data == nil {
		return verified, nil
	}

	switch string(event.Type) {
	case types.StripeEventCheckoutSessionCompleted,
		types.StripeEventCheckoutSessionAsyncPaymentOK,
		types.StripeEventCheckoutSessionAsyncPaymentFailed,
		types.StripeEventCheckoutSessionExpired:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Malformed checkout session in webhook").
				Mark(ierr.ErrInvalidSignature)
		}
		verified.ProviderReference = session.ID
		verified.PaymentID = metadataPaymentID(session.Metadata, session.ClientReferenceID)
		verified.Kind, verified.FailureReason = sessionEventKind(string(event.Type), &session)

	case types.StripeEventChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Malformed charge in webhook").
				Mark(ierr.ErrInvalidSignature)
		}
		// charges carry the payment intent metadata, not the session id
		verified.PaymentID = metadataPaymentID(charge.Metadata, "")
		if charge.Refunded {
			verified.Kind = types.WebhookEventKindRefunded
		}
	}

	return verified, nil
}

func sessionEventKind(eventType string, session *stripe.CheckoutSession) (types.WebhookEventKind, *string) {
	switch eventType {
	case types.StripeEventCheckoutSessionCompleted:
		// delayed methods complete the session unpaid and settle later
		if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
			return types.WebhookEventKindCompleted, nil
		}
		return types.WebhookEventKindIgnored, nil
	case types.StripeEventCheckoutSessionAsyncPaymentOK:
		return types.WebhookEventKindCompleted, nil
	case types.StripeEventCheckoutSessionAsyncPaymentFailed:
		return types.WebhookEventKindFailed, lo.ToPtr("asynchronous payment failed")
	case types.StripeEventCheckoutSessionExpired:
		return types.WebhookEventKindFailed, lo.ToPtr("checkout session expired")
	default:
		return types.WebhookEventKindIgnored, nil
	}
}

func metadataPaymentID(metadata map[string]string, fallback string) int64 {
	raw := metadata[gateway.MetadataPaymentID]
	if raw == "" {
		raw = fallback
	}
	id, ok := types.ParseID(raw)
	if !ok {
		return 0
	}
	return id
}
