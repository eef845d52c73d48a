package types

// WebhookEventKind is the normalized meaning of a provider webhook event
type WebhookEventKind string

const (
	WebhookEventKindCompleted WebhookEventKind = "completed"
	WebhookEventKindFailed    WebhookEventKind = "failed"
	WebhookEventKindRefunded  WebhookEventKind = "refunded"
	// WebhookEventKindApproved means the payer approved the order and the merchant
	// still has to capture it
	WebhookEventKindApproved WebhookEventKind = "approved"
	WebhookEventKindIgnored  WebhookEventKind = "ignored"
)

// TargetStatus maps an event kind onto the ledger status it requests
func (k WebhookEventKind) TargetStatus() (PaymentStatus, bool) {
	switch k {
	case WebhookEventKindCompleted:
		return PaymentStatusCompleted, true
	case WebhookEventKindFailed:
		return PaymentStatusFailed, true
	case WebhookEventKindRefunded:
		return PaymentStatusRefunded, true
	default:
		return "", false
	}
}

// WebhookOutcome is recorded on the delivery audit row
type WebhookOutcome string

const (
	WebhookOutcomeApplied          WebhookOutcome = "applied"
	WebhookOutcomeNoop             WebhookOutcome = "noop"
	WebhookOutcomeIgnored          WebhookOutcome = "ignored"
	WebhookOutcomePaymentNotFound  WebhookOutcome = "payment_not_found"
	WebhookOutcomeFinalized        WebhookOutcome = "finalized"
	WebhookOutcomeInvalidSignature WebhookOutcome = "invalid_signature"
	WebhookOutcomeError            WebhookOutcome = "error"
)

// Stripe webhook event types handled by the card gateway
const (
	StripeEventCheckoutSessionCompleted          = "checkout.session.completed"
	StripeEventCheckoutSessionAsyncPaymentOK     = "checkout.session.async_payment_succeeded"
	StripeEventCheckoutSessionAsyncPaymentFailed = "checkout.session.async_payment_failed"
	StripeEventCheckoutSessionExpired            = "checkout.session.expired"
	StripeEventChargeRefunded                    = "charge.refunded"
)

// PayPal webhook event types handled by the wallet gateway
const (
	PayPalEventOrderApproved    = "CHECKOUT.ORDER.APPROVED"
	PayPalEventOrderVoided      = "CHECKOUT.ORDER.VOIDED"
	PayPalEventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	PayPalEventCaptureDenied    = "PAYMENT.CAPTURE.DENIED"
	PayPalEventCaptureRefunded  = "PAYMENT.CAPTURE.REFUNDED"
)
