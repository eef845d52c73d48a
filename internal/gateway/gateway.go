// Package gateway defines the capability set every payment provider adapter
// offers to the checkout flow and the webhook processor.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/lm-legal/payments/internal/types"
	"github.com/shopspring/decimal"
)

// Metadata keys attached to every provider session
const (
	MetadataPaymentID = "payment_id"
	MetadataCaseID    = "case_id"
	MetadataPlanID    = "plan_id"
	MetadataUserID    = "user_id"
)

// SessionRequest describes the checkout session to open for one pending payment
type SessionRequest struct {
	PaymentID     int64
	Amount        decimal.Decimal
	Currency      string
	Description   string
	CustomerEmail string
	Metadata      map[string]string
	// IdempotencyKey is derived from PaymentID so a retried call returns the
	// session the provider already created
	IdempotencyKey string
	SuccessURL     string
	CancelURL      string
	ExpiresAt      time.Time
}

// Session is the provider side handle of a checkout
type Session struct {
	ProviderSessionID string
	RedirectURL       string
}

// VerifiedEvent is a webhook delivery whose authenticity has been checked
type VerifiedEvent struct {
	Provider  types.PaymentProvider
	EventID   string
	EventType string
	Kind      types.WebhookEventKind
	// ProviderReference is the session or order id the event refers to
	ProviderReference string
	// PaymentID is read from the session metadata, 0 when the provider did not echo it
	PaymentID     int64
	FailureReason *string
}

// Gateway is implemented once per payment provider
type Gateway interface {
	Provider() types.PaymentProvider
	Method() types.PaymentMethod

	// CreateCheckoutSession opens a provider session. Transport failures,
	// provider 5xx and deadline expiry return ErrProviderUnavailable.
	CreateCheckoutSession(ctx context.Context, req *SessionRequest) (*Session, error)

	// VerifyWebhook authenticates a raw delivery. Any failure returns an
	// error marked ErrInvalidSignature.
	VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) (*VerifiedEvent, error)
}

// Finalizer is implemented by providers whose approved orders must be
// captured by the merchant before money moves
type Finalizer interface {
	Finalize(ctx context.Context, providerReference string, idempotencyKey string) error
}
