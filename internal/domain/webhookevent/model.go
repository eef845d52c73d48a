package webhookevent

import (
	"context"
	"time"

	"github.com/lm-legal/payments/internal/types"
)

// Delivery is the audit record of one provider webhook event. Redeliveries of
// the same provider event id update the same row.
type Delivery struct {
	ID              int64                 `db:"id"`
	Provider        types.PaymentProvider `db:"provider"`
	ProviderEventID *string               `db:"provider_event_id"`
	EventType       string                `db:"event_type"`
	SignatureValid  bool                  `db:"signature_valid"`
	DeliveryCount   int                   `db:"delivery_count"`
	Outcome         types.WebhookOutcome  `db:"outcome"`
	PaymentID       *int64                `db:"payment_id"`
	ProcessingError *string               `db:"processing_error"`
	ReceivedAt      time.Time             `db:"received_at"`
	ProcessedAt     *time.Time            `db:"processed_at"`
}

// Repository defines the interface for webhook delivery persistence
type Repository interface {
	// Record inserts the delivery or bumps delivery_count of an existing one
	Record(ctx context.Context, d *Delivery) (*Delivery, error)
	// Complete stores the processing outcome
	Complete(ctx context.Context, id int64, outcome types.WebhookOutcome, paymentID *int64, processingErr *string) error
}
