package postgres

import (
	"context"
	"time"

	"github.com/lm-legal/payments/internal/domain/webhookevent"
	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/postgres"
	"github.com/lm-legal/payments/internal/types"
)

const webhookEventColumns = `id, provider, provider_event_id, event_type, signature_valid, delivery_count,
	outcome, payment_id, processing_error, received_at, processed_at`

type webhookEventRepository struct {
	db  *postgres.DB
	log *logger.Logger
}

func NewWebhookEventRepository(db *postgres.DB, log *logger.Logger) webhookevent.Repository {
	return &webhookEventRepository{db: db, log: log}
}

func (r *webhookEventRepository) Record(ctx context.Context, d *webhookevent.Delivery) (*webhookevent.Delivery, error) {
	if d.ReceivedAt.IsZero() {
		d.ReceivedAt = time.Now().UTC()
	}

	// Deliveries without a provider event id (unverifiable payloads) are
	// always recorded as new rows
	query := `
		INSERT INTO webhook_events (provider, provider_event_id, event_type, signature_valid, outcome, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider, provider_event_id) WHERE provider_event_id IS NOT NULL
		DO UPDATE SET
			delivery_count = webhook_events.delivery_count + 1,
			signature_valid = EXCLUDED.signature_valid,
			received_at = EXCLUDED.received_at
		RETURNING ` + webhookEventColumns

	var stored webhookevent.Delivery
	err := r.db.GetQuerier(ctx).GetContext(ctx, &stored, query,
		d.Provider,
		d.ProviderEventID,
		d.EventType,
		d.SignatureValid,
		d.Outcome,
		d.ReceivedAt,
	)
	if err != nil {
		return nil, postgres.WrapError(err, "Failed to record webhook delivery")
	}

	if stored.DeliveryCount > 1 {
		r.log.Infow("webhook redelivered",
			"provider", stored.Provider,
			"event_id", stored.ProviderEventID,
			"delivery_count", stored.DeliveryCount,
		)
	}
	return &stored, nil
}

func (r *webhookEventRepository) Complete(
	ctx context.Context,
	id int64,
	outcome types.WebhookOutcome,
	paymentID *int64,
	processingErr *string,
) error {
	query := `
		UPDATE webhook_events
		SET outcome = $2, payment_id = COALESCE($3, payment_id), processing_error = $4, processed_at = $5
		WHERE id = $1`

	_, err := r.db.GetQuerier(ctx).ExecContext(ctx, query, id, outcome, paymentID, processingErr, time.Now().UTC())
	if err != nil {
		return postgres.WrapError(err, "Failed to complete webhook delivery")
	}
	return nil
}
