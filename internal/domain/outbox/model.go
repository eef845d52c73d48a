package outbox

import (
	"context"
	"encoding/json"
	"time"

	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/types"
)

// Event is a message recorded in the same transaction as the state change it
// announces and published afterwards by the dispatcher
type Event struct {
	ID          string     `db:"id"`
	Topic       string     `db:"topic"`
	AggregateID int64      `db:"aggregate_id"`
	Payload     []byte     `db:"payload"`
	CreatedAt   time.Time  `db:"created_at"`
	PublishedAt *time.Time `db:"published_at"`
	Attempts    int        `db:"attempts"`
	LastError   *string    `db:"last_error"`
}

// NewEvent marshals payload into a new unpublished event
func NewEvent(topic string, aggregateID int64, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to encode event").
			Mark(ierr.ErrSystem)
	}
	return &Event{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_OUTBOX_EVENT),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     data,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Repository defines the interface for outbox persistence
type Repository interface {
	// Create must run inside the transaction of the state change
	Create(ctx context.Context, event *Event) error
	// ClaimUnpublished locks up to limit unpublished events for the current
	// transaction, skipping rows claimed by other dispatchers
	ClaimUnpublished(ctx context.Context, limit int) ([]*Event, error)
	MarkPublished(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, reason string) error
}
