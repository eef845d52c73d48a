package postgres

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/lm-legal/payments/internal/domain/outbox"
	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/postgres"
)

type outboxRepository struct {
	db  *postgres.DB
	log *logger.Logger
}

func NewOutboxRepository(db *postgres.DB, log *logger.Logger) outbox.Repository {
	return &outboxRepository{db: db, log: log}
}

func (r *outboxRepository) Create(ctx context.Context, e *outbox.Event) error {
	query, args := psql().
		Insert(tableOutboxEvents).
		Columns("id", "topic", "aggregate_id", "payload", "created_at").
		Values(e.ID, e.Topic, e.AggregateID, e.Payload, e.CreatedAt).
		Query()

	if _, err := r.db.GetQuerier(ctx).ExecContext(ctx, query, args...); err != nil {
		return postgres.WrapError(err, "Failed to record outbox event")
	}

	r.log.Debugw("recorded outbox event",
		"event_id", e.ID,
		"topic", e.Topic,
		"aggregate_id", e.AggregateID,
	)
	return nil
}

func (r *outboxRepository) ClaimUnpublished(ctx context.Context, limit int) ([]*outbox.Event, error) {
	query, args := psql().
		Select("id", "topic", "aggregate_id", "payload", "created_at", "published_at", "attempts", "last_error").
		From(entsql.Table(tableOutboxEvents)).
		Where(entsql.IsNull("published_at")).
		OrderBy("created_at").
		Limit(limit).
		ForUpdate(entsql.WithLockAction(entsql.SkipLocked)).
		Query()

	var events []*outbox.Event
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &events, query, args...); err != nil {
		return nil, postgres.WrapError(err, "Failed to claim outbox events")
	}
	return events, nil
}

func (r *outboxRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	query, args := psql().
		Update(tableOutboxEvents).
		Set("published_at", at).
		Add("attempts", 1).
		Where(entsql.EQ("id", id)).
		Query()

	if _, err := r.db.GetQuerier(ctx).ExecContext(ctx, query, args...); err != nil {
		return postgres.WrapError(err, "Failed to mark outbox event published")
	}
	return nil
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	query, args := psql().
		Update(tableOutboxEvents).
		Set("last_error", reason).
		Add("attempts", 1).
		Where(entsql.EQ("id", id)).
		Query()

	if _, err := r.db.GetQuerier(ctx).ExecContext(ctx, query, args...); err != nil {
		return postgres.WrapError(err, "Failed to record outbox failure")
	}
	return nil
}
