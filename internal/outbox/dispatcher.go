// Package outbox publishes the events services record in their transactions.
package outbox

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lm-legal/payments/internal/config"
	domainOutbox "github.com/lm-legal/payments/internal/domain/outbox"
	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/postgres"
	"github.com/lm-legal/payments/internal/pubsub"
	"github.com/lm-legal/payments/internal/sentry"
)

// Dispatcher moves unpublished outbox rows onto the event bus. Delivery is at
// least once: a crash between publish and commit republishes the batch, so
// every consumer must be idempotent.
type Dispatcher struct {
	db        postgres.IClient
	repo      domainOutbox.Repository
	publisher pubsub.Publisher
	cfg       *config.Configuration
	logger    *logger.Logger
	sentry    *sentry.Service

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewDispatcher(
	db postgres.IClient,
	repo domainOutbox.Repository,
	bus pubsub.Bus,
	cfg *config.Configuration,
	logger *logger.Logger,
	sentry *sentry.Service,
) *Dispatcher {
	return &Dispatcher{
		db:        db,
		repo:      repo,
		publisher: bus.Publisher(),
		cfg:       cfg,
		logger:    logger,
		sentry:    sentry,
	}
}

// DispatchOnce publishes one batch and returns the number of events published.
// Events that could not be published stay unpublished with their error recorded.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	published := 0

	err := d.db.WithTx(ctx, func(ctx context.Context) error {
		events, err := d.repo.ClaimUnpublished(ctx, d.cfg.Outbox.BatchSize)
		if err != nil {
			return err
		}

		for _, event := range events {
			if err := d.publish(ctx, event); err != nil {
				d.logger.Warnw("failed to publish outbox event",
					"event_id", event.ID,
					"topic", event.Topic,
					"attempts", event.Attempts+1,
					"error", err,
				)
				d.sentry.CaptureWithTags(ctx, err, map[string]string{
					"event_id": event.ID,
					"topic":    event.Topic,
				})
				if err := d.repo.MarkFailed(ctx, event.ID, err.Error()); err != nil {
					return err
				}
				continue
			}

			if err := d.repo.MarkPublished(ctx, event.ID, time.Now().UTC()); err != nil {
				return err
			}
			published++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if published > 0 {
		d.logger.Debugw("dispatched outbox events", "count", published)
	}
	return published, nil
}

func (d *Dispatcher) publish(ctx context.Context, event *domainOutbox.Event) error {
	msg := pubsub.NewMessage(event.ID, event.Topic, strconv.FormatInt(event.AggregateID, 10), event.Payload)
	return backoff.Retry(func() error {
		return d.publisher.Publish(ctx, event.Topic, msg)
	}, d.newBackOff(ctx))
}

func (d *Dispatcher) newBackOff(ctx context.Context) backoff.BackOff {
	retry := d.cfg.EventBus

	b := backoff.NewExponentialBackOff()
	if retry.InitialInterval > 0 {
		b.InitialInterval = retry.InitialInterval
	}
	if retry.MaxInterval > 0 {
		b.MaxInterval = retry.MaxInterval
	}
	if retry.Multiplier > 0 {
		b.Multiplier = retry.Multiplier
	}
	// a failed event is picked up again by the next poll
	b.MaxElapsedTime = d.cfg.Outbox.PollInterval * 5

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(retry.MaxRetries, 0))), ctx)
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// the next one.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Infow("outbox dispatcher started",
		"poll_interval", d.cfg.Outbox.PollInterval,
		"batch_size", d.cfg.Outbox.BatchSize,
	)

	ticker := time.NewTicker(d.cfg.Outbox.PollInterval)
	defer ticker.Stop()

	for {
		for {
			n, err := d.DispatchOnce(ctx)
			if err != nil {
				if ctx.Err() == nil {
					d.logger.Errorw("outbox dispatch failed", "error", err)
				}
				break
			}
			if n < d.cfg.Outbox.BatchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			d.logger.Infow("outbox dispatcher stopped")
			return
		case <-ticker.C:
		}
	}
}

// Start runs the dispatcher in the background until Stop is called
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		d.Run(ctx)
	}(d.done)
}

// Stop cancels the polling loop and waits for the batch in flight
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
