package kafka

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cockroachdb/errors"
	"github.com/lm-legal/payments/internal/config"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/pubsub"
)

// Bus publishes and consumes domain events through Kafka
type Bus struct {
	config    *config.Configuration
	logger    *logger.Logger
	publisher message.Publisher

	mu          sync.Mutex
	subscribers []message.Subscriber
}

var _ pubsub.Bus = (*Bus)(nil)

// NewBus connects the publisher. Subscribers are created per consumer on demand.
func NewBus(cfg *config.Configuration, log *logger.Logger) (*Bus, error) {
	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               cfg.Kafka.Brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: GetSaramaConfig(cfg),
		},
		log.WatermillAdapter(),
	)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to connect to the event bus").
			Mark(ierr.ErrSystem)
	}

	return &Bus{
		config:    cfg,
		logger:    log,
		publisher: publisher,
	}, nil
}

func (b *Bus) Publisher() pubsub.Publisher {
	return &producer{publisher: b.publisher}
}

func (b *Bus) Subscriber(consumer string) (pubsub.Subscriber, error) {
	group := ConsumerGroup(b.config, consumer)
	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               b.config.Kafka.Brokers,
			ConsumerGroup:         group,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: GetSaramaConfig(b.config),
		},
		b.logger.WatermillAdapter(),
	)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Failed to create consumer %s", consumer).
			Mark(ierr.ErrSystem)
	}

	b.mu.Lock()
	b.subscribers = append(b.subscribers, subscriber)
	b.mu.Unlock()

	b.logger.Infow("created kafka consumer", "consumer", consumer, "consumer_group", group)
	return subscriber, nil
}

// Close closes the publisher and every subscriber handed out
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs error
	if err := b.publisher.Close(); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	for _, s := range b.subscribers {
		if err := s.Close(); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	b.subscribers = nil
	return errs
}

type producer struct {
	publisher message.Publisher
}

func (p *producer) Publish(ctx context.Context, topic string, msg *message.Message) error {
	msg.SetContext(ctx)
	return p.publisher.Publish(topic, msg)
}

// Close is a no-op, the bus owns the underlying publisher
func (p *producer) Close() error {
	return nil
}
