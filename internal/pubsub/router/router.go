package router

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/lm-legal/payments/internal/config"
	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/pubsub"
	"github.com/lm-legal/payments/internal/sentry"
)

// TopicDeadLetter receives messages whose handler kept failing after all retries
const TopicDeadLetter = "events.dlq"

// HandlerFunc handles one decoded bus message
type HandlerFunc func(msg *message.Message) error

// Router manages all message routing
type Router struct {
	router *message.Router
	bus    pubsub.Bus
	logger *logger.Logger
	sentry *sentry.Service
}

// NewRouter creates a new message router with retry, poison queue and panic
// recovery configured from the event bus settings
func NewRouter(cfg *config.Configuration, bus pubsub.Bus, logger *logger.Logger, sentry *sentry.Service) (*Router, error) {
	router, err := message.NewRouter(
		message.RouterConfig{CloseTimeout: cfg.Server.ShutdownTimeout},
		logger.WatermillAdapter(),
	)
	if err != nil {
		return nil, err
	}

	poisonQueue, err := middleware.PoisonQueue(&deadLetterPublisher{bus.Publisher()}, TopicDeadLetter)
	if err != nil {
		return nil, err
	}

	// order matters: the poison queue only sees errors left after all retries
	router.AddMiddleware(
		poisonQueue,
		middleware.Recoverer,
		middleware.CorrelationID,
		middleware.Retry{
			MaxRetries:          cfg.EventBus.MaxRetries,
			InitialInterval:     cfg.EventBus.InitialInterval,
			MaxInterval:         cfg.EventBus.MaxInterval,
			Multiplier:          cfg.EventBus.Multiplier,
			MaxElapsedTime:      cfg.EventBus.MaxElapsedTime,
			RandomizationFactor: 0.5,
			Logger:              logger.WatermillAdapter(),
			OnRetryHook: func(retryNum int, delay time.Duration) {
				logger.Infow("retrying message",
					"retry_number", retryNum,
					"max_retries", cfg.EventBus.MaxRetries,
					"delay", delay,
				)
			},
		}.Middleware,
	)

	return &Router{
		router: router,
		bus:    bus,
		logger: logger,
		sentry: sentry,
	}, nil
}

// AddConsumer subscribes a named consumer to topic. Every consumer gets its own
// subscriber so all of them see every message.
func (r *Router) AddConsumer(
	consumer string,
	topic string,
	handlerFunc HandlerFunc,
	middlewares ...message.HandlerMiddleware,
) error {
	subscriber, err := r.bus.Subscriber(consumer)
	if err != nil {
		return err
	}

	handler := r.router.AddNoPublisherHandler(
		consumer+"."+topic,
		topic,
		subscriber,
		func(msg *message.Message) error {
			err := handlerFunc(msg)
			if err == nil {
				return nil
			}

			if !shouldRetry(r.logger, err) {
				r.logger.Warnw("dropping message after non-retryable error",
					"consumer", consumer,
					"topic", topic,
					"message_uuid", msg.UUID,
					"error", err,
				)
				return nil
			}

			r.sentry.CaptureWithTags(msg.Context(), err, map[string]string{
				"consumer":     consumer,
				"topic":        topic,
				"message_uuid": msg.UUID,
			})
			r.logger.Errorw("handler failed",
				"consumer", consumer,
				"topic", topic,
				"error", err,
				"correlation_id", middleware.MessageCorrelationID(msg),
				"message_uuid", msg.UUID,
			)
			return err
		},
	)

	for _, m := range middlewares {
		handler.AddMiddleware(m)
	}
	return nil
}

// Run blocks until ctx is cancelled or Close is called
func (r *Router) Run(ctx context.Context) error {
	r.logger.Info("starting event router")
	return r.router.Run(ctx)
}

// Running is closed once all handlers are subscribed
func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

// Close gracefully shuts down the router
func (r *Router) Close() error {
	r.logger.Info("closing event router")
	return r.router.Close()
}

// deadLetterPublisher adapts the bus publisher to message.Publisher
type deadLetterPublisher struct {
	publisher pubsub.Publisher
}

func (p *deadLetterPublisher) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		if err := p.publisher.Publish(msg.Context(), topic, msg); err != nil {
			return err
		}
	}
	return nil
}

func (p *deadLetterPublisher) Close() error {
	return nil
}
