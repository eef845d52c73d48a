package memory

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/pubsub"
)

// PubSub is the in-process bus used by local mode and by tests. gochannel fans
// every message out to all subscribers of a topic, so all consumers share it.
type PubSub struct {
	pubsub *gochannel.GoChannel
	logger *logger.Logger
}

var (
	_ pubsub.PubSub = (*PubSub)(nil)
	_ pubsub.Bus    = (*PubSub)(nil)
)

// NewPubSub creates a new memory-based pubsub
func NewPubSub(logger *logger.Logger) *PubSub {
	goChannel := gochannel.NewGoChannel(
		gochannel.Config{
			// keep messages published before the router subscribed
			Persistent:          true,
			OutputChannelBuffer: 100,
		},
		logger.WatermillAdapter(),
	)

	return &PubSub{
		pubsub: goChannel,
		logger: logger,
	}
}

func (p *PubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	msg.SetContext(ctx)
	return p.pubsub.Publish(topic, msg)
}

func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return p.pubsub.Subscribe(ctx, topic)
}

func (p *PubSub) Publisher() pubsub.Publisher {
	return p
}

func (p *PubSub) Subscriber(consumer string) (pubsub.Subscriber, error) {
	p.logger.Debugw("attaching in-memory subscriber", "consumer", consumer)
	return noCloseSubscriber{p}, nil
}

// Close closes the underlying channel and every subscription on it
func (p *PubSub) Close() error {
	return p.pubsub.Close()
}

// noCloseSubscriber keeps the router from closing the shared channel when one
// handler stops
type noCloseSubscriber struct {
	*PubSub
}

func (noCloseSubscriber) Close() error {
	return nil
}
