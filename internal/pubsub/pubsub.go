package pubsub

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Publisher defines the interface for publishing domain events
type Publisher interface {
	Publish(ctx context.Context, topic string, msg *message.Message) error
	Close() error
}

// Subscriber defines the interface for consuming domain events. It has the
// shape of message.Subscriber so it plugs straight into a watermill router.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
	Close() error
}

// PubSub combines both Publisher and Subscriber interfaces
type PubSub interface {
	Publisher
	Subscriber
}

// Bus is the event transport between the outbox dispatcher and the consumers
type Bus interface {
	Publisher() Publisher
	// Subscriber returns the subscriber of a named consumer. Every consumer
	// receives every message published on the topics it subscribes to.
	Subscriber(consumer string) (Subscriber, error)
	Close() error
}

// Metadata keys set on every published message
const (
	MetadataTopic       = "topic"
	MetadataAggregateID = "aggregate_id"
)

// NewMessage wraps an outbox payload. The outbox event id becomes the message
// uuid so consumers can correlate redeliveries.
func NewMessage(id string, topic string, aggregateID string, payload []byte) *message.Message {
	msg := message.NewMessage(id, payload)
	msg.Metadata.Set(MetadataTopic, topic)
	msg.Metadata.Set(MetadataAggregateID, aggregateID)
	return msg
}
