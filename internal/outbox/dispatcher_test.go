package outbox

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	domainOutbox "github.com/lm-legal/payments/internal/domain/outbox"
	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/pubsub"
	"github.com/lm-legal/payments/internal/pubsub/memory"
	"github.com/lm-legal/payments/internal/sentry"
	"github.com/lm-legal/payments/internal/testutil"
	"github.com/lm-legal/payments/internal/types"
	"github.com/stretchr/testify/suite"
)

type DispatcherSuite struct {
	suite.Suite
	ctx    context.Context
	log    *logger.Logger
	db     *testutil.MockPostgresClient
	store  *testutil.InMemoryOutboxStore
	bus    *memory.PubSub
	dispat *Dispatcher
}

func TestDispatcher(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.ctx = context.Background()
	s.log = logger.NewNopLogger()
	s.db = testutil.NewMockPostgresClient(s.log)
	s.store = testutil.NewInMemoryOutboxStore()
	s.bus = memory.NewPubSub(s.log)

	cfg := testutil.NewTestConfig()
	s.dispat = NewDispatcher(s.db, s.store, s.bus, cfg, s.log, sentry.NewSentryService(cfg, s.log))
}

func (s *DispatcherSuite) TearDownTest() {
	_ = s.bus.Close()
}

func (s *DispatcherSuite) record(topic string, aggregateID int64) *domainOutbox.Event {
	event, err := domainOutbox.NewEvent(topic, aggregateID, domainOutbox.PaymentCompleted{PaymentID: aggregateID})
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, event))
	return event
}

func (s *DispatcherSuite) TestDispatchOncePublishesAndMarks() {
	messages, err := s.bus.Subscribe(s.ctx, types.TopicPaymentCompleted)
	s.Require().NoError(err)

	event := s.record(types.TopicPaymentCompleted, 101)

	n, err := s.dispat.DispatchOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	select {
	case msg := <-messages:
		s.Equal(event.ID, msg.UUID)
		s.Equal("101", msg.Metadata.Get(pubsub.MetadataAggregateID))
		s.JSONEq(string(event.Payload), string(msg.Payload))
		msg.Ack()
	case <-time.After(time.Second):
		s.Fail("message not delivered")
	}

	stored := s.store.ByTopic(types.TopicPaymentCompleted)
	s.Require().Len(stored, 1)
	s.NotNil(stored[0].PublishedAt)
	s.Equal(1, stored[0].Attempts)

	n, err = s.dispat.DispatchOnce(s.ctx)
	s.Require().NoError(err)
	s.Zero(n, "published events are not claimed again")
}

func (s *DispatcherSuite) TestDispatchOnceRespectsBatchSize() {
	for i := int64(1); i <= 12; i++ {
		s.record(types.TopicPaymentCompleted, i)
	}

	n, err := s.dispat.DispatchOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(10, n)

	n, err = s.dispat.DispatchOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)
}

func (s *DispatcherSuite) TestFailedPublishIsRetriedOnNextPoll() {
	flaky := &flakyBus{PubSub: s.bus}
	flaky.failing.Store(true)
	cfg := testutil.NewTestConfig()
	d := NewDispatcher(s.db, s.store, flaky, cfg, s.log, sentry.NewSentryService(cfg, s.log))

	s.record(types.TopicInvoiceIssued, 7)

	n, err := d.DispatchOnce(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)

	stored := s.store.ByTopic(types.TopicInvoiceIssued)
	s.Require().Len(stored, 1)
	s.Nil(stored[0].PublishedAt)
	s.Require().NotNil(stored[0].LastError)
	s.Contains(*stored[0].LastError, "broker down")

	flaky.failing.Store(false)
	n, err = d.DispatchOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *DispatcherSuite) TestStartStop() {
	messages, err := s.bus.Subscribe(s.ctx, types.TopicPaymentRefunded)
	s.Require().NoError(err)

	s.dispat.Start()
	s.record(types.TopicPaymentRefunded, 5)

	select {
	case msg := <-messages:
		msg.Ack()
	case <-time.After(2 * time.Second):
		s.Fail("dispatcher did not publish")
	}

	ctx, cancel := context.WithTimeout(s.ctx, time.Second)
	defer cancel()
	s.NoError(s.dispat.Stop(ctx))
	s.NoError(s.dispat.Stop(ctx), "stopping twice is a no-op")
}

// flakyBus fails every publish while failing is set
type flakyBus struct {
	*memory.PubSub
	failing atomic.Bool
}

func (b *flakyBus) Publisher() pubsub.Publisher {
	return b
}

func (b *flakyBus) Publish(ctx context.Context, topic string, msg *message.Message) error {
	if b.failing.Load() {
		return errors.New("broker down")
	}
	return b.PubSub.Publish(ctx, topic, msg)
}
