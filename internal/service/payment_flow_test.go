package service

import (
	"context"
	"testing"
	"time"

	"github.com/lm-legal/payments/internal/api/dto"
	"github.com/lm-legal/payments/internal/document"
	"github.com/lm-legal/payments/internal/gateway"
	"github.com/lm-legal/payments/internal/outbox"
	pubsubRouter "github.com/lm-legal/payments/internal/pubsub/router"
	"github.com/lm-legal/payments/internal/sentry"
	"github.com/lm-legal/payments/internal/testutil"
	"github.com/lm-legal/payments/internal/types"
	"github.com/stretchr/testify/suite"
)

// PaymentFlowSuite runs checkout, webhook, outbox dispatch and the consumers
// against the in-memory bus
type PaymentFlowSuite struct {
	testutil.BaseServiceTestSuite
	checkout   CheckoutService
	webhooks   WebhookService
	payments   PaymentService
	dispatcher *outbox.Dispatcher
	router     *pubsubRouter.Router
	cancel     context.CancelFunc
}

func TestPaymentFlow(t *testing.T) {
	suite.Run(t, new(PaymentFlowSuite))
}

func (s *PaymentFlowSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestServiceParams(&s.BaseServiceTestSuite)

	generator, err := document.NewGenerator()
	s.Require().NoError(err)

	ledger := NewLedgerService(params)
	s.checkout = NewCheckoutService(params, ledger)
	s.webhooks = NewWebhookService(params, ledger)
	s.payments = NewPaymentService(params)
	s.dispatcher = outbox.NewDispatcher(s.GetDB(), s.GetStores().OutboxRepo, s.GetBus(), s.GetConfig(), s.GetLogger(), params.Sentry)

	s.router, err = pubsubRouter.NewRouter(s.GetConfig(), s.GetBus(), s.GetLogger(), sentry.NewSentryService(s.GetConfig(), s.GetLogger()))
	s.Require().NoError(err)
	s.Require().NoError(NewInvoiceService(params, generator).RegisterHandler(s.router))
	s.Require().NoError(NewCaseSyncService(params).RegisterHandler(s.router))
	s.Require().NoError(NewNotificationService(params).RegisterHandler(s.router))

	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	go func() { _ = s.router.Run(ctx) }()
	<-s.router.Running()

	s.SeedUser(testutil.TestUserID, "client@example.com")
	s.SeedCase(42, testutil.TestUserID)
	s.SeedPlan(7, "4.99")
	s.GetStores().PaymentRepo.SetNextID(101)
}

func (s *PaymentFlowSuite) TearDownTest() {
	s.cancel()
	_ = s.router.Close()
	s.BaseServiceTestSuite.TearDownTest()
}

func (s *PaymentFlowSuite) TestPaidCaseGetsOneInvoiceAndAdvancesOnce() {
	co, err := s.checkout.CreateCheckout(s.GetContext(), dto.CheckoutRequest{
		CaseID: 42,
		PlanID: 7,
		Method: types.PaymentMethodCard,
	})
	s.Require().NoError(err)
	s.Equal(int64(101), co.PaymentID)

	status, err := s.payments.GetStatus(s.GetContext(), co.PaymentID)
	s.Require().NoError(err)
	s.False(status.Final)

	payload, headers := testutil.MockDelivery(gateway.VerifiedEvent{
		EventID:           "evt_1",
		EventType:         "checkout.session.completed",
		Kind:              types.WebhookEventKindCompleted,
		ProviderReference: co.ProviderSessionID,
	})
	for range 3 {
		_, err := s.webhooks.ProcessDelivery(s.GetContext(), "stripe", payload, headers)
		s.Require().NoError(err)
	}

	s.Eventually(func() bool {
		if _, err := s.dispatcher.DispatchOnce(context.Background()); err != nil {
			return false
		}
		issued := s.GetStores().OutboxRepo.ByTopic(types.TopicInvoiceIssued)
		return len(issued) == 1 && issued[0].PublishedAt != nil &&
			s.GetStores().CaseRepo.Advances() == 1
	}, 5*time.Second, 20*time.Millisecond)

	s.Len(s.GetStores().InvoiceRepo.All(), 1)
	c, err := s.GetStores().CaseRepo.Get(s.GetContext(), 42)
	s.Require().NoError(err)
	s.Equal(types.CaseStatusProcessing, c.Status)

	status, err = s.payments.GetStatus(s.GetContext(), co.PaymentID)
	s.Require().NoError(err)
	s.True(status.Final)
	s.Equal(types.PaymentStatusCompleted, status.Status)
	s.Require().NotNil(status.InvoiceNumber)

	// the ledger refuses a second payment for the paid case
	_, err = s.checkout.CreateCheckout(s.GetContext(), dto.CheckoutRequest{CaseID: 42, PlanID: 7})
	s.Error(err)
	s.Equal(1, s.GetStores().PaymentRepo.Len())
}
