package service

import (
	"net/http"
	"testing"

	"github.com/lm-legal/payments/internal/api/dto"
	"github.com/lm-legal/payments/internal/domain/payment"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/gateway"
	"github.com/lm-legal/payments/internal/testutil"
	"github.com/lm-legal/payments/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type WebhookServiceSuite struct {
	testutil.BaseServiceTestSuite
	ledger   LedgerService
	checkout CheckoutService
	service  WebhookService
}

func TestWebhookService(t *testing.T) {
	suite.Run(t, new(WebhookServiceSuite))
}

func (s *WebhookServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	s.ledger = NewLedgerService(params)
	s.checkout = NewCheckoutService(params, s.ledger)
	s.service = NewWebhookService(params, s.ledger)

	s.SeedUser(testutil.TestUserID, "client@example.com")
	s.SeedCase(42, testutil.TestUserID)
	s.SeedPlan(7, "4.99")
	s.GetStores().PaymentRepo.SetNextID(101)
}

func (s *WebhookServiceSuite) openCheckout(method types.PaymentMethod) *dto.CheckoutResponse {
	resp, err := s.checkout.CreateCheckout(s.GetContext(), dto.CheckoutRequest{CaseID: 42, PlanID: 7, Method: method})
	s.Require().NoError(err)
	return resp
}

func (s *WebhookServiceSuite) deliver(provider types.PaymentProvider, event gateway.VerifiedEvent) (*dto.WebhookResponse, error) {
	payload, headers := testutil.MockDelivery(event)
	return s.service.ProcessDelivery(s.GetContext(), provider.String(), payload, headers)
}

func (s *WebhookServiceSuite) TestCompletedEventCompletesPayment() {
	co := s.openCheckout(types.PaymentMethodCard)

	resp, err := s.deliver(types.PaymentProviderStripe, gateway.VerifiedEvent{
		EventID:           "evt_1",
		EventType:         "checkout.session.completed",
		Kind:              types.WebhookEventKindCompleted,
		ProviderReference: co.ProviderSessionID,
	})
	s.Require().NoError(err)
	s.True(resp.Received)
	s.Equal(types.WebhookOutcomeApplied, resp.Outcome)

	p, err := s.ledger.GetPayment(s.GetContext(), co.PaymentID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusCompleted, p.Status)
	s.NotNil(p.CompletedAt)

	deliveries := s.GetStores().WebhookEventRepo.All()
	s.Require().Len(deliveries, 1)
	s.True(deliveries[0].SignatureValid)
	s.Equal(types.WebhookOutcomeApplied, deliveries[0].Outcome)
	s.Equal(co.PaymentID, lo.FromPtr(deliveries[0].PaymentID))
}

func (s *WebhookServiceSuite) TestRedeliveryTransitionsOnce() {
	co := s.openCheckout(types.PaymentMethodCard)
	event := gateway.VerifiedEvent{
		EventID:           "evt_1",
		EventType:         "checkout.session.completed",
		Kind:              types.WebhookEventKindCompleted,
		ProviderReference: co.ProviderSessionID,
	}

	outcomes := make([]types.WebhookOutcome, 0, 3)
	for range 3 {
		resp, err := s.deliver(types.PaymentProviderStripe, event)
		s.Require().NoError(err)
		outcomes = append(outcomes, resp.Outcome)
	}

	s.Equal([]types.WebhookOutcome{
		types.WebhookOutcomeApplied,
		types.WebhookOutcomeNoop,
		types.WebhookOutcomeNoop,
	}, outcomes)
	s.Len(s.GetStores().OutboxRepo.ByTopic(types.TopicPaymentCompleted), 1)

	deliveries := s.GetStores().WebhookEventRepo.All()
	s.Require().Len(deliveries, 1)
	s.Equal(3, deliveries[0].DeliveryCount)
}

func (s *WebhookServiceSuite) TestLateFailureDoesNotUndoCompletion() {
	co := s.openCheckout(types.PaymentMethodCard)

	_, err := s.deliver(types.PaymentProviderStripe, gateway.VerifiedEvent{
		EventID: "evt_1", Kind: types.WebhookEventKindCompleted, ProviderReference: co.ProviderSessionID,
	})
	s.Require().NoError(err)

	resp, err := s.deliver(types.PaymentProviderStripe, gateway.VerifiedEvent{
		EventID: "evt_2", Kind: types.WebhookEventKindFailed, ProviderReference: co.ProviderSessionID,
		FailureReason: lo.ToPtr("session expired"),
	})
	s.Require().NoError(err)
	s.Equal(types.WebhookOutcomeNoop, resp.Outcome)

	p, err := s.ledger.GetPayment(s.GetContext(), co.PaymentID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusCompleted, p.Status)
}

func (s *WebhookServiceSuite) TestFailedEventRecordsReason() {
	co := s.openCheckout(types.PaymentMethodCard)

	resp, err := s.deliver(types.PaymentProviderStripe, gateway.VerifiedEvent{
		EventID: "evt_1", Kind: types.WebhookEventKindFailed, ProviderReference: co.ProviderSessionID,
		FailureReason: lo.ToPtr("card declined"),
	})
	s.Require().NoError(err)
	s.Equal(types.WebhookOutcomeApplied, resp.Outcome)

	p, err := s.ledger.GetPayment(s.GetContext(), co.PaymentID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusFailed, p.Status)
	s.Equal("card declined", lo.FromPtr(p.FailureReason))
	s.Empty(s.GetStores().OutboxRepo.ByTopic(types.TopicPaymentCompleted))
}

func (s *WebhookServiceSuite) TestRefundResolvesByPaymentID() {
	co := s.openCheckout(types.PaymentMethodCard)
	_, err := s.deliver(types.PaymentProviderStripe, gateway.VerifiedEvent{
		EventID: "evt_1", Kind: types.WebhookEventKindCompleted, ProviderReference: co.ProviderSessionID,
	})
	s.Require().NoError(err)

	// refunds reference the payment intent, not the session
	resp, err := s.deliver(types.PaymentProviderStripe, gateway.VerifiedEvent{
		EventID: "evt_2", EventType: "charge.refunded", Kind: types.WebhookEventKindRefunded,
		ProviderReference: "pi_123", PaymentID: co.PaymentID,
	})
	s.Require().NoError(err)
	s.Equal(types.WebhookOutcomeApplied, resp.Outcome)

	p, err := s.ledger.GetPayment(s.GetContext(), co.PaymentID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusRefunded, p.Status)
	s.Len(s.GetStores().OutboxRepo.ByTopic(types.TopicPaymentRefunded), 1)
}

func (s *WebhookServiceSuite) TestRefundOfPendingPaymentIsNoop() {
	co := s.openCheckout(types.PaymentMethodCard)

	resp, err := s.deliver(types.PaymentProviderStripe, gateway.VerifiedEvent{
		EventID: "evt_1", Kind: types.WebhookEventKindRefunded, ProviderReference: co.ProviderSessionID,
	})
	s.Require().NoError(err)
	s.Equal(types.WebhookOutcomeNoop, resp.Outcome)
}

func (s *WebhookServiceSuite) TestInvalidSignatureIsAuditedOnly() {
	co := s.openCheckout(types.PaymentMethodCard)
	payload, _ := testutil.MockDelivery(gateway.VerifiedEvent{
		EventID: "evt_1", Kind: types.WebhookEventKindCompleted, ProviderReference: co.ProviderSessionID,
	})
	headers := http.Header{}
	headers.Set(testutil.MockSignatureHeader, "forged")

	_, err := s.service.ProcessDelivery(s.GetContext(), "stripe", payload, headers)
	s.Error(err)
	s.True(ierr.IsInvalidSignature(err))

	p, err := s.ledger.GetPayment(s.GetContext(), co.PaymentID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusPending, p.Status)

	deliveries := s.GetStores().WebhookEventRepo.All()
	s.Require().Len(deliveries, 1)
	s.False(deliveries[0].SignatureValid)
	s.Equal(types.WebhookOutcomeInvalidSignature, deliveries[0].Outcome)
	s.NotNil(deliveries[0].ProcessingError)
}

func (s *WebhookServiceSuite) TestUnknownPaymentIsAcknowledged() {
	resp, err := s.deliver(types.PaymentProviderStripe, gateway.VerifiedEvent{
		EventID: "evt_1", Kind: types.WebhookEventKindCompleted, ProviderReference: "cs_unknown",
	})
	s.Require().NoError(err)
	s.True(resp.Received)
	s.Equal(types.WebhookOutcomePaymentNotFound, resp.Outcome)
}

func (s *WebhookServiceSuite) TestPaymentOfOtherProviderIsNotMatched() {
	co := s.openCheckout(types.PaymentMethodCard)

	resp, err := s.deliver(types.PaymentProviderPayPal, gateway.VerifiedEvent{
		EventID: "evt_1", Kind: types.WebhookEventKindCompleted, PaymentID: co.PaymentID,
	})
	s.Require().NoError(err)
	s.Equal(types.WebhookOutcomePaymentNotFound, resp.Outcome)

	p, err := s.ledger.GetPayment(s.GetContext(), co.PaymentID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusPending, p.Status)
}

func (s *WebhookServiceSuite) TestIgnoredEventType() {
	resp, err := s.deliver(types.PaymentProviderStripe, gateway.VerifiedEvent{
		EventID: "evt_1", EventType: "customer.created", Kind: types.WebhookEventKindIgnored,
	})
	s.Require().NoError(err)
	s.Equal(types.WebhookOutcomeIgnored, resp.Outcome)
}

func (s *WebhookServiceSuite) TestUnknownProvider() {
	_, err := s.service.ProcessDelivery(s.GetContext(), "adyen", []byte(`{}`), http.Header{})
	s.Error(err)
	s.True(ierr.IsNotFound(err))
	s.Empty(s.GetStores().WebhookEventRepo.All())
}

func (s *WebhookServiceSuite) TestApprovedWalletOrderIsCaptured() {
	co := s.openCheckout(types.PaymentMethodWallet)

	resp, err := s.deliver(types.PaymentProviderPayPal, gateway.VerifiedEvent{
		EventID: "WH-1", EventType: "CHECKOUT.ORDER.APPROVED", Kind: types.WebhookEventKindApproved,
		ProviderReference: co.ProviderSessionID,
	})
	s.Require().NoError(err)
	s.Equal(types.WebhookOutcomeFinalized, resp.Outcome)
	s.Equal(1, s.GetWalletGateway().CaptureAttempts(co.ProviderSessionID))

	// approval alone does not complete the payment
	p, err := s.ledger.GetPayment(s.GetContext(), co.PaymentID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusPending, p.Status)

	resp, err = s.deliver(types.PaymentProviderPayPal, gateway.VerifiedEvent{
		EventID: "WH-2", EventType: "PAYMENT.CAPTURE.COMPLETED", Kind: types.WebhookEventKindCompleted,
		ProviderReference: co.ProviderSessionID,
	})
	s.Require().NoError(err)
	s.Equal(types.WebhookOutcomeApplied, resp.Outcome)

	// a late approval redelivery does not capture again
	resp, err = s.deliver(types.PaymentProviderPayPal, gateway.VerifiedEvent{
		EventID: "WH-1", EventType: "CHECKOUT.ORDER.APPROVED", Kind: types.WebhookEventKindApproved,
		ProviderReference: co.ProviderSessionID,
	})
	s.Require().NoError(err)
	s.Equal(types.WebhookOutcomeNoop, resp.Outcome)
	s.Equal(1, s.GetWalletGateway().CaptureAttempts(co.ProviderSessionID))
}

func (s *WebhookServiceSuite) TestCaptureFailureIsReported() {
	co := s.openCheckout(types.PaymentMethodWallet)
	s.GetWalletGateway().FinalizeErr = ierr.NewError("paypal down").Mark(ierr.ErrProviderUnavailable)

	_, err := s.deliver(types.PaymentProviderPayPal, gateway.VerifiedEvent{
		EventID: "WH-1", Kind: types.WebhookEventKindApproved, ProviderReference: co.ProviderSessionID,
	})
	s.Error(err)

	deliveries := s.GetStores().WebhookEventRepo.All()
	s.Require().Len(deliveries, 1)
	s.Equal(types.WebhookOutcomeError, deliveries[0].Outcome)
	s.Equal(co.PaymentID, lo.FromPtr(deliveries[0].PaymentID))
}

func (s *WebhookServiceSuite) TestDeclinedCaptureFailsPayment() {
	co := s.openCheckout(types.PaymentMethodWallet)
	s.GetWalletGateway().FinalizeErr = payment.ErrCaptureDeclined(types.PaymentProviderPayPal, co.ProviderSessionID, "INSTRUMENT_DECLINED")

	event := gateway.VerifiedEvent{
		EventID: "WH-2", Kind: types.WebhookEventKindApproved, ProviderReference: co.ProviderSessionID,
	}
	resp, err := s.deliver(types.PaymentProviderPayPal, event)
	s.Require().NoError(err)
	s.Equal(types.WebhookOutcomeApplied, resp.Outcome)

	p, err := s.ledger.GetPayment(s.GetContext(), co.PaymentID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusFailed, p.Status)
	s.Contains(lo.FromPtr(p.FailureReason), "INSTRUMENT_DECLINED")
	s.Empty(s.GetStores().OutboxRepo.ByTopic(types.TopicPaymentCompleted))

	// redeliveries are acknowledged without another capture attempt
	for range 2 {
		resp, err = s.deliver(types.PaymentProviderPayPal, event)
		s.Require().NoError(err)
		s.Equal(types.WebhookOutcomeNoop, resp.Outcome)
	}
	s.Equal(1, s.GetWalletGateway().CaptureAttempts(co.ProviderSessionID))
}

func (s *WebhookServiceSuite) TestRejectedCaptureIsAcknowledged() {
	co := s.openCheckout(types.PaymentMethodWallet)
	s.GetWalletGateway().FinalizeErr = ierr.NewError("unprocessable").Mark(ierr.ErrHTTPClient)

	resp, err := s.deliver(types.PaymentProviderPayPal, gateway.VerifiedEvent{
		EventID: "WH-3", Kind: types.WebhookEventKindApproved, ProviderReference: co.ProviderSessionID,
	})
	s.Require().NoError(err)
	s.Equal(types.WebhookOutcomeApplied, resp.Outcome)

	p, err := s.ledger.GetPayment(s.GetContext(), co.PaymentID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusFailed, p.Status)
}
