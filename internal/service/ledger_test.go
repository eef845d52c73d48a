package service

import (
	"testing"

	"github.com/lm-legal/payments/internal/domain/payment"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/testutil"
	"github.com/lm-legal/payments/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type LedgerServiceSuite struct {
	testutil.BaseServiceTestSuite
	service LedgerService
}

func TestLedgerService(t *testing.T) {
	suite.Run(t, new(LedgerServiceSuite))
}

func (s *LedgerServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewLedgerService(newTestServiceParams(&s.BaseServiceTestSuite))
}

func (s *LedgerServiceSuite) createPending(caseID int64) *payment.Payment {
	p, err := s.service.CreatePayment(s.GetContext(), CreatePaymentParams{
		UserID:   testutil.TestUserID,
		CaseID:   caseID,
		PlanID:   7,
		Amount:   decimal.RequireFromString("4.99"),
		Method:   types.PaymentMethodCard,
		Provider: types.PaymentProviderStripe,
	})
	s.Require().NoError(err)
	return p
}

func (s *LedgerServiceSuite) TestCreatePayment() {
	p := s.createPending(42)

	s.NotZero(p.ID)
	s.Equal(types.PaymentStatusPending, p.Status)
	s.Equal(types.DefaultCurrency, p.Currency)
	s.Nil(p.ProviderReference)
	s.Nil(p.CompletedAt)
}

func (s *LedgerServiceSuite) TestCreatePaymentValidation() {
	tests := []struct {
		name   string
		params CreatePaymentParams
	}{
		{
			name: "zero amount",
			params: CreatePaymentParams{
				UserID: testutil.TestUserID, CaseID: 1, PlanID: 7,
				Amount: decimal.Zero, Method: types.PaymentMethodCard, Provider: types.PaymentProviderStripe,
			},
		},
		{
			name: "above the configured limit",
			params: CreatePaymentParams{
				UserID: testutil.TestUserID, CaseID: 1, PlanID: 7,
				Amount: decimal.NewFromInt(10001), Method: types.PaymentMethodCard, Provider: types.PaymentProviderStripe,
			},
		},
		{
			name: "missing provider",
			params: CreatePaymentParams{
				UserID: testutil.TestUserID, CaseID: 1, PlanID: 7,
				Amount: decimal.NewFromInt(5), Method: types.PaymentMethodCard,
			},
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.CreatePayment(s.GetContext(), tt.params)
			s.Error(err)
			s.True(ierr.IsValidation(err))
		})
	}
	s.Zero(s.GetStores().PaymentRepo.Len())
}

func (s *LedgerServiceSuite) TestSecondActivePaymentIsRejected() {
	s.createPending(42)

	_, err := s.service.CreatePayment(s.GetContext(), CreatePaymentParams{
		UserID:   testutil.TestUserID,
		CaseID:   42,
		PlanID:   7,
		Amount:   decimal.RequireFromString("4.99"),
		Method:   types.PaymentMethodWallet,
		Provider: types.PaymentProviderPayPal,
	})
	s.Error(err)
	s.True(payment.IsDuplicateActivePayment(err))
	s.Equal(1, s.GetStores().PaymentRepo.Len())
}

func (s *LedgerServiceSuite) TestFailedPaymentAllowsNewPayment() {
	p := s.createPending(42)

	_, err := s.service.Transition(s.GetContext(), p.ID, types.PaymentStatusFailed,
		[]types.PaymentStatus{types.PaymentStatusPending}, lo.ToPtr("card declined"))
	s.Require().NoError(err)

	next := s.createPending(42)
	s.NotEqual(p.ID, next.ID)
}

func (s *LedgerServiceSuite) TestTransitionRecordsCompletedEvent() {
	p := s.createPending(42)

	res, err := s.service.Transition(s.GetContext(), p.ID, types.PaymentStatusCompleted,
		[]types.PaymentStatus{types.PaymentStatusPending}, nil)
	s.Require().NoError(err)

	s.True(res.Applied)
	s.Equal(types.PaymentStatusPending, res.Previous)
	s.Equal(types.PaymentStatusCompleted, res.Payment.Status)
	s.NotNil(res.Payment.CompletedAt)

	events := s.GetStores().OutboxRepo.ByTopic(types.TopicPaymentCompleted)
	s.Require().Len(events, 1)
	s.Equal(p.ID, events[0].AggregateID)
}

func (s *LedgerServiceSuite) TestStaleTransitionIsNoop() {
	p := s.createPending(42)
	expected := []types.PaymentStatus{types.PaymentStatusPending}

	first, err := s.service.Transition(s.GetContext(), p.ID, types.PaymentStatusCompleted, expected, nil)
	s.Require().NoError(err)
	s.True(first.Applied)

	second, err := s.service.Transition(s.GetContext(), p.ID, types.PaymentStatusCompleted, expected, nil)
	s.Require().NoError(err)
	s.False(second.Applied)
	s.Equal(types.PaymentStatusCompleted, second.Payment.Status)

	// a late failure must not undo the completion
	late, err := s.service.Transition(s.GetContext(), p.ID, types.PaymentStatusFailed, expected, lo.ToPtr("expired"))
	s.Require().NoError(err)
	s.False(late.Applied)
	s.Equal(types.PaymentStatusCompleted, late.Payment.Status)
	s.Nil(late.Payment.FailureReason)

	s.Len(s.GetStores().OutboxRepo.ByTopic(types.TopicPaymentCompleted), 1)
}

func (s *LedgerServiceSuite) TestIllegalTransitionsAreRejected() {
	p := s.createPending(42)

	tests := []struct {
		name     string
		target   types.PaymentStatus
		expected []types.PaymentStatus
	}{
		{name: "pending to refunded", target: types.PaymentStatusRefunded, expected: []types.PaymentStatus{types.PaymentStatusPending}},
		{name: "failed to completed", target: types.PaymentStatusCompleted, expected: []types.PaymentStatus{types.PaymentStatusFailed}},
		{name: "refunded to pending", target: types.PaymentStatusPending, expected: []types.PaymentStatus{types.PaymentStatusRefunded}},
		{name: "no expected state", target: types.PaymentStatusCompleted, expected: nil},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.Transition(s.GetContext(), p.ID, tt.target, tt.expected, nil)
			s.Error(err)
			s.True(ierr.IsInvalidOperation(err))
		})
	}

	stored, err := s.service.GetPayment(s.GetContext(), p.ID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusPending, stored.Status)
}

func (s *LedgerServiceSuite) TestRefundRecordsRefundedEvent() {
	p := s.createPending(42)
	_, err := s.service.Transition(s.GetContext(), p.ID, types.PaymentStatusCompleted,
		[]types.PaymentStatus{types.PaymentStatusPending}, nil)
	s.Require().NoError(err)

	res, err := s.service.Transition(s.GetContext(), p.ID, types.PaymentStatusRefunded,
		[]types.PaymentStatus{types.PaymentStatusCompleted}, nil)
	s.Require().NoError(err)
	s.True(res.Applied)
	s.NotNil(res.Payment.CompletedAt)

	s.Len(s.GetStores().OutboxRepo.ByTopic(types.TopicPaymentRefunded), 1)
}

func (s *LedgerServiceSuite) TestTransitionUnknownPayment() {
	_, err := s.service.Transition(s.GetContext(), 404, types.PaymentStatusCompleted,
		[]types.PaymentStatus{types.PaymentStatusPending}, nil)
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *LedgerServiceSuite) TestAttachSessionOnce() {
	p := s.createPending(42)

	attached, err := s.service.AttachSession(s.GetContext(), p.ID, "cs_1", "https://pay.example/cs_1")
	s.Require().NoError(err)
	s.Equal("cs_1", lo.FromPtr(attached.ProviderReference))

	_, err = s.service.AttachSession(s.GetContext(), p.ID, "cs_1", "https://pay.example/cs_1")
	s.NoError(err)

	_, err = s.service.AttachSession(s.GetContext(), p.ID, "cs_2", "https://pay.example/cs_2")
	s.Error(err)

	found, err := s.service.GetByProviderReference(s.GetContext(), types.PaymentProviderStripe, "cs_1")
	s.Require().NoError(err)
	s.Equal(p.ID, found.ID)
}

func (s *LedgerServiceSuite) TestGetByCase() {
	_, err := s.service.GetByCase(s.GetContext(), 42)
	s.True(ierr.IsNotFound(err))

	p := s.createPending(42)
	payments, err := s.service.GetByCase(s.GetContext(), 42)
	s.Require().NoError(err)
	s.Require().Len(payments, 1)
	s.Equal(p.ID, payments[0].ID)
}
