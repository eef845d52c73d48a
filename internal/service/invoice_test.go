package service

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lm-legal/payments/internal/document"
	"github.com/lm-legal/payments/internal/domain/invoice"
	"github.com/lm-legal/payments/internal/domain/payment"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/s3"
	"github.com/lm-legal/payments/internal/testutil"
	"github.com/lm-legal/payments/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type InvoiceServiceSuite struct {
	testutil.BaseServiceTestSuite
	ledger  LedgerService
	service InvoiceService
}

// invoices in these tests are issued at noon on a fixed day of testYear
const testYear = 2025

func TestInvoiceService(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestServiceParams(&s.BaseServiceTestSuite)

	generator, err := document.NewGenerator()
	s.Require().NoError(err)

	s.ledger = NewLedgerService(params)
	s.service = NewInvoiceService(params, generator)
	s.setClock(time.Date(testYear, time.June, 2, 12, 0, 0, 0, time.UTC))

	s.SeedUser(testutil.TestUserID, "client@example.com")
	s.SeedPlan(7, "4.99")
}

func (s *InvoiceServiceSuite) setClock(now time.Time) {
	s.service.(*invoiceService).now = func() time.Time { return now }
}

// completedPayment stores a completed card payment for a fresh case
func (s *InvoiceServiceSuite) completedPayment(caseID int64) *payment.Payment {
	s.SeedCase(caseID, testutil.TestUserID)
	p, err := s.ledger.CreatePayment(s.GetContext(), CreatePaymentParams{
		UserID:   testutil.TestUserID,
		CaseID:   caseID,
		PlanID:   7,
		Amount:   decimal.RequireFromString("4.99"),
		Method:   types.PaymentMethodCard,
		Provider: types.PaymentProviderStripe,
	})
	s.Require().NoError(err)

	res, err := s.ledger.Transition(s.GetContext(), p.ID, types.PaymentStatusCompleted,
		[]types.PaymentStatus{types.PaymentStatusPending}, nil)
	s.Require().NoError(err)
	return res.Payment
}

func (s *InvoiceServiceSuite) TestIssueFirstInvoiceOfYear() {
	p := s.completedPayment(42)

	inv, err := s.service.IssueForPayment(s.GetContext(), p.ID)
	s.Require().NoError(err)

	year := testYear
	s.Equal(fmt.Sprintf("LM-%d-00001", year), inv.Number)
	s.Equal(p.ID, inv.PaymentID)
	s.True(p.Amount.Equal(inv.Amount))
	s.Equal("EUR", inv.Currency)

	exists, err := s.GetArtifacts().Exists(s.GetContext(), inv.ArtifactKey)
	s.Require().NoError(err)
	s.True(exists)

	events := s.GetStores().OutboxRepo.ByTopic(types.TopicInvoiceIssued)
	s.Require().Len(events, 1)
	s.Equal(p.ID, events[0].AggregateID)
}

func (s *InvoiceServiceSuite) TestIssueIsIdempotent() {
	p := s.completedPayment(42)

	first, err := s.service.IssueForPayment(s.GetContext(), p.ID)
	s.Require().NoError(err)
	second, err := s.service.IssueForPayment(s.GetContext(), p.ID)
	s.Require().NoError(err)

	s.Equal(first.Number, second.Number)
	s.Len(s.GetStores().InvoiceRepo.All(), 1)
	s.Len(s.GetStores().OutboxRepo.ByTopic(types.TopicInvoiceIssued), 1)
	s.Equal(int64(1), s.GetStores().InvoiceRepo.SequenceValue(testYear))
}

func (s *InvoiceServiceSuite) TestConcurrentIssueForSamePayment() {
	p := s.completedPayment(42)

	var (
		mu      sync.Mutex
		numbers []string
		wg      conc.WaitGroup
	)
	for range 8 {
		wg.Go(func() {
			inv, err := s.service.IssueForPayment(s.GetContext(), p.ID)
			s.NoError(err)
			if inv != nil {
				mu.Lock()
				numbers = append(numbers, inv.Number)
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	s.Len(lo.Uniq(numbers), 1)
	s.Len(s.GetStores().InvoiceRepo.All(), 1)
	// the losing attempts gave their numbers back
	s.Equal(int64(1), s.GetStores().InvoiceRepo.SequenceValue(testYear))
}

func (s *InvoiceServiceSuite) TestConcurrentIssueForDistinctPayments() {
	payments := make([]*payment.Payment, 0, 5)
	for i := range 5 {
		payments = append(payments, s.completedPayment(int64(100+i)))
	}

	var wg conc.WaitGroup
	for _, p := range payments {
		wg.Go(func() {
			_, err := s.service.IssueForPayment(s.GetContext(), p.ID)
			s.NoError(err)
		})
	}
	wg.Wait()

	year := testYear
	invoices := s.GetStores().InvoiceRepo.All()
	s.Require().Len(invoices, 5)
	for i, inv := range invoices {
		want, err := invoice.FormatNumber("LM", year, int64(i+1))
		s.Require().NoError(err)
		s.Equal(want, inv.Number)
	}
}

func (s *InvoiceServiceSuite) TestPendingPaymentHasNoInvoice() {
	s.SeedCase(42, testutil.TestUserID)
	p, err := s.ledger.CreatePayment(s.GetContext(), CreatePaymentParams{
		UserID: testutil.TestUserID, CaseID: 42, PlanID: 7,
		Amount: decimal.RequireFromString("4.99"), Method: types.PaymentMethodCard, Provider: types.PaymentProviderStripe,
	})
	s.Require().NoError(err)

	_, err = s.service.IssueForPayment(s.GetContext(), p.ID)
	s.Error(err)
	s.Empty(s.GetStores().InvoiceRepo.All())
	s.Zero(s.GetStores().InvoiceRepo.SequenceValue(testYear))
}

func (s *InvoiceServiceSuite) TestRefundedPaymentKeepsInvoice() {
	p := s.completedPayment(42)
	_, err := s.ledger.Transition(s.GetContext(), p.ID, types.PaymentStatusRefunded,
		[]types.PaymentStatus{types.PaymentStatusCompleted}, nil)
	s.Require().NoError(err)

	inv, err := s.service.IssueForPayment(s.GetContext(), p.ID)
	s.Require().NoError(err)
	s.NotEmpty(inv.Number)
}

func (s *InvoiceServiceSuite) TestMissingArtifactIsRendered() {
	p := s.completedPayment(42)
	inv, err := s.service.IssueForPayment(s.GetContext(), p.ID)
	s.Require().NoError(err)

	// a fresh bucket has lost every stored document
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	params.Artifacts = s3.NewLocalService(s.T().TempDir())
	generator, err := document.NewGenerator()
	s.Require().NoError(err)
	service := NewInvoiceService(params, generator)

	doc, err := service.DownloadInvoice(s.GetContext(), p.ID)
	s.Require().NoError(err)
	s.Equal(inv.Number+".html", doc.FileName)
	s.True(strings.Contains(string(doc.Data), inv.Number))
	s.True(strings.Contains(string(doc.Data), "Legal assessment"))
}

func (s *InvoiceServiceSuite) TestGetInvoiceIssuesOnDemand() {
	p := s.completedPayment(42)

	resp, err := s.service.GetInvoice(s.GetContext(), p.ID)
	s.Require().NoError(err)
	s.Equal(fmt.Sprintf("LM-%d-00001", testYear), resp.InvoiceNumber)
	s.Equal(fmt.Sprintf("/v1/payments/%d/invoice/download", p.ID), resp.ArtifactURL)
}

func (s *InvoiceServiceSuite) TestInvoiceOfOtherUserIsHidden() {
	p := s.completedPayment(42)

	_, err := s.service.GetInvoice(testutil.SetupContext(testutil.TestOtherID), p.ID)
	s.Error(err)
	s.True(ierr.IsNotFound(err))

	resp, err := s.service.GetInvoice(testutil.AdminContext(testutil.TestAdminID), p.ID)
	s.Require().NoError(err)
	s.NotEmpty(resp.InvoiceNumber)
}

func (s *InvoiceServiceSuite) TestRenderFailureKeepsInvoice() {
	generator := &testutil.MockDocumentGenerator{}
	generator.On("RenderInvoice", mock.Anything, mock.AnythingOfType("*document.InvoiceData")).
		Return([]byte(nil), ierr.NewError("renderer down").Mark(ierr.ErrSystem))
	service := NewInvoiceService(newTestServiceParams(&s.BaseServiceTestSuite), generator)
	p := s.completedPayment(42)

	_, err := service.IssueForPayment(s.GetContext(), p.ID)
	s.Error(err)

	// the number is allocated once and the artifact is retried later
	s.Len(s.GetStores().InvoiceRepo.All(), 1)
	resp, err := service.GetInvoice(s.GetContext(), p.ID)
	s.Require().NoError(err)
	s.Empty(resp.ArtifactURL)
	generator.AssertNumberOfCalls(s.T(), "RenderInvoice", 2)
}

func (s *InvoiceServiceSuite) TestSequenceRestartsEachYear() {
	first := s.completedPayment(42)
	second := s.completedPayment(43)
	third := s.completedPayment(44)

	s.setClock(time.Date(2025, time.December, 31, 12, 0, 0, 0, time.UTC))
	inv, err := s.service.IssueForPayment(s.GetContext(), first.ID)
	s.Require().NoError(err)
	s.Equal("LM-2025-00001", inv.Number)

	inv, err = s.service.IssueForPayment(s.GetContext(), second.ID)
	s.Require().NoError(err)
	s.Equal("LM-2025-00002", inv.Number)

	s.setClock(time.Date(2026, time.January, 2, 9, 0, 0, 0, time.UTC))
	inv, err = s.service.IssueForPayment(s.GetContext(), third.ID)
	s.Require().NoError(err)
	s.Equal("LM-2026-00001", inv.Number)
	s.Equal(2026, inv.Year)
	s.Equal(int64(1), inv.Sequence)

	s.Equal(int64(2), s.GetStores().InvoiceRepo.SequenceValue(2025))
	s.Equal(int64(1), s.GetStores().InvoiceRepo.SequenceValue(2026))
}

func (s *InvoiceServiceSuite) TestYearFollowsInvoiceTimezone() {
	p := s.completedPayment(42)

	// 00:30 on 1 January in Berlin is still 31 December in UTC
	s.setClock(time.Date(2025, time.December, 31, 23, 30, 0, 0, time.UTC))
	inv, err := s.service.IssueForPayment(s.GetContext(), p.ID)
	s.Require().NoError(err)
	s.Equal("LM-2026-00001", inv.Number)
	s.Zero(s.GetStores().InvoiceRepo.SequenceValue(2025))
}

func (s *InvoiceServiceSuite) TestExhaustedSequenceIsRejected() {
	p := s.completedPayment(42)
	s.GetStores().InvoiceRepo.SetSequence(testYear, invoice.MaxSequence)

	_, err := s.service.IssueForPayment(s.GetContext(), p.ID)
	s.Require().Error(err)
	s.True(ierr.IsSystem(err))

	s.Empty(s.GetStores().InvoiceRepo.All())
	s.Empty(s.GetStores().OutboxRepo.ByTopic(types.TopicInvoiceIssued))
	// the rejected number is given back
	s.Equal(int64(invoice.MaxSequence), s.GetStores().InvoiceRepo.SequenceValue(testYear))
}
