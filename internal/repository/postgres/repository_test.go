package postgres

import (
	"context"
	"database/sql/driver"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/lm-legal/payments/internal/domain/invoice"
	"github.com/lm-legal/payments/internal/domain/payment"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/postgres"
	"github.com/lm-legal/payments/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type RepositorySuite struct {
	suite.Suite
	ctx  context.Context
	mock sqlmock.Sqlmock
	db   *postgres.DB
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupTest() {
	conn, mock, err := sqlmock.New()
	s.Require().NoError(err)
	s.ctx = context.Background()
	s.mock = mock
	s.db = postgres.NewFromSQLX(sqlx.NewDb(conn, "postgres"), logger.NewNopLogger())
}

func (s *RepositorySuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *RepositorySuite) paymentRow(status types.PaymentStatus) []driver.Value {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return []driver.Value{
		int64(101), int64(7), int64(42), int64(1), "4.99", "EUR", "card", "stripe",
		"cs_test_1", "https://checkout.stripe.com/c/pay/cs_test_1", string(status), nil, nil,
		now, now,
	}
}

func (s *RepositorySuite) TestCreatePaymentDuplicateActive() {
	repo := NewPaymentRepository(s.db, logger.NewNopLogger())

	s.mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO payments")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: constraintPaymentCaseActive})

	err := repo.Create(s.ctx, &payment.Payment{
		UserID:   7,
		CaseID:   42,
		PlanID:   1,
		Amount:   decimal.RequireFromString("4.99"),
		Currency: "EUR",
		Method:   types.PaymentMethodCard,
		Provider: types.PaymentProviderStripe,
	})
	s.Error(err)
	s.True(payment.IsDuplicateActivePayment(err))
	s.True(ierr.IsAlreadyExists(err))
}

func (s *RepositorySuite) TestCreatePaymentAssignsID() {
	repo := NewPaymentRepository(s.db, logger.NewNopLogger())
	now := time.Now().UTC()

	s.mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO payments")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(101), now, now))

	p := &payment.Payment{
		UserID:   7,
		CaseID:   42,
		PlanID:   1,
		Amount:   decimal.RequireFromString("4.99"),
		Currency: "EUR",
		Method:   types.PaymentMethodCard,
		Provider: types.PaymentProviderStripe,
	}
	s.Require().NoError(repo.Create(s.ctx, p))
	s.Equal(int64(101), p.ID)
	s.Equal(types.PaymentStatusPending, p.Status)
}

func (s *RepositorySuite) TestTransitionApplied() {
	repo := NewPaymentRepository(s.db, logger.NewNopLogger())

	cols := append([]string{"previous_status"}, paymentColumns...)
	row := append([]driver.Value{"pending"}, s.paymentRow(types.PaymentStatusCompleted)...)
	s.mock.ExpectQuery(regexp.QuoteMeta("UPDATE payments p")).
		WithArgs(int64(101), "completed", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(row...))

	res, err := repo.Transition(s.ctx, 101, types.PaymentStatusCompleted, []types.PaymentStatus{types.PaymentStatusPending}, nil)
	s.Require().NoError(err)
	s.True(res.Applied)
	s.Equal(types.PaymentStatusPending, res.Previous)
	s.Equal(types.PaymentStatusCompleted, res.Payment.Status)
	s.True(res.Payment.Amount.Equal(decimal.RequireFromString("4.99")))
}

func (s *RepositorySuite) TestTransitionMissReturnsCurrent() {
	repo := NewPaymentRepository(s.db, logger.NewNopLogger())

	s.mock.ExpectQuery(regexp.QuoteMeta("UPDATE payments p")).
		WillReturnRows(sqlmock.NewRows(append([]string{"previous_status"}, paymentColumns...)))
	s.mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE id = $1")).
		WithArgs(int64(101)).
		WillReturnRows(sqlmock.NewRows(paymentColumns).AddRow(s.paymentRow(types.PaymentStatusCompleted)...))

	res, err := repo.Transition(s.ctx, 101, types.PaymentStatusCompleted, []types.PaymentStatus{types.PaymentStatusPending}, nil)
	s.Require().NoError(err)
	s.False(res.Applied)
	s.Equal(types.PaymentStatusCompleted, res.Payment.Status)
}

func (s *RepositorySuite) TestGetPaymentNotFound() {
	repo := NewPaymentRepository(s.db, logger.NewNopLogger())

	s.mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows(paymentColumns))

	_, err := repo.Get(s.ctx, 999)
	s.True(ierr.IsNotFound(err))
}

func (s *RepositorySuite) TestListAppliesFilters() {
	repo := NewPaymentRepository(s.db, logger.NewNopLogger())

	filter := types.NewPaymentFilter()
	filter.UserID = 7
	status := types.PaymentStatusCompleted
	filter.Status = &status

	s.mock.ExpectQuery(`SELECT .* FROM "payments" WHERE .*"user_id" = \$1 AND .*"status" = \$2.* ORDER BY`).
		WithArgs(int64(7), "completed").
		WillReturnRows(sqlmock.NewRows(paymentColumns).AddRow(s.paymentRow(types.PaymentStatusCompleted)...))

	payments, err := repo.List(s.ctx, filter)
	s.Require().NoError(err)
	s.Len(payments, 1)
	s.Equal(int64(101), payments[0].ID)
}

func (s *RepositorySuite) TestNextSequenceUpsert() {
	repo := NewInvoiceRepository(s.db, logger.NewNopLogger())

	s.mock.ExpectQuery(`INSERT INTO "invoice_sequences" .* ON CONFLICT .*"year".* DO UPDATE SET .* RETURNING "last_value"`).
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(int64(3)))

	next, err := repo.NextSequence(s.ctx, 2025)
	s.Require().NoError(err)
	s.Equal(int64(3), next)
}

func (s *RepositorySuite) TestNextSequenceStartsNewYearAtOne() {
	repo := NewInvoiceRepository(s.db, logger.NewNopLogger())
	upsert := `INSERT INTO "invoice_sequences" .* ON CONFLICT .*"year".* DO UPDATE SET .* RETURNING "last_value"`

	s.mock.ExpectQuery(upsert).
		WithArgs(2025, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(int64(418)))
	// the first upsert of a year inserts the row with last_value 1
	s.mock.ExpectQuery(upsert).
		WithArgs(2026, 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(int64(1)))

	next, err := repo.NextSequence(s.ctx, 2025)
	s.Require().NoError(err)
	s.Equal(int64(418), next)

	next, err = repo.NextSequence(s.ctx, 2026)
	s.Require().NoError(err)
	s.Equal(int64(1), next)
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *RepositorySuite) TestCreateInvoiceDuplicate() {
	repo := NewInvoiceRepository(s.db, logger.NewNopLogger())

	s.mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO invoices")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: constraintInvoicePayment})

	err := repo.Create(s.ctx, &invoice.Invoice{PaymentID: 101, Number: "LM-2025-00002"})
	s.True(invoice.IsInvoiceAlreadyExists(err))
}

func (s *RepositorySuite) TestAdvanceToProcessingIsIdempotent() {
	repo := NewLegalCaseRepository(s.db, logger.NewNopLogger())
	now := time.Now().UTC()

	s.mock.ExpectExec(regexp.QuoteMeta("UPDATE legal_cases")).
		WithArgs(int64(42), "processing", "completed").
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectExec(regexp.QuoteMeta("UPDATE legal_cases")).
		WithArgs(int64(42), "processing", "completed").
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectQuery(regexp.QuoteMeta("FROM legal_cases WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows(strings.Split("id,user_id,title,status,is_demo,created_at,updated_at", ",")).
			AddRow(int64(42), int64(7), "Tenancy dispute", "processing", false, now, now))

	advanced, err := repo.AdvanceToProcessing(s.ctx, 42)
	s.Require().NoError(err)
	s.True(advanced)

	advanced, err = repo.AdvanceToProcessing(s.ctx, 42)
	s.Require().NoError(err)
	s.False(advanced)
}

func (s *RepositorySuite) TestClaimUnpublishedSkipsLocked() {
	repo := NewOutboxRepository(s.db, logger.NewNopLogger())

	s.mock.ExpectQuery(`FROM "outbox_events" WHERE "published_at" IS NULL ORDER BY "created_at" LIMIT 10 FOR UPDATE SKIP LOCKED`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "topic", "aggregate_id", "payload", "created_at", "published_at", "attempts", "last_error"}).
			AddRow("evt_1", types.TopicPaymentCompleted, int64(101), []byte(`{"payment_id":101}`), time.Now(), nil, 0, nil))

	events, err := repo.ClaimUnpublished(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(types.TopicPaymentCompleted, events[0].Topic)
}
