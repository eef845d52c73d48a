package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/lib/pq"
	"github.com/lm-legal/payments/internal/domain/payment"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/postgres"
	"github.com/lm-legal/payments/internal/types"
	"github.com/samber/lo"
)

const (
	constraintPaymentCaseActive        = "payments_case_active_key"
	constraintPaymentProviderReference = "payments_provider_reference_key"
)

type paymentRepository struct {
	db  *postgres.DB
	log *logger.Logger
}

func NewPaymentRepository(db *postgres.DB, log *logger.Logger) payment.Repository {
	return &paymentRepository{db: db, log: log}
}

func (r *paymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	r.log.Debugw("creating payment",
		"case_id", p.CaseID,
		"user_id", p.UserID,
		"method", p.Method,
		"amount", p.Amount,
	)

	if p.Status == "" {
		p.Status = types.PaymentStatusPending
	}

	query := `
		INSERT INTO payments (user_id, case_id, plan_id, amount, currency, method, provider, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING id, created_at, updated_at`

	now := time.Now().UTC()
	row := r.db.GetQuerier(ctx).QueryRowxContext(ctx, query,
		p.UserID,
		p.CaseID,
		p.PlanID,
		p.Amount,
		p.Currency,
		p.Method,
		p.Provider,
		p.Status,
		now,
	)
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if constraint, ok := postgres.UniqueViolation(err); ok && constraint == constraintPaymentCaseActive {
			return payment.ErrDuplicateActivePayment(p.CaseID)
		}
		return ierr.WithError(err).
			WithHint("Failed to create payment").
			WithReportableDetails(map[string]any{
				"case_id": p.CaseID,
			}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id int64) (*payment.Payment, error) {
	query := `SELECT ` + strings.Join(paymentColumns, ", ") + ` FROM payments WHERE id = $1`

	var p payment.Payment
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &p, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, payment.ErrNotFound(id)
		}
		return nil, postgres.WrapError(err, "Failed to retrieve payment")
	}
	return &p, nil
}

func (r *paymentRepository) GetByProviderReference(ctx context.Context, provider types.PaymentProvider, ref string) (*payment.Payment, error) {
	query := `SELECT ` + strings.Join(paymentColumns, ", ") + `
		FROM payments WHERE provider = $1 AND provider_reference = $2`

	var p payment.Payment
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &p, query, provider, ref); err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.WithError(err).
				WithHintf("No payment for %s reference %s", provider, ref).
				WithReportableDetails(map[string]any{
					"code":     payment.CodePaymentNotFound,
					"provider": provider,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, postgres.WrapError(err, "Failed to retrieve payment")
	}
	return &p, nil
}

func (r *paymentRepository) ListByCase(ctx context.Context, caseID int64) ([]*payment.Payment, error) {
	query := `SELECT ` + strings.Join(paymentColumns, ", ") + `
		FROM payments WHERE case_id = $1 ORDER BY created_at DESC, id DESC`

	var payments []*payment.Payment
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &payments, query, caseID); err != nil {
		return nil, postgres.WrapError(err, "Failed to list case payments")
	}
	return payments, nil
}

func (r *paymentRepository) AttachSession(ctx context.Context, id int64, ref string, redirectURL string) (*payment.Payment, error) {
	r.log.Debugw("attaching provider session", "payment_id", id, "provider_reference", ref)

	query := `
		UPDATE payments
		SET provider_reference = $2, redirect_url = $3, updated_at = $4
		WHERE id = $1 AND (provider_reference IS NULL OR provider_reference = $2)
		RETURNING ` + strings.Join(paymentColumns, ", ")

	var p payment.Payment
	err := r.db.GetQuerier(ctx).GetContext(ctx, &p, query, id, ref, lo.EmptyableToPtr(redirectURL), time.Now().UTC())
	switch {
	case err == nil:
		return &p, nil
	case err == sql.ErrNoRows:
		current, getErr := r.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, payment.ErrProviderReferenceConflict(id, lo.FromPtr(current.ProviderReference))
	default:
		if constraint, ok := postgres.UniqueViolation(err); ok && constraint == constraintPaymentProviderReference {
			return nil, payment.ErrProviderReferenceConflict(id, ref)
		}
		return nil, postgres.WrapError(err, "Failed to attach provider session")
	}
}

// transitionRow is a payment as returned by the CAS update together with the
// status it replaced
type transitionRow struct {
	payment.Payment
	PreviousStatus types.PaymentStatus `db:"previous_status"`
}

func (r *paymentRepository) Transition(
	ctx context.Context,
	id int64,
	target types.PaymentStatus,
	expected []types.PaymentStatus,
	reason *string,
) (*payment.TransitionResult, error) {
	now := time.Now().UTC()
	var completedAt *time.Time
	if target == types.PaymentStatusCompleted {
		completedAt = &now
	}

	// The row lock taken by prev makes the status check and the update atomic
	query := `
		WITH prev AS (
			SELECT id, status FROM payments WHERE id = $1 FOR UPDATE
		)
		UPDATE payments p
		SET status = $2,
			updated_at = $3,
			completed_at = COALESCE($4, p.completed_at),
			failure_reason = COALESCE($5, p.failure_reason)
		FROM prev
		WHERE p.id = prev.id AND prev.status = ANY($6)
		RETURNING prev.status AS previous_status, ` + qualify("p", paymentColumns)

	expectedStr := lo.Map(expected, func(s types.PaymentStatus, _ int) string { return string(s) })

	var row transitionRow
	err := r.db.GetQuerier(ctx).GetContext(ctx, &row, query,
		id,
		target,
		now,
		completedAt,
		reason,
		pq.Array(expectedStr),
	)
	if err == nil {
		r.log.Debugw("payment transitioned",
			"payment_id", id,
			"from", row.PreviousStatus,
			"to", target,
		)
		return &payment.TransitionResult{
			Payment:  &row.Payment,
			Applied:  true,
			Previous: row.PreviousStatus,
		}, nil
	}
	if err != sql.ErrNoRows {
		return nil, postgres.WrapError(err, "Failed to update payment status")
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &payment.TransitionResult{Payment: current, Applied: false}, nil
}

func (r *paymentRepository) List(ctx context.Context, filter *types.PaymentFilter) ([]*payment.Payment, error) {
	if filter == nil {
		filter = types.NewPaymentFilter()
	}

	s := psql().Select(paymentColumns...).From(entsql.Table(tablePayments))
	s = where(s, paymentPredicates(filter)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).
		Limit(filter.GetLimit()).
		Offset(filter.GetOffset())
	query, args := s.Query()

	var payments []*payment.Payment
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, postgres.WrapError(err, "Failed to list payments")
	}
	return payments, nil
}

func (r *paymentRepository) Count(ctx context.Context, filter *types.PaymentFilter) (int, error) {
	s := psql().Select(entsql.Count("*")).From(entsql.Table(tablePayments))
	query, args := where(s, paymentPredicates(filter)).Query()

	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, query, args...); err != nil {
		return 0, postgres.WrapError(err, "Failed to count payments")
	}
	return count, nil
}

func (r *paymentRepository) Stats(ctx context.Context, from, to time.Time) ([]*payment.Stats, error) {
	s := psql().
		Select(
			"method",
			entsql.As(entsql.Count("*"), "count"),
			entsql.As("COALESCE(SUM(amount), 0)", "revenue"),
		).
		From(entsql.Table(tablePayments)).
		Where(entsql.And(
			entsql.EQ("status", string(types.PaymentStatusCompleted)),
			entsql.GTE("completed_at", from),
			entsql.LT("completed_at", to),
		)).
		GroupBy("method").
		OrderBy("method")
	query, args := s.Query()

	var stats []*payment.Stats
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &stats, query, args...); err != nil {
		return nil, postgres.WrapError(err, "Failed to aggregate payment statistics")
	}
	return stats, nil
}

func qualify(alias string, columns []string) string {
	return strings.Join(lo.Map(columns, func(c string, _ int) string { return alias + "." + c }), ", ")
}
