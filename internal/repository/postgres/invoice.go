package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/lm-legal/payments/internal/domain/invoice"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/postgres"

	entsql "entgo.io/ent/dialect/sql"
)

const constraintInvoicePayment = "invoices_payment_id_key"

type invoiceRepository struct {
	db  *postgres.DB
	log *logger.Logger
}

func NewInvoiceRepository(db *postgres.DB, log *logger.Logger) invoice.Repository {
	return &invoiceRepository{db: db, log: log}
}

func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	r.log.Debugw("creating invoice",
		"payment_id", inv.PaymentID,
		"invoice_number", inv.Number,
	)

	query := `
		INSERT INTO invoices (payment_id, invoice_number, year, sequence, amount, currency, artifact_key, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	row := r.db.GetQuerier(ctx).QueryRowxContext(ctx, query,
		inv.PaymentID,
		inv.Number,
		inv.Year,
		inv.Sequence,
		inv.Amount,
		inv.Currency,
		inv.ArtifactKey,
		inv.IssuedAt,
	)
	if err := row.Scan(&inv.ID, &inv.CreatedAt); err != nil {
		if constraint, ok := postgres.UniqueViolation(err); ok && constraint == constraintInvoicePayment {
			return invoice.ErrInvoiceAlreadyExists(inv.PaymentID)
		}
		return ierr.WithError(err).
			WithHint("Failed to create invoice").
			WithReportableDetails(map[string]any{
				"payment_id": inv.PaymentID,
			}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *invoiceRepository) GetByPaymentID(ctx context.Context, paymentID int64) (*invoice.Invoice, error) {
	query := `SELECT ` + strings.Join(invoiceColumns, ", ") + ` FROM invoices WHERE payment_id = $1`

	var inv invoice.Invoice
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &inv, query, paymentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, invoice.ErrNotFound(paymentID)
		}
		return nil, postgres.WrapError(err, "Failed to retrieve invoice")
	}
	return &inv, nil
}

func (r *invoiceRepository) NextSequence(ctx context.Context, year int) (int64, error) {
	query, args := psql().
		Insert(tableInvoiceSequences).
		Columns("year", "last_value", "updated_at").
		Values(year, 1, time.Now().UTC()).
		OnConflict(
			entsql.ConflictColumns("year"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.Add("last_value", 1)
				u.SetExcluded("updated_at")
			}),
		).
		Returning("last_value").
		Query()

	var next int64
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &next, query, args...); err != nil {
		return 0, postgres.WrapError(err, "Failed to allocate invoice number")
	}

	r.log.Debugw("allocated invoice sequence", "year", year, "sequence", next)
	return next, nil
}
