package postgres

import (
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/lm-legal/payments/internal/types"
)

const (
	tablePayments         = "payments"
	tableInvoices         = "invoices"
	tableInvoiceSequences = "invoice_sequences"
	tablePlans            = "plans"
	tableUsers            = "users"
	tableLegalCases       = "legal_cases"
	tableOutboxEvents     = "outbox_events"
	tableWebhookEvents    = "webhook_events"
)

var paymentColumns = []string{
	"id", "user_id", "case_id", "plan_id", "amount", "currency", "method", "provider",
	"provider_reference", "redirect_url", "status", "failure_reason", "completed_at",
	"created_at", "updated_at",
}

var invoiceColumns = []string{
	"id", "payment_id", "invoice_number", "year", "sequence", "amount", "currency",
	"artifact_key", "issued_at", "created_at",
}

// psql returns a statement builder bound to the Postgres dialect. Statements are
// rendered with positional placeholders and executed through sqlx.
func psql() *sql.DialectBuilder {
	return sql.Dialect(dialect.Postgres)
}

// paymentPredicates translates a listing filter into WHERE predicates
func paymentPredicates(filter *types.PaymentFilter) []*sql.Predicate {
	if filter == nil {
		return nil
	}

	var preds []*sql.Predicate
	if filter.UserID > 0 {
		preds = append(preds, sql.EQ("user_id", filter.UserID))
	}
	if filter.Status != nil {
		preds = append(preds, sql.EQ("status", string(*filter.Status)))
	}
	if filter.Method != nil {
		preds = append(preds, sql.EQ("method", string(*filter.Method)))
	}
	if filter.ServiceType != nil && *filter.ServiceType != "" {
		plans := psql().Select("id").
			From(sql.Table(tablePlans)).
			Where(sql.EQ("service_type", *filter.ServiceType))
		preds = append(preds, sql.In("plan_id", plans))
	}
	if filter.StartTime != nil {
		preds = append(preds, sql.GTE("created_at", *filter.StartTime))
	}
	if filter.EndTime != nil {
		preds = append(preds, sql.LT("created_at", *filter.EndTime))
	}
	return preds
}

func where(s *sql.Selector, preds []*sql.Predicate) *sql.Selector {
	if len(preds) == 0 {
		return s
	}
	return s.Where(sql.And(preds...))
}
