package outbox

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentCompleted is the payload of payment.completed
type PaymentCompleted struct {
	PaymentID   int64           `json:"payment_id"`
	CaseID      int64           `json:"case_id"`
	UserID      int64           `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	CompletedAt time.Time       `json:"completed_at"`
}

// PaymentRefunded is the payload of payment.refunded
type PaymentRefunded struct {
	PaymentID int64 `json:"payment_id"`
	CaseID    int64 `json:"case_id"`
	UserID    int64 `json:"user_id"`
}

// InvoiceIssued is the payload of invoice.issued
type InvoiceIssued struct {
	InvoiceNumber string `json:"invoice_number"`
	PaymentID     int64  `json:"payment_id"`
	UserID        int64  `json:"user_id"`
	CaseID        int64  `json:"case_id"`
}
