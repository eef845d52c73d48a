package invoice

import (
	"github.com/cockroachdb/errors"
	ierr "github.com/lm-legal/payments/internal/errors"
)

const (
	CodeInvoiceAlreadyExists = "invoice_already_exists"
	CodeInvoiceNotFound      = "invoice_not_found"
	CodePaymentNotCompleted  = "payment_not_completed"
	CodeSequenceExhausted    = "invoice_sequence_exhausted"
)

var errInvoiceAlreadyExists = errors.New("invoice already exists")

// ErrInvoiceAlreadyExists is returned when a payment already has its invoice.
// Callers treat it as a successful, idempotent outcome.
func ErrInvoiceAlreadyExists(paymentID int64) error {
	err := ierr.NewErrorf("invoice for payment %d already exists", paymentID).
		WithHint("Invoice already issued").
		WithReportableDetails(map[string]any{
			"code":       CodeInvoiceAlreadyExists,
			"payment_id": paymentID,
		}).
		Mark(ierr.ErrAlreadyExists)
	return errors.Mark(err, errInvoiceAlreadyExists)
}

func IsInvoiceAlreadyExists(err error) bool {
	return errors.Is(err, errInvoiceAlreadyExists)
}

func ErrNotFound(paymentID int64) error {
	return ierr.NewErrorf("invoice for payment %d not found", paymentID).
		WithHint("Invoice not found").
		WithReportableDetails(map[string]any{
			"code":       CodeInvoiceNotFound,
			"payment_id": paymentID,
		}).
		Mark(ierr.ErrNotFound)
}

// ErrPaymentNotCompleted is returned when an invoice is requested for a payment
// that never reached completed
func ErrPaymentNotCompleted(paymentID int64) error {
	return ierr.NewErrorf("payment %d is not completed", paymentID).
		WithHint("Payment is not completed").
		WithReportableDetails(map[string]any{
			"code":       CodePaymentNotCompleted,
			"payment_id": paymentID,
		}).
		Mark(ierr.ErrNotFound)
}

// ErrSequenceExhausted is returned when a year has used up its invoice numbers
func ErrSequenceExhausted(year int, seq int64) error {
	return ierr.NewErrorf("invoice sequence %d of %d is outside 1..%d", seq, year, MaxSequence).
		WithHint("No invoice numbers left for this year").
		WithReportableDetails(map[string]any{
			"code":     CodeSequenceExhausted,
			"year":     year,
			"sequence": seq,
		}).
		Mark(ierr.ErrSystem)
}
