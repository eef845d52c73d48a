package payment

import (
	"fmt"

	"github.com/cockroachdb/errors"

	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/types"
	"github.com/shopspring/decimal"
)

// Machine readable codes returned in error details
const (
	CodeDuplicateActivePayment = "duplicate_active_payment"
	CodeInvalidTransition      = "invalid_transition"
	CodeAmountInvalid          = "amount_invalid"
	CodeAlreadyPaid            = "already_paid"
	CodePaymentInProgress      = "payment_in_progress"
	CodePaymentNotFound        = "payment_not_found"
	CodeProviderUnavailable    = "provider_unavailable"
	CodeProviderReference      = "provider_reference_conflict"
	CodeCaptureDeclined        = "capture_declined"
)

func ErrNotFound(id int64) error {
	return ierr.NewErrorf("payment %d not found", id).
		WithHint("Payment not found").
		WithReportableDetails(map[string]any{
			"code":       CodePaymentNotFound,
			"payment_id": id,
		}).
		Mark(ierr.ErrNotFound)
}

var errDuplicateActivePayment = errors.New("duplicate active payment")

func ErrDuplicateActivePayment(caseID int64) error {
	err := ierr.NewErrorf("case %d already has an active payment", caseID).
		WithHint("This case already has an active payment").
		WithReportableDetails(map[string]any{
			"code":    CodeDuplicateActivePayment,
			"case_id": caseID,
		}).
		Mark(ierr.ErrAlreadyExists)
	return errors.Mark(err, errDuplicateActivePayment)
}

func IsDuplicateActivePayment(err error) bool {
	return errors.Is(err, errDuplicateActivePayment)
}

func ErrInvalidTransition(from *types.PaymentStatus, to types.PaymentStatus) error {
	fromStr := "<none>"
	if from != nil {
		fromStr = from.String()
	}
	return ierr.NewErrorf("invalid payment transition %s -> %s", fromStr, to).
		WithHintf("A payment cannot move from %s to %s", fromStr, to).
		WithReportableDetails(map[string]any{
			"code": CodeInvalidTransition,
			"from": fromStr,
			"to":   to,
		}).
		Mark(ierr.ErrInvalidOperation)
}

func ErrAmountInvalid(amount decimal.Decimal) error {
	return ierr.NewErrorf("invalid amount %s", amount.String()).
		WithHint("The payment amount is not accepted").
		WithReportableDetails(map[string]any{
			"code":   CodeAmountInvalid,
			"amount": amount.String(),
		}).
		Mark(ierr.ErrValidation)
}

func ErrAlreadyPaid(caseID int64) error {
	return ierr.NewErrorf("case %d is already paid", caseID).
		WithHint("This case has already been paid").
		WithReportableDetails(map[string]any{
			"code":    CodeAlreadyPaid,
			"case_id": caseID,
		}).
		Mark(ierr.ErrAlreadyExists)
}

func ErrPaymentInProgress(caseID int64, method types.PaymentMethod) error {
	return ierr.NewErrorf("case %d has a pending %s payment", caseID, method).
		WithHint("A payment for this case is already in progress with another method").
		WithReportableDetails(map[string]any{
			"code":    CodePaymentInProgress,
			"case_id": caseID,
			"method":  method,
		}).
		Mark(ierr.ErrAlreadyExists)
}

// ErrProviderUnavailable wraps a gateway failure that the caller may retry
func ErrProviderUnavailable(err error, provider types.PaymentProvider) error {
	return ierr.WithError(err).
		WithHintf("The %s payment provider is temporarily unavailable, please retry", provider).
		WithReportableDetails(map[string]any{
			"code":     CodeProviderUnavailable,
			"provider": provider,
		}).
		Mark(ierr.ErrProviderUnavailable)
}

func ErrProviderReferenceConflict(id int64, existing string) error {
	return ierr.NewError(fmt.Sprintf("payment %d already bound to provider reference %s", id, existing)).
		WithHint("Payment already has a provider session").
		WithReportableDetails(map[string]any{
			"code":       CodeProviderReference,
			"payment_id": id,
		}).
		Mark(ierr.ErrInvalidOperation)
}

// ErrCaptureDeclined reports a capture the provider refused for good. Retrying
// the same capture cannot succeed.
func ErrCaptureDeclined(provider types.PaymentProvider, reference, issue string) error {
	return ierr.NewErrorf("%s capture of %s declined: %s", provider, reference, issue).
		WithHint("The payment provider declined the payment").
		WithReportableDetails(map[string]any{
			"code":     CodeCaptureDeclined,
			"provider": provider,
			"issue":    issue,
		}).
		Mark(ierr.ErrInvalidOperation)
}
