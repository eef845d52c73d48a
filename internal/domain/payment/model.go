package payment

import (
	"time"

	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/types"
	"github.com/shopspring/decimal"
)

// Payment represents one attempt to collect money for one legal case
type Payment struct {
	// ID is assigned by the ledger
	ID int64 `json:"id" db:"id"`
	// UserID is the payer and owner of the case
	UserID int64 `json:"user_id" db:"user_id"`
	CaseID int64 `json:"case_id" db:"case_id"`
	// PlanID is the pricing plan the amount was taken from
	PlanID int64 `json:"plan_id" db:"plan_id"`
	// Amount is fixed at creation and never updated
	Amount   decimal.Decimal     `json:"amount" db:"amount"`
	Currency string              `json:"currency" db:"currency"`
	Method   types.PaymentMethod `json:"method" db:"method"`
	// Provider is the gateway tag that owns ProviderReference
	Provider types.PaymentProvider `json:"provider" db:"provider"`
	// ProviderReference is the provider session or order id, unique per provider once set
	ProviderReference *string `json:"provider_reference,omitempty" db:"provider_reference"`
	// RedirectURL is where the payer completes the checkout
	RedirectURL   *string             `json:"redirect_url,omitempty" db:"redirect_url"`
	Status        types.PaymentStatus `json:"status" db:"status"`
	FailureReason *string             `json:"failure_reason,omitempty" db:"failure_reason"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at" db:"updated_at"`
}

// Validate checks the fields required to create a pending payment
func (p *Payment) Validate() error {
	if p.UserID <= 0 || p.CaseID <= 0 || p.PlanID <= 0 {
		return ierr.NewError("payment must reference a user, a case and a plan").
			WithHint("Payment is missing its owner, case or plan").
			Mark(ierr.ErrValidation)
	}

	if !p.Amount.IsPositive() {
		return ErrAmountInvalid(p.Amount)
	}

	if p.Currency == "" {
		return ierr.NewError("currency is required").
			WithHint("Currency is required").
			Mark(ierr.ErrValidation)
	}

	if err := p.Method.Validate(); err != nil {
		return ierr.WithError(err).
			WithHint("Unsupported payment method").
			Mark(ierr.ErrValidation)
	}

	return nil
}

// IsExpired reports whether a pending payment is older than ttl
func (p *Payment) IsExpired(now time.Time, ttl time.Duration) bool {
	return p.Status == types.PaymentStatusPending && ttl > 0 && now.Sub(p.CreatedAt) > ttl
}

// Stats is one row of the completed-payment statistics
type Stats struct {
	Method  types.PaymentMethod `json:"method" db:"method"`
	Count   int64               `json:"count" db:"count"`
	Revenue decimal.Decimal     `json:"revenue" db:"revenue"`
}
