package dto

import (
	"time"

	"github.com/lm-legal/payments/internal/domain/payment"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/types"
	"github.com/lm-legal/payments/internal/validator"
	"github.com/shopspring/decimal"
)

// CheckoutRequest opens a checkout for a case. The price is taken from the plan.
type CheckoutRequest struct {
	CaseID int64               `json:"case_id" validate:"required,gt=0"`
	PlanID int64               `json:"plan_id" validate:"required,gt=0"`
	Method types.PaymentMethod `json:"method,omitempty"`
}

func (r *CheckoutRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.Method != "" {
		if err := r.Method.Validate(); err != nil {
			return ierr.WithError(err).
				WithHint("Payment method must be card or wallet").
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

// CheckoutResponse carries the redirect the payer follows to complete payment
type CheckoutResponse struct {
	PaymentID         int64               `json:"payment_id"`
	ProviderSessionID string              `json:"provider_session_id"`
	RedirectURL       string              `json:"redirect_url"`
	Status            types.PaymentStatus `json:"status"`
	Amount            decimal.Decimal     `json:"amount"`
	Currency          string              `json:"currency"`
}

// PaymentResponse represents a payment response
type PaymentResponse struct {
	ID            int64                 `json:"id"`
	CaseID        int64                 `json:"case_id"`
	PlanID        int64                 `json:"plan_id"`
	Amount        decimal.Decimal       `json:"amount"`
	Currency      string                `json:"currency"`
	Method        types.PaymentMethod   `json:"method"`
	Provider      types.PaymentProvider `json:"provider"`
	Status        types.PaymentStatus   `json:"status"`
	FailureReason *string               `json:"failure_reason,omitempty"`
	RedirectURL   *string               `json:"redirect_url,omitempty"`
	CompletedAt   *time.Time            `json:"completed_at,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	// UserID is only exposed on admin listings
	UserID int64 `json:"user_id,omitempty"`
}

// ListPaymentsResponse represents a paginated list of payments
type ListPaymentsResponse = types.ListResponse[*PaymentResponse]

// NewPaymentResponse creates a new payment response from a payment
func NewPaymentResponse(p *payment.Payment) *PaymentResponse {
	resp := &PaymentResponse{
		ID:            p.ID,
		CaseID:        p.CaseID,
		PlanID:        p.PlanID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Method:        p.Method,
		Provider:      p.Provider,
		Status:        p.Status,
		FailureReason: p.FailureReason,
		CompletedAt:   p.CompletedAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	// the redirect is only useful while the checkout is open
	if p.Status == types.PaymentStatusPending {
		resp.RedirectURL = p.RedirectURL
	}
	return resp
}

// NewAdminPaymentResponse includes the payer of the payment
func NewAdminPaymentResponse(p *payment.Payment) *PaymentResponse {
	resp := NewPaymentResponse(p)
	resp.UserID = p.UserID
	return resp
}

// PaymentStatusResponse is what the browser sees after returning from the provider.
// It reflects the ledger and never changes it.
type PaymentStatusResponse struct {
	PaymentID     int64               `json:"payment_id"`
	CaseID        int64               `json:"case_id"`
	Status        types.PaymentStatus `json:"status"`
	InvoiceNumber *string             `json:"invoice_number,omitempty"`
	// Final is false while the payment waits for the provider webhook
	Final bool `json:"final"`
}

// PaymentStatsRequest selects the statistics window
type PaymentStatsRequest struct {
	Period types.StatsPeriod `form:"period" validate:"omitempty,oneof=day week month year"`
}

func (r *PaymentStatsRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// PaymentMethodStats is the completed volume of one payment method
type PaymentMethodStats struct {
	Method  types.PaymentMethod `json:"method"`
	Count   int64               `json:"count"`
	Revenue decimal.Decimal     `json:"revenue"`
}

// PaymentStatsResponse aggregates completed payments of a period
type PaymentStatsResponse struct {
	Period       types.StatsPeriod     `json:"period"`
	From         time.Time             `json:"from"`
	To           time.Time             `json:"to"`
	TotalCount   int64                 `json:"total_count"`
	TotalRevenue decimal.Decimal       `json:"total_revenue"`
	ByMethod     []*PaymentMethodStats `json:"by_method"`
}
