package document

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceData is everything printed on an invoice document. It is assembled
// from the immutable invoice row, so rendering twice yields the same document.
type InvoiceData struct {
	InvoiceNumber string          `json:"invoice_number"`
	IssuingDate   time.Time       `json:"issuing_date"`
	Currency      string          `json:"currency"`
	Total         decimal.Decimal `json:"total"`
	PaymentID     int64           `json:"payment_id"`
	PaymentMethod string          `json:"payment_method"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`

	Biller    *BillerInfo    `json:"biller"`
	Recipient *RecipientInfo `json:"recipient"`

	LineItems []LineItemData `json:"line_items"`
}

// BillerInfo contains company information for the invoice issuer
type BillerInfo struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// RecipientInfo contains customer information for the invoice recipient
type RecipientInfo struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// LineItemData is one printed line, the plan a case was paid against
type LineItemData struct {
	DisplayName string          `json:"display_name"`
	Description string          `json:"description,omitempty"`
	CaseID      int64           `json:"case_id"`
	Amount      decimal.Decimal `json:"amount"`
}
