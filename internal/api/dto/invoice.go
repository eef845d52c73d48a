package dto

import (
	"time"

	"github.com/lm-legal/payments/internal/domain/invoice"
	"github.com/shopspring/decimal"
)

// InvoiceResponse represents an issued invoice
type InvoiceResponse struct {
	InvoiceNumber string          `json:"invoice_number"`
	PaymentID     int64           `json:"payment_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	IssuedAt      time.Time       `json:"issued_at"`
	// ArtifactURL is a time limited download link, empty when the artifact
	// store cannot sign links
	ArtifactURL string `json:"artifact_url,omitempty"`
}

func NewInvoiceResponse(inv *invoice.Invoice, artifactURL string) *InvoiceResponse {
	return &InvoiceResponse{
		InvoiceNumber: inv.Number,
		PaymentID:     inv.PaymentID,
		Amount:        inv.Amount,
		Currency:      inv.Currency,
		IssuedAt:      inv.IssuedAt,
		ArtifactURL:   artifactURL,
	}
}

// InvoiceDocument is the rendered artifact of an invoice
type InvoiceDocument struct {
	FileName    string
	ContentType string
	Data        []byte
}
