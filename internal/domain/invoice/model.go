package invoice

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is the billing artifact of a completed payment. Rows are written once
// and never updated.
type Invoice struct {
	ID        int64 `json:"id" db:"id"`
	PaymentID int64 `json:"payment_id" db:"payment_id"`
	// Number is globally unique, formatted <prefix>-<year>-<5 digit sequence>
	Number   string          `json:"invoice_number" db:"invoice_number"`
	Year     int             `json:"year" db:"year"`
	Sequence int64           `json:"sequence" db:"sequence"`
	Amount   decimal.Decimal `json:"amount" db:"amount"`
	Currency string          `json:"currency" db:"currency"`
	// ArtifactKey locates the rendered document in the artifact store
	ArtifactKey string    `json:"artifact_key" db:"artifact_key"`
	IssuedAt    time.Time `json:"issued_at" db:"issued_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// MaxSequence is the last number of a year that fits the five digit format
const MaxSequence = 99999

// FormatNumber renders an invoice number, e.g. LM-2025-00001. A sequence
// outside 1..MaxSequence is rejected instead of widening the number.
func FormatNumber(prefix string, year int, seq int64) (string, error) {
	if seq < 1 || seq > MaxSequence {
		return "", ErrSequenceExhausted(year, seq)
	}
	return fmt.Sprintf("%s-%d-%05d", prefix, year, seq), nil
}

// ArtifactKeyFor returns the storage key of an invoice document
func ArtifactKeyFor(number string) string {
	return fmt.Sprintf("%s.html", number)
}
