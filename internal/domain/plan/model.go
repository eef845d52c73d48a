package plan

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan is a priced service offering that a case is paid against
type Plan struct {
	ID          int64           `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Currency    string          `json:"currency" db:"currency"`
	// ServiceType groups plans for reporting, e.g. "assessment"
	ServiceType string    `json:"service_type" db:"service_type"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
