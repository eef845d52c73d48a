package legalcase

import (
	"time"

	"github.com/lm-legal/payments/internal/types"
)

// Case is the part of a legal case the payment flow depends on
type Case struct {
	ID     int64            `json:"id" db:"id"`
	UserID int64            `json:"user_id" db:"user_id"`
	Title  string           `json:"title" db:"title"`
	Status types.CaseStatus `json:"status" db:"status"`
	// IsDemo cases are free and never go through checkout
	IsDemo    bool      `json:"is_demo" db:"is_demo"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsOwnedBy reports whether userID owns the case
func (c *Case) IsOwnedBy(userID int64) bool {
	return c.UserID == userID
}
