package invoice

import "context"

// Repository defines the interface for invoice persistence
type Repository interface {
	// Create inserts the invoice. A second invoice for the same payment fails
	// with ErrInvoiceAlreadyExists.
	Create(ctx context.Context, inv *Invoice) error
	GetByPaymentID(ctx context.Context, paymentID int64) (*Invoice, error)

	// NextSequence atomically increments and returns the counter of year,
	// starting at 1. Run it in the same transaction as Create so a rejected
	// insert also rolls the counter back.
	NextSequence(ctx context.Context, year int) (int64, error)
}
