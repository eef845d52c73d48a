package payment

import (
	"context"
	"time"

	"github.com/lm-legal/payments/internal/types"
)

// Repository defines the interface for payment persistence
type Repository interface {
	// Create inserts a pending payment. It returns ErrDuplicateActivePayment when the
	// case already has a pending or completed payment.
	Create(ctx context.Context, payment *Payment) error
	Get(ctx context.Context, id int64) (*Payment, error)
	GetByProviderReference(ctx context.Context, provider types.PaymentProvider, ref string) (*Payment, error)
	ListByCase(ctx context.Context, caseID int64) ([]*Payment, error)

	// AttachSession records the provider session once. Calling it again with the
	// same reference is a no-op; a different reference is rejected.
	AttachSession(ctx context.Context, id int64, ref string, redirectURL string) (*Payment, error)

	// Transition moves the payment to target only when its stored status is one of
	// expected. A miss is not an error: the current record is returned with Applied false.
	Transition(ctx context.Context, id int64, target types.PaymentStatus, expected []types.PaymentStatus, reason *string) (*TransitionResult, error)

	List(ctx context.Context, filter *types.PaymentFilter) ([]*Payment, error)
	Count(ctx context.Context, filter *types.PaymentFilter) (int, error)
	// Stats aggregates completed payments per method in [from, to)
	Stats(ctx context.Context, from, to time.Time) ([]*Stats, error)
}
