package payment

import (
	"github.com/lm-legal/payments/internal/types"
	"github.com/samber/lo"
)

// legalTransitions lists every edge of the payment state machine
var legalTransitions = map[types.PaymentStatus][]types.PaymentStatus{
	types.PaymentStatusPending:   {types.PaymentStatusCompleted, types.PaymentStatusFailed},
	types.PaymentStatusCompleted: {types.PaymentStatusRefunded},
}

// CanTransition reports whether from -> to is an edge of the state machine
func CanTransition(from, to types.PaymentStatus) bool {
	return lo.Contains(legalTransitions[from], to)
}

// ValidateTransition checks that moving to target from every expected state is legal
func ValidateTransition(target types.PaymentStatus, expected []types.PaymentStatus) error {
	if len(expected) == 0 {
		return ErrInvalidTransition(nil, target)
	}
	for _, from := range expected {
		if !CanTransition(from, target) {
			return ErrInvalidTransition(&from, target)
		}
	}
	return nil
}

// TransitionResult is the outcome of a compare-and-swap transition
type TransitionResult struct {
	// Payment is the stored record after the call
	Payment *Payment
	// Applied is false when the stored status was not one of the expected states
	Applied bool
	// Previous is the status the CAS moved away from, set only when Applied
	Previous types.PaymentStatus
}
