package plan

import (
	"context"

	ierr "github.com/lm-legal/payments/internal/errors"
)

// Repository defines the interface for plan persistence
type Repository interface {
	Get(ctx context.Context, id int64) (*Plan, error)
	ListActive(ctx context.Context) ([]*Plan, error)
}

func ErrNotFound(id int64) error {
	return ierr.NewErrorf("plan %d not found", id).
		WithHint("Plan not found").
		WithReportableDetails(map[string]any{
			"code":    "plan_not_found",
			"plan_id": id,
		}).
		Mark(ierr.ErrNotFound)
}

func ErrInactive(id int64) error {
	return ierr.NewErrorf("plan %d is not active", id).
		WithHint("This plan is no longer available").
		WithReportableDetails(map[string]any{
			"code":    "plan_inactive",
			"plan_id": id,
		}).
		Mark(ierr.ErrValidation)
}
