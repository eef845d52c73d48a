package legalcase

import (
	"context"

	ierr "github.com/lm-legal/payments/internal/errors"
)

// Repository is the boundary to the case workflow owned outside the payment subsystem
type Repository interface {
	Get(ctx context.Context, id int64) (*Case, error)

	// AdvanceToProcessing moves the case to processing. It returns false without
	// error when the case is already processing or completed.
	AdvanceToProcessing(ctx context.Context, id int64) (bool, error)
}

func ErrNotFound(id int64) error {
	return ierr.NewErrorf("case %d not found", id).
		WithHint("Case not found").
		WithReportableDetails(map[string]any{
			"code":    "case_not_found",
			"case_id": id,
		}).
		Mark(ierr.ErrNotFound)
}

func ErrNotOwner(id int64) error {
	return ierr.NewErrorf("case %d belongs to another user", id).
		WithHint("You do not have access to this case").
		WithReportableDetails(map[string]any{
			"code":    "not_owner",
			"case_id": id,
		}).
		Mark(ierr.ErrPermissionDenied)
}

func ErrDemoCase(id int64) error {
	return ierr.NewErrorf("case %d is a demo case", id).
		WithHint("Demo cases are free and cannot be paid").
		WithReportableDetails(map[string]any{
			"code":    "demo_case",
			"case_id": id,
		}).
		Mark(ierr.ErrValidation)
}
