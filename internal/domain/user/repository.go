package user

import (
	"context"

	ierr "github.com/lm-legal/payments/internal/errors"
)

type Repository interface {
	Get(ctx context.Context, id int64) (*User, error)
}

func ErrNotFound(id int64) error {
	return ierr.NewErrorf("user %d not found", id).
		WithHint("User not found").
		Mark(ierr.ErrNotFound)
}
