package postgres

import (
	"context"
	"database/sql"

	"github.com/lm-legal/payments/internal/domain/user"
	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/postgres"
)

type userRepository struct {
	db  *postgres.DB
	log *logger.Logger
}

func NewUserRepository(db *postgres.DB, log *logger.Logger) user.Repository {
	return &userRepository{db: db, log: log}
}

func (r *userRepository) Get(ctx context.Context, id int64) (*user.User, error) {
	var u user.User
	err := r.db.GetQuerier(ctx).GetContext(ctx, &u, `SELECT id, email, name FROM users WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, user.ErrNotFound(id)
		}
		return nil, postgres.WrapError(err, "Failed to retrieve user")
	}
	return &u, nil
}
