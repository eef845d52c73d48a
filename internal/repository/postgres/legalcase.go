package postgres

import (
	"context"
	"database/sql"

	"github.com/lm-legal/payments/internal/domain/legalcase"
	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/postgres"
	"github.com/lm-legal/payments/internal/types"
)

type legalCaseRepository struct {
	db  *postgres.DB
	log *logger.Logger
}

func NewLegalCaseRepository(db *postgres.DB, log *logger.Logger) legalcase.Repository {
	return &legalCaseRepository{db: db, log: log}
}

func (r *legalCaseRepository) Get(ctx context.Context, id int64) (*legalcase.Case, error) {
	query := `SELECT id, user_id, title, status, is_demo, created_at, updated_at FROM legal_cases WHERE id = $1`

	var c legalcase.Case
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &c, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, legalcase.ErrNotFound(id)
		}
		return nil, postgres.WrapError(err, "Failed to retrieve case")
	}
	return &c, nil
}

func (r *legalCaseRepository) AdvanceToProcessing(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE legal_cases SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ($2, $3)`

	res, err := r.db.GetQuerier(ctx).ExecContext(ctx, query, id,
		types.CaseStatusProcessing,
		types.CaseStatusCompleted,
	)
	if err != nil {
		return false, postgres.WrapError(err, "Failed to advance case")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, postgres.WrapError(err, "Failed to advance case")
	}
	if n > 0 {
		return true, nil
	}

	// Distinguish a missing case from one that has already moved on
	if _, err := r.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}
