package postgres

import (
	"context"
	"database/sql"

	"github.com/lm-legal/payments/internal/cache"
	"github.com/lm-legal/payments/internal/domain/plan"
	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/postgres"
)

const planColumns = `id, name, description, price, currency, service_type, is_active, created_at, updated_at`

type planRepository struct {
	db    *postgres.DB
	log   *logger.Logger
	cache cache.Cache
}

func NewPlanRepository(db *postgres.DB, log *logger.Logger, cache cache.Cache) plan.Repository {
	return &planRepository{db: db, log: log, cache: cache}
}

func (r *planRepository) Get(ctx context.Context, id int64) (*plan.Plan, error) {
	key := cache.GenerateKey(cache.PrefixPlan, id)
	if cached, ok := r.cache.Get(ctx, key); ok {
		if p, ok := cached.(*plan.Plan); ok {
			return p, nil
		}
	}

	var p plan.Plan
	err := r.db.GetQuerier(ctx).GetContext(ctx, &p, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, plan.ErrNotFound(id)
		}
		return nil, postgres.WrapError(err, "Failed to retrieve plan")
	}

	r.cache.Set(ctx, key, &p, 0)
	return &p, nil
}

func (r *planRepository) ListActive(ctx context.Context) ([]*plan.Plan, error) {
	key := cache.GenerateKey(cache.PrefixPlanList, "active")
	if cached, ok := r.cache.Get(ctx, key); ok {
		if plans, ok := cached.([]*plan.Plan); ok {
			return plans, nil
		}
	}

	var plans []*plan.Plan
	err := r.db.GetQuerier(ctx).SelectContext(ctx, &plans,
		`SELECT `+planColumns+` FROM plans WHERE is_active ORDER BY price, id`)
	if err != nil {
		return nil, postgres.WrapError(err, "Failed to list plans")
	}

	r.log.Debugw("loaded active plans", "count", len(plans))
	r.cache.Set(ctx, key, plans, 0)
	return plans, nil
}
