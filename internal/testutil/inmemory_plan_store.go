package testutil

import (
	"context"

	"github.com/lm-legal/payments/internal/domain/plan"
)

// InMemoryPlanStore implements plan.Repository
type InMemoryPlanStore struct {
	*InMemoryStore[*plan.Plan]
}

var _ plan.Repository = (*InMemoryPlanStore)(nil)

func NewInMemoryPlanStore() *InMemoryPlanStore {
	return &InMemoryPlanStore{
		InMemoryStore: NewInMemoryStore(func(p *plan.Plan) *plan.Plan {
			cp := *p
			return &cp
		}),
	}
}

func (s *InMemoryPlanStore) Get(ctx context.Context, id int64) (*plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.get(id)
	if !ok {
		return nil, plan.ErrNotFound(id)
	}
	return p, nil
}

func (s *InMemoryPlanStore) ListActive(ctx context.Context) ([]*plan.Plan, error) {
	return s.Find(
		func(p *plan.Plan) bool { return p.IsActive },
		func(a, b *plan.Plan) bool { return a.Price.LessThan(b.Price) },
	), nil
}
