package service

import (
	"context"

	"github.com/lm-legal/payments/internal/api/dto"
	"github.com/lm-legal/payments/internal/domain/plan"
	"github.com/lm-legal/payments/internal/types"
	"github.com/samber/lo"
)

type PlanService interface {
	ListPlans(ctx context.Context) (*dto.ListPlansResponse, error)
	GetPlan(ctx context.Context, id int64) (*dto.PlanResponse, error)
}

type planService struct {
	ServiceParams
}

func NewPlanService(params ServiceParams) PlanService {
	return &planService{ServiceParams: params}
}

func (s *planService) ListPlans(ctx context.Context) (*dto.ListPlansResponse, error) {
	plans, err := s.PlanRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	items := lo.Map(plans, func(p *plan.Plan, _ int) *dto.PlanResponse {
		return dto.NewPlanResponse(p)
	})
	resp := types.NewListResponse(items, len(items), len(items), 0)
	return &resp, nil
}

func (s *planService) GetPlan(ctx context.Context, id int64) (*dto.PlanResponse, error) {
	p, err := s.PlanRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, plan.ErrNotFound(id)
	}
	return dto.NewPlanResponse(p), nil
}
