package dto

import (
	"github.com/lm-legal/payments/internal/domain/plan"
	"github.com/lm-legal/payments/internal/types"
	"github.com/shopspring/decimal"
)

// PlanResponse represents a priced plan offered at checkout
type PlanResponse struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	ServiceType string          `json:"service_type"`
}

// ListPlansResponse lists the active plans
type ListPlansResponse = types.ListResponse[*PlanResponse]

func NewPlanResponse(p *plan.Plan) *PlanResponse {
	return &PlanResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Currency:    p.Currency,
		ServiceType: p.ServiceType,
	}
}
