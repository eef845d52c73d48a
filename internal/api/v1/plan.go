package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/service"
	"github.com/lm-legal/payments/internal/types"
)

type PlanHandler struct {
	service service.PlanService
}

func NewPlanHandler(service service.PlanService) *PlanHandler {
	return &PlanHandler{service: service}
}

// @Summary List plans
// @Description Lists the plans that can be bought at checkout
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.ListPlansResponse
// @Router /plans [get]
func (h *PlanHandler) ListPlans(c *gin.Context) {
	resp, err := h.service.ListPlans(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get a plan
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Plan ID"
// @Success 200 {object} dto.PlanResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /plans/{id} [get]
func (h *PlanHandler) GetPlan(c *gin.Context) {
	id, ok := types.ParseID(c.Param("id"))
	if !ok {
		c.Error(ierr.NewError("invalid plan id").
			WithHint("Plan ID must be a positive number").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.GetPlan(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
