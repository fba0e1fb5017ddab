package controller

import (
	"github.com/gofiber/fiber/v2"

	"invoice-collector-be/internal/dto"
	"invoice-collector-be/pkg/resilience"
)

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
}

// healthController exposes liveness plus a snapshot of every circuit
// breaker, so operators can see which dependency tripped.
type healthController struct {
	breakers *resilience.BreakerRegistry
}

func NewHealthController(breakers *resilience.BreakerRegistry) IHealthController {
	return &healthController{breakers: breakers}
}

func (c *healthController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/health/v1")
	h.Get("", c.Health)
}

func (c *healthController) Health(ctx *fiber.Ctx) error {
	statuses := c.breakers.StatusAll()

	resp := dto.HealthResponse{Status: "ok"}
	for _, st := range statuses {
		if st.State == resilience.StateOpen {
			resp.Status = "degraded"
		}
		resp.Breakers = append(resp.Breakers, dto.BreakerStatusResponse{
			Name:                 st.Name,
			State:                string(st.State),
			ConsecutiveFailures:  st.ConsecutiveFailures,
			ConsecutiveSuccesses: st.ConsecutiveSuccesses,
			Rejected:             st.Rejected,
			OpenedAt:             st.OpenedAt,
		})
	}
	return ctx.JSON(resp)
}
