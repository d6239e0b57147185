package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/corebank/corebank/internal/savings"
)

// RegisterSavingsRoutes wires savings plan and fixed deposit endpoints.
func RegisterSavingsRoutes(r fiber.Router, h *savings.Handler) {
	plans := r.Group("/savings/plans")
	plans.Post("/", h.CreatePlan)
	plans.Get("/", h.ListPlans)
	plans.Get("/:planId", h.GetPlan)
	plans.Post("/:planId/deposit", h.DepositToPlan)
	plans.Post("/:planId/withdraw", h.WithdrawFromPlan)

	deposits := r.Group("/savings/fixed-deposits")
	deposits.Post("/", h.CreateFixedDeposit)
	deposits.Get("/", h.ListFixedDeposits)
	deposits.Get("/:depositId", h.GetFixedDeposit)
	deposits.Post("/:depositId/withdraw", h.WithdrawFixedDeposit)
}
