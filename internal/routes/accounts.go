package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/corebank/corebank/internal/account"
)

// RegisterAccountRoutes wires account endpoints.
func RegisterAccountRoutes(r fiber.Router, h *account.Handler) {
	group := r.Group("/accounts")
	group.Post("/", h.Open)
	group.Get("/user/:userId", h.ListByUser)
	group.Get("/:accountId", h.Get)
	group.Get("/:accountId/balance", h.Balance)
	group.Delete("/:accountId", h.Close)
}
