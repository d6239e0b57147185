package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/corebank/corebank/internal/transaction"
)

// RegisterTransactionRoutes wires the ledger endpoints.
func RegisterTransactionRoutes(r fiber.Router, h *transaction.Handler) {
	group := r.Group("/transactions")
	group.Post("/transfer", h.Transfer)
	group.Post("/deposit/:accountId", h.Deposit)
	group.Post("/withdraw/:accountId", h.Withdraw)
	group.Get("/history/:accountId", h.History)
}
