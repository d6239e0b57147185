package transaction

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corebank/corebank/internal/account"
	"github.com/corebank/corebank/internal/ledger"
)

// Handler exposes the orchestrator over HTTP.
type Handler struct {
	service *Service
}

// NewHandler builds the transaction handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	FromAccountID uuid.UUID       `json:"from_account_id"`
	ToAccountID   uuid.UUID       `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type balanceUpdateResponse struct {
	Record  any             `json:"record"`
	Balance decimal.Decimal `json:"balance"`
}

type historyEntry struct {
	Kind   string       `json:"kind"`
	Record ledger.Entry `json:"record"`
}

// Transfer handles POST /transactions/transfer.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	userID, err := userIDFromLocals(c)
	if err != nil {
		return err
	}

	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	record, err := h.service.Transfer(c.Context(), req.FromAccountID, req.ToAccountID, req.Amount, req.Description, userID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(record)
}

// Deposit handles POST /transactions/deposit/:accountId.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	userID, accountID, err := pathAndUser(c)
	if err != nil {
		return err
	}

	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	record, balance, err := h.service.Deposit(c.Context(), accountID, req.Amount, userID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(balanceUpdateResponse{Record: record, Balance: balance})
}

// Withdraw handles POST /transactions/withdraw/:accountId.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	userID, accountID, err := pathAndUser(c)
	if err != nil {
		return err
	}

	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	record, balance, err := h.service.Withdraw(c.Context(), accountID, req.Amount, userID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(balanceUpdateResponse{Record: record, Balance: balance})
}

// History handles GET /transactions/history/:accountId.
func (h *Handler) History(c *fiber.Ctx) error {
	userID, accountID, err := pathAndUser(c)
	if err != nil {
		return err
	}

	entries, err := h.service.History(c.Context(), accountID, userID)
	if err != nil {
		return mapError(err)
	}

	out := make([]historyEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, historyEntry{Kind: string(entry.EntryKind()), Record: entry})
	}
	return c.JSON(out)
}

func pathAndUser(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	userID, err := userIDFromLocals(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	accountID, err := uuid.Parse(c.Params("accountId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid account id")
	}
	return userID, accountID, nil
}

func userIDFromLocals(c *fiber.Ctx) (uuid.UUID, error) {
	raw, ok := c.Locals("user_id").(string)
	if !ok {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "authentication required")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "authentication required")
	}
	return userID, nil
}

func mapError(err error) error {
	var blocked *FraudBlockedError
	switch {
	case errors.As(err, &blocked):
		return fiber.NewError(fiber.StatusForbidden, "transfer blocked: "+string(blocked.Reason))
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ledger.ErrNonPositiveAmount),
		errors.Is(err, ledger.ErrSameAccount):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, account.ErrInsufficientFunds):
		return fiber.NewError(fiber.StatusBadRequest, "insufficient funds")
	case errors.Is(err, account.ErrAccessDenied):
		return fiber.NewError(fiber.StatusForbidden, "account does not belong to the authenticated user")
	case errors.Is(err, account.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "account not found")
	case errors.Is(err, ledger.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, "transaction conflict, retry the request")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "transaction failed")
	}
}
