package account

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Handler exposes account HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds an account HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type openRequest struct {
	Type           string          `json:"account_type"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

type accountResponse struct {
	ID        uuid.UUID       `json:"account_id"`
	UserID    uuid.UUID       `json:"user_id"`
	Number    string          `json:"account_number"`
	Type      string          `json:"account_type"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt string          `json:"created_at"`
}

// Open creates an account for the authenticated user.
func (h *Handler) Open(c *fiber.Ctx) error {
	var req openRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	userID, err := userIDFromLocals(c)
	if err != nil {
		return err
	}

	a, err := h.service.Open(c.UserContext(), OpenInput{
		UserID:         userID,
		Type:           req.Type,
		InitialBalance: req.InitialBalance,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateType) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toResponse(a))
}

// Get returns an owned account by id.
func (h *Handler) Get(c *fiber.Ctx) error {
	id, userID, err := pathAndUser(c)
	if err != nil {
		return err
	}
	a, err := h.service.GetOwned(c.UserContext(), id, userID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toResponse(a))
}

// ListByUser returns the accounts of the user in the path.
func (h *Handler) ListByUser(c *fiber.Ctx) error {
	pathUserID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid user id")
	}
	userID, err := userIDFromLocals(c)
	if err != nil {
		return err
	}
	accounts, err := h.service.ListByUser(c.UserContext(), pathUserID, userID)
	if err != nil {
		return mapError(err)
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toResponse(a))
	}
	return c.JSON(out)
}

// Balance returns the balance of an owned account.
func (h *Handler) Balance(c *fiber.Ctx) error {
	id, userID, err := pathAndUser(c)
	if err != nil {
		return err
	}
	balance, err := h.service.Balance(c.UserContext(), id, userID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"account_id": id, "balance": balance})
}

// Close deletes an owned, zero-balance account.
func (h *Handler) Close(c *fiber.Ctx) error {
	id, userID, err := pathAndUser(c)
	if err != nil {
		return err
	}
	if err := h.service.Close(c.UserContext(), id, userID); err != nil {
		if errors.Is(err, ErrBalanceNotZero) {
			return fiber.NewError(http.StatusConflict, err.Error())
		}
		return mapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func toResponse(a Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		UserID:    a.UserID,
		Number:    a.Number,
		Type:      a.Type,
		Balance:   a.Balance,
		CreatedAt: a.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAccessDenied):
		return fiber.NewError(http.StatusForbidden, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

func pathAndUser(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("accountId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(http.StatusBadRequest, "invalid account id")
	}
	userID, err := userIDFromLocals(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return id, userID, nil
}

func userIDFromLocals(c *fiber.Ctx) (uuid.UUID, error) {
	raw, _ := c.Locals("user_id").(string)
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	return userID, nil
}
