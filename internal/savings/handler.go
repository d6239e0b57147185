package savings

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corebank/corebank/internal/account"
	"github.com/corebank/corebank/internal/transaction"
)

const dateLayout = "2006-01-02"

// Handler exposes savings plans and fixed deposits over HTTP.
type Handler struct {
	service *Service
}

// NewHandler builds the savings handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type planRequest struct {
	PlanName           string          `json:"plan_name"`
	TargetAmount       decimal.Decimal `json:"target_amount"`
	StartDate          string          `json:"start_date"`
	EndDate            string          `json:"end_date"`
	InterestRate       decimal.Decimal `json:"interest_rate"`
	RecurringAmount    decimal.Decimal `json:"recurring_deposit_amount"`
	RecurringFrequency string          `json:"recurring_deposit_frequency"`
}

type planResponse struct {
	PlanID             uuid.UUID       `json:"plan_id"`
	PlanName           string          `json:"plan_name"`
	TargetAmount       decimal.Decimal `json:"target_amount"`
	StartDate          string          `json:"start_date"`
	EndDate            string          `json:"end_date"`
	InterestRate       decimal.Decimal `json:"interest_rate"`
	RecurringAmount    decimal.Decimal `json:"recurring_deposit_amount"`
	RecurringFrequency string          `json:"recurring_deposit_frequency"`
	CurrentBalance     decimal.Decimal `json:"current_balance"`
	Status             string          `json:"status"`
}

type fixedDepositRequest struct {
	DepositAmount decimal.Decimal `json:"deposit_amount"`
	DepositDate   string          `json:"deposit_date"`
	MaturityDate  string          `json:"maturity_date"`
	InterestRate  decimal.Decimal `json:"interest_rate"`
}

type fixedDepositResponse struct {
	DepositID     uuid.UUID       `json:"deposit_id"`
	DepositAmount decimal.Decimal `json:"deposit_amount"`
	DepositDate   string          `json:"deposit_date"`
	MaturityDate  string          `json:"maturity_date"`
	InterestRate  decimal.Decimal `json:"interest_rate"`
	Status        string          `json:"status"`
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func toPlanResponse(plan Plan) planResponse {
	return planResponse{
		PlanID:             plan.ID,
		PlanName:           plan.Name,
		TargetAmount:       plan.TargetAmount,
		StartDate:          plan.StartDate.Format(dateLayout),
		EndDate:            plan.EndDate.Format(dateLayout),
		InterestRate:       plan.InterestRate,
		RecurringAmount:    plan.RecurringAmount,
		RecurringFrequency: string(plan.Frequency),
		CurrentBalance:     plan.CurrentBalance,
		Status:             string(plan.Status),
	}
}

func toFixedDepositResponse(deposit FixedDeposit) fixedDepositResponse {
	return fixedDepositResponse{
		DepositID:     deposit.ID,
		DepositAmount: deposit.Amount,
		DepositDate:   deposit.DepositDate.Format(dateLayout),
		MaturityDate:  deposit.MaturityDate.Format(dateLayout),
		InterestRate:  deposit.InterestRate,
		Status:        string(deposit.Status),
	}
}

// CreatePlan handles POST /savings/plans.
func (h *Handler) CreatePlan(c *fiber.Ctx) error {
	userID, err := userIDFromLocals(c)
	if err != nil {
		return err
	}

	var req planRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	startDate, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "start_date must be YYYY-MM-DD")
	}
	endDate, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "end_date must be YYYY-MM-DD")
	}

	plan, err := h.service.CreatePlan(c.Context(), CreatePlanInput{
		Name:            req.PlanName,
		TargetAmount:    req.TargetAmount,
		StartDate:       startDate,
		EndDate:         endDate,
		InterestRate:    req.InterestRate,
		RecurringAmount: req.RecurringAmount,
		Frequency:       Frequency(req.RecurringFrequency),
	}, userID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(toPlanResponse(plan))
}

// ListPlans handles GET /savings/plans.
func (h *Handler) ListPlans(c *fiber.Ctx) error {
	userID, err := userIDFromLocals(c)
	if err != nil {
		return err
	}
	plans, err := h.service.Plans(c.Context(), userID)
	if err != nil {
		return mapError(err)
	}
	out := make([]planResponse, 0, len(plans))
	for _, plan := range plans {
		out = append(out, toPlanResponse(plan))
	}
	return c.JSON(out)
}

// GetPlan handles GET /savings/plans/:planId.
func (h *Handler) GetPlan(c *fiber.Ctx) error {
	userID, planID, err := pathAndUser(c, "planId")
	if err != nil {
		return err
	}
	plan, err := h.service.Plan(c.Context(), planID, userID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toPlanResponse(plan))
}

// DepositToPlan handles POST /savings/plans/:planId/deposit.
func (h *Handler) DepositToPlan(c *fiber.Ctx) error {
	userID, planID, err := pathAndUser(c, "planId")
	if err != nil {
		return err
	}
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	plan, err := h.service.DepositToPlan(c.Context(), planID, req.Amount, userID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toPlanResponse(plan))
}

// WithdrawFromPlan handles POST /savings/plans/:planId/withdraw.
func (h *Handler) WithdrawFromPlan(c *fiber.Ctx) error {
	userID, planID, err := pathAndUser(c, "planId")
	if err != nil {
		return err
	}
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	plan, err := h.service.WithdrawFromPlan(c.Context(), planID, req.Amount, userID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toPlanResponse(plan))
}

// CreateFixedDeposit handles POST /savings/fixed-deposits.
func (h *Handler) CreateFixedDeposit(c *fiber.Ctx) error {
	userID, err := userIDFromLocals(c)
	if err != nil {
		return err
	}

	var req fixedDepositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	depositDate, err := time.Parse(dateLayout, req.DepositDate)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "deposit_date must be YYYY-MM-DD")
	}
	maturityDate, err := time.Parse(dateLayout, req.MaturityDate)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "maturity_date must be YYYY-MM-DD")
	}

	deposit, err := h.service.CreateFixedDeposit(c.Context(), CreateFixedDepositInput{
		Amount:       req.DepositAmount,
		DepositDate:  depositDate,
		MaturityDate: maturityDate,
		InterestRate: req.InterestRate,
	}, userID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(toFixedDepositResponse(deposit))
}

// ListFixedDeposits handles GET /savings/fixed-deposits.
func (h *Handler) ListFixedDeposits(c *fiber.Ctx) error {
	userID, err := userIDFromLocals(c)
	if err != nil {
		return err
	}
	deposits, err := h.service.FixedDeposits(c.Context(), userID)
	if err != nil {
		return mapError(err)
	}
	out := make([]fixedDepositResponse, 0, len(deposits))
	for _, deposit := range deposits {
		out = append(out, toFixedDepositResponse(deposit))
	}
	return c.JSON(out)
}

// GetFixedDeposit handles GET /savings/fixed-deposits/:depositId.
func (h *Handler) GetFixedDeposit(c *fiber.Ctx) error {
	userID, depositID, err := pathAndUser(c, "depositId")
	if err != nil {
		return err
	}
	deposit, err := h.service.FixedDeposit(c.Context(), depositID, userID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toFixedDepositResponse(deposit))
}

// WithdrawFixedDeposit handles POST /savings/fixed-deposits/:depositId/withdraw.
func (h *Handler) WithdrawFixedDeposit(c *fiber.Ctx) error {
	userID, depositID, err := pathAndUser(c, "depositId")
	if err != nil {
		return err
	}
	deposit, err := h.service.WithdrawFixedDeposit(c.Context(), depositID, userID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toFixedDepositResponse(deposit))
}

func pathAndUser(c *fiber.Ctx, param string) (uuid.UUID, uuid.UUID, error) {
	userID, err := userIDFromLocals(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+param)
	}
	return userID, id, nil
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
	switch {
	case errors.Is(err, ErrInvalidPlan),
		errors.Is(err, ErrNoSavingsAccount),
		errors.Is(err, ErrInactivePlan),
		errors.Is(err, ErrInsufficientPlanBalance),
		errors.Is(err, account.ErrInsufficientFunds),
		errors.Is(err, transaction.ErrInvalidAmount):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrAccessDenied), errors.Is(err, account.ErrAccessDenied):
		return fiber.NewError(fiber.StatusForbidden, "access denied")
	case errors.Is(err, ErrPlanNotFound), errors.Is(err, ErrFixedDepositNotFound), errors.Is(err, account.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotMatured):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "savings operation failed")
	}
}
