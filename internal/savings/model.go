package savings

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrPlanNotFound indicates the savings plan does not exist.
	ErrPlanNotFound = errors.New("savings plan not found")

	// ErrFixedDepositNotFound indicates the fixed deposit does not exist.
	ErrFixedDepositNotFound = errors.New("fixed deposit not found")

	// ErrAccessDenied indicates the plan or deposit belongs to another user.
	ErrAccessDenied = errors.New("savings product does not belong to the authenticated user")

	// ErrInactivePlan indicates a deposit or withdrawal against a plan that is
	// no longer active.
	ErrInactivePlan = errors.New("savings plan is not active")

	// ErrNotMatured indicates an early withdrawal attempt on a fixed deposit.
	ErrNotMatured = errors.New("fixed deposit has not matured")

	// ErrInsufficientPlanBalance indicates a withdrawal larger than the plan
	// balance.
	ErrInsufficientPlanBalance = errors.New("insufficient savings plan balance")

	// ErrNoSavingsAccount indicates the user holds no SAVINGS account to move
	// money through.
	ErrNoSavingsAccount = errors.New("a SAVINGS account is required")

	// ErrInvalidPlan indicates a rejected plan or deposit request.
	ErrInvalidPlan = errors.New("invalid request")
)

// Plan statuses.
type PlanStatus string

const (
	PlanActive    PlanStatus = "ACTIVE"
	PlanCompleted PlanStatus = "COMPLETED"
	PlanClosed    PlanStatus = "CLOSED"
)

// Fixed deposit statuses.
type FixedDepositStatus string

const (
	FixedDepositActive  FixedDepositStatus = "ACTIVE"
	FixedDepositMatured FixedDepositStatus = "MATURED"
	FixedDepositClosed  FixedDepositStatus = "CLOSED"
)

// Frequency is the recurring deposit cadence of a plan.
type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
)

// ValidFrequency reports whether f is one of the known cadences.
func ValidFrequency(f Frequency) bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Plan is a goal-based savings product. Its balance is separate from the
// owner's SAVINGS account; money enters and leaves a plan only through that
// account, so the ledger records every movement.
type Plan struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Name            string
	TargetAmount    decimal.Decimal
	StartDate       time.Time
	EndDate         time.Time
	InterestRate    decimal.Decimal
	RecurringAmount decimal.Decimal
	Frequency       Frequency
	CurrentBalance  decimal.Decimal
	Status          PlanStatus
	CreatedAt       time.Time
}

// FixedDeposit locks an amount away from the SAVINGS account until maturity.
type FixedDeposit struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Amount       decimal.Decimal
	DepositDate  time.Time
	MaturityDate time.Time
	InterestRate decimal.Decimal
	Status       FixedDepositStatus
	CreatedAt    time.Time
}
