package savings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corebank/corebank/internal/account"
	"github.com/corebank/corebank/internal/transaction"
)

// Service manages savings plans and fixed deposits. Neither product moves
// money itself: every funding or payout goes through the transaction
// orchestrator against the owner's SAVINGS account, so the ledger stays the
// single record of movement.
type Service struct {
	plans    PlanRepository
	deposits FixedDepositRepository
	accounts *account.Service
	tx       *transaction.Service
	logger   *slog.Logger
}

// NewService wires the savings service.
func NewService(plans PlanRepository, deposits FixedDepositRepository, accounts *account.Service, tx *transaction.Service, logger *slog.Logger) *Service {
	return &Service{plans: plans, deposits: deposits, accounts: accounts, tx: tx, logger: logger}
}

// CreatePlanInput captures a new savings plan request.
type CreatePlanInput struct {
	Name            string
	TargetAmount    decimal.Decimal
	StartDate       time.Time
	EndDate         time.Time
	InterestRate    decimal.Decimal
	RecurringAmount decimal.Decimal
	Frequency       Frequency
}

// CreatePlan opens a plan with a zero balance. The owner must already hold a
// SAVINGS account with at least the recurring amount available.
func (s *Service) CreatePlan(ctx context.Context, input CreatePlanInput, userID uuid.UUID) (Plan, error) {
	if err := validatePlanInput(input); err != nil {
		return Plan{}, err
	}

	savingsAccount, err := s.savingsAccount(ctx, userID)
	if err != nil {
		return Plan{}, err
	}
	if savingsAccount.Balance.LessThan(input.RecurringAmount) {
		return Plan{}, account.ErrInsufficientFunds
	}

	plan := Plan{
		ID:              uuid.New(),
		UserID:          userID,
		Name:            input.Name,
		TargetAmount:    input.TargetAmount,
		StartDate:       input.StartDate,
		EndDate:         input.EndDate,
		InterestRate:    input.InterestRate,
		RecurringAmount: input.RecurringAmount,
		Frequency:       input.Frequency,
		CurrentBalance:  decimal.Zero,
		Status:          PlanActive,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.plans.Create(ctx, plan); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// Plans lists the caller's savings plans.
func (s *Service) Plans(ctx context.Context, userID uuid.UUID) ([]Plan, error) {
	return s.plans.ListByUser(ctx, userID)
}

// Plan returns one plan after an ownership check.
func (s *Service) Plan(ctx context.Context, planID, userID uuid.UUID) (Plan, error) {
	plan, err := s.plans.Get(ctx, planID)
	if err != nil {
		return Plan{}, err
	}
	if plan.UserID != userID {
		return Plan{}, ErrAccessDenied
	}
	return plan, nil
}

// DepositToPlan funds a plan from the owner's SAVINGS account. Reaching the
// target amount marks the plan COMPLETED; further deposits are refused.
func (s *Service) DepositToPlan(ctx context.Context, planID uuid.UUID, amount decimal.Decimal, userID uuid.UUID) (Plan, error) {
	if !amount.IsPositive() {
		return Plan{}, transaction.ErrInvalidAmount
	}

	plan, err := s.Plan(ctx, planID, userID)
	if err != nil {
		return Plan{}, err
	}
	if plan.Status != PlanActive {
		return Plan{}, ErrInactivePlan
	}

	savingsAccount, err := s.savingsAccount(ctx, userID)
	if err != nil {
		return Plan{}, err
	}
	if _, _, err := s.tx.Withdraw(ctx, savingsAccount.ID, amount, userID); err != nil {
		return Plan{}, err
	}

	plan.CurrentBalance = plan.CurrentBalance.Add(amount)
	if plan.CurrentBalance.GreaterThanOrEqual(plan.TargetAmount) {
		plan.Status = PlanCompleted
		s.logger.Info("savings plan reached its target",
			slog.String("plan_id", plan.ID.String()),
			slog.String("balance", plan.CurrentBalance.String()))
	}
	if err := s.plans.Update(ctx, plan); err != nil {
		// The ledger debit already committed; reverse it so plan and account
		// balances cannot diverge.
		if _, _, depErr := s.tx.Deposit(ctx, savingsAccount.ID, amount, userID); depErr != nil {
			s.logger.Error("plan deposit reversal failed",
				slog.String("plan_id", plan.ID.String()), slog.Any("error", depErr))
		}
		return Plan{}, err
	}
	return plan, nil
}

// WithdrawFromPlan pays out part of a plan balance to the owner's SAVINGS
// account. Closed plans refuse withdrawals.
func (s *Service) WithdrawFromPlan(ctx context.Context, planID uuid.UUID, amount decimal.Decimal, userID uuid.UUID) (Plan, error) {
	if !amount.IsPositive() {
		return Plan{}, transaction.ErrInvalidAmount
	}

	plan, err := s.Plan(ctx, planID, userID)
	if err != nil {
		return Plan{}, err
	}
	if plan.Status == PlanClosed {
		return Plan{}, ErrInactivePlan
	}
	if plan.CurrentBalance.LessThan(amount) {
		return Plan{}, ErrInsufficientPlanBalance
	}

	savingsAccount, err := s.savingsAccount(ctx, userID)
	if err != nil {
		return Plan{}, err
	}
	if _, _, err := s.tx.Deposit(ctx, savingsAccount.ID, amount, userID); err != nil {
		return Plan{}, err
	}

	plan.CurrentBalance = plan.CurrentBalance.Sub(amount)
	if err := s.plans.Update(ctx, plan); err != nil {
		if _, _, wErr := s.tx.Withdraw(ctx, savingsAccount.ID, amount, userID); wErr != nil {
			s.logger.Error("plan withdrawal reversal failed",
				slog.String("plan_id", plan.ID.String()), slog.Any("error", wErr))
		}
		return Plan{}, err
	}
	return plan, nil
}

// CreateFixedDepositInput captures a new fixed deposit request.
type CreateFixedDepositInput struct {
	Amount       decimal.Decimal
	DepositDate  time.Time
	MaturityDate time.Time
	InterestRate decimal.Decimal
}

// CreateFixedDeposit locks the amount away by debiting the owner's SAVINGS
// account through the orchestrator.
func (s *Service) CreateFixedDeposit(ctx context.Context, input CreateFixedDepositInput, userID uuid.UUID) (FixedDeposit, error) {
	if err := validateFixedDepositInput(input); err != nil {
		return FixedDeposit{}, err
	}

	savingsAccount, err := s.savingsAccount(ctx, userID)
	if err != nil {
		return FixedDeposit{}, err
	}
	if savingsAccount.Balance.LessThan(input.Amount) {
		return FixedDeposit{}, account.ErrInsufficientFunds
	}

	if _, _, err := s.tx.Withdraw(ctx, savingsAccount.ID, input.Amount, userID); err != nil {
		return FixedDeposit{}, err
	}

	deposit := FixedDeposit{
		ID:           uuid.New(),
		UserID:       userID,
		Amount:       input.Amount,
		DepositDate:  input.DepositDate,
		MaturityDate: input.MaturityDate,
		InterestRate: input.InterestRate,
		Status:       FixedDepositActive,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.deposits.Create(ctx, deposit); err != nil {
		if _, _, depErr := s.tx.Deposit(ctx, savingsAccount.ID, input.Amount, userID); depErr != nil {
			s.logger.Error("fixed deposit reversal failed",
				slog.String("deposit_id", deposit.ID.String()), slog.Any("error", depErr))
		}
		return FixedDeposit{}, err
	}
	return deposit, nil
}

// FixedDeposits lists the caller's fixed deposits.
func (s *Service) FixedDeposits(ctx context.Context, userID uuid.UUID) ([]FixedDeposit, error) {
	return s.deposits.ListByUser(ctx, userID)
}

// FixedDeposit returns one fixed deposit after an ownership check.
func (s *Service) FixedDeposit(ctx context.Context, depositID, userID uuid.UUID) (FixedDeposit, error) {
	deposit, err := s.deposits.Get(ctx, depositID)
	if err != nil {
		return FixedDeposit{}, err
	}
	if deposit.UserID != userID {
		return FixedDeposit{}, ErrAccessDenied
	}
	return deposit, nil
}

// WithdrawFixedDeposit pays a matured deposit back into the owner's SAVINGS
// account and closes it.
func (s *Service) WithdrawFixedDeposit(ctx context.Context, depositID, userID uuid.UUID) (FixedDeposit, error) {
	deposit, err := s.FixedDeposit(ctx, depositID, userID)
	if err != nil {
		return FixedDeposit{}, err
	}
	if deposit.Status != FixedDepositMatured {
		return FixedDeposit{}, ErrNotMatured
	}

	savingsAccount, err := s.savingsAccount(ctx, userID)
	if err != nil {
		return FixedDeposit{}, err
	}
	if _, _, err := s.tx.Deposit(ctx, savingsAccount.ID, deposit.Amount, userID); err != nil {
		return FixedDeposit{}, err
	}

	deposit.Status = FixedDepositClosed
	if err := s.deposits.Update(ctx, deposit); err != nil {
		if _, _, wErr := s.tx.Withdraw(ctx, savingsAccount.ID, deposit.Amount, userID); wErr != nil {
			s.logger.Error("fixed deposit payout reversal failed",
				slog.String("deposit_id", deposit.ID.String()), slog.Any("error", wErr))
		}
		return FixedDeposit{}, err
	}
	return deposit, nil
}

// MatureDeposits flips every active fixed deposit past its maturity date.
// The server runs it periodically.
func (s *Service) MatureDeposits(ctx context.Context) error {
	n, err := s.deposits.MarkMatured(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("fixed deposits matured", slog.Int64("count", n))
	}
	return nil
}

func (s *Service) savingsAccount(ctx context.Context, userID uuid.UUID) (account.Account, error) {
	acct, err := s.accounts.SavingsAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return account.Account{}, ErrNoSavingsAccount
		}
		return account.Account{}, err
	}
	return acct, nil
}

func validatePlanInput(input CreatePlanInput) error {
	today := startOfToday()
	if input.Name == "" {
		return fmt.Errorf("%w: plan name is required", ErrInvalidPlan)
	}
	if input.StartDate.Before(today) {
		return fmt.Errorf("%w: start date cannot be earlier than today", ErrInvalidPlan)
	}
	if input.StartDate.After(input.EndDate) {
		return fmt.Errorf("%w: start date must be before end date", ErrInvalidPlan)
	}
	if !input.TargetAmount.IsPositive() {
		return fmt.Errorf("%w: target amount must be greater than zero", ErrInvalidPlan)
	}
	if err := validateInterestRate(input.InterestRate); err != nil {
		return err
	}
	if !input.RecurringAmount.IsPositive() {
		return fmt.Errorf("%w: recurring deposit amount must be greater than zero", ErrInvalidPlan)
	}
	if !ValidFrequency(input.Frequency) {
		return fmt.Errorf("%w: invalid recurring deposit frequency", ErrInvalidPlan)
	}
	return nil
}

func validateFixedDepositInput(input CreateFixedDepositInput) error {
	today := startOfToday()
	if input.DepositDate.Before(today) {
		return fmt.Errorf("%w: deposit date cannot be earlier than today", ErrInvalidPlan)
	}
	if !input.Amount.IsPositive() {
		return fmt.Errorf("%w: deposit amount must be greater than zero", ErrInvalidPlan)
	}
	if input.DepositDate.After(input.MaturityDate) {
		return fmt.Errorf("%w: deposit date must be before maturity date", ErrInvalidPlan)
	}
	return validateInterestRate(input.InterestRate)
}

// validateInterestRate accepts a fraction in [0, 1].
func validateInterestRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: interest rate must be between 0 and 1", ErrInvalidPlan)
	}
	return nil
}

func startOfToday() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
