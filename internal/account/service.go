package account

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service exposes account lifecycle and ownership checks. All operations take
// the authenticated user so ownership is asserted in one place.
type Service struct {
	repo Repository
}

// NewService builds an account service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// OpenInput captures data required to open an account.
type OpenInput struct {
	UserID         uuid.UUID
	Type           string
	InitialBalance decimal.Decimal
}

// Open provisions an account for the requesting user. A user may hold at most
// one account of each type.
func (s *Service) Open(ctx context.Context, input OpenInput) (Account, error) {
	if input.Type == "" {
		return Account{}, fmt.Errorf("account type is required")
	}
	if input.InitialBalance.IsNegative() {
		return Account{}, fmt.Errorf("initial balance must not be negative")
	}

	a := Account{
		ID:        uuid.New(),
		UserID:    input.UserID,
		Number:    GenerateNumber(),
		Type:      input.Type,
		Balance:   input.InitialBalance,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return Account{}, err
	}
	return a, nil
}

// GetOwned fetches an account and asserts the requesting user owns it.
func (s *Service) GetOwned(ctx context.Context, id, userID uuid.UUID) (Account, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if a.UserID != userID {
		return Account{}, ErrAccessDenied
	}
	return a, nil
}

// Get fetches an account without an ownership check. Used for transfer
// destinations, which only need to exist.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Account, error) {
	return s.repo.Get(ctx, id)
}

// ListByUser returns the accounts held by userID. Users may only list their own.
func (s *Service) ListByUser(ctx context.Context, userID, requestingUserID uuid.UUID) ([]Account, error) {
	if userID != requestingUserID {
		return nil, ErrAccessDenied
	}
	return s.repo.GetByUser(ctx, userID)
}

// SavingsAccount returns the user's SAVINGS account, required by savings plans
// and fixed deposits.
func (s *Service) SavingsAccount(ctx context.Context, userID uuid.UUID) (Account, error) {
	return s.repo.GetByUserAndType(ctx, userID, TypeSavings)
}

// Balance returns the current balance of an owned account.
func (s *Service) Balance(ctx context.Context, id, userID uuid.UUID) (decimal.Decimal, error) {
	a, err := s.GetOwned(ctx, id, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return a.Balance, nil
}

// ValidateOwnership fails with ErrAccessDenied unless userID owns the account.
func (s *Service) ValidateOwnership(ctx context.Context, id, userID uuid.UUID) error {
	_, err := s.GetOwned(ctx, id, userID)
	return err
}

// Close deletes an owned account. Accounts holding funds are refused.
func (s *Service) Close(ctx context.Context, id, userID uuid.UUID) error {
	if _, err := s.GetOwned(ctx, id, userID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
