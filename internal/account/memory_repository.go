package account

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[uuid.UUID]Account
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[uuid.UUID]Account)}
}

func (r *memoryRepository) Create(_ context.Context, a Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.storage {
		if existing.UserID == a.UserID && existing.Type == a.Type {
			return ErrDuplicateType
		}
	}
	r.storage[a.ID] = a
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id uuid.UUID) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.storage[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (r *memoryRepository) GetByUser(_ context.Context, userID uuid.UUID) ([]Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var accounts []Account
	for _, a := range r.storage {
		if a.UserID == userID {
			accounts = append(accounts, a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].CreatedAt.Before(accounts[j].CreatedAt) })
	return accounts, nil
}

func (r *memoryRepository) GetByUserAndType(_ context.Context, userID uuid.UUID, accountType string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.storage {
		if a.UserID == userID && a.Type == accountType {
			return a, nil
		}
	}
	return Account{}, ErrNotFound
}

func (r *memoryRepository) ApplyDelta(_ context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.storage[id]
	if !ok {
		return decimal.Zero, ErrNotFound
	}
	next := a.Balance.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, ErrInsufficientFunds
	}
	a.Balance = next
	r.storage[id] = a
	return next, nil
}

func (r *memoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.storage[id]
	if !ok {
		return ErrNotFound
	}
	if !a.Balance.IsZero() {
		return ErrBalanceNotZero
	}
	delete(r.storage, id)
	return nil
}
