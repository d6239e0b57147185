package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corebank/corebank/internal/account"
)

// inMemoryEngine applies deltas to an account repository and keeps records in
// slices. One mutex serializes whole operations, which stands in for the row
// locks the Postgres engine takes.
type inMemoryEngine struct {
	mu          sync.RWMutex
	accounts    account.Repository
	deposits    []Deposit
	withdrawals []Withdrawal
	transfers   []Transfer
}

// NewInMemory creates a concurrency-safe in-memory ledger engine useful for
// unit tests. It mutates balances through the supplied account repository so
// reads elsewhere observe committed deltas.
func NewInMemory(accounts account.Repository) Engine {
	return &inMemoryEngine{accounts: accounts}
}

func (e *inMemoryEngine) Deposit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (Deposit, decimal.Decimal, error) {
	if !amount.IsPositive() {
		return Deposit{}, decimal.Zero, ErrNonPositiveAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	newBalance, err := e.accounts.ApplyDelta(ctx, accountID, amount)
	if err != nil {
		return Deposit{}, decimal.Zero, err
	}
	record := Deposit{ID: uuid.New(), AccountID: accountID, Amount: amount, RecordedAt: time.Now().UTC()}
	e.deposits = append(e.deposits, record)
	return record, newBalance, nil
}

func (e *inMemoryEngine) Withdraw(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (Withdrawal, decimal.Decimal, error) {
	if !amount.IsPositive() {
		return Withdrawal{}, decimal.Zero, ErrNonPositiveAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	newBalance, err := e.accounts.ApplyDelta(ctx, accountID, amount.Neg())
	if err != nil {
		return Withdrawal{}, decimal.Zero, err
	}
	record := Withdrawal{ID: uuid.New(), AccountID: accountID, Amount: amount, RecordedAt: time.Now().UTC()}
	e.withdrawals = append(e.withdrawals, record)
	return record, newBalance, nil
}

func (e *inMemoryEngine) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount decimal.Decimal, description string) (Transfer, error) {
	if !amount.IsPositive() {
		return Transfer{}, ErrNonPositiveAmount
	}
	if fromID == toID {
		return Transfer{}, ErrSameAccount
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	// Both legs must exist before any delta is applied.
	if _, err := e.accounts.Get(ctx, toID); err != nil {
		return Transfer{}, err
	}
	if _, err := e.accounts.ApplyDelta(ctx, fromID, amount.Neg()); err != nil {
		return Transfer{}, err
	}
	if _, err := e.accounts.ApplyDelta(ctx, toID, amount); err != nil {
		// Undo the debit so the scope stays all-or-nothing.
		_, _ = e.accounts.ApplyDelta(ctx, fromID, amount)
		return Transfer{}, err
	}

	record := Transfer{
		ID:            uuid.New(),
		FromAccountID: fromID,
		ToAccountID:   toID,
		Amount:        amount,
		Description:   description,
		RecordedAt:    time.Now().UTC(),
	}
	e.transfers = append(e.transfers, record)
	return record, nil
}

func (e *inMemoryEngine) History(_ context.Context, accountID uuid.UUID) ([]Entry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var entries []Entry
	for _, d := range e.deposits {
		if d.AccountID == accountID {
			entries = append(entries, d)
		}
	}
	for _, w := range e.withdrawals {
		if w.AccountID == accountID {
			entries = append(entries, w)
		}
	}
	for _, t := range e.transfers {
		if t.FromAccountID == accountID || t.ToAccountID == accountID {
			entries = append(entries, t)
		}
	}
	sortEntries(entries)
	return entries, nil
}

func (e *inMemoryEngine) HasRecord(_ context.Context, kind Kind, id uuid.UUID) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	switch kind {
	case KindDeposit:
		for _, d := range e.deposits {
			if d.ID == id {
				return true, nil
			}
		}
	case KindWithdrawal:
		for _, w := range e.withdrawals {
			if w.ID == id {
				return true, nil
			}
		}
	case KindTransfer:
		for _, t := range e.transfers {
			if t.ID == id {
				return true, nil
			}
		}
	}
	return false, nil
}
