package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrConflict indicates the atomic scope lost a storage-level race
	// (deadlock or serialization failure) and may be retried.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrSameAccount indicates a transfer where source and destination match.
	ErrSameAccount = errors.New("source and destination accounts must differ")

	// ErrNonPositiveAmount indicates an amount that is zero or negative.
	ErrNonPositiveAmount = errors.New("amount must be positive")
)

// Engine is the ledger engine contract. Every mutator runs as one atomic
// scope: the balance change and the record row commit together or not at all.
// Failures surface the account store sentinels (account.ErrNotFound,
// account.ErrInsufficientFunds) or ErrConflict; no partial state survives.
//
// The engine performs no authorization. Ownership and fraud checks belong to
// the transaction orchestrator sitting in front of it.
type Engine interface {
	Deposit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (Deposit, decimal.Decimal, error)
	Withdraw(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (Withdrawal, decimal.Decimal, error)
	Transfer(ctx context.Context, fromID, toID uuid.UUID, amount decimal.Decimal, description string) (Transfer, error)

	// History merges the three record tables for one account, newest first.
	// Each call re-reads current state; the result is finite and re-queryable.
	History(ctx context.Context, accountID uuid.UUID) ([]Entry, error)

	// HasRecord reports whether a record with the given id already exists for
	// the kind. Event consumers use it to replay idempotently.
	HasRecord(ctx context.Context, kind Kind, id uuid.UUID) (bool, error)
}
