package account

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository persists account metadata and balances.
//
// ApplyDelta is the only sanctioned balance mutation: it atomically adds a
// signed delta and fails with ErrInsufficientFunds when the result would be
// negative. The Postgres ledger engine issues the equivalent statement inside
// its own transaction so a record row and its balance change commit together;
// callers outside that scope must never read-modify-write a balance.
type Repository interface {
	Create(ctx context.Context, account Account) error
	Get(ctx context.Context, id uuid.UUID) (Account, error)
	GetByUser(ctx context.Context, userID uuid.UUID) ([]Account, error)
	GetByUserAndType(ctx context.Context, userID uuid.UUID, accountType string) (Account, error)
	ApplyDelta(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
