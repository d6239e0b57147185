package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates the requested account does not exist.
	ErrNotFound = errors.New("account not found")

	// ErrAccessDenied indicates the requesting user does not own the account.
	ErrAccessDenied = errors.New("access denied")

	// ErrDuplicateType indicates the user already holds an account of the
	// requested type.
	ErrDuplicateType = errors.New("user already has an account of this type")

	// ErrBalanceNotZero indicates an account with remaining funds cannot be closed.
	ErrBalanceNotZero = errors.New("account balance must be zero before closure")

	// ErrInsufficientFunds indicates a delta would drive the balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Known account types. AccountType is an open tag; these are the values the
// rest of the system keys on.
const (
	TypeSavings  = "SAVINGS"
	TypeChecking = "CHECKING"
)

// Account is a customer balance holder. Balance is mutated exclusively inside
// the ledger engine's atomic scope; everything else treats it as read-only.
type Account struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Number    string
	Type      string
	Balance   decimal.Decimal
	CreatedAt time.Time
}
