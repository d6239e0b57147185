package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DepositEvent is published after a deposit is committed to the ledger.
type DepositEvent struct {
	DepositID uuid.UUID       `json:"deposit_id"`
	AccountID uuid.UUID       `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// WithdrawalEvent is published after a withdrawal is committed to the ledger.
type WithdrawalEvent struct {
	WithdrawalID uuid.UUID       `json:"withdrawal_id"`
	AccountID    uuid.UUID       `json:"account_id"`
	Amount       decimal.Decimal `json:"amount"`
	Timestamp    time.Time       `json:"timestamp"`
}

// FundsTransferEvent is published after a transfer is committed to the ledger.
type FundsTransferEvent struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	FromAccountID uuid.UUID       `json:"from_account_id"`
	ToAccountID   uuid.UUID       `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	Timestamp     time.Time       `json:"timestamp"`
}
