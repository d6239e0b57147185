package ledger

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind tags the three transaction record variants.
type Kind string

const (
	KindDeposit    Kind = "DEPOSIT"
	KindWithdrawal Kind = "WITHDRAWAL"
	KindTransfer   Kind = "TRANSFER"
)

// Entry is the common capability shared by the three record variants. Records
// are immutable once written; the ledger never updates or deletes them.
type Entry interface {
	EntryKind() Kind
	EntryID() uuid.UUID
	OccurredAt() time.Time
}

// Deposit credits a single account.
type Deposit struct {
	ID         uuid.UUID       `json:"deposit_id"`
	AccountID  uuid.UUID       `json:"account_id"`
	Amount     decimal.Decimal `json:"amount"`
	RecordedAt time.Time       `json:"transaction_date"`
}

// Withdrawal debits a single account.
type Withdrawal struct {
	ID         uuid.UUID       `json:"withdrawal_id"`
	AccountID  uuid.UUID       `json:"account_id"`
	Amount     decimal.Decimal `json:"amount"`
	RecordedAt time.Time       `json:"transaction_date"`
}

// Transfer moves funds between two distinct accounts.
type Transfer struct {
	ID            uuid.UUID       `json:"transaction_id"`
	FromAccountID uuid.UUID       `json:"from_account_id"`
	ToAccountID   uuid.UUID       `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description,omitempty"`
	RecordedAt    time.Time       `json:"transaction_date"`
}

func (d Deposit) EntryKind() Kind        { return KindDeposit }
func (d Deposit) EntryID() uuid.UUID     { return d.ID }
func (d Deposit) OccurredAt() time.Time  { return d.RecordedAt }
func (w Withdrawal) EntryKind() Kind     { return KindWithdrawal }
func (w Withdrawal) EntryID() uuid.UUID  { return w.ID }
func (w Withdrawal) OccurredAt() time.Time { return w.RecordedAt }
func (t Transfer) EntryKind() Kind       { return KindTransfer }
func (t Transfer) EntryID() uuid.UUID    { return t.ID }
func (t Transfer) OccurredAt() time.Time { return t.RecordedAt }

// sortEntries orders entries newest first. Same-timestamp records fall back to
// descending record id so repeated reads return an identical sequence.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		ti, tj := entries[i].OccurredAt(), entries[j].OccurredAt()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		a, b := entries[i].EntryID(), entries[j].EntryID()
		return bytes.Compare(a[:], b[:]) > 0
	})
}
