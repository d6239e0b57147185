package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/corebank/corebank/internal/account"
)

// Replayer ingests records produced elsewhere, keeping their original ids.
// A record whose id is already present is a no-op, so applying the same
// event twice leaves the ledger unchanged.
type Replayer interface {
	// Each method reports whether the record was applied (false means the id
	// was already present).
	ReplayDeposit(ctx context.Context, record Deposit) (bool, error)
	ReplayWithdrawal(ctx context.Context, record Withdrawal) (bool, error)
	ReplayTransfer(ctx context.Context, record Transfer) (bool, error)
}

func (e *PostgresEngine) ReplayDeposit(ctx context.Context, record Deposit) (bool, error) {
	if !record.Amount.IsPositive() {
		return false, ErrNonPositiveAmount
	}

	tx, err := e.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, mapPgError(err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	balance, err := lockBalance(ctx, tx, record.AccountID)
	if err != nil {
		return false, err
	}

	tag, err := tx.Exec(ctx, `INSERT INTO deposits (deposit_id, account_id, amount, recorded_at)
        VALUES ($1, $2, $3, $4) ON CONFLICT (deposit_id) DO NOTHING`,
		record.ID, record.AccountID, record.Amount, record.RecordedAt)
	if err != nil {
		return false, mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err := updateBalance(ctx, tx, record.AccountID, balance.Add(record.Amount)); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, mapPgError(err)
	}
	return true, nil
}

func (e *PostgresEngine) ReplayWithdrawal(ctx context.Context, record Withdrawal) (bool, error) {
	if !record.Amount.IsPositive() {
		return false, ErrNonPositiveAmount
	}

	tx, err := e.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, mapPgError(err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	balance, err := lockBalance(ctx, tx, record.AccountID)
	if err != nil {
		return false, err
	}

	tag, err := tx.Exec(ctx, `INSERT INTO withdrawals (withdrawal_id, account_id, amount, recorded_at)
        VALUES ($1, $2, $3, $4) ON CONFLICT (withdrawal_id) DO NOTHING`,
		record.ID, record.AccountID, record.Amount, record.RecordedAt)
	if err != nil {
		return false, mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if balance.LessThan(record.Amount) {
		return false, account.ErrInsufficientFunds
	}
	if err := updateBalance(ctx, tx, record.AccountID, balance.Sub(record.Amount)); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, mapPgError(err)
	}
	return true, nil
}

func (e *PostgresEngine) ReplayTransfer(ctx context.Context, record Transfer) (bool, error) {
	if !record.Amount.IsPositive() {
		return false, ErrNonPositiveAmount
	}
	if record.FromAccountID == record.ToAccountID {
		return false, ErrSameAccount
	}

	tx, err := e.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, mapPgError(err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	balances, err := lockBalancePair(ctx, tx, record.FromAccountID, record.ToAccountID)
	if err != nil {
		return false, err
	}

	tag, err := tx.Exec(ctx, `INSERT INTO transfers (transfer_id, from_account_id, to_account_id, amount, description, recorded_at)
        VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (transfer_id) DO NOTHING`,
		record.ID, record.FromAccountID, record.ToAccountID, record.Amount, record.Description, record.RecordedAt)
	if err != nil {
		return false, mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if balances[record.FromAccountID].LessThan(record.Amount) {
		return false, account.ErrInsufficientFunds
	}
	if err := updateBalance(ctx, tx, record.FromAccountID, balances[record.FromAccountID].Sub(record.Amount)); err != nil {
		return false, err
	}
	if err := updateBalance(ctx, tx, record.ToAccountID, balances[record.ToAccountID].Add(record.Amount)); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, mapPgError(err)
	}
	return true, nil
}

func (e *inMemoryEngine) ReplayDeposit(ctx context.Context, record Deposit) (bool, error) {
	if !record.Amount.IsPositive() {
		return false, ErrNonPositiveAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, d := range e.deposits {
		if d.ID == record.ID {
			return false, nil
		}
	}
	if _, err := e.accounts.ApplyDelta(ctx, record.AccountID, record.Amount); err != nil {
		return false, err
	}
	e.deposits = append(e.deposits, record)
	return true, nil
}

func (e *inMemoryEngine) ReplayWithdrawal(ctx context.Context, record Withdrawal) (bool, error) {
	if !record.Amount.IsPositive() {
		return false, ErrNonPositiveAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, w := range e.withdrawals {
		if w.ID == record.ID {
			return false, nil
		}
	}
	if _, err := e.accounts.ApplyDelta(ctx, record.AccountID, record.Amount.Neg()); err != nil {
		return false, err
	}
	e.withdrawals = append(e.withdrawals, record)
	return true, nil
}

func (e *inMemoryEngine) ReplayTransfer(ctx context.Context, record Transfer) (bool, error) {
	if !record.Amount.IsPositive() {
		return false, ErrNonPositiveAmount
	}
	if record.FromAccountID == record.ToAccountID {
		return false, ErrSameAccount
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, t := range e.transfers {
		if t.ID == record.ID {
			return false, nil
		}
	}
	if _, err := e.accounts.Get(ctx, record.ToAccountID); err != nil {
		return false, err
	}
	if _, err := e.accounts.ApplyDelta(ctx, record.FromAccountID, record.Amount.Neg()); err != nil {
		return false, err
	}
	if _, err := e.accounts.ApplyDelta(ctx, record.ToAccountID, record.Amount); err != nil {
		_, _ = e.accounts.ApplyDelta(ctx, record.FromAccountID, record.Amount)
		return false, err
	}
	e.transfers = append(e.transfers, record)
	return true, nil
}
