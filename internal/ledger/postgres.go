package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/corebank/corebank/internal/account"
)

// PostgresEngine persists ledger records in PostgreSQL. Each operation locks
// the affected account rows with SELECT ... FOR UPDATE so concurrent deltas on
// one account serialize, then writes the balance update and the record row in
// the same transaction.
type PostgresEngine struct {
	db *pgxpool.Pool
}

// NewPostgresEngine constructs a Postgres-backed ledger engine.
func NewPostgresEngine(db *pgxpool.Pool) *PostgresEngine {
	return &PostgresEngine{db: db}
}

// Deposit credits the account and appends a deposit record atomically.
func (e *PostgresEngine) Deposit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (Deposit, decimal.Decimal, error) {
	if !amount.IsPositive() {
		return Deposit{}, decimal.Zero, ErrNonPositiveAmount
	}

	tx, err := e.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Deposit{}, decimal.Zero, mapPgError(err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	balance, err := lockBalance(ctx, tx, accountID)
	if err != nil {
		return Deposit{}, decimal.Zero, err
	}

	newBalance := balance.Add(amount)
	if err := updateBalance(ctx, tx, accountID, newBalance); err != nil {
		return Deposit{}, decimal.Zero, err
	}

	record := Deposit{ID: uuid.New(), AccountID: accountID, Amount: amount, RecordedAt: time.Now().UTC()}
	if _, err := tx.Exec(ctx, `INSERT INTO deposits (deposit_id, account_id, amount, recorded_at)
        VALUES ($1, $2, $3, $4)`, record.ID, record.AccountID, record.Amount, record.RecordedAt); err != nil {
		return Deposit{}, decimal.Zero, mapPgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Deposit{}, decimal.Zero, mapPgError(err)
	}
	return record, newBalance, nil
}

// Withdraw debits the account and appends a withdrawal record atomically.
func (e *PostgresEngine) Withdraw(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (Withdrawal, decimal.Decimal, error) {
	if !amount.IsPositive() {
		return Withdrawal{}, decimal.Zero, ErrNonPositiveAmount
	}

	tx, err := e.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Withdrawal{}, decimal.Zero, mapPgError(err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	balance, err := lockBalance(ctx, tx, accountID)
	if err != nil {
		return Withdrawal{}, decimal.Zero, err
	}
	if balance.LessThan(amount) {
		return Withdrawal{}, decimal.Zero, account.ErrInsufficientFunds
	}

	newBalance := balance.Sub(amount)
	if err := updateBalance(ctx, tx, accountID, newBalance); err != nil {
		return Withdrawal{}, decimal.Zero, err
	}

	record := Withdrawal{ID: uuid.New(), AccountID: accountID, Amount: amount, RecordedAt: time.Now().UTC()}
	if _, err := tx.Exec(ctx, `INSERT INTO withdrawals (withdrawal_id, account_id, amount, recorded_at)
        VALUES ($1, $2, $3, $4)`, record.ID, record.AccountID, record.Amount, record.RecordedAt); err != nil {
		return Withdrawal{}, decimal.Zero, mapPgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Withdrawal{}, decimal.Zero, mapPgError(err)
	}
	return record, newBalance, nil
}

// Transfer debits the source, credits the destination and appends a transfer
// record, all in one transaction. The two rows are locked in ascending account
// id order so two opposite-direction transfers cannot deadlock.
func (e *PostgresEngine) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount decimal.Decimal, description string) (Transfer, error) {
	if !amount.IsPositive() {
		return Transfer{}, ErrNonPositiveAmount
	}
	if fromID == toID {
		return Transfer{}, ErrSameAccount
	}

	tx, err := e.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transfer{}, mapPgError(err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	balances, err := lockBalancePair(ctx, tx, fromID, toID)
	if err != nil {
		return Transfer{}, err
	}

	if balances[fromID].LessThan(amount) {
		return Transfer{}, account.ErrInsufficientFunds
	}

	if err := updateBalance(ctx, tx, fromID, balances[fromID].Sub(amount)); err != nil {
		return Transfer{}, err
	}
	if err := updateBalance(ctx, tx, toID, balances[toID].Add(amount)); err != nil {
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
	if _, err := tx.Exec(ctx, `INSERT INTO transfers (transfer_id, from_account_id, to_account_id, amount, description, recorded_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ID, record.FromAccountID, record.ToAccountID, record.Amount, record.Description, record.RecordedAt); err != nil {
		return Transfer{}, mapPgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Transfer{}, mapPgError(err)
	}
	return record, nil
}

// History reads the three record tables and merges them newest first.
func (e *PostgresEngine) History(ctx context.Context, accountID uuid.UUID) ([]Entry, error) {
	var entries []Entry

	rows, err := e.db.Query(ctx, `SELECT deposit_id, account_id, amount, recorded_at
        FROM deposits WHERE account_id = $1`, accountID)
	if err != nil {
		return nil, mapPgError(err)
	}
	for rows.Next() {
		var d Deposit
		if err := rows.Scan(&d.ID, &d.AccountID, &d.Amount, &d.RecordedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan deposit: %w", err)
		}
		d.RecordedAt = d.RecordedAt.UTC()
		entries = append(entries, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}

	rows, err = e.db.Query(ctx, `SELECT withdrawal_id, account_id, amount, recorded_at
        FROM withdrawals WHERE account_id = $1`, accountID)
	if err != nil {
		return nil, mapPgError(err)
	}
	for rows.Next() {
		var w Withdrawal
		if err := rows.Scan(&w.ID, &w.AccountID, &w.Amount, &w.RecordedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		w.RecordedAt = w.RecordedAt.UTC()
		entries = append(entries, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}

	rows, err = e.db.Query(ctx, `SELECT transfer_id, from_account_id, to_account_id, amount, COALESCE(description, ''), recorded_at
        FROM transfers WHERE from_account_id = $1 OR to_account_id = $1`, accountID)
	if err != nil {
		return nil, mapPgError(err)
	}
	for rows.Next() {
		var t Transfer
		if err := rows.Scan(&t.ID, &t.FromAccountID, &t.ToAccountID, &t.Amount, &t.Description, &t.RecordedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		t.RecordedAt = t.RecordedAt.UTC()
		entries = append(entries, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}

	sortEntries(entries)
	return entries, nil
}

// HasRecord checks for an existing record id within a kind's table.
func (e *PostgresEngine) HasRecord(ctx context.Context, kind Kind, id uuid.UUID) (bool, error) {
	var query string
	switch kind {
	case KindDeposit:
		query = `SELECT EXISTS (SELECT 1 FROM deposits WHERE deposit_id = $1)`
	case KindWithdrawal:
		query = `SELECT EXISTS (SELECT 1 FROM withdrawals WHERE withdrawal_id = $1)`
	case KindTransfer:
		query = `SELECT EXISTS (SELECT 1 FROM transfers WHERE transfer_id = $1)`
	default:
		return false, fmt.Errorf("unknown record kind %q", kind)
	}
	var exists bool
	if err := e.db.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, mapPgError(err)
	}
	return exists, nil
}

// lockBalancePair locks two account rows in ascending id order so two
// opposite-direction transfers cannot deadlock.
func lockBalancePair(ctx context.Context, tx pgx.Tx, fromID, toID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	first, second := fromID, toID
	if bytes.Compare(second[:], first[:]) < 0 {
		first, second = second, first
	}
	balances := map[uuid.UUID]decimal.Decimal{}
	for _, id := range []uuid.UUID{first, second} {
		b, err := lockBalance(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		balances[id] = b
	}
	return balances, nil
}

func lockBalance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	if err := tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE account_id = $1 FOR UPDATE`, accountID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, account.ErrNotFound
		}
		return decimal.Zero, mapPgError(err)
	}
	return balance, nil
}

func updateBalance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, balance decimal.Decimal) error {
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = $2 WHERE account_id = $1`, accountID, balance); err != nil {
		return mapPgError(err)
	}
	return nil
}

// mapPgError translates retryable storage races into ErrConflict.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 40001 serialization_failure, 40P01 deadlock_detected
		if pgErr.Code == "40001" || pgErr.Code == "40P01" {
			return ErrConflict
		}
	}
	return err
}
