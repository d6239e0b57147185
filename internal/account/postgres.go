package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresRepository stores accounts in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `account_id, user_id, account_number, account_type, balance, created_at`

// Create inserts an account row. The partial unique index on
// (user_id, account_type) enforces the one-account-per-type rule.
func (r *PostgresRepository) Create(ctx context.Context, a Account) error {
	_, err := r.db.Exec(ctx, `INSERT INTO accounts (account_id, user_id, account_number, account_type, balance, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.UserID, a.Number, a.Type, a.Balance, a.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateType
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// Get fetches an account by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_id = $1`, id)
	return scanAccount(row)
}

// GetByUser lists all accounts held by a user.
func (r *PostgresRepository) GetByUser(ctx context.Context, userID uuid.UUID) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// GetByUserAndType fetches the user's account of the given type.
func (r *PostgresRepository) GetByUserAndType(ctx context.Context, userID uuid.UUID, accountType string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 AND account_type = $2`, userID, accountType)
	return scanAccount(row)
}

// ApplyDelta atomically adjusts a balance with a single guarded statement.
// A zero-row update means either the account is missing or the delta would
// drive the balance negative.
func (r *PostgresRepository) ApplyDelta(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	row := r.db.QueryRow(ctx, `UPDATE accounts SET balance = balance + $2
        WHERE account_id = $1 AND balance + $2 >= 0 RETURNING balance`, id, delta)
	var balance decimal.Decimal
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.Get(ctx, id); getErr != nil {
				return decimal.Zero, getErr
			}
			return decimal.Zero, ErrInsufficientFunds
		}
		return decimal.Zero, fmt.Errorf("apply delta: %w", err)
	}
	return balance, nil
}

// Delete closes an account. Accounts holding funds are refused so the ledger
// remains reconstructable against the account store.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE account_id = $1 AND balance = 0`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish missing from funded.
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return ErrBalanceNotZero
	}
	return nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	var balance decimal.Decimal
	if err := row.Scan(&a.ID, &a.UserID, &a.Number, &a.Type, &balance, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("scan account: %w", err)
	}
	a.Balance = balance
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}
