package savings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPlanRepository stores savings plans in PostgreSQL.
type PostgresPlanRepository struct {
	db *pgxpool.Pool
}

// NewPostgresPlanRepository constructs the plan repository.
func NewPostgresPlanRepository(db *pgxpool.Pool) *PostgresPlanRepository {
	return &PostgresPlanRepository{db: db}
}

func (r *PostgresPlanRepository) Create(ctx context.Context, plan Plan) error {
	_, err := r.db.Exec(ctx, `INSERT INTO savings_plans
        (plan_id, user_id, plan_name, target_amount, start_date, end_date, interest_rate,
         recurring_amount, frequency, current_balance, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		plan.ID, plan.UserID, plan.Name, plan.TargetAmount, plan.StartDate, plan.EndDate,
		plan.InterestRate, plan.RecurringAmount, plan.Frequency, plan.CurrentBalance,
		plan.Status, plan.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert savings plan: %w", err)
	}
	return nil
}

func (r *PostgresPlanRepository) Get(ctx context.Context, id uuid.UUID) (Plan, error) {
	row := r.db.QueryRow(ctx, `SELECT plan_id, user_id, plan_name, target_amount, start_date,
        end_date, interest_rate, recurring_amount, frequency, current_balance, status, created_at
        FROM savings_plans WHERE plan_id = $1`, id)
	return scanPlan(row)
}

func (r *PostgresPlanRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Plan, error) {
	rows, err := r.db.Query(ctx, `SELECT plan_id, user_id, plan_name, target_amount, start_date,
        end_date, interest_rate, recurring_amount, frequency, current_balance, status, created_at
        FROM savings_plans WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list savings plans: %w", err)
	}
	defer rows.Close()

	var plans []Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (r *PostgresPlanRepository) Update(ctx context.Context, plan Plan) error {
	tag, err := r.db.Exec(ctx, `UPDATE savings_plans
        SET current_balance = $2, status = $3 WHERE plan_id = $1`,
		plan.ID, plan.CurrentBalance, plan.Status)
	if err != nil {
		return fmt.Errorf("update savings plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPlanNotFound
	}
	return nil
}

func scanPlan(row pgx.Row) (Plan, error) {
	var plan Plan
	err := row.Scan(&plan.ID, &plan.UserID, &plan.Name, &plan.TargetAmount, &plan.StartDate,
		&plan.EndDate, &plan.InterestRate, &plan.RecurringAmount, &plan.Frequency,
		&plan.CurrentBalance, &plan.Status, &plan.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Plan{}, ErrPlanNotFound
		}
		return Plan{}, fmt.Errorf("scan savings plan: %w", err)
	}
	return plan, nil
}

// PostgresFixedDepositRepository stores fixed deposits in PostgreSQL.
type PostgresFixedDepositRepository struct {
	db *pgxpool.Pool
}

// NewPostgresFixedDepositRepository constructs the fixed deposit repository.
func NewPostgresFixedDepositRepository(db *pgxpool.Pool) *PostgresFixedDepositRepository {
	return &PostgresFixedDepositRepository{db: db}
}

func (r *PostgresFixedDepositRepository) Create(ctx context.Context, deposit FixedDeposit) error {
	_, err := r.db.Exec(ctx, `INSERT INTO fixed_deposits
        (deposit_id, user_id, deposit_amount, deposit_date, maturity_date, interest_rate, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		deposit.ID, deposit.UserID, deposit.Amount, deposit.DepositDate, deposit.MaturityDate,
		deposit.InterestRate, deposit.Status, deposit.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert fixed deposit: %w", err)
	}
	return nil
}

func (r *PostgresFixedDepositRepository) Get(ctx context.Context, id uuid.UUID) (FixedDeposit, error) {
	row := r.db.QueryRow(ctx, `SELECT deposit_id, user_id, deposit_amount, deposit_date,
        maturity_date, interest_rate, status, created_at
        FROM fixed_deposits WHERE deposit_id = $1`, id)
	return scanFixedDeposit(row)
}

func (r *PostgresFixedDepositRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]FixedDeposit, error) {
	rows, err := r.db.Query(ctx, `SELECT deposit_id, user_id, deposit_amount, deposit_date,
        maturity_date, interest_rate, status, created_at
        FROM fixed_deposits WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list fixed deposits: %w", err)
	}
	defer rows.Close()

	var deposits []FixedDeposit
	for rows.Next() {
		deposit, err := scanFixedDeposit(rows)
		if err != nil {
			return nil, err
		}
		deposits = append(deposits, deposit)
	}
	return deposits, rows.Err()
}

func (r *PostgresFixedDepositRepository) Update(ctx context.Context, deposit FixedDeposit) error {
	tag, err := r.db.Exec(ctx, `UPDATE fixed_deposits SET status = $2 WHERE deposit_id = $1`,
		deposit.ID, deposit.Status)
	if err != nil {
		return fmt.Errorf("update fixed deposit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFixedDepositNotFound
	}
	return nil
}

func (r *PostgresFixedDepositRepository) MarkMatured(ctx context.Context, asOf time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE fixed_deposits SET status = $1
        WHERE status = $2 AND maturity_date <= $3`,
		FixedDepositMatured, FixedDepositActive, asOf)
	if err != nil {
		return 0, fmt.Errorf("mark matured fixed deposits: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanFixedDeposit(row pgx.Row) (FixedDeposit, error) {
	var deposit FixedDeposit
	err := row.Scan(&deposit.ID, &deposit.UserID, &deposit.Amount, &deposit.DepositDate,
		&deposit.MaturityDate, &deposit.InterestRate, &deposit.Status, &deposit.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FixedDeposit{}, ErrFixedDepositNotFound
		}
		return FixedDeposit{}, fmt.Errorf("scan fixed deposit: %w", err)
	}
	return deposit, nil
}
