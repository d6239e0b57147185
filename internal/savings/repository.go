package savings

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PlanRepository persists savings plans.
type PlanRepository interface {
	Create(ctx context.Context, plan Plan) error
	Get(ctx context.Context, id uuid.UUID) (Plan, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Plan, error)
	Update(ctx context.Context, plan Plan) error
}

// FixedDepositRepository persists fixed deposits.
type FixedDepositRepository interface {
	Create(ctx context.Context, deposit FixedDeposit) error
	Get(ctx context.Context, id uuid.UUID) (FixedDeposit, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]FixedDeposit, error)
	Update(ctx context.Context, deposit FixedDeposit) error

	// MarkMatured flips every active deposit whose maturity date has passed
	// and returns how many rows changed.
	MarkMatured(ctx context.Context, asOf time.Time) (int64, error)
}
