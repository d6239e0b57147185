package savings

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryPlanRepository keeps savings plans in a map. Test use only.
type MemoryPlanRepository struct {
	mu    sync.RWMutex
	plans map[uuid.UUID]Plan
}

// NewMemoryPlanRepository constructs an empty in-memory plan repository.
func NewMemoryPlanRepository() *MemoryPlanRepository {
	return &MemoryPlanRepository{plans: make(map[uuid.UUID]Plan)}
}

func (r *MemoryPlanRepository) Create(_ context.Context, plan Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[plan.ID] = plan
	return nil
}

func (r *MemoryPlanRepository) Get(_ context.Context, id uuid.UUID) (Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	plan, ok := r.plans[id]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return plan, nil
}

func (r *MemoryPlanRepository) ListByUser(_ context.Context, userID uuid.UUID) ([]Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var plans []Plan
	for _, plan := range r.plans {
		if plan.UserID == userID {
			plans = append(plans, plan)
		}
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].CreatedAt.After(plans[j].CreatedAt) })
	return plans, nil
}

func (r *MemoryPlanRepository) Update(_ context.Context, plan Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plans[plan.ID]; !ok {
		return ErrPlanNotFound
	}
	r.plans[plan.ID] = plan
	return nil
}

// MemoryFixedDepositRepository keeps fixed deposits in a map. Test use only.
type MemoryFixedDepositRepository struct {
	mu       sync.RWMutex
	deposits map[uuid.UUID]FixedDeposit
}

// NewMemoryFixedDepositRepository constructs an empty in-memory fixed deposit
// repository.
func NewMemoryFixedDepositRepository() *MemoryFixedDepositRepository {
	return &MemoryFixedDepositRepository{deposits: make(map[uuid.UUID]FixedDeposit)}
}

func (r *MemoryFixedDepositRepository) Create(_ context.Context, deposit FixedDeposit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deposits[deposit.ID] = deposit
	return nil
}

func (r *MemoryFixedDepositRepository) Get(_ context.Context, id uuid.UUID) (FixedDeposit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	deposit, ok := r.deposits[id]
	if !ok {
		return FixedDeposit{}, ErrFixedDepositNotFound
	}
	return deposit, nil
}

func (r *MemoryFixedDepositRepository) ListByUser(_ context.Context, userID uuid.UUID) ([]FixedDeposit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var deposits []FixedDeposit
	for _, deposit := range r.deposits {
		if deposit.UserID == userID {
			deposits = append(deposits, deposit)
		}
	}
	sort.Slice(deposits, func(i, j int) bool { return deposits[i].CreatedAt.After(deposits[j].CreatedAt) })
	return deposits, nil
}

func (r *MemoryFixedDepositRepository) Update(_ context.Context, deposit FixedDeposit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.deposits[deposit.ID]; !ok {
		return ErrFixedDepositNotFound
	}
	r.deposits[deposit.ID] = deposit
	return nil
}

func (r *MemoryFixedDepositRepository) MarkMatured(_ context.Context, asOf time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, deposit := range r.deposits {
		if deposit.Status == FixedDepositActive && !deposit.MaturityDate.After(asOf) {
			deposit.Status = FixedDepositMatured
			r.deposits[id] = deposit
			n++
		}
	}
	return n, nil
}
