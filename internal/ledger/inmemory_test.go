package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corebank/corebank/internal/account"
)

func seedAccount(t *testing.T, repo account.Repository, balance string) account.Account {
	t.Helper()
	a := account.Account{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Number:    account.GenerateNumber(),
		Type:      account.TypeChecking,
		Balance:   decimal.RequireFromString(balance),
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return a
}

func TestInMemoryEngine_TransferConservesTotal(t *testing.T) {
	repo := account.NewMemoryRepository()
	engine := NewInMemory(repo)
	ctx := context.Background()

	a := seedAccount(t, repo, "1000.00")
	b := seedAccount(t, repo, "0.00")

	record, err := engine.Transfer(ctx, a.ID, b.ID, decimal.RequireFromString("300.00"), "rent")
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if !record.Amount.Equal(decimal.RequireFromString("300.00")) {
		t.Fatalf("unexpected record amount: %s", record.Amount)
	}

	balA, _ := repo.Get(ctx, a.ID)
	balB, _ := repo.Get(ctx, b.ID)
	if !balA.Balance.Equal(decimal.RequireFromString("700.00")) {
		t.Fatalf("expected source balance 700.00, got %s", balA.Balance)
	}
	if !balB.Balance.Equal(decimal.RequireFromString("300.00")) {
		t.Fatalf("expected destination balance 300.00, got %s", balB.Balance)
	}

	total := balA.Balance.Add(balB.Balance)
	if !total.Equal(decimal.RequireFromString("1000.00")) {
		t.Fatalf("ledger not balanced, total=%s", total)
	}
}

func TestInMemoryEngine_TransferInsufficientFunds(t *testing.T) {
	repo := account.NewMemoryRepository()
	engine := NewInMemory(repo)
	ctx := context.Background()

	a := seedAccount(t, repo, "700.00")
	b := seedAccount(t, repo, "300.00")

	if _, err := engine.Transfer(ctx, a.ID, b.ID, decimal.RequireFromString("1000.00"), "x"); !errors.Is(err, account.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	balA, _ := repo.Get(ctx, a.ID)
	balB, _ := repo.Get(ctx, b.ID)
	if !balA.Balance.Equal(decimal.RequireFromString("700.00")) || !balB.Balance.Equal(decimal.RequireFromString("300.00")) {
		t.Fatalf("balances changed on failed transfer: %s / %s", balA.Balance, balB.Balance)
	}
}

func TestInMemoryEngine_TransferValidation(t *testing.T) {
	repo := account.NewMemoryRepository()
	engine := NewInMemory(repo)
	ctx := context.Background()

	a := seedAccount(t, repo, "100.00")

	if _, err := engine.Transfer(ctx, a.ID, a.ID, decimal.RequireFromString("10.00"), ""); !errors.Is(err, ErrSameAccount) {
		t.Fatalf("expected same-account error, got %v", err)
	}
	if _, err := engine.Transfer(ctx, a.ID, uuid.New(), decimal.Zero, ""); !errors.Is(err, ErrNonPositiveAmount) {
		t.Fatalf("expected non-positive amount error, got %v", err)
	}
	if _, err := engine.Transfer(ctx, a.ID, uuid.New(), decimal.RequireFromString("-5.00"), ""); !errors.Is(err, ErrNonPositiveAmount) {
		t.Fatalf("expected non-positive amount error, got %v", err)
	}
}

func TestInMemoryEngine_TransferToMissingAccountLeavesSourceUntouched(t *testing.T) {
	repo := account.NewMemoryRepository()
	engine := NewInMemory(repo)
	ctx := context.Background()

	a := seedAccount(t, repo, "500.00")

	if _, err := engine.Transfer(ctx, a.ID, uuid.New(), decimal.RequireFromString("100.00"), ""); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	balA, _ := repo.Get(ctx, a.ID)
	if !balA.Balance.Equal(decimal.RequireFromString("500.00")) {
		t.Fatalf("source balance changed on failed transfer: %s", balA.Balance)
	}
	history, err := engine.History(ctx, a.ID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected no records after failed transfer, got %d", len(history))
	}
}

func TestInMemoryEngine_DepositAndWithdraw(t *testing.T) {
	repo := account.NewMemoryRepository()
	engine := NewInMemory(repo)
	ctx := context.Background()

	a := seedAccount(t, repo, "0.00")

	_, balance, err := engine.Deposit(ctx, a.ID, decimal.RequireFromString("250.00"))
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("250.00")) {
		t.Fatalf("expected balance 250.00, got %s", balance)
	}

	_, balance, err = engine.Withdraw(ctx, a.ID, decimal.RequireFromString("100.00"))
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("150.00")) {
		t.Fatalf("expected balance 150.00, got %s", balance)
	}

	if _, _, err := engine.Withdraw(ctx, a.ID, decimal.RequireFromString("151.00")); !errors.Is(err, account.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestInMemoryEngine_HistoryCompleteAndOrdered(t *testing.T) {
	repo := account.NewMemoryRepository()
	engine := NewInMemory(repo)
	ctx := context.Background()

	a := seedAccount(t, repo, "1000.00")
	b := seedAccount(t, repo, "0.00")

	amounts := []string{"10.00", "20.00", "30.00"}
	for _, amt := range amounts {
		if _, _, err := engine.Deposit(ctx, a.ID, decimal.RequireFromString(amt)); err != nil {
			t.Fatalf("deposit failed: %v", err)
		}
	}
	if _, _, err := engine.Withdraw(ctx, a.ID, decimal.RequireFromString("5.00")); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if _, err := engine.Transfer(ctx, a.ID, b.ID, decimal.RequireFromString("50.00"), ""); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if _, err := engine.Transfer(ctx, b.ID, a.ID, decimal.RequireFromString("25.00"), ""); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	history, err := engine.History(ctx, a.ID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	// 3 deposits + 1 withdrawal + 2 transfers touching A.
	if len(history) != 6 {
		t.Fatalf("expected 6 records, got %d", len(history))
	}
	for i := 1; i < len(history); i++ {
		prev, cur := history[i-1], history[i]
		if cur.OccurredAt().After(prev.OccurredAt()) {
			t.Fatalf("history not sorted newest first at index %d", i)
		}
	}

	// B only participates in the two transfers.
	historyB, err := engine.History(ctx, b.ID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(historyB) != 2 {
		t.Fatalf("expected 2 records for destination account, got %d", len(historyB))
	}
}

func TestInMemoryEngine_ConcurrentTransfersConserveTotal(t *testing.T) {
	repo := account.NewMemoryRepository()
	engine := NewInMemory(repo)
	ctx := context.Background()

	a := seedAccount(t, repo, "100000.00")
	b := seedAccount(t, repo, "0.00")

	const workers = 10
	amount := decimal.RequireFromString("500.00")

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.Transfer(ctx, a.ID, b.ID, amount, ""); err != nil {
				t.Errorf("transfer failed: %v", err)
			}
		}()
	}
	wg.Wait()

	balA, _ := repo.Get(ctx, a.ID)
	balB, _ := repo.Get(ctx, b.ID)
	if !balA.Balance.Add(balB.Balance).Equal(decimal.RequireFromString("100000.00")) {
		t.Fatalf("ledger not balanced after concurrency: %s + %s", balA.Balance, balB.Balance)
	}
	if !balB.Balance.Equal(decimal.RequireFromString("5000.00")) {
		t.Fatalf("expected destination balance 5000.00, got %s", balB.Balance)
	}
}

func TestInMemoryEngine_HasRecord(t *testing.T) {
	repo := account.NewMemoryRepository()
	engine := NewInMemory(repo)
	ctx := context.Background()

	a := seedAccount(t, repo, "100.00")

	record, _, err := engine.Deposit(ctx, a.ID, decimal.RequireFromString("10.00"))
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	exists, err := engine.HasRecord(ctx, KindDeposit, record.ID)
	if err != nil {
		t.Fatalf("has record failed: %v", err)
	}
	if !exists {
		t.Fatalf("expected deposit record to exist")
	}

	exists, err = engine.HasRecord(ctx, KindTransfer, record.ID)
	if err != nil {
		t.Fatalf("has record failed: %v", err)
	}
	if exists {
		t.Fatalf("deposit id must not match the transfer kind")
	}
}

func TestInMemoryEngine_ReplayIsIdempotent(t *testing.T) {
	repo := account.NewMemoryRepository()
	engine := NewInMemory(repo).(*inMemoryEngine)
	ctx := context.Background()

	a := seedAccount(t, repo, "0.00")

	record := Deposit{
		ID:         uuid.New(),
		AccountID:  a.ID,
		Amount:     decimal.RequireFromString("40.00"),
		RecordedAt: time.Now().UTC(),
	}

	applied, err := engine.ReplayDeposit(ctx, record)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if !applied {
		t.Fatalf("expected first replay to apply")
	}

	applied, err = engine.ReplayDeposit(ctx, record)
	if err != nil {
		t.Fatalf("second replay failed: %v", err)
	}
	if applied {
		t.Fatalf("expected duplicate replay to be a no-op")
	}

	balA, _ := repo.Get(ctx, a.ID)
	if !balA.Balance.Equal(decimal.RequireFromString("40.00")) {
		t.Fatalf("expected balance 40.00 after duplicate replay, got %s", balA.Balance)
	}
}

func TestSortEntries_TieBreakOnRecordID(t *testing.T) {
	at := time.Now().UTC()
	low := Deposit{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), RecordedAt: at}
	high := Withdrawal{ID: uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff"), RecordedAt: at}

	entries := []Entry{low, high}
	sortEntries(entries)

	if entries[0].EntryID() != high.ID {
		t.Fatalf("expected descending id tie-break, got %s first", entries[0].EntryID())
	}
}
