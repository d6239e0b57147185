package transaction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corebank/corebank/internal/account"
	"github.com/corebank/corebank/internal/events"
	"github.com/corebank/corebank/internal/fraud"
	"github.com/corebank/corebank/internal/ledger"
	"github.com/corebank/corebank/internal/logging"
	"github.com/corebank/corebank/internal/notification"
	"github.com/corebank/corebank/internal/user"
)

type testNotifier struct {
	messages []notification.Message
}

func (n *testNotifier) Send(_ context.Context, msg notification.Message) error {
	n.messages = append(n.messages, msg)
	return nil
}

func (n *testNotifier) byKind(kind string) []notification.Message {
	var out []notification.Message
	for _, msg := range n.messages {
		if msg.Kind == kind {
			out = append(out, msg)
		}
	}
	return out
}

type testProducer struct {
	deposits    []events.DepositEvent
	withdrawals []events.WithdrawalEvent
	transfers   []events.FundsTransferEvent
}

func (p *testProducer) PublishDeposit(_ context.Context, e events.DepositEvent) error {
	p.deposits = append(p.deposits, e)
	return nil
}

func (p *testProducer) PublishWithdrawal(_ context.Context, e events.WithdrawalEvent) error {
	p.withdrawals = append(p.withdrawals, e)
	return nil
}

func (p *testProducer) PublishTransfer(_ context.Context, e events.FundsTransferEvent) error {
	p.transfers = append(p.transfers, e)
	return nil
}

func (p *testProducer) Close() error { return nil }

type fixture struct {
	svc      *Service
	accounts account.Repository
	notifier *testNotifier
	producer *testProducer
}

func newFixture(t *testing.T, rules fraud.Rules) *fixture {
	t.Helper()
	accountRepo := account.NewMemoryRepository()
	userRepo := user.NewMemoryRepository()
	engine := ledger.NewInMemory(accountRepo)
	notifier := &testNotifier{}
	producer := &testProducer{}
	evaluator := fraud.NewEvaluator(rules, fraud.NewMemoryWindow(), logging.Discard())
	svc := NewService(account.NewService(accountRepo), userRepo, engine, evaluator, notifier, producer, logging.Discard())
	return &fixture{svc: svc, accounts: accountRepo, notifier: notifier, producer: producer}
}

func (f *fixture) seedAccount(t *testing.T, userID uuid.UUID, balance string) account.Account {
	t.Helper()
	a := account.Account{
		ID:        uuid.New(),
		UserID:    userID,
		Number:    account.GenerateNumber(),
		Type:      account.TypeChecking,
		Balance:   decimal.RequireFromString(balance),
		CreatedAt: time.Now().UTC(),
	}
	if err := f.accounts.Create(context.Background(), a); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return a
}

func (f *fixture) balance(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	a, err := f.accounts.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return a.Balance
}

func TestTransfer_MovesFundsAndStopsAtInsufficient(t *testing.T) {
	f := newFixture(t, fraud.DefaultRules())
	ctx := context.Background()
	u1, u2 := uuid.New(), uuid.New()
	a := f.seedAccount(t, u1, "1000.00")
	b := f.seedAccount(t, u2, "0.00")

	record, err := f.svc.Transfer(ctx, a.ID, b.ID, decimal.RequireFromString("300.00"), "rent", u1)
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if !record.Amount.Equal(decimal.RequireFromString("300.00")) {
		t.Fatalf("unexpected record amount %s", record.Amount)
	}
	if !f.balance(t, a.ID).Equal(decimal.RequireFromString("700.00")) {
		t.Fatalf("expected source balance 700.00, got %s", f.balance(t, a.ID))
	}
	if !f.balance(t, b.ID).Equal(decimal.RequireFromString("300.00")) {
		t.Fatalf("expected destination balance 300.00, got %s", f.balance(t, b.ID))
	}

	if _, err := f.svc.Transfer(ctx, a.ID, b.ID, decimal.RequireFromString("1000.00"), "x", u1); !errors.Is(err, account.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if !f.balance(t, a.ID).Equal(decimal.RequireFromString("700.00")) || !f.balance(t, b.ID).Equal(decimal.RequireFromString("300.00")) {
		t.Fatalf("balances changed on failed transfer")
	}

	if len(f.producer.transfers) != 1 {
		t.Fatalf("expected one transfer event, got %d", len(f.producer.transfers))
	}
	if len(f.notifier.byKind(notification.KindTransferDebited)) != 1 {
		t.Fatalf("expected one debit notification")
	}
	if len(f.notifier.byKind(notification.KindTransferCredited)) != 1 {
		t.Fatalf("expected one credit notification")
	}
}

func TestTransfer_Validation(t *testing.T) {
	f := newFixture(t, fraud.DefaultRules())
	ctx := context.Background()
	u1 := uuid.New()
	a := f.seedAccount(t, u1, "100.00")
	b := f.seedAccount(t, uuid.New(), "0.00")

	if _, err := f.svc.Transfer(ctx, a.ID, b.ID, decimal.Zero, "", u1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := f.svc.Transfer(ctx, a.ID, a.ID, decimal.RequireFromString("10.00"), "", u1); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request for same-account transfer, got %v", err)
	}
	if _, err := f.svc.Transfer(ctx, a.ID, uuid.New(), decimal.RequireFromString("10.00"), "", u1); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("expected not found for missing destination, got %v", err)
	}
}

func TestTransfer_OwnershipIsolation(t *testing.T) {
	f := newFixture(t, fraud.DefaultRules())
	ctx := context.Background()
	owner, intruder := uuid.New(), uuid.New()
	a := f.seedAccount(t, owner, "500.00")
	b := f.seedAccount(t, uuid.New(), "0.00")

	if _, err := f.svc.Transfer(ctx, a.ID, b.ID, decimal.RequireFromString("10.00"), "", intruder); !errors.Is(err, account.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}

	// The destination needs no ownership by the sender.
	if _, err := f.svc.Transfer(ctx, a.ID, b.ID, decimal.RequireFromString("10.00"), "", owner); err != nil {
		t.Fatalf("transfer to foreign destination failed: %v", err)
	}
}

func TestTransfer_SixthBlockedHighFrequency(t *testing.T) {
	f := newFixture(t, fraud.DefaultRules())
	ctx := context.Background()
	u1 := uuid.New()
	a := f.seedAccount(t, u1, "1000.00")
	b := f.seedAccount(t, uuid.New(), "0.00")
	amount := decimal.RequireFromString("10.00")

	for i := 0; i < 5; i++ {
		if _, err := f.svc.Transfer(ctx, a.ID, b.ID, amount, "", u1); err != nil {
			t.Fatalf("transfer %d failed: %v", i+1, err)
		}
	}

	_, err := f.svc.Transfer(ctx, a.ID, b.ID, amount, "", u1)
	var blocked *FraudBlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected fraud block, got %v", err)
	}
	if blocked.Reason != fraud.ReasonHighFrequency {
		t.Fatalf("expected high-frequency reason, got %q", blocked.Reason)
	}
	if !errors.Is(err, ErrFraudBlocked) {
		t.Fatalf("fraud error must match ErrFraudBlocked")
	}

	// Only the first five moved money.
	if !f.balance(t, a.ID).Equal(decimal.RequireFromString("950.00")) {
		t.Fatalf("expected source balance 950.00, got %s", f.balance(t, a.ID))
	}

	alerts := f.notifier.byKind(notification.KindFraudBlocked)
	if len(alerts) != 1 {
		t.Fatalf("expected one fraud-blocked notification, got %d", len(alerts))
	}
	if alerts[0].Fields["reason"] != string(fraud.ReasonHighFrequency) {
		t.Fatalf("unexpected reason field %q", alerts[0].Fields["reason"])
	}
	if _, ok := alerts[0].Fields["amount"]; ok {
		t.Fatalf("amount must only be disclosed for the large-transfer reason")
	}
}

func TestTransfer_LargeAmountBlockedWithAmountInAlert(t *testing.T) {
	f := newFixture(t, fraud.DefaultRules())
	ctx := context.Background()
	u1 := uuid.New()
	a := f.seedAccount(t, u1, "600000.00")
	b := f.seedAccount(t, uuid.New(), "0.00")

	_, err := f.svc.Transfer(ctx, a.ID, b.ID, decimal.RequireFromString("500000.01"), "", u1)
	var blocked *FraudBlockedError
	if !errors.As(err, &blocked) || blocked.Reason != fraud.ReasonLargeTransfer {
		t.Fatalf("expected large-transfer block, got %v", err)
	}

	alerts := f.notifier.byKind(notification.KindFraudBlocked)
	if len(alerts) != 1 {
		t.Fatalf("expected one fraud-blocked notification, got %d", len(alerts))
	}
	if alerts[0].Fields["amount"] != "500000.01" {
		t.Fatalf("expected offending amount in alert, got %q", alerts[0].Fields["amount"])
	}
	if !f.balance(t, a.ID).Equal(decimal.RequireFromString("600000.00")) {
		t.Fatalf("balance changed on blocked transfer")
	}
}

func TestDepositAndWithdraw(t *testing.T) {
	f := newFixture(t, fraud.DefaultRules())
	ctx := context.Background()
	u1 := uuid.New()
	a := f.seedAccount(t, u1, "0.00")

	_, balance, err := f.svc.Deposit(ctx, a.ID, decimal.RequireFromString("100.00"), u1)
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("expected balance 100.00, got %s", balance)
	}

	_, balance, err = f.svc.Withdraw(ctx, a.ID, decimal.RequireFromString("40.00"), u1)
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("60.00")) {
		t.Fatalf("expected balance 60.00, got %s", balance)
	}

	if _, _, err := f.svc.Withdraw(ctx, a.ID, decimal.RequireFromString("100.00"), u1); !errors.Is(err, account.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if _, _, err := f.svc.Deposit(ctx, a.ID, decimal.RequireFromString("10.00"), uuid.New()); !errors.Is(err, account.ErrAccessDenied) {
		t.Fatalf("expected access denied for foreign deposit, got %v", err)
	}

	if len(f.producer.deposits) != 1 || len(f.producer.withdrawals) != 1 {
		t.Fatalf("expected one deposit and one withdrawal event, got %d/%d",
			len(f.producer.deposits), len(f.producer.withdrawals))
	}
}

func TestHistory_CompleteAndOwnerOnly(t *testing.T) {
	f := newFixture(t, fraud.DefaultRules())
	ctx := context.Background()
	u1 := uuid.New()
	a := f.seedAccount(t, u1, "1000.00")
	b := f.seedAccount(t, uuid.New(), "0.00")

	if _, _, err := f.svc.Deposit(ctx, a.ID, decimal.RequireFromString("50.00"), u1); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if _, _, err := f.svc.Withdraw(ctx, a.ID, decimal.RequireFromString("25.00"), u1); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if _, err := f.svc.Transfer(ctx, a.ID, b.ID, decimal.RequireFromString("10.00"), "", u1); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	entries, err := f.svc.History(ctx, a.ID, u1)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 records, got %d", len(entries))
	}

	if _, err := f.svc.History(ctx, a.ID, uuid.New()); !errors.Is(err, account.ErrAccessDenied) {
		t.Fatalf("expected access denied for foreign history, got %v", err)
	}
}
