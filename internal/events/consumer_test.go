package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corebank/corebank/internal/account"
	"github.com/corebank/corebank/internal/config"
	"github.com/corebank/corebank/internal/ledger"
	"github.com/corebank/corebank/internal/logging"
	"github.com/corebank/corebank/internal/notification"
)

type captureNotifier struct {
	messages []notification.Message
}

func (n *captureNotifier) Send(_ context.Context, msg notification.Message) error {
	n.messages = append(n.messages, msg)
	return nil
}

func testKafkaConfig() config.KafkaConfig {
	return config.KafkaConfig{
		DepositTopic:  "deposit-events",
		WithdrawTopic: "withdrawal-events",
		TransferTopic: "funds-transfer-events",
	}
}

func newTestConsumer(t *testing.T) (*Consumer, account.Repository, *captureNotifier) {
	t.Helper()
	accounts := account.NewMemoryRepository()
	engine := ledger.NewInMemory(accounts)
	replayer, ok := engine.(ledger.Replayer)
	if !ok {
		t.Fatalf("engine does not replay")
	}
	notifier := &captureNotifier{}
	c := &Consumer{
		cfg:      testKafkaConfig(),
		replayer: replayer,
		accounts: accounts,
		notifier: notifier,
		logger:   logging.Discard(),
	}
	return c, accounts, notifier
}

func seedAccount(t *testing.T, accounts account.Repository, balance string) account.Account {
	t.Helper()
	a := account.Account{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Number:    account.GenerateNumber(),
		Type:      account.TypeChecking,
		Balance:   decimal.RequireFromString(balance),
		CreatedAt: time.Now().UTC(),
	}
	if err := accounts.Create(context.Background(), a); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return a
}

func message(t *testing.T, topic string, event any) *sarama.ConsumerMessage {
	t.Helper()
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return &sarama.ConsumerMessage{Topic: topic, Value: payload}
}

func TestProcessDeposit_AppliesOnceAndNotifies(t *testing.T) {
	c, accounts, notifier := newTestConsumer(t)
	ctx := context.Background()
	acct := seedAccount(t, accounts, "0.00")

	event := DepositEvent{
		DepositID: uuid.New(),
		AccountID: acct.ID,
		Amount:    decimal.RequireFromString("75.00"),
		Timestamp: time.Now().UTC(),
	}
	msg := message(t, "deposit-events", event)

	if err := c.process(ctx, msg); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	got, err := accounts.Get(ctx, acct.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if !got.Balance.Equal(decimal.RequireFromString("75.00")) {
		t.Fatalf("expected balance 75.00, got %s", got.Balance)
	}

	// Redelivery of the same record must not credit twice.
	if err := c.process(ctx, msg); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	got, _ = accounts.Get(ctx, acct.ID)
	if !got.Balance.Equal(decimal.RequireFromString("75.00")) {
		t.Fatalf("redelivery double-credited, balance %s", got.Balance)
	}

	if len(notifier.messages) != 2 {
		t.Fatalf("expected a notification per delivery, got %d", len(notifier.messages))
	}
	if notifier.messages[0].Kind != notification.KindDepositCredited {
		t.Fatalf("unexpected kind %q", notifier.messages[0].Kind)
	}
	if notifier.messages[0].Recipient != acct.Number {
		t.Fatalf("expected account number recipient, got %q", notifier.messages[0].Recipient)
	}
}

func TestProcessTransfer_NotifiesBothSides(t *testing.T) {
	c, accounts, notifier := newTestConsumer(t)
	ctx := context.Background()
	from := seedAccount(t, accounts, "100.00")
	to := seedAccount(t, accounts, "0.00")

	msg := message(t, "funds-transfer-events", FundsTransferEvent{
		TransactionID: uuid.New(),
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		Amount:        decimal.RequireFromString("40.00"),
		Description:   "rent",
		Timestamp:     time.Now().UTC(),
	})
	if err := c.process(ctx, msg); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	fromAcct, _ := accounts.Get(ctx, from.ID)
	toAcct, _ := accounts.Get(ctx, to.ID)
	if !fromAcct.Balance.Equal(decimal.RequireFromString("60.00")) || !toAcct.Balance.Equal(decimal.RequireFromString("40.00")) {
		t.Fatalf("unexpected balances %s/%s", fromAcct.Balance, toAcct.Balance)
	}

	if len(notifier.messages) != 2 {
		t.Fatalf("expected two notifications, got %d", len(notifier.messages))
	}
	if notifier.messages[0].Kind != notification.KindTransferDebited || notifier.messages[1].Kind != notification.KindTransferCredited {
		t.Fatalf("unexpected kinds %q/%q", notifier.messages[0].Kind, notifier.messages[1].Kind)
	}
}

func TestProcess_DropsMalformedPayload(t *testing.T) {
	c, _, notifier := newTestConsumer(t)
	ctx := context.Background()

	msg := &sarama.ConsumerMessage{Topic: "deposit-events", Value: []byte("not json")}
	if err := c.process(ctx, msg); err != nil {
		t.Fatalf("malformed payloads must be dropped, got %v", err)
	}
	if len(notifier.messages) != 0 {
		t.Fatalf("malformed payload must not notify")
	}
}

func TestProcess_IgnoresUnknownTopic(t *testing.T) {
	c, _, _ := newTestConsumer(t)
	msg := &sarama.ConsumerMessage{Topic: "unrelated", Value: []byte("{}")}
	if err := c.process(context.Background(), msg); err != nil {
		t.Fatalf("unknown topics must be skipped, got %v", err)
	}
}
