package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/corebank/corebank/internal/account"
	"github.com/corebank/corebank/internal/config"
	"github.com/corebank/corebank/internal/ledger"
	"github.com/corebank/corebank/internal/notification"
)

// Consumer applies deposit, withdrawal and transfer events from Kafka to the
// ledger and notifies the affected accounts. Records produced by this process
// are already in the ledger, so for those the replay is a no-op and only the
// notification remains.
type Consumer struct {
	group    sarama.ConsumerGroup
	cfg      config.KafkaConfig
	replayer ledger.Replayer
	accounts account.Repository
	notifier notification.Notifier
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewConsumer joins the configured consumer group.
func NewConsumer(cfg config.KafkaConfig, replayer ledger.Replayer, accounts account.Repository, notifier notification.Notifier, logger *slog.Logger) (*Consumer, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_0_0_0
	sc.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, sc)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	logger.Info("kafka consumer joined",
		slog.String("group", cfg.ConsumerGroup),
		slog.Any("brokers", cfg.Brokers))

	return &Consumer{
		group:    group,
		cfg:      cfg,
		replayer: replayer,
		accounts: accounts,
		notifier: notifier,
		logger:   logger,
	}, nil
}

// Start consumes the three ledger topics until the context is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	topics := []string{c.cfg.DepositTopic, c.cfg.WithdrawTopic, c.cfg.TransferTopic}
	handler := &groupHandler{consumer: c}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.group.Consume(ctx, topics, handler); err != nil {
				c.logger.Error("consume loop failed", slog.Any("error", err))
				return
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("consumer group error", slog.Any("error", err))
		}
	}()
}

// Close leaves the group and waits for the consume loop to drain.
func (c *Consumer) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		if err := c.group.Close(); err != nil {
			c.logger.Error("consumer group close failed", slog.Any("error", err))
		}
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type groupHandler struct {
	consumer *Consumer
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := h.consumer.process(session.Context(), message); err != nil {
			h.consumer.logger.Error("event processing failed",
				slog.String("topic", message.Topic),
				slog.Int64("offset", message.Offset),
				slog.Any("error", err))
			continue
		}
		session.MarkMessage(message, "")
	}
	return nil
}

func (c *Consumer) process(ctx context.Context, message *sarama.ConsumerMessage) error {
	switch message.Topic {
	case c.cfg.DepositTopic:
		return c.processDeposit(ctx, message.Value)
	case c.cfg.WithdrawTopic:
		return c.processWithdrawal(ctx, message.Value)
	case c.cfg.TransferTopic:
		return c.processTransfer(ctx, message.Value)
	default:
		c.logger.Warn("message on unexpected topic", slog.String("topic", message.Topic))
		return nil
	}
}

func (c *Consumer) processDeposit(ctx context.Context, payload []byte) error {
	var event DepositEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		// Malformed payloads are logged and dropped; redelivery cannot fix them.
		c.logger.Error("undecodable deposit event", slog.Any("error", err))
		return nil
	}

	applied, err := c.replayer.ReplayDeposit(ctx, ledger.Deposit{
		ID:         event.DepositID,
		AccountID:  event.AccountID,
		Amount:     event.Amount,
		RecordedAt: event.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("replay deposit %s: %w", event.DepositID, err)
	}
	if applied {
		c.logger.Info("deposit event applied", slog.String("deposit_id", event.DepositID.String()))
	}

	c.notify(ctx, notification.KindDepositCredited, event.AccountID, map[string]string{
		"deposit_id": event.DepositID.String(),
		"amount":     event.Amount.String(),
	})
	return nil
}

func (c *Consumer) processWithdrawal(ctx context.Context, payload []byte) error {
	var event WithdrawalEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.logger.Error("undecodable withdrawal event", slog.Any("error", err))
		return nil
	}

	applied, err := c.replayer.ReplayWithdrawal(ctx, ledger.Withdrawal{
		ID:         event.WithdrawalID,
		AccountID:  event.AccountID,
		Amount:     event.Amount,
		RecordedAt: event.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("replay withdrawal %s: %w", event.WithdrawalID, err)
	}
	if applied {
		c.logger.Info("withdrawal event applied", slog.String("withdrawal_id", event.WithdrawalID.String()))
	}

	c.notify(ctx, notification.KindWithdrawalDebited, event.AccountID, map[string]string{
		"withdrawal_id": event.WithdrawalID.String(),
		"amount":        event.Amount.String(),
	})
	return nil
}

func (c *Consumer) processTransfer(ctx context.Context, payload []byte) error {
	var event FundsTransferEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.logger.Error("undecodable transfer event", slog.Any("error", err))
		return nil
	}

	applied, err := c.replayer.ReplayTransfer(ctx, ledger.Transfer{
		ID:            event.TransactionID,
		FromAccountID: event.FromAccountID,
		ToAccountID:   event.ToAccountID,
		Amount:        event.Amount,
		Description:   event.Description,
		RecordedAt:    event.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("replay transfer %s: %w", event.TransactionID, err)
	}
	if applied {
		c.logger.Info("transfer event applied", slog.String("transaction_id", event.TransactionID.String()))
	}

	fields := map[string]string{
		"transaction_id": event.TransactionID.String(),
		"amount":         event.Amount.String(),
	}
	c.notify(ctx, notification.KindTransferDebited, event.FromAccountID, fields)
	c.notify(ctx, notification.KindTransferCredited, event.ToAccountID, fields)
	return nil
}

// notify is best effort: a notification failure never nacks the event.
func (c *Consumer) notify(ctx context.Context, kind string, accountID uuid.UUID, fields map[string]string) {
	recipient := accountID.String()
	if acct, err := c.accounts.Get(ctx, accountID); err == nil {
		recipient = acct.Number
	}
	if err := c.notifier.Send(ctx, notification.Message{
		Kind:      kind,
		Recipient: recipient,
		Fields:    fields,
	}); err != nil {
		c.logger.Warn("notification delivery failed", slog.String("kind", kind), slog.Any("error", err))
	}
}
