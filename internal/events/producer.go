package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/corebank/corebank/internal/config"
)

// Producer publishes ledger events to the message bus. Publishing is
// best-effort from the caller's perspective: the ledger write has already
// committed by the time an event is emitted.
type Producer interface {
	PublishDeposit(ctx context.Context, event DepositEvent) error
	PublishWithdrawal(ctx context.Context, event WithdrawalEvent) error
	PublishTransfer(ctx context.Context, event FundsTransferEvent) error
	Close() error
}

// KafkaProducer publishes events through a synchronous Kafka producer.
type KafkaProducer struct {
	producer sarama.SyncProducer
	cfg      config.KafkaConfig
	logger   *slog.Logger
}

// NewKafkaProducer connects to the configured brokers.
func NewKafkaProducer(cfg config.KafkaConfig, logger *slog.Logger) (*KafkaProducer, error) {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 5
	sc.Producer.Compression = sarama.CompressionSnappy
	sc.Producer.Timeout = 5 * time.Second

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	logger.Info("kafka producer connected", slog.Any("brokers", cfg.Brokers))

	return &KafkaProducer{producer: producer, cfg: cfg, logger: logger}, nil
}

// PublishDeposit sends a deposit event keyed by account id.
func (p *KafkaProducer) PublishDeposit(ctx context.Context, event DepositEvent) error {
	return p.send(ctx, p.cfg.DepositTopic, event.AccountID.String(), event)
}

// PublishWithdrawal sends a withdrawal event keyed by account id.
func (p *KafkaProducer) PublishWithdrawal(ctx context.Context, event WithdrawalEvent) error {
	return p.send(ctx, p.cfg.WithdrawTopic, event.AccountID.String(), event)
}

// PublishTransfer sends a transfer event keyed by the source account id.
func (p *KafkaProducer) PublishTransfer(ctx context.Context, event FundsTransferEvent) error {
	return p.send(ctx, p.cfg.TransferTopic, event.FromAccountID.String(), event)
}

func (p *KafkaProducer) send(ctx context.Context, topic, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	}

	type result struct {
		partition int32
		offset    int64
		err       error
	}
	resultCh := make(chan result, 1)

	go func() {
		partition, offset, err := p.producer.SendMessage(msg)
		resultCh <- result{partition, offset, err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			p.logger.Error("kafka publish failed",
				slog.String("topic", topic),
				slog.String("key", key),
				slog.Any("error", res.err))
			return res.err
		}
		p.logger.Debug("kafka publish ok",
			slog.String("topic", topic),
			slog.Int("partition", int(res.partition)),
			slog.Int64("offset", res.offset))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts down the underlying producer.
func (p *KafkaProducer) Close() error {
	if p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

// NoopProducer discards events. Used when Kafka is disabled.
type NoopProducer struct {
	logger *slog.Logger
}

// NewNoopProducer builds a producer that drops every event.
func NewNoopProducer(logger *slog.Logger) *NoopProducer {
	return &NoopProducer{logger: logger}
}

func (p *NoopProducer) PublishDeposit(ctx context.Context, event DepositEvent) error {
	p.debug("deposit", event.DepositID.String())
	return nil
}

func (p *NoopProducer) PublishWithdrawal(ctx context.Context, event WithdrawalEvent) error {
	p.debug("withdrawal", event.WithdrawalID.String())
	return nil
}

func (p *NoopProducer) PublishTransfer(ctx context.Context, event FundsTransferEvent) error {
	p.debug("transfer", event.TransactionID.String())
	return nil
}

func (p *NoopProducer) Close() error { return nil }

func (p *NoopProducer) debug(kind, id string) {
	if p.logger != nil {
		p.logger.Debug("kafka disabled, event dropped", slog.String("kind", kind), slog.String("id", id))
	}
}
