package notification

import (
	"context"
	"log/slog"
)

// Notification kinds. One per customer-facing event.
const (
	KindDepositCredited   = "deposit-credited"
	KindWithdrawalDebited = "withdrawal-debited"
	KindTransferDebited   = "transfer-debited"
	KindTransferCredited  = "transfer-credited"
	KindFraudBlocked      = "fraud-blocked"
	KindLogin             = "login"
)

// Message describes a notification payload. Fields carry template values
// (amount, account_number, reason, ...) the delivery channel interpolates.
type Message struct {
	Kind      string
	Recipient string
	Fields    map[string]string
}

// Notifier delivers notifications to downstream systems. Delivery is
// fire-and-forget: a committed transaction never rolls back because a
// notification failed.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger. It stands in
// for a real mail gateway in development and tests.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	attrs := []any{"kind", message.Kind, "recipient", message.Recipient}
	for k, v := range message.Fields {
		attrs = append(attrs, k, v)
	}
	n.logger.Info("notification", attrs...)
	return nil
}
