package transaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corebank/corebank/internal/account"
	"github.com/corebank/corebank/internal/events"
	"github.com/corebank/corebank/internal/fraud"
	"github.com/corebank/corebank/internal/ledger"
	"github.com/corebank/corebank/internal/notification"
	"github.com/corebank/corebank/internal/user"
)

var (
	// ErrInvalidAmount indicates a missing, zero or negative amount.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidRequest indicates a structurally invalid request, such as a
	// transfer where source and destination match.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrFraudBlocked indicates a transfer rejected by the fraud rules. Use
	// errors.As with *FraudBlockedError to read the reason.
	ErrFraudBlocked = errors.New("transfer blocked by fraud rules")
)

// FraudBlockedError carries the fraud reason back to the caller.
type FraudBlockedError struct {
	Reason fraud.Reason
}

func (e *FraudBlockedError) Error() string {
	return fmt.Sprintf("transfer blocked by fraud rules: %s", e.Reason)
}

func (e *FraudBlockedError) Unwrap() error { return ErrFraudBlocked }

// A storage conflict (deadlock or serialization failure) is retried this many
// times before surfacing to the caller.
const maxConflictAttempts = 3

// Service orchestrates money movement. It is the only caller of the ledger
// engine's mutators: it validates amounts, asserts ownership, consults the
// fraud rules, and after a commit fans out notifications and bus events.
type Service struct {
	accounts *account.Service
	users    user.Repository
	engine   ledger.Engine
	fraud    *fraud.Evaluator
	notifier notification.Notifier
	producer events.Producer
	logger   *slog.Logger
}

// NewService wires the orchestrator.
func NewService(
	accounts *account.Service,
	users user.Repository,
	engine ledger.Engine,
	evaluator *fraud.Evaluator,
	notifier notification.Notifier,
	producer events.Producer,
	logger *slog.Logger,
) *Service {
	return &Service{
		accounts: accounts,
		users:    users,
		engine:   engine,
		fraud:    evaluator,
		notifier: notifier,
		producer: producer,
		logger:   logger,
	}
}

// Transfer moves amount from the caller's account to the destination.
// Validation and authorization fail fast with no side effects; the balance
// changes and the transfer record commit in one atomic scope.
func (s *Service) Transfer(ctx context.Context, sourceID, destID uuid.UUID, amount decimal.Decimal, description string, requestingUserID uuid.UUID) (ledger.Transfer, error) {
	if !amount.IsPositive() {
		return ledger.Transfer{}, ErrInvalidAmount
	}
	if sourceID == destID {
		return ledger.Transfer{}, fmt.Errorf("%w: source and destination accounts must differ", ErrInvalidRequest)
	}

	source, err := s.accounts.GetOwned(ctx, sourceID, requestingUserID)
	if err != nil {
		return ledger.Transfer{}, err
	}
	dest, err := s.accounts.Get(ctx, destID)
	if err != nil {
		return ledger.Transfer{}, err
	}
	if source.Balance.LessThan(amount) {
		return ledger.Transfer{}, account.ErrInsufficientFunds
	}

	if reason := s.fraud.Check(ctx, source, dest, amount); reason != fraud.ReasonNone {
		s.notifyFraudBlocked(ctx, source, amount, reason)
		return ledger.Transfer{}, &FraudBlockedError{Reason: reason}
	}

	var record ledger.Transfer
	err = s.withConflictRetry(ctx, "transfer", func() error {
		var err error
		record, err = s.engine.Transfer(ctx, sourceID, destID, amount, description)
		return err
	})
	if err != nil {
		return ledger.Transfer{}, err
	}

	s.fraud.RecordTransfer(ctx, source.Number)

	fields := map[string]string{
		"transaction_id": record.ID.String(),
		"amount":         record.Amount.String(),
		"account_number": source.Number,
	}
	s.notifyOwner(ctx, source, notification.KindTransferDebited, fields)
	creditFields := map[string]string{
		"transaction_id": record.ID.String(),
		"amount":         record.Amount.String(),
		"account_number": dest.Number,
	}
	s.notifyOwner(ctx, dest, notification.KindTransferCredited, creditFields)

	if err := s.producer.PublishTransfer(ctx, events.FundsTransferEvent{
		TransactionID: record.ID,
		FromAccountID: record.FromAccountID,
		ToAccountID:   record.ToAccountID,
		Amount:        record.Amount,
		Description:   record.Description,
		Timestamp:     record.RecordedAt,
	}); err != nil {
		s.logger.Warn("transfer event publish failed",
			slog.String("transaction_id", record.ID.String()), slog.Any("error", err))
	}

	return record, nil
}

// Deposit credits the caller's account.
func (s *Service) Deposit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, requestingUserID uuid.UUID) (ledger.Deposit, decimal.Decimal, error) {
	if !amount.IsPositive() {
		return ledger.Deposit{}, decimal.Zero, ErrInvalidAmount
	}

	acct, err := s.accounts.GetOwned(ctx, accountID, requestingUserID)
	if err != nil {
		return ledger.Deposit{}, decimal.Zero, err
	}

	var (
		record     ledger.Deposit
		newBalance decimal.Decimal
	)
	err = s.withConflictRetry(ctx, "deposit", func() error {
		var err error
		record, newBalance, err = s.engine.Deposit(ctx, accountID, amount)
		return err
	})
	if err != nil {
		return ledger.Deposit{}, decimal.Zero, err
	}

	s.notifyOwner(ctx, acct, notification.KindDepositCredited, map[string]string{
		"deposit_id":     record.ID.String(),
		"amount":         record.Amount.String(),
		"account_number": acct.Number,
	})

	if err := s.producer.PublishDeposit(ctx, events.DepositEvent{
		DepositID: record.ID,
		AccountID: record.AccountID,
		Amount:    record.Amount,
		Timestamp: record.RecordedAt,
	}); err != nil {
		s.logger.Warn("deposit event publish failed",
			slog.String("deposit_id", record.ID.String()), slog.Any("error", err))
	}

	return record, newBalance, nil
}

// Withdraw debits the caller's account.
func (s *Service) Withdraw(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, requestingUserID uuid.UUID) (ledger.Withdrawal, decimal.Decimal, error) {
	if !amount.IsPositive() {
		return ledger.Withdrawal{}, decimal.Zero, ErrInvalidAmount
	}

	acct, err := s.accounts.GetOwned(ctx, accountID, requestingUserID)
	if err != nil {
		return ledger.Withdrawal{}, decimal.Zero, err
	}
	if acct.Balance.LessThan(amount) {
		return ledger.Withdrawal{}, decimal.Zero, account.ErrInsufficientFunds
	}

	var (
		record     ledger.Withdrawal
		newBalance decimal.Decimal
	)
	err = s.withConflictRetry(ctx, "withdraw", func() error {
		var err error
		record, newBalance, err = s.engine.Withdraw(ctx, accountID, amount)
		return err
	})
	if err != nil {
		return ledger.Withdrawal{}, decimal.Zero, err
	}

	s.notifyOwner(ctx, acct, notification.KindWithdrawalDebited, map[string]string{
		"withdrawal_id":  record.ID.String(),
		"amount":         record.Amount.String(),
		"account_number": acct.Number,
	})

	if err := s.producer.PublishWithdrawal(ctx, events.WithdrawalEvent{
		WithdrawalID: record.ID,
		AccountID:    record.AccountID,
		Amount:       record.Amount,
		Timestamp:    record.RecordedAt,
	}); err != nil {
		s.logger.Warn("withdrawal event publish failed",
			slog.String("withdrawal_id", record.ID.String()), slog.Any("error", err))
	}

	return record, newBalance, nil
}

// History returns every record touching the account, newest first.
func (s *Service) History(ctx context.Context, accountID, requestingUserID uuid.UUID) ([]ledger.Entry, error) {
	if err := s.accounts.ValidateOwnership(ctx, accountID, requestingUserID); err != nil {
		return nil, err
	}
	return s.engine.History(ctx, accountID)
}

// withConflictRetry reruns op when the engine reports a retryable storage
// race. Validation errors and business failures are never retried.
func (s *Service) withConflictRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxConflictAttempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, ledger.ErrConflict) {
			return err
		}
		s.logger.Warn("retrying after storage conflict",
			slog.String("op", op), slog.Int("attempt", attempt))
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}

// notifyFraudBlocked tells the source owner why the transfer was refused. The
// amount is included only for the large-transfer reason.
func (s *Service) notifyFraudBlocked(ctx context.Context, source account.Account, amount decimal.Decimal, reason fraud.Reason) {
	fields := map[string]string{
		"reason":         string(reason),
		"account_number": source.Number,
	}
	if reason == fraud.ReasonLargeTransfer {
		fields["amount"] = amount.String()
	}
	s.notifyOwner(ctx, source, notification.KindFraudBlocked, fields)
}

// notifyOwner resolves the account owner's email and sends. Failures are
// logged and swallowed: a committed transaction never rolls back because a
// notification failed.
func (s *Service) notifyOwner(ctx context.Context, acct account.Account, kind string, fields map[string]string) {
	recipient := acct.Number
	if owner, err := s.users.FindByID(ctx, acct.UserID); err == nil {
		recipient = owner.Email
	}
	if err := s.notifier.Send(ctx, notification.Message{
		Kind:      kind,
		Recipient: recipient,
		Fields:    fields,
	}); err != nil {
		s.logger.Warn("notification delivery failed",
			slog.String("kind", kind), slog.Any("error", err))
	}
}
