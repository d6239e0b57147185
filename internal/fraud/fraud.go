package fraud

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/corebank/corebank/internal/account"
)

// Reason identifies which heuristic flagged a transfer. The set is closed;
// callers switch on these values when composing alerts.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonLargeTransfer Reason = "large-transfer-amount"
	ReasonBlacklisted   Reason = "blacklisted-account"
	ReasonHighFrequency Reason = "high-frequency"
)

// Rules configures the transfer heuristics.
type Rules struct {
	LargeTransferThreshold decimal.Decimal
	Blacklist              []string
	WindowLookback         time.Duration
	FrequencyLimit         int
}

// DefaultRules mirrors the reference thresholds: 500,000.00 large-transfer
// cutoff, five transfers per ten-minute window.
func DefaultRules() Rules {
	return Rules{
		LargeTransferThreshold: decimal.RequireFromString("500000.00"),
		WindowLookback:         10 * time.Minute,
		FrequencyLimit:         5,
	}
}

// Evaluator applies the rules against a per-account transfer window.
type Evaluator struct {
	rules     Rules
	window    Window
	blacklist map[string]struct{}
	logger    *slog.Logger
}

// NewEvaluator builds an evaluator. The window tracks recent transfer
// timestamps per source account number; losing it only weakens detection.
func NewEvaluator(rules Rules, window Window, logger *slog.Logger) *Evaluator {
	bl := make(map[string]struct{}, len(rules.Blacklist))
	for _, number := range rules.Blacklist {
		bl[number] = struct{}{}
	}
	return &Evaluator{rules: rules, window: window, blacklist: bl, logger: logger}
}

// Check evaluates a proposed transfer and returns the first matching reason,
// or ReasonNone when the transfer is allowed.
func (e *Evaluator) Check(ctx context.Context, from, to account.Account, amount decimal.Decimal) Reason {
	if amount.GreaterThan(e.rules.LargeTransferThreshold) {
		e.logger.Warn("potential fraud: large transfer amount", "amount", amount.String(), "account_number", from.Number)
		return ReasonLargeTransfer
	}
	if e.isBlacklisted(from.Number) || e.isBlacklisted(to.Number) {
		e.logger.Warn("potential fraud: blacklisted account", "from", from.Number, "to", to.Number)
		return ReasonBlacklisted
	}
	if e.isHighFrequency(ctx, from.Number) {
		e.logger.Warn("potential fraud: high frequency transfers", "account_number", from.Number)
		return ReasonHighFrequency
	}
	return ReasonNone
}

// RecordTransfer appends the transfer timestamp to the source account's
// window. Called after every successful transfer so the window reflects
// attempted volume. Window errors are swallowed: the window is best-effort
// state and must never fail a committed transfer.
func (e *Evaluator) RecordTransfer(ctx context.Context, sourceNumber string) {
	if err := e.window.Record(ctx, sourceNumber, time.Now().UTC()); err != nil {
		e.logger.Warn("fraud window record failed", "account_number", sourceNumber, "error", err)
	}
}

func (e *Evaluator) isBlacklisted(number string) bool {
	_, ok := e.blacklist[number]
	return ok
}

func (e *Evaluator) isHighFrequency(ctx context.Context, number string) bool {
	count, err := e.window.Count(ctx, number, time.Now().UTC(), e.rules.WindowLookback)
	if err != nil {
		// Fail open: the window is advisory, balances stay correct without it.
		e.logger.Warn("fraud window count failed", "account_number", number, "error", err)
		return false
	}
	return count >= e.rules.FrequencyLimit
}
