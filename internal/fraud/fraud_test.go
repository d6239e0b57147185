package fraud

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/corebank/corebank/internal/account"
	"github.com/corebank/corebank/internal/logging"
)

func testAccounts() (account.Account, account.Account) {
	from := account.Account{Number: "ACC-25010112000011AABBCC"}
	to := account.Account{Number: "ACC-25010112000022DDEEFF"}
	return from, to
}

func TestCheck_AllowsOrdinaryTransfer(t *testing.T) {
	from, to := testAccounts()
	e := NewEvaluator(DefaultRules(), NewMemoryWindow(), logging.Discard())

	if reason := e.Check(context.Background(), from, to, decimal.RequireFromString("100.00")); reason != ReasonNone {
		t.Fatalf("expected allowed, got %q", reason)
	}
}

func TestCheck_LargeTransferAmount(t *testing.T) {
	from, to := testAccounts()
	e := NewEvaluator(DefaultRules(), NewMemoryWindow(), logging.Discard())

	// Exactly at the threshold is allowed; strictly greater is flagged.
	if reason := e.Check(context.Background(), from, to, decimal.RequireFromString("500000.00")); reason != ReasonNone {
		t.Fatalf("threshold amount must be allowed, got %q", reason)
	}
	if reason := e.Check(context.Background(), from, to, decimal.RequireFromString("500000.01")); reason != ReasonLargeTransfer {
		t.Fatalf("expected large-transfer flag, got %q", reason)
	}
}

func TestCheck_BlacklistedAccount(t *testing.T) {
	from, to := testAccounts()
	rules := DefaultRules()
	rules.Blacklist = []string{to.Number}
	e := NewEvaluator(rules, NewMemoryWindow(), logging.Discard())

	if reason := e.Check(context.Background(), from, to, decimal.RequireFromString("10.00")); reason != ReasonBlacklisted {
		t.Fatalf("expected blacklist flag, got %q", reason)
	}
	// Source side is checked as well.
	e2 := NewEvaluator(Rules{
		LargeTransferThreshold: rules.LargeTransferThreshold,
		Blacklist:              []string{from.Number},
		WindowLookback:         rules.WindowLookback,
		FrequencyLimit:         rules.FrequencyLimit,
	}, NewMemoryWindow(), logging.Discard())
	if reason := e2.Check(context.Background(), from, to, decimal.RequireFromString("10.00")); reason != ReasonBlacklisted {
		t.Fatalf("expected blacklist flag for source, got %q", reason)
	}
}

func TestCheck_SixthTransferFlaggedHighFrequency(t *testing.T) {
	from, to := testAccounts()
	e := NewEvaluator(DefaultRules(), NewMemoryWindow(), logging.Discard())
	ctx := context.Background()
	amount := decimal.RequireFromString("10.00")

	for i := 0; i < 5; i++ {
		if reason := e.Check(ctx, from, to, amount); reason != ReasonNone {
			t.Fatalf("transfer %d unexpectedly flagged: %q", i+1, reason)
		}
		e.RecordTransfer(ctx, from.Number)
	}

	if reason := e.Check(ctx, from, to, amount); reason != ReasonHighFrequency {
		t.Fatalf("expected sixth transfer to be flagged high-frequency, got %q", reason)
	}
}

func TestMemoryWindow_PrunesOldEntries(t *testing.T) {
	w := NewMemoryWindow()
	ctx := context.Background()
	now := time.Now().UTC()

	w.Record(ctx, "acct", now.Add(-20*time.Minute))
	w.Record(ctx, "acct", now.Add(-5*time.Minute))
	w.Record(ctx, "acct", now.Add(-time.Minute))

	count, err := w.Count(ctx, "acct", now, 10*time.Minute)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 entries inside the lookback, got %d", count)
	}
}

func TestRedisWindow_RecordAndCount(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	w := NewRedisWindow(cache, 10*time.Minute)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		if err := w.Record(ctx, "acct", now.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}
	if err := w.Record(ctx, "acct", now.Add(-30*time.Minute)); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	count, err := w.Count(ctx, "acct", now.Add(3*time.Second), 10*time.Minute)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 entries after pruning, got %d", count)
	}
}

func TestCheck_FailsOpenOnWindowError(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	e := NewEvaluator(DefaultRules(), NewRedisWindow(cache, 10*time.Minute), logging.Discard())
	mr.Close() // window backend gone

	from, to := testAccounts()
	if reason := e.Check(context.Background(), from, to, decimal.RequireFromString("10.00")); reason != ReasonNone {
		t.Fatalf("expected fail-open when the window is unavailable, got %q", reason)
	}
}
