package fraud

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const windowKeyPrefix = "fraud:window:v1:"

// Window is the per-account transfer timestamp window. Implementations prune
// entries older than the lookback before counting. The window is ephemeral by
// design: eviction or loss never affects balance correctness.
type Window interface {
	Record(ctx context.Context, accountNumber string, at time.Time) error
	Count(ctx context.Context, accountNumber string, now time.Time, lookback time.Duration) (int, error)
}

// RedisWindow keeps timestamps in a sorted set scored by unix nanos, pruned
// with ZREMRANGEBYSCORE on every count.
type RedisWindow struct {
	cache *redis.Client
	ttl   time.Duration
}

// NewRedisWindow builds a Redis-backed window. Keys expire after ttl so idle
// accounts cost nothing.
func NewRedisWindow(cache *redis.Client, ttl time.Duration) *RedisWindow {
	return &RedisWindow{cache: cache, ttl: ttl}
}

func (w *RedisWindow) Record(ctx context.Context, accountNumber string, at time.Time) error {
	key := windowKeyPrefix + accountNumber
	pipe := w.cache.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixNano()), Member: at.UnixNano()})
	pipe.Expire(ctx, key, w.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (w *RedisWindow) Count(ctx context.Context, accountNumber string, now time.Time, lookback time.Duration) (int, error) {
	key := windowKeyPrefix + accountNumber
	cutoff := now.Add(-lookback).UnixNano()
	if err := w.cache.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return 0, err
	}
	count, err := w.cache.ZCard(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// MemoryWindow is a map-backed window for tests and single-node setups.
type MemoryWindow struct {
	mu         sync.Mutex
	timestamps map[string][]time.Time
}

// NewMemoryWindow constructs an in-process window.
func NewMemoryWindow() *MemoryWindow {
	return &MemoryWindow{timestamps: make(map[string][]time.Time)}
}

func (w *MemoryWindow) Record(_ context.Context, accountNumber string, at time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timestamps[accountNumber] = append(w.timestamps[accountNumber], at)
	return nil
}

func (w *MemoryWindow) Count(_ context.Context, accountNumber string, now time.Time, lookback time.Duration) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cutoff := now.Add(-lookback)
	kept := w.timestamps[accountNumber][:0]
	for _, t := range w.timestamps[accountNumber] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.timestamps[accountNumber] = kept
	return len(kept), nil
}
