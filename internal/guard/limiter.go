package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"milltownabc/internal/logger"

	"github.com/redis/go-redis/v9"
)

// CounterStore increments a named counter that disappears at expiresAt.
type CounterStore interface {
	Increment(ctx context.Context, key string, expiresAt time.Time) (int64, error)
}

type counter struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounterStore keeps counters in process. Suitable for a single instance.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

func (s *MemoryCounterStore) Increment(_ context.Context, key string, expiresAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, c := range s.counters {
		if !now.Before(c.expiresAt) {
			delete(s.counters, k)
		}
	}

	c, ok := s.counters[key]
	if !ok {
		c = &counter{expiresAt: expiresAt}
		s.counters[key] = c
	}
	c.count++
	return c.count, nil
}

// RedisCounterStore shares counters between instances.
type RedisCounterStore struct {
	redis *redis.Client
}

func NewRedisCounterStore(rdb *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{redis: rdb}
}

func (s *RedisCounterStore) Increment(ctx context.Context, key string, expiresAt time.Time) (int64, error) {
	n, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := s.redis.ExpireAt(ctx, key, expiresAt).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// DailyLimiter counts attempts per scope and address within one local calendar day.
type DailyLimiter struct {
	store CounterStore
	loc   *time.Location
	now   func() time.Time
}

func NewDailyLimiter(store CounterStore, loc *time.Location) *DailyLimiter {
	if loc == nil {
		loc = time.UTC
	}
	return &DailyLimiter{store: store, loc: loc, now: time.Now}
}

// Allow records an attempt and reports whether it is within limit.
// Store failures let the attempt through.
func (l *DailyLimiter) Allow(ctx context.Context, scope, addr string, limit int) (bool, error) {
	now := l.now().In(l.loc)
	day := now.Format("2006-01-02")
	midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, l.loc)

	key := fmt.Sprintf("ratelimit:%s:%s:%s", scope, day, addr)
	n, err := l.store.Increment(ctx, key, midnight)
	if err != nil {
		logger.Error("Rate limit counter unavailable", "scope", scope, "ip", addr, "error", err)
		return true, err
	}
	return n <= int64(limit), nil
}
