package services

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultAttemptLimit  = 10
	DefaultAttemptWindow = 15 * time.Minute
)

// AttemptLimiter counts failed attempts per key in a sliding window.
type AttemptLimiter interface {
	TooManyRecent(ctx context.Context, key string) (bool, error)
	AddFailure(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

func attemptKey(scope string, meta RequestMeta, email string) string {
	ip := strings.TrimSpace(meta.IP)
	if ip == "" {
		ip = "unknown"
	}
	return scope + ":" + ip + ":" + email
}

type MemoryLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if limit <= 0 {
		limit = DefaultAttemptLimit
	}
	if window <= 0 {
		window = DefaultAttemptWindow
	}
	return &MemoryLimiter{
		attempts: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

func (l *MemoryLimiter) TooManyRecent(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pruneLocked(key, l.now())) >= l.limit, nil
}

func (l *MemoryLimiter) AddFailure(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.attempts[key] = append(l.pruneLocked(key, now), now)
	return nil
}

func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
	return nil
}

func (l *MemoryLimiter) pruneLocked(key string, now time.Time) []time.Time {
	values := l.attempts[key]
	if len(values) == 0 {
		return []time.Time{}
	}
	threshold := now.Add(-l.window)
	pruned := make([]time.Time, 0, len(values))
	for _, value := range values {
		if value.After(threshold) {
			pruned = append(pruned, value)
		}
	}
	if len(pruned) == 0 {
		delete(l.attempts, key)
		return []time.Time{}
	}
	l.attempts[key] = pruned
	return pruned
}

// RedisLimiter keeps one sorted set per key scored by attempt time, so the
// window is shared across processes.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	if limit <= 0 {
		limit = DefaultAttemptLimit
	}
	if window <= 0 {
		window = DefaultAttemptWindow
	}
	return &RedisLimiter{client: client, limit: limit, window: window, now: time.Now}
}

func (l *RedisLimiter) TooManyRecent(ctx context.Context, key string) (bool, error) {
	key = l.redisKey(key)
	threshold := strconv.FormatInt(l.now().Add(-l.window).UnixNano(), 10)
	if err := l.client.ZRemRangeByScore(ctx, key, "-inf", threshold).Err(); err != nil {
		return false, err
	}
	count, err := l.client.ZCard(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return count >= int64(l.limit), nil
}

func (l *RedisLimiter) AddFailure(ctx context.Context, key string) error {
	key = l.redisKey(key)
	now := l.now()
	pipe := l.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	pipe.Expire(ctx, key, l.window)
	_, err := pipe.Exec(ctx)
	return err
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.redisKey(key)).Err()
}

func (l *RedisLimiter) redisKey(key string) string {
	return "dormsync:attempts:" + key
}

// checkAttempts fails closed only on a confirmed limit hit. A limiter
// backend error is logged and the attempt proceeds.
func checkAttempts(ctx context.Context, limiter AttemptLimiter, key string) error {
	if limiter == nil {
		return nil
	}
	blocked, err := limiter.TooManyRecent(ctx, key)
	if err != nil {
		log.Printf("attempt limiter unavailable: %v", err)
		return nil
	}
	if blocked {
		return ErrTooManyAttempts()
	}
	return nil
}

// recordAttempt counts credential and code failures and clears the window
// on success. Other errors leave the count untouched.
func recordAttempt(ctx context.Context, limiter AttemptLimiter, key string, err error) {
	if limiter == nil {
		return
	}
	var recErr error
	switch {
	case err == nil:
		recErr = limiter.Reset(ctx, key)
	case HasCode(err, CodeInvalidCredentials), HasCode(err, CodeInvalidCode):
		recErr = limiter.AddFailure(ctx, key)
	}
	if recErr != nil && !errors.Is(recErr, context.Canceled) {
		log.Printf("attempt limiter write: %v", recErr)
	}
}
