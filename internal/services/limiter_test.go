package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterWindow(t *testing.T) {
	ctx := context.Background()
	now := fixedNow
	limiter := NewMemoryLimiter(2, time.Minute)
	limiter.now = func() time.Time { return now }

	require.NoError(t, limiter.AddFailure(ctx, "k"))
	blocked, err := limiter.TooManyRecent(ctx, "k")
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, limiter.AddFailure(ctx, "k"))
	blocked, _ = limiter.TooManyRecent(ctx, "k")
	assert.True(t, blocked)

	now = now.Add(time.Minute)
	blocked, _ = limiter.TooManyRecent(ctx, "k")
	assert.False(t, blocked)

	require.NoError(t, limiter.AddFailure(ctx, "k"))
	require.NoError(t, limiter.AddFailure(ctx, "k"))
	require.NoError(t, limiter.Reset(ctx, "k"))
	blocked, _ = limiter.TooManyRecent(ctx, "k")
	assert.False(t, blocked)
}

type brokenLimiter struct{}

func (brokenLimiter) TooManyRecent(context.Context, string) (bool, error) {
	return false, errors.New("redis unavailable")
}

func (brokenLimiter) AddFailure(context.Context, string) error { return errors.New("redis unavailable") }

func (brokenLimiter) Reset(context.Context, string) error { return errors.New("redis unavailable") }

func TestCheckAttemptsFailsOpenOnBackendError(t *testing.T) {
	assert.NoError(t, checkAttempts(context.Background(), brokenLimiter{}, "k"))
	assert.NoError(t, checkAttempts(context.Background(), nil, "k"))
}

func TestRecordAttemptCountsOnlyCredentialFailures(t *testing.T) {
	ctx := context.Background()
	limiter := NewMemoryLimiter(1, time.Minute)

	recordAttempt(ctx, limiter, "k", ErrAccountPending())
	blocked, _ := limiter.TooManyRecent(ctx, "k")
	assert.False(t, blocked)

	recordAttempt(ctx, limiter, "k", ErrInvalidOrExpiredCode())
	blocked, _ = limiter.TooManyRecent(ctx, "k")
	assert.True(t, blocked)

	recordAttempt(ctx, limiter, "k", nil)
	blocked, _ = limiter.TooManyRecent(ctx, "k")
	assert.False(t, blocked)
}

func TestAttemptKey(t *testing.T) {
	assert.Equal(t, "login:unknown:a@b.c", attemptKey("login", RequestMeta{}, "a@b.c"))
	assert.Equal(t, "otp:1.2.3.4:a@b.c", attemptKey("otp", RequestMeta{IP: " 1.2.3.4 "}, "a@b.c"))
}
