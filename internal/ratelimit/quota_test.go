package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupQuotaTracker(t *testing.T, quota int, now func() time.Time) (*QuotaTracker, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tracker, err := NewQuotaTracker(&QuotaTrackerConfig{
		Redis:      client,
		DailyQuota: quota,
		Now:        now,
	})
	require.NoError(t, err)
	return tracker, mr
}

func TestNewQuotaTracker_Validation(t *testing.T) {
	_, err := NewQuotaTracker(nil)
	assert.Error(t, err)

	_, err = NewQuotaTracker(&QuotaTrackerConfig{})
	assert.Error(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	_, err = NewQuotaTracker(&QuotaTrackerConfig{Redis: client, DailyQuota: -1})
	assert.Error(t, err)

	tracker, err := NewQuotaTracker(&QuotaTrackerConfig{Redis: client})
	require.NoError(t, err)
	assert.Equal(t, DefaultDailyQuota, tracker.DailyQuota())
}

func TestQuotaTracker_ConsumeUpToLimit(t *testing.T) {
	tracker, _ := setupQuotaTracker(t, 3, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, remaining, err := tracker.TryConsume(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 2-i, remaining)
	}

	allowed, remaining, err := tracker.TryConsume(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
}

func TestQuotaTracker_UsersAreIndependent(t *testing.T) {
	tracker, _ := setupQuotaTracker(t, 1, nil)
	ctx := context.Background()

	allowed, _, err := tracker.TryConsume(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, err = tracker.TryConsume(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, _, err = tracker.TryConsume(ctx, "user-2")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestQuotaTracker_ResetsAtOsloMidnight(t *testing.T) {
	// 23:30 Oslo time on 2026-03-01.
	day1 := time.Date(2026, 3, 1, 23, 30, 0, 0, osloTime)
	current := day1
	tracker, _ := setupQuotaTracker(t, 1, func() time.Time { return current })
	ctx := context.Background()

	allowed, _, err := tracker.TryConsume(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, err = tracker.TryConsume(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, allowed)

	// Cross midnight: the date in the key changes, so the counter
	// starts fresh.
	current = day1.Add(time.Hour)

	allowed, _, err = tracker.TryConsume(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestQuotaTracker_Status(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, osloTime)
	tracker, _ := setupQuotaTracker(t, 10, func() time.Time { return now })
	ctx := context.Background()

	status, err := tracker.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, status.Used)
	assert.Equal(t, 10, status.Remaining)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, osloTime), status.ResetsAt)

	_, _, err = tracker.TryConsume(ctx, "user-1")
	require.NoError(t, err)

	status, err = tracker.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, status.Used)
	assert.Equal(t, 9, status.Remaining)
}

func TestQuotaTracker_Reset(t *testing.T) {
	tracker, _ := setupQuotaTracker(t, 1, nil)
	ctx := context.Background()

	allowed, _, err := tracker.TryConsume(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, allowed)

	require.NoError(t, tracker.Reset(ctx, "user-1"))

	allowed, _, err = tracker.TryConsume(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, allowed)
}
