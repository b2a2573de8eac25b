// Package ratelimit tracks per-user daily request quotas for demo
// access. Quotas are coordinated in Redis so every instance of the
// service sees the same counts.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default quota configuration values.
const (
	DefaultDailyQuota = 100
	KeyPrefixQuota    = "quota:daily:"
)

// osloTime is the reset boundary for daily quotas. Quotas roll over at
// midnight local Norwegian time, not UTC.
var osloTime = mustLoadLocation("Europe/Oslo")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// Fall back to a fixed CET offset if tzdata is unavailable.
		return time.FixedZone("CET", 3600)
	}
	return loc
}

// QuotaTracker enforces a per-user daily request quota using Redis.
// Counters are keyed by user and local date and expire shortly after
// the day ends.
type QuotaTracker struct {
	redis      redis.Cmdable
	dailyQuota int
	now        func() time.Time
}

// QuotaTrackerConfig holds configuration for the quota tracker.
type QuotaTrackerConfig struct {
	// Redis is the Redis client for cross-instance coordination.
	// Required - the tracker cannot function without Redis.
	Redis redis.Cmdable

	// DailyQuota is the number of requests allowed per day. Default: 100.
	DailyQuota int

	// Now overrides the clock, used in tests.
	Now func() time.Time
}

// QuotaStatus describes a user's current quota consumption.
type QuotaStatus struct {
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetsAt  time.Time `json:"resetsAt"`
}

// NewQuotaTracker creates a new tracker with the given configuration.
func NewQuotaTracker(cfg *QuotaTrackerConfig) (*QuotaTracker, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if cfg.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.DailyQuota < 0 {
		return nil, errors.New("daily quota cannot be negative")
	}

	dailyQuota := cfg.DailyQuota
	if dailyQuota == 0 {
		dailyQuota = DefaultDailyQuota
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &QuotaTracker{
		redis:      cfg.Redis,
		dailyQuota: dailyQuota,
		now:        now,
	}, nil
}

// quotaKey returns the Redis key for a user on the current Oslo date.
func (t *QuotaTracker) quotaKey(userID string, now time.Time) string {
	return fmt.Sprintf("%s%s:%s", KeyPrefixQuota, userID, now.In(osloTime).Format("2006-01-02"))
}

// nextReset returns midnight Oslo time after now.
func (t *QuotaTracker) nextReset(now time.Time) time.Time {
	local := now.In(osloTime)
	y, m, d := local.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, osloTime)
}

// TryConsume attempts to consume one request from the user's daily
// quota. It is atomic under concurrent access: the counter is only
// incremented when the quota has room.
//
// Returns:
//   - allowed: true if the request fits within today's quota
//   - remaining: requests left after this one
func (t *QuotaTracker) TryConsume(ctx context.Context, userID string) (bool, int, error) {
	now := t.now()
	key := t.quotaKey(userID, now)

	// Atomic check-and-increment so concurrent requests cannot push a
	// user past the quota.
	script := redis.NewScript(`
		local key = KEYS[1]
		local limit = tonumber(ARGV[1])
		local ttl = tonumber(ARGV[2])

		local used = tonumber(redis.call('GET', key) or '0')
		if used >= limit then
			return {0, used}
		end

		used = redis.call('INCR', key)
		redis.call('EXPIRE', key, ttl)
		return {1, used}
	`)

	// Expire shortly after the day ends so stale counters clean
	// themselves up.
	ttl := int(time.Until(t.nextReset(now)).Seconds()) + 60
	if ttl < 60 {
		ttl = 60
	}

	result, err := script.Run(ctx, t.redis, []string{key}, t.dailyQuota, ttl).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("failed to consume quota: %w", err)
	}

	allowed := result[0] == 1
	used := int(result[1])
	remaining := t.dailyQuota - used
	if remaining < 0 {
		remaining = 0
	}
	return allowed, remaining, nil
}

// Status returns the user's current quota consumption without
// consuming anything.
func (t *QuotaTracker) Status(ctx context.Context, userID string) (*QuotaStatus, error) {
	now := t.now()

	used, err := t.redis.Get(ctx, t.quotaKey(userID, now)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get quota usage: %w", err)
	}

	remaining := t.dailyQuota - used
	if remaining < 0 {
		remaining = 0
	}

	return &QuotaStatus{
		Used:      used,
		Limit:     t.dailyQuota,
		Remaining: remaining,
		ResetsAt:  t.nextReset(now),
	}, nil
}

// Reset clears the user's counter for the current day. Used when a
// demo user upgrades mid-day.
func (t *QuotaTracker) Reset(ctx context.Context, userID string) error {
	if err := t.redis.Del(ctx, t.quotaKey(userID, t.now())).Err(); err != nil {
		return fmt.Errorf("failed to reset quota: %w", err)
	}
	return nil
}

// DailyQuota returns the configured daily limit.
func (t *QuotaTracker) DailyQuota() int {
	return t.dailyQuota
}
