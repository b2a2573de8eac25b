package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/aksjeradar/internal/config"
	"github.com/aksjeradar/internal/metrics"
	"github.com/aksjeradar/internal/types"
)

// Idle buckets are dropped so IP churn cannot grow the map without
// bound. The sweep runs at most once per interval, on the request path.
const (
	limiterIdleTTL       = 10 * time.Minute
	limiterSweepInterval = time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies per-identity token buckets with limits by tier.
// Identity is the user ID for authenticated requests, the client IP
// otherwise. Buckets are keyed by tier as well, so an upgraded account
// immediately gets the premium rate instead of the bucket it first
// created as demo.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry

	demoLimit    rate.Limit
	premiumLimit rate.Limit
	burst        int

	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter creates a rate limiter from config.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		entries:      make(map[string]*limiterEntry),
		demoLimit:    rate.Limit(cfg.DemoRPS),
		premiumLimit: rate.Limit(cfg.PremiumRPS),
		burst:        cfg.Burst,
		now:          time.Now,
	}
}

// Allow reports whether the identity may proceed at its tier's rate.
// Exempt accounts are never limited.
func (rl *RateLimiter) Allow(identity string, tier types.AccessTier) bool {
	if tier == types.TierExempt {
		return true
	}
	return rl.limiter(identity, tier).Allow()
}

func (rl *RateLimiter) limiter(identity string, tier types.AccessTier) *rate.Limiter {
	key := string(tier) + ":" + identity

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= limiterSweepInterval {
		rl.sweepLocked(now)
	}

	if entry, exists := rl.entries[key]; exists {
		entry.lastSeen = now
		return entry.limiter
	}

	limit := rl.demoLimit
	if tier == types.TierPremium {
		limit = rl.premiumLimit
	}
	entry := &limiterEntry{limiter: rate.NewLimiter(limit, rl.burst), lastSeen: now}
	rl.entries[key] = entry
	return entry.limiter
}

func (rl *RateLimiter) sweepLocked(now time.Time) {
	rl.lastSweep = now
	for key, entry := range rl.entries {
		if now.Sub(entry.lastSeen) >= limiterIdleTTL {
			delete(rl.entries, key)
		}
	}
}

// RateLimitMiddleware enforces the per-identity request rate. Must run
// after AuthMiddleware so the tier is on the context.
func RateLimitMiddleware(rl *RateLimiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tier := Tier(r)
			if !rl.Allow(identity(r), tier) {
				metrics.RateLimitRejectionsTotal.WithLabelValues("rps").Inc()
				respondError(w, r, http.StatusTooManyRequests, types.ErrCodeRateLimitExceeded, "", map[string]interface{}{
					"tier": tier,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
