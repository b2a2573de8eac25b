package access

import (
	"testing"
	"time"

	"github.com/aksjeradar/internal/models"
	"github.com/aksjeradar/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestChecker_IsExempt(t *testing.T) {
	c := NewChecker([]string{"Styret@aksjeradar.no", " presse@aksjeradar.no ", ""})

	assert.True(t, c.IsExempt("styret@aksjeradar.no"))
	assert.True(t, c.IsExempt("STYRET@AKSJERADAR.NO"))
	assert.True(t, c.IsExempt("presse@aksjeradar.no"))
	assert.False(t, c.IsExempt("someone@example.com"))
	assert.False(t, c.IsExempt(""))
}

func TestChecker_ResolveTier(t *testing.T) {
	c := NewChecker([]string{"vip@aksjeradar.no"})
	now := time.Now()

	activeSub := &models.Subscription{
		Status:           types.SubscriptionActive,
		CurrentPeriodEnd: now.Add(24 * time.Hour),
	}
	lapsedSub := &models.Subscription{
		Status:           types.SubscriptionActive,
		CurrentPeriodEnd: now.Add(-time.Hour),
	}
	canceledSub := &models.Subscription{
		Status:           types.SubscriptionCanceled,
		CurrentPeriodEnd: now.Add(24 * time.Hour),
	}
	trialSub := &models.Subscription{
		Status:           types.SubscriptionTrial,
		CurrentPeriodEnd: now.Add(24 * time.Hour),
	}

	tests := []struct {
		name string
		user *models.User
		sub  *models.Subscription
		want types.AccessTier
	}{
		{"anonymous", nil, nil, types.TierNone},
		{"exempt without subscription", &models.User{Email: "vip@aksjeradar.no"}, nil, types.TierExempt},
		{"exempt beats canceled subscription", &models.User{Email: "vip@aksjeradar.no"}, canceledSub, types.TierExempt},
		{"active subscription", &models.User{Email: "a@b.no"}, activeSub, types.TierPremium},
		{"trial subscription", &models.User{Email: "a@b.no"}, trialSub, types.TierPremium},
		{"period lapsed", &models.User{Email: "a@b.no"}, lapsedSub, types.TierDemo},
		{"canceled subscription", &models.User{Email: "a@b.no"}, canceledSub, types.TierDemo},
		{"no subscription", &models.User{Email: "a@b.no"}, nil, types.TierDemo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.ResolveTier(tt.user, tt.sub, now))
		})
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name  string
		class RouteClass
		tier  types.AccessTier
		want  Decision
	}{
		{"open for anonymous", ClassOpen, types.TierNone, Allow},
		{"open for premium", ClassOpen, types.TierPremium, Allow},
		{"demo denies anonymous", ClassDemo, types.TierNone, DenyUnauthenticated},
		{"demo allows demo", ClassDemo, types.TierDemo, Allow},
		{"demo allows premium", ClassDemo, types.TierPremium, Allow},
		{"premium denies anonymous", ClassPremium, types.TierNone, DenyUnauthenticated},
		{"premium denies demo", ClassPremium, types.TierDemo, DenyPaymentRequired},
		{"premium allows premium", ClassPremium, types.TierPremium, Allow},
		{"premium allows exempt", ClassPremium, types.TierExempt, Allow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Check(tt.class, tt.tier))
		})
	}
}

func TestMetered(t *testing.T) {
	assert.True(t, Metered(types.TierDemo))
	assert.False(t, Metered(types.TierPremium))
	assert.False(t, Metered(types.TierExempt))
	assert.False(t, Metered(types.TierNone))
}
