// Package types provides common type definitions for the Aksjeradar backend.
package types

import "time"

// AccessTier represents the access level of a request or user.
type AccessTier string

const (
	// TierExempt represents admin and internal users that bypass all gating
	TierExempt AccessTier = "exempt"
	// TierPremium represents users with an active (or trial) subscription
	TierPremium AccessTier = "premium"
	// TierDemo represents limited unauthenticated access with delayed data
	TierDemo AccessTier = "demo"
	// TierNone represents requests with no access to gated endpoints
	TierNone AccessTier = "none"
)

// SubscriptionStatus represents the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	// SubscriptionTrial represents a time-limited trial period
	SubscriptionTrial SubscriptionStatus = "trial"
	// SubscriptionActive represents a paid, current subscription
	SubscriptionActive SubscriptionStatus = "active"
	// SubscriptionPastDue represents a subscription with a failed payment
	SubscriptionPastDue SubscriptionStatus = "past_due"
	// SubscriptionCanceled represents a subscription canceled by the user
	SubscriptionCanceled SubscriptionStatus = "canceled"
	// SubscriptionExpired represents a subscription past its paid period
	SubscriptionExpired SubscriptionStatus = "expired"
)

// PlanInterval represents the billing interval of a subscription plan.
type PlanInterval string

const (
	// IntervalMonthly bills once per month
	IntervalMonthly PlanInterval = "monthly"
	// IntervalYearly bills once per year
	IntervalYearly PlanInterval = "yearly"
)

// QuoteSource discloses where a quote came from. Synthetic quotes are
// never presented as live prices.
type QuoteSource string

const (
	// SourceLive represents a quote fetched from the market data provider
	SourceLive QuoteSource = "live"
	// SourceCached represents a quote served from the Redis quote cache
	SourceCached QuoteSource = "cached"
	// SourceSynthetic represents a deterministic fallback quote
	SourceSynthetic QuoteSource = "synthetic"
)

// AlertCondition represents the trigger condition of a price alert.
type AlertCondition string

const (
	// AlertAbove triggers when the price rises to or above the threshold
	AlertAbove AlertCondition = "above"
	// AlertBelow triggers when the price falls to or below the threshold
	AlertBelow AlertCondition = "below"
)

// NotificationKind represents the origin of an in-app notification.
type NotificationKind string

const (
	// NotificationAlert is created when a price alert triggers
	NotificationAlert NotificationKind = "alert"
	// NotificationBilling is created on subscription state changes
	NotificationBilling NotificationKind = "billing"
	// NotificationAchievement is created when an achievement unlocks
	NotificationAchievement NotificationKind = "achievement"
	// NotificationSystem is created by operational announcements
	NotificationSystem NotificationKind = "system"
)

// Quote represents a point-in-time price for a ticker symbol.
type Quote struct {
	Symbol        string      `json:"symbol"`
	Name          string      `json:"name,omitempty"`
	Price         float64     `json:"price"`
	Change        float64     `json:"change"`
	ChangePercent float64     `json:"changePercent"`
	Volume        int64       `json:"volume"`
	Currency      string      `json:"currency"`
	Source        QuoteSource `json:"source"`
	Timestamp     time.Time   `json:"timestamp"`
}

// Tick represents a single price observation stored in the tick history.
type Tick struct {
	Symbol    string      `json:"symbol"`
	Price     float64     `json:"price"`
	Volume    int64       `json:"volume"`
	Source    QuoteSource `json:"source"`
	Timestamp time.Time   `json:"timestamp"`
}

// ServiceError represents a structured error response.
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// NewServiceError creates a ServiceError with the given code and message.
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message}
}

// Stable service error codes shared between services and the API layer.
const (
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodePaymentRequired    = "PAYMENT_REQUIRED"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrCodeQuotaExceeded      = "QUOTA_EXCEEDED"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// ValidAccessTier reports whether the tier is one of the known values.
func ValidAccessTier(tier AccessTier) bool {
	switch tier {
	case TierExempt, TierPremium, TierDemo, TierNone:
		return true
	}
	return false
}

// SubscriptionGrantsPremium reports whether a subscription status grants
// premium access. Past-due subscriptions keep access until the billing
// webhook resolves the grace period.
func SubscriptionGrantsPremium(status SubscriptionStatus) bool {
	switch status {
	case SubscriptionTrial, SubscriptionActive, SubscriptionPastDue:
		return true
	}
	return false
}
