package models

import (
	"time"

	"github.com/aksjeradar/internal/types"
	"github.com/shopspring/decimal"
)

// Plan represents a purchasable subscription plan.
type Plan struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Interval types.PlanInterval `json:"interval"`
	PriceNOK decimal.Decimal    `json:"priceNok"`
}

// Subscription represents a user's subscription state. A user has at
// most one current subscription row.
type Subscription struct {
	ID               string                   `json:"id" db:"id"`
	UserID           string                   `json:"userId" db:"user_id"`
	PlanID           string                   `json:"planId" db:"plan_id"`
	Status           types.SubscriptionStatus `json:"status" db:"status"`
	CurrentPeriodEnd time.Time                `json:"currentPeriodEnd" db:"current_period_end"`
	CanceledAt       *time.Time               `json:"canceledAt,omitempty" db:"canceled_at"`
	CreatedAt        time.Time                `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time                `json:"updatedAt" db:"updated_at"`
}

// GrantsPremium reports whether this subscription currently grants
// premium access, taking the period end into account.
func (s *Subscription) GrantsPremium(now time.Time) bool {
	if s == nil {
		return false
	}
	if !types.SubscriptionGrantsPremium(s.Status) {
		return false
	}
	return now.Before(s.CurrentPeriodEnd)
}

// PaymentEvent represents a processed payment gateway webhook event.
// Rows form an idempotency log: an event ID is processed at most once.
type PaymentEvent struct {
	ID         string          `json:"id" db:"id"`
	EventID    string          `json:"eventId" db:"event_id"`
	UserID     string          `json:"userId" db:"user_id"`
	Kind       string          `json:"kind" db:"kind"`
	AmountNOK  decimal.Decimal `json:"amountNok" db:"amount_nok"`
	ReceivedAt time.Time       `json:"receivedAt" db:"received_at"`
}

// Payment event kinds sent by the gateway.
const (
	PaymentEventSucceeded = "payment.succeeded"
	PaymentEventFailed    = "payment.failed"
	PaymentEventCanceled  = "subscription.canceled"
)
