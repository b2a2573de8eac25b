package models

import (
	"time"

	"github.com/aksjeradar/internal/types"
)

// PriceAlert represents a one-shot price alert. Once triggered it stays
// triggered until the user re-arms it.
type PriceAlert struct {
	ID          string               `json:"id" db:"id"`
	UserID      string               `json:"userId" db:"user_id"`
	Symbol      string               `json:"symbol" db:"symbol"`
	Condition   types.AlertCondition `json:"condition" db:"condition"`
	Threshold   float64              `json:"threshold" db:"threshold"`
	Triggered   bool                 `json:"triggered" db:"triggered"`
	TriggeredAt *time.Time           `json:"triggeredAt,omitempty" db:"triggered_at"`
	CreatedAt   time.Time            `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time            `json:"updatedAt" db:"updated_at"`
}

// ShouldTrigger reports whether the given price satisfies the alert
// condition. Triggered alerts never fire again.
func (a *PriceAlert) ShouldTrigger(price float64) bool {
	if a.Triggered {
		return false
	}
	switch a.Condition {
	case types.AlertAbove:
		return price >= a.Threshold
	case types.AlertBelow:
		return price <= a.Threshold
	}
	return false
}
