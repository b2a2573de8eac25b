package models

import (
	"time"

	"github.com/aksjeradar/internal/types"
)

// Notification represents an in-app notification.
type Notification struct {
	ID        string                 `json:"id" db:"id"`
	UserID    string                 `json:"userId" db:"user_id"`
	Kind      types.NotificationKind `json:"kind" db:"kind"`
	Title     string                 `json:"title" db:"title"`
	Body      string                 `json:"body" db:"body"`
	Read      bool                   `json:"read" db:"read"`
	CreatedAt time.Time              `json:"createdAt" db:"created_at"`
}
