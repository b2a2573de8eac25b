// Package models provides data models for the Aksjeradar backend.
package models

import (
	"time"

	"github.com/aksjeradar/internal/types"
)

// User represents a registered user.
type User struct {
	ID           string           `json:"id" db:"id"`
	Username     string           `json:"username" db:"username"`
	Email        string           `json:"email" db:"email"`
	PasswordHash string           `json:"-" db:"password_hash"`
	Tier         types.AccessTier `json:"tier" db:"tier"`
	Settings     *UserSettings    `json:"settings,omitempty" db:"settings"`
	CreatedAt    time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time        `json:"updatedAt" db:"updated_at"`
}

// UserSettings represents user-specific preferences.
type UserSettings struct {
	Language           string `json:"language,omitempty"`
	EmailNotifications *bool  `json:"emailNotifications,omitempty"`
	DailyDigest        *bool  `json:"dailyDigest,omitempty"`
}

// WantsEmail reports whether the user has email notifications enabled.
// The default is on; only an explicit opt-out disables delivery.
func (u *User) WantsEmail() bool {
	if u.Settings == nil || u.Settings.EmailNotifications == nil {
		return true
	}
	return *u.Settings.EmailNotifications
}

// WantsDailyDigest reports whether the user opted in to the daily digest.
func (u *User) WantsDailyDigest() bool {
	if u.Settings == nil || u.Settings.DailyDigest == nil {
		return false
	}
	return *u.Settings.DailyDigest
}
