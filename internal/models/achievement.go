package models

import "time"

// Achievement represents an entry in the static achievement catalog,
// seeded by migration.
type Achievement struct {
	ID          string `json:"id" db:"id"`
	Code        string `json:"code" db:"code"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	Points      int    `json:"points" db:"points"`
	// Stat and Threshold define the unlock rule: the achievement
	// unlocks when the named UserStats counter reaches the threshold.
	Stat      string `json:"stat" db:"stat"`
	Threshold int64  `json:"threshold" db:"threshold"`
}

// UserAchievement represents an unlocked achievement for a user.
type UserAchievement struct {
	ID            string    `json:"id" db:"id"`
	UserID        string    `json:"userId" db:"user_id"`
	AchievementID string    `json:"achievementId" db:"achievement_id"`
	UnlockedAt    time.Time `json:"unlockedAt" db:"unlocked_at"`
}

// UserStats holds per-user counters driving achievement unlocks.
// Exactly one row exists per user; writes go through an upsert.
type UserStats struct {
	UserID        string    `json:"userId" db:"user_id"`
	Logins        int64     `json:"logins" db:"logins"`
	TradesLogged  int64     `json:"tradesLogged" db:"trades_logged"`
	WatchlistAdds int64     `json:"watchlistAdds" db:"watchlist_adds"`
	AlertsCreated int64     `json:"alertsCreated" db:"alerts_created"`
	Points        int64     `json:"points" db:"points"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// Stat names referenced by achievement unlock rules.
const (
	StatLogins        = "logins"
	StatTradesLogged  = "trades_logged"
	StatWatchlistAdds = "watchlist_adds"
	StatAlertsCreated = "alerts_created"
)

// Counter returns the named counter value.
func (s *UserStats) Counter(stat string) int64 {
	switch stat {
	case StatLogins:
		return s.Logins
	case StatTradesLogged:
		return s.TradesLogged
	case StatWatchlistAdds:
		return s.WatchlistAdds
	case StatAlertsCreated:
		return s.AlertsCreated
	}
	return 0
}
