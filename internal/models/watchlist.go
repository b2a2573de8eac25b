package models

import "time"

// Watchlist represents a named list of symbols a user follows.
type Watchlist struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// WatchlistEntry represents a single symbol on a watchlist.
type WatchlistEntry struct {
	ID          string    `json:"id" db:"id"`
	WatchlistID string    `json:"watchlistId" db:"watchlist_id"`
	Symbol      string    `json:"symbol" db:"symbol"`
	AddedAt     time.Time `json:"addedAt" db:"added_at"`
}
