package models

import "time"

// NewsItem represents a market news entry parsed from the feed.
type NewsItem struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description,omitempty"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
}
