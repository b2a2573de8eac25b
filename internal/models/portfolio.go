package models

import "time"

// Portfolio represents a named collection of holdings owned by a user.
type Portfolio struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Holding represents a position in a portfolio.
type Holding struct {
	ID        string    `json:"id" db:"id"`
	Portfolio string    `json:"portfolioId" db:"portfolio_id"`
	Symbol    string    `json:"symbol" db:"symbol"`
	Quantity  float64   `json:"quantity" db:"quantity"`
	CostBasis float64   `json:"costBasis" db:"cost_basis"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Trade represents a recorded buy or sell adjustment against a holding.
type Trade struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	Portfolio string    `json:"portfolioId" db:"portfolio_id"`
	Symbol    string    `json:"symbol" db:"symbol"`
	Side      string    `json:"side" db:"side"` // buy or sell
	Quantity  float64   `json:"quantity" db:"quantity"`
	Price     float64   `json:"price" db:"price"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Trade sides.
const (
	TradeBuy  = "buy"
	TradeSell = "sell"
)
