package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aksjeradar/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PortfolioRepository handles portfolio, holding and trade persistence
type PortfolioRepository struct {
	db *PostgresDB
}

// NewPortfolioRepository creates a new portfolio repository
func NewPortfolioRepository(db *PostgresDB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// Create creates a new portfolio
func (r *PortfolioRepository) Create(ctx context.Context, p *models.Portfolio) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `
		INSERT INTO portfolios (id, user_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := r.db.Pool().Exec(ctx, query, p.ID, p.UserID, p.Name, p.CreatedAt, p.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create portfolio: %w", err)
	}
	return nil
}

// GetByID retrieves a portfolio owned by the given user. Ownership is
// part of the lookup so handlers never see another user's portfolio.
func (r *PortfolioRepository) GetByID(ctx context.Context, portfolioID, userID string) (*models.Portfolio, error) {
	query := `
		SELECT id, user_id, name, created_at, updated_at
		FROM portfolios
		WHERE id = $1 AND user_id = $2
	`

	var p models.Portfolio
	err := r.db.Pool().QueryRow(ctx, query, portfolioID, userID).Scan(
		&p.ID, &p.UserID, &p.Name, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	return &p, nil
}

// ListByUser lists all portfolios for a user
func (r *PortfolioRepository) ListByUser(ctx context.Context, userID string) ([]*models.Portfolio, error) {
	query := `
		SELECT id, user_id, name, created_at, updated_at
		FROM portfolios
		WHERE user_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	defer rows.Close()

	var out []*models.Portfolio
	for rows.Next() {
		var p models.Portfolio
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// Rename updates the portfolio name
func (r *PortfolioRepository) Rename(ctx context.Context, portfolioID, userID, name string) error {
	query := `
		UPDATE portfolios
		SET name = $3, updated_at = $4
		WHERE id = $1 AND user_id = $2
	`

	tag, err := r.db.Pool().Exec(ctx, query, portfolioID, userID, name, time.Now())
	if err != nil {
		return fmt.Errorf("failed to rename portfolio: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a portfolio and its holdings (cascade)
func (r *PortfolioRepository) Delete(ctx context.Context, portfolioID, userID string) error {
	query := `DELETE FROM portfolios WHERE id = $1 AND user_id = $2`

	tag, err := r.db.Pool().Exec(ctx, query, portfolioID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertHolding creates a holding or adjusts an existing position for
// the same symbol, recording the matching trade in the same transaction.
func (r *PortfolioRepository) UpsertHolding(ctx context.Context, h *models.Holding, trade *models.Trade) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	now := time.Now()
	h.CreatedAt = now
	h.UpdatedAt = now

	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck // no-op after commit

	// Merging a buy into an existing position keeps cost_basis a
	// quantity-weighted average of every lot, not the latest buy price.
	holdingQuery := `
		INSERT INTO holdings (id, portfolio_id, symbol, quantity, cost_basis, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (portfolio_id, symbol) DO UPDATE
		SET quantity = holdings.quantity + EXCLUDED.quantity,
		    cost_basis = (holdings.quantity * holdings.cost_basis + EXCLUDED.quantity * EXCLUDED.cost_basis)
		                 / (holdings.quantity + EXCLUDED.quantity),
		    updated_at = EXCLUDED.updated_at
	`

	if _, err := tx.Exec(ctx, holdingQuery,
		h.ID, h.Portfolio, h.Symbol, h.Quantity, h.CostBasis, h.CreatedAt, h.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to upsert holding: %w", err)
	}

	if trade != nil {
		if trade.ID == "" {
			trade.ID = uuid.New().String()
		}
		trade.CreatedAt = now

		tradeQuery := `
			INSERT INTO trades (id, user_id, portfolio_id, symbol, side, quantity, price, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		if _, err := tx.Exec(ctx, tradeQuery,
			trade.ID, trade.UserID, trade.Portfolio, trade.Symbol, trade.Side, trade.Quantity, trade.Price, trade.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to record trade: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// ListHoldings lists the holdings of a portfolio
func (r *PortfolioRepository) ListHoldings(ctx context.Context, portfolioID string) ([]*models.Holding, error) {
	query := `
		SELECT id, portfolio_id, symbol, quantity, cost_basis, created_at, updated_at
		FROM holdings
		WHERE portfolio_id = $1
		ORDER BY symbol
	`

	rows, err := r.db.Pool().Query(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	defer rows.Close()

	var out []*models.Holding
	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.ID, &h.Portfolio, &h.Symbol, &h.Quantity, &h.CostBasis, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}

// DeleteHolding removes a holding, recording the closing trade
func (r *PortfolioRepository) DeleteHolding(ctx context.Context, holdingID, portfolioID string, trade *models.Trade) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck // no-op after commit

	tag, err := tx.Exec(ctx, `DELETE FROM holdings WHERE id = $1 AND portfolio_id = $2`, holdingID, portfolioID)
	if err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if trade != nil {
		if trade.ID == "" {
			trade.ID = uuid.New().String()
		}
		trade.CreatedAt = time.Now()

		tradeQuery := `
			INSERT INTO trades (id, user_id, portfolio_id, symbol, side, quantity, price, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		if _, err := tx.Exec(ctx, tradeQuery,
			trade.ID, trade.UserID, trade.Portfolio, trade.Symbol, trade.Side, trade.Quantity, trade.Price, trade.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to record trade: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// ListTrades lists a user's recorded trades, newest first
func (r *PortfolioRepository) ListTrades(ctx context.Context, userID string, limit int) ([]*models.Trade, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, user_id, portfolio_id, symbol, side, quantity, price, created_at
		FROM trades
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	var out []*models.Trade
	for rows.Next() {
		var t models.Trade
		if err := rows.Scan(&t.ID, &t.UserID, &t.Portfolio, &t.Symbol, &t.Side, &t.Quantity, &t.Price, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
