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

// WatchlistRepository handles watchlist persistence
type WatchlistRepository struct {
	db *PostgresDB
}

// NewWatchlistRepository creates a new watchlist repository
func NewWatchlistRepository(db *PostgresDB) *WatchlistRepository {
	return &WatchlistRepository{db: db}
}

// Create creates a new watchlist
func (r *WatchlistRepository) Create(ctx context.Context, w *models.Watchlist) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	now := time.Now()
	w.CreatedAt = now
	w.UpdatedAt = now

	query := `
		INSERT INTO watchlists (id, user_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := r.db.Pool().Exec(ctx, query, w.ID, w.UserID, w.Name, w.CreatedAt, w.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create watchlist: %w", err)
	}
	return nil
}

// GetByID retrieves a watchlist owned by the given user
func (r *WatchlistRepository) GetByID(ctx context.Context, watchlistID, userID string) (*models.Watchlist, error) {
	query := `
		SELECT id, user_id, name, created_at, updated_at
		FROM watchlists
		WHERE id = $1 AND user_id = $2
	`

	var w models.Watchlist
	err := r.db.Pool().QueryRow(ctx, query, watchlistID, userID).Scan(
		&w.ID, &w.UserID, &w.Name, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get watchlist: %w", err)
	}
	return &w, nil
}

// ListByUser lists all watchlists for a user
func (r *WatchlistRepository) ListByUser(ctx context.Context, userID string) ([]*models.Watchlist, error) {
	query := `
		SELECT id, user_id, name, created_at, updated_at
		FROM watchlists
		WHERE user_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlists: %w", err)
	}
	defer rows.Close()

	var out []*models.Watchlist
	for rows.Next() {
		var w models.Watchlist
		if err := rows.Scan(&w.ID, &w.UserID, &w.Name, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist: %w", err)
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

// Delete removes a watchlist and its entries (cascade)
func (r *WatchlistRepository) Delete(ctx context.Context, watchlistID, userID string) error {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM watchlists WHERE id = $1 AND user_id = $2`, watchlistID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete watchlist: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddEntry adds a symbol to a watchlist. Duplicate symbols on the same
// list map to ErrDuplicate.
func (r *WatchlistRepository) AddEntry(ctx context.Context, e *models.WatchlistEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.AddedAt.IsZero() {
		e.AddedAt = time.Now()
	}

	query := `
		INSERT INTO watchlist_entries (id, watchlist_id, symbol, added_at)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := r.db.Pool().Exec(ctx, query, e.ID, e.WatchlistID, e.Symbol, e.AddedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to add watchlist entry: %w", err)
	}
	return nil
}

// ListEntries lists the entries of a watchlist
func (r *WatchlistRepository) ListEntries(ctx context.Context, watchlistID string) ([]*models.WatchlistEntry, error) {
	query := `
		SELECT id, watchlist_id, symbol, added_at
		FROM watchlist_entries
		WHERE watchlist_id = $1
		ORDER BY added_at
	`

	rows, err := r.db.Pool().Query(ctx, query, watchlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlist entries: %w", err)
	}
	defer rows.Close()

	var out []*models.WatchlistEntry
	for rows.Next() {
		var e models.WatchlistEntry
		if err := rows.Scan(&e.ID, &e.WatchlistID, &e.Symbol, &e.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist entry: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// RemoveEntry removes a symbol from a watchlist
func (r *WatchlistRepository) RemoveEntry(ctx context.Context, watchlistID, symbol string) error {
	tag, err := r.db.Pool().Exec(ctx,
		`DELETE FROM watchlist_entries WHERE watchlist_id = $1 AND symbol = $2`,
		watchlistID, symbol,
	)
	if err != nil {
		return fmt.Errorf("failed to remove watchlist entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
