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

// AlertRepository handles price alert persistence
type AlertRepository struct {
	db *PostgresDB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *PostgresDB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create creates a new price alert
func (r *AlertRepository) Create(ctx context.Context, a *models.PriceAlert) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	query := `
		INSERT INTO price_alerts (id, user_id, symbol, condition, threshold, triggered, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if _, err := r.db.Pool().Exec(ctx, query,
		a.ID, a.UserID, a.Symbol, a.Condition, a.Threshold, a.Triggered, a.CreatedAt, a.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// GetByID retrieves an alert owned by the given user
func (r *AlertRepository) GetByID(ctx context.Context, alertID, userID string) (*models.PriceAlert, error) {
	query := `
		SELECT id, user_id, symbol, condition, threshold, triggered, triggered_at, created_at, updated_at
		FROM price_alerts
		WHERE id = $1 AND user_id = $2
	`

	var a models.PriceAlert
	err := r.db.Pool().QueryRow(ctx, query, alertID, userID).Scan(
		&a.ID, &a.UserID, &a.Symbol, &a.Condition, &a.Threshold, &a.Triggered, &a.TriggeredAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return &a, nil
}

// ListByUser lists a user's alerts, untriggered first
func (r *AlertRepository) ListByUser(ctx context.Context, userID string) ([]*models.PriceAlert, error) {
	query := `
		SELECT id, user_id, symbol, condition, threshold, triggered, triggered_at, created_at, updated_at
		FROM price_alerts
		WHERE user_id = $1
		ORDER BY triggered, created_at DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// ListArmed lists all untriggered alerts across users. The worker feeds
// these through the evaluation pass after each poll cycle.
func (r *AlertRepository) ListArmed(ctx context.Context) ([]*models.PriceAlert, error) {
	query := `
		SELECT id, user_id, symbol, condition, threshold, triggered, triggered_at, created_at, updated_at
		FROM price_alerts
		WHERE triggered = FALSE
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list armed alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// MarkTriggered marks an alert as triggered. Returns false when the
// alert was already triggered by a concurrent evaluation pass.
func (r *AlertRepository) MarkTriggered(ctx context.Context, alertID string, at time.Time) (bool, error) {
	query := `
		UPDATE price_alerts
		SET triggered = TRUE, triggered_at = $2, updated_at = $2
		WHERE id = $1 AND triggered = FALSE
	`

	tag, err := r.db.Pool().Exec(ctx, query, alertID, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark alert triggered: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Rearm resets a triggered alert so it can fire again
func (r *AlertRepository) Rearm(ctx context.Context, alertID, userID string) error {
	query := `
		UPDATE price_alerts
		SET triggered = FALSE, triggered_at = NULL, updated_at = $3
		WHERE id = $1 AND user_id = $2
	`

	tag, err := r.db.Pool().Exec(ctx, query, alertID, userID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to rearm alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an alert
func (r *AlertRepository) Delete(ctx context.Context, alertID, userID string) error {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM price_alerts WHERE id = $1 AND user_id = $2`, alertID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAlerts(rows pgx.Rows) ([]*models.PriceAlert, error) {
	var out []*models.PriceAlert
	for rows.Next() {
		var a models.PriceAlert
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.Symbol, &a.Condition, &a.Threshold, &a.Triggered, &a.TriggeredAt, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
