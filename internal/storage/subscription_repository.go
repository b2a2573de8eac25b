package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aksjeradar/internal/models"
	"github.com/aksjeradar/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SubscriptionRepository handles subscription persistence
type SubscriptionRepository struct {
	db *PostgresDB
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *PostgresDB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// GetByUserID retrieves the user's current subscription
func (r *SubscriptionRepository) GetByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	query := `
		SELECT id, user_id, plan_id, status, current_period_end, canceled_at, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1
	`

	var sub models.Subscription
	err := r.db.Pool().QueryRow(ctx, query, userID).Scan(
		&sub.ID,
		&sub.UserID,
		&sub.PlanID,
		&sub.Status,
		&sub.CurrentPeriodEnd,
		&sub.CanceledAt,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return &sub, nil
}

// Upsert creates or replaces the user's subscription row. A user has at
// most one subscription, enforced by the unique constraint on user_id.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}

	now := time.Now()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	query := `
		INSERT INTO subscriptions (id, user_id, plan_id, status, current_period_end, canceled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE
		SET plan_id = EXCLUDED.plan_id,
		    status = EXCLUDED.status,
		    current_period_end = EXCLUDED.current_period_end,
		    canceled_at = EXCLUDED.canceled_at,
		    updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Pool().Exec(ctx, query,
		sub.ID,
		sub.UserID,
		sub.PlanID,
		sub.Status,
		sub.CurrentPeriodEnd,
		sub.CanceledAt,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}

	return nil
}

// UpdateStatus transitions the subscription status for a user
func (r *SubscriptionRepository) UpdateStatus(ctx context.Context, userID string, status types.SubscriptionStatus) error {
	query := `
		UPDATE subscriptions
		SET status = $2, updated_at = $3
		WHERE user_id = $1
	`

	tag, err := r.db.Pool().Exec(ctx, query, userID, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update subscription status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpireLapsed marks active subscriptions whose paid period has ended as
// expired. Run by the nightly scheduler sweep. Returns the number of
// rows transitioned.
func (r *SubscriptionRepository) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE subscriptions
		SET status = $2, updated_at = $3
		WHERE current_period_end < $1
		  AND status IN ($4, $5)
	`

	tag, err := r.db.Pool().Exec(ctx, query,
		now,
		types.SubscriptionExpired,
		now,
		types.SubscriptionActive,
		types.SubscriptionTrial,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire lapsed subscriptions: %w", err)
	}
	return tag.RowsAffected(), nil
}
