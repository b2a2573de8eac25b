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

// AchievementRepository handles the achievement catalog, unlocks and the
// per-user stats counters.
type AchievementRepository struct {
	db *PostgresDB
}

// NewAchievementRepository creates a new achievement repository
func NewAchievementRepository(db *PostgresDB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

// ListCatalog lists the static achievement catalog
func (r *AchievementRepository) ListCatalog(ctx context.Context) ([]*models.Achievement, error) {
	query := `
		SELECT id, code, name, description, points, stat, threshold
		FROM achievements
		ORDER BY threshold, code
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	var out []*models.Achievement
	for rows.Next() {
		var a models.Achievement
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Description, &a.Points, &a.Stat, &a.Threshold); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// ListUnlocked lists the achievements a user has unlocked
func (r *AchievementRepository) ListUnlocked(ctx context.Context, userID string) ([]*models.UserAchievement, error) {
	query := `
		SELECT id, user_id, achievement_id, unlocked_at
		FROM user_achievements
		WHERE user_id = $1
		ORDER BY unlocked_at
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unlocked achievements: %w", err)
	}
	defer rows.Close()

	var out []*models.UserAchievement
	for rows.Next() {
		var ua models.UserAchievement
		if err := rows.Scan(&ua.ID, &ua.UserID, &ua.AchievementID, &ua.UnlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user achievement: %w", err)
		}
		out = append(out, &ua)
	}
	return out, rows.Err()
}

// Unlock records an unlock. Returns false when the user already has the
// achievement (unique constraint on user_id, achievement_id).
func (r *AchievementRepository) Unlock(ctx context.Context, userID, achievementID string) (bool, error) {
	query := `
		INSERT INTO user_achievements (id, user_id, achievement_id, unlocked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`

	tag, err := r.db.Pool().Exec(ctx, query, uuid.New().String(), userID, achievementID, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to unlock achievement: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetStats retrieves the user's stats row
func (r *AchievementRepository) GetStats(ctx context.Context, userID string) (*models.UserStats, error) {
	query := `
		SELECT user_id, logins, trades_logged, watchlist_adds, alerts_created, points, updated_at
		FROM user_stats
		WHERE user_id = $1
	`

	var s models.UserStats
	err := r.db.Pool().QueryRow(ctx, query, userID).Scan(
		&s.UserID, &s.Logins, &s.TradesLogged, &s.WatchlistAdds, &s.AlertsCreated, &s.Points, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}
	return &s, nil
}

// IncrementStat bumps one of the stat counters, creating the stats row
// on first use. The user_stats primary key on user_id guarantees one
// row per user; concurrent increments serialize on the upsert.
func (r *AchievementRepository) IncrementStat(ctx context.Context, userID, stat string) (*models.UserStats, error) {
	column, ok := statColumns[stat]
	if !ok {
		return nil, fmt.Errorf("unknown stat: %s", stat)
	}

	query := fmt.Sprintf(`
		INSERT INTO user_stats (user_id, %s, updated_at)
		VALUES ($1, 1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET %s = user_stats.%s + 1, updated_at = EXCLUDED.updated_at
		RETURNING user_id, logins, trades_logged, watchlist_adds, alerts_created, points, updated_at
	`, column, column, column)

	var s models.UserStats
	err := r.db.Pool().QueryRow(ctx, query, userID, time.Now()).Scan(
		&s.UserID, &s.Logins, &s.TradesLogged, &s.WatchlistAdds, &s.AlertsCreated, &s.Points, &s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to increment stat %s: %w", stat, err)
	}
	return &s, nil
}

// AddPoints adds achievement points to the user's stats row
func (r *AchievementRepository) AddPoints(ctx context.Context, userID string, points int) error {
	query := `
		INSERT INTO user_stats (user_id, points, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET points = user_stats.points + EXCLUDED.points, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.Pool().Exec(ctx, query, userID, points, time.Now()); err != nil {
		return fmt.Errorf("failed to add points: %w", err)
	}
	return nil
}

// statColumns maps stat names to user_stats columns. The allowlist keeps
// IncrementStat's dynamic SQL closed over known identifiers.
var statColumns = map[string]string{
	models.StatLogins:        "logins",
	models.StatTradesLogged:  "trades_logged",
	models.StatWatchlistAdds: "watchlist_adds",
	models.StatAlertsCreated: "alerts_created",
}
