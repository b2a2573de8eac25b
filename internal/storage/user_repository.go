package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aksjeradar/internal/models"
	"github.com/aksjeradar/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// UserRepository handles user persistence
type UserRepository struct {
	db *PostgresDB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *PostgresDB) *UserRepository {
	return &UserRepository{db: db}
}

// isUniqueViolation reports whether err is a Postgres unique violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Tier == "" {
		user.Tier = types.TierNone
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	settingsJSON, err := marshalSettings(user.Settings)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (id, username, email, password_hash, tier, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.Pool().Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Tier,
		settingsJSON,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getBy(ctx, "id", id)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getBy(ctx, "email", email)
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getBy(ctx, "username", username)
}

func (r *UserRepository) getBy(ctx context.Context, column, value string) (*models.User, error) {
	query := fmt.Sprintf(`
		SELECT id, username, email, password_hash, tier, settings, created_at, updated_at
		FROM users
		WHERE %s = $1
	`, column)

	var user models.User
	var settingsJSON []byte

	err := r.db.Pool().QueryRow(ctx, query, value).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Tier,
		&settingsJSON,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if len(settingsJSON) > 0 {
		var settings models.UserSettings
		if err := json.Unmarshal(settingsJSON, &settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
		user.Settings = &settings
	}

	return &user, nil
}

// UpdateSettings replaces the user's settings blob
func (r *UserRepository) UpdateSettings(ctx context.Context, userID string, settings *models.UserSettings) error {
	settingsJSON, err := marshalSettings(settings)
	if err != nil {
		return err
	}

	query := `
		UPDATE users
		SET settings = $2, updated_at = $3
		WHERE id = $1
	`

	tag, err := r.db.Pool().Exec(ctx, query, userID, settingsJSON, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTier updates the user's access tier
func (r *UserRepository) UpdateTier(ctx context.Context, userID string, tier types.AccessTier) error {
	query := `
		UPDATE users
		SET tier = $2, updated_at = $3
		WHERE id = $1
	`

	tag, err := r.db.Pool().Exec(ctx, query, userID, tier, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update tier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDigestRecipients returns users that opted in to the daily digest.
func (r *UserRepository) ListDigestRecipients(ctx context.Context) ([]*models.User, error) {
	query := `
		SELECT id, username, email, password_hash, tier, settings, created_at, updated_at
		FROM users
		WHERE settings ->> 'dailyDigest' = 'true'
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list digest recipients: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		var settingsJSON []byte
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.Email,
			&user.PasswordHash,
			&user.Tier,
			&settingsJSON,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if len(settingsJSON) > 0 {
			var settings models.UserSettings
			if err := json.Unmarshal(settingsJSON, &settings); err != nil {
				return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
			}
			user.Settings = &settings
		}
		users = append(users, &user)
	}

	return users, rows.Err()
}

func marshalSettings(settings *models.UserSettings) ([]byte, error) {
	if settings == nil {
		return nil, nil
	}
	b, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}
	return b, nil
}
