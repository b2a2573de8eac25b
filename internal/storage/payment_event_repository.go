package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aksjeradar/internal/models"
	"github.com/google/uuid"
)

// PaymentEventRepository persists processed webhook events. The event_id
// unique constraint makes webhook processing idempotent.
type PaymentEventRepository struct {
	db *PostgresDB
}

// NewPaymentEventRepository creates a new payment event repository
func NewPaymentEventRepository(db *PostgresDB) *PaymentEventRepository {
	return &PaymentEventRepository{db: db}
}

// InsertIfNew records a webhook event. Returns false when the event ID
// was already processed, in which case the caller must skip the state
// transition.
func (r *PaymentEventRepository) InsertIfNew(ctx context.Context, event *models.PaymentEvent) (bool, error) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now()
	}

	query := `
		INSERT INTO payment_events (id, event_id, user_id, kind, amount_nok, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING
	`

	tag, err := r.db.Pool().Exec(ctx, query,
		event.ID,
		event.EventID,
		event.UserID,
		event.Kind,
		event.AmountNOK,
		event.ReceivedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert payment event: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Delete removes an event row, re-opening that event ID for processing.
// Used when applying an event fails after it was recorded, so the
// gateway's retry is not treated as a duplicate.
func (r *PaymentEventRepository) Delete(ctx context.Context, eventID string) error {
	_, err := r.db.Pool().Exec(ctx, `DELETE FROM payment_events WHERE event_id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("failed to delete payment event: %w", err)
	}
	return nil
}
