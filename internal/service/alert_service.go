package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aksjeradar/internal/i18n"
	"github.com/aksjeradar/internal/metrics"
	"github.com/aksjeradar/internal/models"
	"github.com/aksjeradar/internal/storage"
	"github.com/aksjeradar/internal/types"
)

// AlertStore is the alert persistence surface.
type AlertStore interface {
	Create(ctx context.Context, a *models.PriceAlert) error
	GetByID(ctx context.Context, alertID, userID string) (*models.PriceAlert, error)
	ListByUser(ctx context.Context, userID string) ([]*models.PriceAlert, error)
	ListArmed(ctx context.Context) ([]*models.PriceAlert, error)
	MarkTriggered(ctx context.Context, alertID string, at time.Time) (bool, error)
	Rearm(ctx context.Context, alertID, userID string) error
	Delete(ctx context.Context, alertID, userID string) error
}

// AlertUserReader loads users for alert delivery.
type AlertUserReader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Notifier creates in-app notifications.
type Notifier interface {
	Notify(ctx context.Context, userID string, kind types.NotificationKind, title, body string) error
}

// AlertMailer delivers alert emails.
type AlertMailer interface {
	SendAlertTriggered(to, username, symbol string, condition types.AlertCondition, threshold, price float64) error
}

// AlertService manages price alerts and runs the evaluation pass after
// each poll cycle.
type AlertService struct {
	alerts     AlertStore
	users      AlertUserReader
	quotes     QuoteReader
	notifier   Notifier
	mailer     AlertMailer
	stats      StatRecorder
	logger     *zap.Logger
	maxPerUser int
}

// NewAlertService creates an alert service. mailer and stats may be
// nil.
func NewAlertService(
	alerts AlertStore,
	users AlertUserReader,
	quotes QuoteReader,
	notifier Notifier,
	mailer AlertMailer,
	stats StatRecorder,
	logger *zap.Logger,
) *AlertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertService{
		alerts:     alerts,
		users:      users,
		quotes:     quotes,
		notifier:   notifier,
		mailer:     mailer,
		stats:      stats,
		logger:     logger.Named("alert"),
		maxPerUser: 20,
	}
}

// Create creates a price alert.
func (s *AlertService) Create(ctx context.Context, userID, symbol string, condition types.AlertCondition, threshold float64) (*models.PriceAlert, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, invalidInput("symbol is required")
	}
	if condition != types.AlertAbove && condition != types.AlertBelow {
		return nil, invalidInput("condition must be above or below")
	}
	if threshold <= 0 {
		return nil, invalidInput("threshold must be positive")
	}

	existing, err := s.alerts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(existing) >= s.maxPerUser {
		return nil, conflict(fmt.Sprintf("alert limit reached (%d)", s.maxPerUser))
	}

	a := &models.PriceAlert{
		UserID:    userID,
		Symbol:    symbol,
		Condition: condition,
		Threshold: threshold,
	}
	if err := s.alerts.Create(ctx, a); err != nil {
		return nil, err
	}

	if s.stats != nil {
		s.stats.RecordStat(ctx, userID, models.StatAlertsCreated)
	}
	return a, nil
}

// List lists the user's alerts.
func (s *AlertService) List(ctx context.Context, userID string) ([]*models.PriceAlert, error) {
	return s.alerts.ListByUser(ctx, userID)
}

// Rearm resets a triggered alert so it can fire again.
func (s *AlertService) Rearm(ctx context.Context, alertID, userID string) error {
	if err := s.alerts.Rearm(ctx, alertID, userID); err != nil {
		return mapStorageErr(err, "alert not found", "")
	}
	return nil
}

// Delete removes an alert.
func (s *AlertService) Delete(ctx context.Context, alertID, userID string) error {
	if err := s.alerts.Delete(ctx, alertID, userID); err != nil {
		return mapStorageErr(err, "alert not found", "")
	}
	return nil
}

// EvaluateAll runs one evaluation pass over every armed alert.
// Synthetic prices never trigger alerts; a placeholder price is not a
// market event. Returns the number of alerts fired.
func (s *AlertService) EvaluateAll(ctx context.Context) (int, error) {
	armed, err := s.alerts.ListArmed(ctx)
	if err != nil {
		return 0, err
	}

	fired := 0
	for _, alert := range armed {
		quote, found, err := s.quotes.Get(ctx, alert.Symbol)
		if err != nil || !found {
			continue
		}
		if quote.Source == types.SourceSynthetic {
			continue
		}
		if !alert.ShouldTrigger(quote.Price) {
			continue
		}

		if s.trigger(ctx, alert, quote) {
			fired++
		}
	}
	return fired, nil
}

// trigger marks the alert and delivers notifications. MarkTriggered
// is conditional, so concurrent evaluation passes fire each alert at
// most once.
func (s *AlertService) trigger(ctx context.Context, alert *models.PriceAlert, quote *types.Quote) bool {
	ok, err := s.alerts.MarkTriggered(ctx, alert.ID, time.Now())
	if err != nil {
		s.logger.Error("failed to mark alert triggered", zap.String("alertId", alert.ID), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}

	metrics.AlertsTriggeredTotal.Inc()
	s.logger.Info("price alert triggered",
		zap.String("alertId", alert.ID),
		zap.String("symbol", alert.Symbol),
		zap.Float64("price", quote.Price),
		zap.Float64("threshold", alert.Threshold))

	user, err := s.users.GetByID(ctx, alert.UserID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error("failed to load alert owner", zap.String("userId", alert.UserID), zap.Error(err))
		}
		return true
	}

	lang := i18n.LangNorwegian
	if user.Settings != nil && user.Settings.Language == "en" {
		lang = i18n.LangEnglish
	}
	direction := "over"
	if lang == i18n.LangEnglish {
		direction = "above"
	}
	if alert.Condition == types.AlertBelow {
		direction = "under"
		if lang == i18n.LangEnglish {
			direction = "below"
		}
	}
	title := alert.Symbol
	body := fmt.Sprintf(i18n.T(lang, i18n.MsgAlertTriggered), alert.Symbol, direction, quote.Price)

	if err := s.notifier.Notify(ctx, user.ID, types.NotificationAlert, title, body); err != nil {
		s.logger.Error("failed to create alert notification", zap.String("userId", user.ID), zap.Error(err))
	}

	if s.mailer != nil && user.WantsEmail() {
		if err := s.mailer.SendAlertTriggered(user.Email, user.Username, alert.Symbol, alert.Condition, alert.Threshold, quote.Price); err != nil {
			s.logger.Warn("failed to send alert email", zap.String("userId", user.ID), zap.Error(err))
		}
	}
	return true
}
