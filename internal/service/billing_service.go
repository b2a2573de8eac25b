package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aksjeradar/internal/config"
	"github.com/aksjeradar/internal/i18n"
	"github.com/aksjeradar/internal/metrics"
	"github.com/aksjeradar/internal/models"
	"github.com/aksjeradar/internal/storage"
	"github.com/aksjeradar/internal/types"
)

// SubscriptionStore is the subscription persistence surface.
type SubscriptionStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.Subscription, error)
	Upsert(ctx context.Context, sub *models.Subscription) error
	UpdateStatus(ctx context.Context, userID string, status types.SubscriptionStatus) error
	ExpireLapsed(ctx context.Context, now time.Time) (int64, error)
}

// PaymentEventLog records processed webhook events for idempotency.
type PaymentEventLog interface {
	InsertIfNew(ctx context.Context, event *models.PaymentEvent) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// BillingUserStore is the user surface billing needs.
type BillingUserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateTier(ctx context.Context, userID string, tier types.AccessTier) error
}

// BillingMailer delivers billing emails.
type BillingMailer interface {
	SendSubscriptionReceipt(to, username, planName string, amountNOK string, periodEnd time.Time) error
	SendPaymentFailed(to, username string, periodEnd time.Time) error
}

// Plan IDs exposed on the pricing page and accepted in webhook events.
const (
	PlanMonthly = "premium-monthly"
	PlanYearly  = "premium-yearly"
)

// ErrBadSignature is returned when a webhook signature does not match.
var ErrBadSignature = errors.New("webhook signature mismatch")

// BillingService manages plans, trials, and the payment gateway
// webhook that drives subscription state.
type BillingService struct {
	subs     SubscriptionStore
	events   PaymentEventLog
	users    BillingUserStore
	notifier Notifier
	mailer   BillingMailer
	logger   *zap.Logger

	webhookSecret []byte
	trialDays     int
	plans         []*models.Plan
	now           func() time.Time
}

// webhookEvent is the payment gateway's event envelope.
type webhookEvent struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	UserID    string          `json:"userId"`
	PlanID    string          `json:"planId"`
	AmountNOK decimal.Decimal `json:"amountNok"`
	PeriodEnd time.Time       `json:"periodEnd"`
}

// NewBillingService creates a billing service. mailer may be nil.
func NewBillingService(
	cfg config.BillingConfig,
	subs SubscriptionStore,
	events PaymentEventLog,
	users BillingUserStore,
	notifier Notifier,
	mailer BillingMailer,
	logger *zap.Logger,
) *BillingService {
	if logger == nil {
		logger = zap.NewNop()
	}

	monthly, err := decimal.NewFromString(cfg.MonthlyNOK)
	if err != nil {
		monthly = decimal.NewFromInt(199)
	}
	yearly, err := decimal.NewFromString(cfg.YearlyNOK)
	if err != nil {
		yearly = decimal.NewFromInt(1990)
	}

	return &BillingService{
		subs:     subs,
		events:   events,
		users:    users,
		notifier: notifier,
		mailer:   mailer,
		logger:   logger.Named("billing"),

		webhookSecret: []byte(cfg.WebhookSecret),
		trialDays:     cfg.TrialDays,
		plans: []*models.Plan{
			{ID: PlanMonthly, Name: "Premium måned", Interval: types.IntervalMonthly, PriceNOK: monthly},
			{ID: PlanYearly, Name: "Premium år", Interval: types.IntervalYearly, PriceNOK: yearly},
		},
		now: time.Now,
	}
}

// Plans returns the purchasable plan catalog.
func (s *BillingService) Plans() []*models.Plan {
	return s.plans
}

// GetSubscription returns the user's subscription, nil when none exists.
func (s *BillingService) GetSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

// StartTrial starts the free trial. One trial per user: any prior
// subscription row, whatever its state, blocks a new trial.
func (s *BillingService) StartTrial(ctx context.Context, userID, planID string) (*models.Subscription, error) {
	if s.planByID(planID) == nil {
		return nil, invalidInput("unknown plan")
	}

	existing, err := s.GetSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, conflict("a subscription already exists for this account")
	}

	now := s.now()
	sub := &models.Subscription{
		UserID:           userID,
		PlanID:           planID,
		Status:           types.SubscriptionTrial,
		CurrentPeriodEnd: now.AddDate(0, 0, s.trialDays),
	}
	if err := s.subs.Upsert(ctx, sub); err != nil {
		return nil, err
	}
	if err := s.users.UpdateTier(ctx, userID, types.TierPremium); err != nil {
		s.logger.Error("failed to update tier after trial start", zap.String("userId", userID), zap.Error(err))
	}

	s.logger.Info("trial started",
		zap.String("userId", userID),
		zap.String("planId", planID),
		zap.Time("periodEnd", sub.CurrentPeriodEnd))
	return sub, nil
}

// Cancel cancels the user's subscription. Access lapses immediately;
// the gateway stops future charges via its own webhook.
func (s *BillingService) Cancel(ctx context.Context, userID string) error {
	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		return mapStorageErr(err, "no subscription to cancel", "")
	}
	if sub.Status == types.SubscriptionCanceled {
		return conflict("subscription is already canceled")
	}

	now := s.now()
	sub.Status = types.SubscriptionCanceled
	sub.CanceledAt = &now
	if err := s.subs.Upsert(ctx, sub); err != nil {
		return err
	}
	if err := s.users.UpdateTier(ctx, userID, types.TierDemo); err != nil {
		s.logger.Error("failed to downgrade tier after cancel", zap.String("userId", userID), zap.Error(err))
	}

	s.logger.Info("subscription canceled", zap.String("userId", userID))
	return nil
}

// HandleWebhook verifies and applies one payment gateway event. body is
// the raw request body; signature is the hex HMAC-SHA256 from the
// gateway's signature header. Replayed event IDs are acknowledged
// without reapplying the transition.
func (s *BillingService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !s.verifySignature(body, signature) {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		return unauthorized("invalid webhook signature")
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "malformed").Inc()
		return invalidInput("malformed webhook payload")
	}
	if event.ID == "" || event.UserID == "" {
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "malformed").Inc()
		return invalidInput("webhook event id and userId are required")
	}

	fresh, err := s.events.InsertIfNew(ctx, &models.PaymentEvent{
		EventID:   event.ID,
		UserID:    event.UserID,
		Kind:      event.Type,
		AmountNOK: event.AmountNOK,
	})
	if err != nil {
		return err
	}
	if !fresh {
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "duplicate").Inc()
		s.logger.Info("webhook event already processed", zap.String("eventId", event.ID))
		return nil
	}

	switch event.Type {
	case models.PaymentEventSucceeded:
		err = s.applyPaymentSucceeded(ctx, &event)
	case models.PaymentEventFailed:
		err = s.applyPaymentFailed(ctx, &event)
	case models.PaymentEventCanceled:
		err = s.applyCanceled(ctx, &event)
	default:
		// Unknown event types are logged and acknowledged so the gateway
		// stops retrying them.
		s.logger.Warn("ignoring unknown webhook event type",
			zap.String("eventId", event.ID), zap.String("type", event.Type))
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "ignored").Inc()
		return nil
	}
	if err != nil {
		// Release the event row so the gateway's retry is not swallowed
		// by the duplicate check with the transition never applied.
		if delErr := s.events.Delete(ctx, event.ID); delErr != nil {
			s.logger.Error("failed to release webhook event after apply error",
				zap.String("eventId", event.ID), zap.Error(delErr))
		}
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "error").Inc()
		return err
	}

	metrics.WebhookEventsTotal.WithLabelValues(event.Type, "processed").Inc()
	s.logger.Info("webhook event processed",
		zap.String("eventId", event.ID),
		zap.String("type", event.Type),
		zap.String("userId", event.UserID))
	return nil
}

// ExpireLapsed sweeps subscriptions whose paid period has ended. Run
// nightly by the scheduler.
func (s *BillingService) ExpireLapsed(ctx context.Context) (int64, error) {
	n, err := s.subs.ExpireLapsed(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired lapsed subscriptions", zap.Int64("count", n))
	}
	return n, nil
}

func (s *BillingService) applyPaymentSucceeded(ctx context.Context, event *webhookEvent) error {
	plan := s.planByID(event.PlanID)
	if plan == nil {
		return invalidInput("unknown plan in webhook event")
	}

	periodEnd := event.PeriodEnd
	if periodEnd.IsZero() {
		periodEnd = s.now().AddDate(0, 1, 0)
		if plan.Interval == types.IntervalYearly {
			periodEnd = s.now().AddDate(1, 0, 0)
		}
	}

	sub, err := s.GetSubscription(ctx, event.UserID)
	if err != nil {
		return err
	}
	if sub == nil {
		sub = &models.Subscription{UserID: event.UserID}
	}
	sub.PlanID = event.PlanID
	sub.Status = types.SubscriptionActive
	sub.CurrentPeriodEnd = periodEnd
	sub.CanceledAt = nil
	if err := s.subs.Upsert(ctx, sub); err != nil {
		return err
	}
	if err := s.users.UpdateTier(ctx, event.UserID, types.TierPremium); err != nil {
		s.logger.Error("failed to update tier after payment", zap.String("userId", event.UserID), zap.Error(err))
	}

	user := s.loadUser(ctx, event.UserID)
	s.notify(ctx, user, event.UserID, i18n.MsgPaymentReceived)
	if s.mailer != nil && user != nil && user.WantsEmail() {
		if err := s.mailer.SendSubscriptionReceipt(user.Email, user.Username, plan.Name, event.AmountNOK.StringFixed(2), periodEnd); err != nil {
			s.logger.Warn("failed to send receipt email", zap.String("userId", user.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *BillingService) applyPaymentFailed(ctx context.Context, event *webhookEvent) error {
	if err := s.subs.UpdateStatus(ctx, event.UserID, types.SubscriptionPastDue); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("payment failed for user without subscription", zap.String("userId", event.UserID))
			return nil
		}
		return err
	}

	user := s.loadUser(ctx, event.UserID)
	s.notify(ctx, user, event.UserID, i18n.MsgPaymentFailed)
	if s.mailer != nil && user != nil && user.WantsEmail() {
		periodEnd := s.now()
		if sub, err := s.GetSubscription(ctx, event.UserID); err == nil && sub != nil {
			periodEnd = sub.CurrentPeriodEnd
		}
		if err := s.mailer.SendPaymentFailed(user.Email, user.Username, periodEnd); err != nil {
			s.logger.Warn("failed to send payment failed email", zap.String("userId", user.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *BillingService) applyCanceled(ctx context.Context, event *webhookEvent) error {
	sub, err := s.subs.GetByUserID(ctx, event.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}

	now := s.now()
	sub.Status = types.SubscriptionCanceled
	sub.CanceledAt = &now
	if err := s.subs.Upsert(ctx, sub); err != nil {
		return err
	}
	if err := s.users.UpdateTier(ctx, event.UserID, types.TierDemo); err != nil {
		s.logger.Error("failed to downgrade tier after cancellation", zap.String("userId", event.UserID), zap.Error(err))
	}

	s.notify(ctx, s.loadUser(ctx, event.UserID), event.UserID, i18n.MsgSubscriptionEnded)
	return nil
}

// verifySignature checks the hex HMAC-SHA256 of the raw body in
// constant time.
func (s *BillingService) verifySignature(body []byte, signature string) bool {
	if len(s.webhookSecret) == 0 || signature == "" {
		return false
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.webhookSecret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), provided)
}

func (s *BillingService) planByID(id string) *models.Plan {
	for _, p := range s.plans {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *BillingService) loadUser(ctx context.Context, userID string) *models.User {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error("failed to load user for billing event", zap.String("userId", userID), zap.Error(err))
		}
		return nil
	}
	return user
}

func (s *BillingService) notify(ctx context.Context, user *models.User, userID string, msgID string) {
	if s.notifier == nil {
		return
	}
	lang := i18n.LangNorwegian
	if user != nil && user.Settings != nil && user.Settings.Language == "en" {
		lang = i18n.LangEnglish
	}
	body := i18n.T(lang, msgID)
	title := "Abonnement"
	if lang == i18n.LangEnglish {
		title = "Subscription"
	}
	if err := s.notifier.Notify(ctx, userID, types.NotificationBilling, title, body); err != nil {
		s.logger.Error("failed to create billing notification", zap.String("userId", userID), zap.Error(err))
	}
}
