// Package scheduler runs the worker's periodic jobs: the nightly
// subscription sweep, the daily market digest, and the hourly news
// refresh.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/aksjeradar/internal/models"
	"github.com/aksjeradar/internal/types"
)

// SubscriptionSweeper expires lapsed subscriptions.
type SubscriptionSweeper interface {
	ExpireLapsed(ctx context.Context) (int64, error)
}

// DigestRecipients lists users opted in to the daily digest.
type DigestRecipients interface {
	ListDigestRecipients(ctx context.Context) ([]*models.User, error)
}

// DigestQuotes provides the quotes for the digest body.
type DigestQuotes interface {
	GetQuotes(ctx context.Context, symbols []string, tier types.AccessTier) ([]*types.Quote, error)
}

// DigestMailer sends the digest email.
type DigestMailer interface {
	SendDailyDigest(to, username string, quotes []*types.Quote) error
}

// NewsRefresher refreshes the cached news feed.
type NewsRefresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler wires the periodic jobs into a cron runner. All schedules
// run in Europe/Oslo so "nightly" means Norwegian night.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger

	billing    SubscriptionSweeper
	recipients DigestRecipients
	market     DigestQuotes
	mailer     DigestMailer
	news       NewsRefresher
	symbols    []string
}

// Config bundles the scheduler's dependencies. Any nil dependency
// disables its job.
type Config struct {
	Billing    SubscriptionSweeper
	Recipients DigestRecipients
	Market     DigestQuotes
	Mailer     DigestMailer
	News       NewsRefresher
	Symbols    []string
	Logger     *zap.Logger
}

// New creates the scheduler.
func New(cfg *Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation("Europe/Oslo")
	if err != nil {
		loc = time.FixedZone("CET", 60*60)
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		logger:     logger.Named("scheduler"),
		billing:    cfg.Billing,
		recipients: cfg.Recipients,
		market:     cfg.Market,
		mailer:     cfg.Mailer,
		news:       cfg.News,
		symbols:    cfg.Symbols,
	}
}

// Start registers the jobs and starts the cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.billing != nil {
		// Shortly after midnight, once the paid day is definitely over.
		if _, err := s.cron.AddFunc("5 0 * * *", func() { s.runExpireSweep(ctx) }); err != nil {
			return err
		}
	}
	if s.mailer != nil && s.recipients != nil && s.market != nil {
		// After the morning auction has settled.
		if _, err := s.cron.AddFunc("30 9 * * MON-FRI", func() { s.runDailyDigest(ctx) }); err != nil {
			return err
		}
	}
	if s.news != nil {
		if _, err := s.cron.AddFunc("@hourly", func() { s.runNewsRefresh(ctx) }); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
	return nil
}

// Stop stops the cron runner and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runExpireSweep(ctx context.Context) {
	n, err := s.billing.ExpireLapsed(ctx)
	if err != nil {
		s.logger.Error("subscription sweep failed", zap.Error(err))
		return
	}
	s.logger.Info("subscription sweep complete", zap.Int64("expired", n))
}

func (s *Scheduler) runDailyDigest(ctx context.Context) {
	recipients, err := s.recipients.ListDigestRecipients(ctx)
	if err != nil {
		s.logger.Error("failed to list digest recipients", zap.Error(err))
		return
	}
	if len(recipients) == 0 {
		return
	}

	quotes, err := s.market.GetQuotes(ctx, s.symbols, types.TierPremium)
	if err != nil {
		s.logger.Error("failed to load digest quotes", zap.Error(err))
		return
	}

	sent := 0
	for _, user := range recipients {
		if err := s.mailer.SendDailyDigest(user.Email, user.Username, quotes); err != nil {
			s.logger.Warn("failed to send digest", zap.String("userId", user.ID), zap.Error(err))
			continue
		}
		sent++
	}
	s.logger.Info("daily digest sent", zap.Int("recipients", sent))
}

func (s *Scheduler) runNewsRefresh(ctx context.Context) {
	if err := s.news.Refresh(ctx); err != nil {
		s.logger.Warn("news refresh failed", zap.Error(err))
	}
}
