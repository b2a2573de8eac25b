// Package main provides the background worker entry point: the quote
// poller, price alert evaluation, and the scheduled jobs (subscription
// sweep, daily digest).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aksjeradar/internal/cache"
	"github.com/aksjeradar/internal/config"
	"github.com/aksjeradar/internal/logging"
	"github.com/aksjeradar/internal/marketdata"
	"github.com/aksjeradar/internal/metrics"
	"github.com/aksjeradar/internal/notify"
	"github.com/aksjeradar/internal/scheduler"
	"github.com/aksjeradar/internal/service"
	"github.com/aksjeradar/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New("aksjeradar-worker", cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("worker starting")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatal("failed to connect to Postgres", zap.Error(err))
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer func() { _ = redis.Close() }()

	// Tick history is best-effort: without ClickHouse the poller still
	// caches and publishes quotes, it just stops recording history.
	var tickRepo *storage.TickRepository
	var ticks service.TickHistory
	checkers := map[string]metrics.HealthChecker{
		"postgres": postgres.Ping,
		"redis":    redis.Ping,
	}
	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.Warn("ClickHouse unavailable, tick history disabled", zap.Error(err))
	} else {
		defer func() { _ = clickhouse.Close() }()
		tickRepo = storage.NewTickRepository(clickhouse)
		ticks = tickRepo
		checkers["clickhouse"] = clickhouse.Ping
	}

	logger.Info("database connections established")

	userRepo := storage.NewUserRepository(postgres)
	subscriptionRepo := storage.NewSubscriptionRepository(postgres)
	alertRepo := storage.NewAlertRepository(postgres)
	notificationRepo := storage.NewNotificationRepository(postgres)
	paymentEventRepo := storage.NewPaymentEventRepository(postgres)

	quoteCache := storage.NewQuoteCache(redis, cfg.MarketData.QuoteTTL)
	mailer := notify.NewEmailSender(cfg.SMTP, logger)

	notificationService := service.NewNotificationService(notificationRepo, logger)
	alertService := service.NewAlertService(alertRepo, userRepo, quoteCache,
		notificationService, mailer, nil, logger)
	billingService := service.NewBillingService(cfg.Billing, subscriptionRepo, paymentEventRepo,
		userRepo, notificationService, mailer, logger)
	marketService := service.NewMarketService(quoteCache, ticks, cache.New(),
		cfg.MarketData.Symbols, cfg.MarketData.AllowFallback, logger)

	provider := marketdata.NewHTTPProvider(cfg.MarketData.ProviderURL, cfg.MarketData.APIKey,
		cfg.MarketData.RequestTimeout)
	poller := marketdata.NewPoller(&marketdata.PollerConfig{
		Provider:      provider,
		QuoteCache:    quoteCache,
		Ticks:         tickRepo,
		Logger:        logger,
		Symbols:       cfg.MarketData.Symbols,
		Interval:      cfg.MarketData.PollInterval,
		AllowFallback: cfg.MarketData.AllowFallback,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go poller.Run(ctx)

	// Alerts are evaluated on the poll cadence so a triggered alert
	// fires within one cycle of the price crossing its threshold.
	go func() {
		ticker := time.NewTicker(cfg.MarketData.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := alertService.EvaluateAll(ctx); err != nil {
					logger.Error("alert evaluation failed", zap.Error(err))
				}
			}
		}
	}()

	sched := scheduler.New(&scheduler.Config{
		Billing:    billingService,
		Recipients: userRepo,
		Market:     marketService,
		Mailer:     mailer,
		Symbols:    cfg.MarketData.Symbols,
		Logger:     logger,
	})
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}

	metricsServer := metrics.NewServer(cfg.Metrics.Port, logger, checkers)
	go func() {
		if err := metricsServer.Start(); err != nil {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	logger.Info("worker started",
		zap.Int("symbols", len(cfg.MarketData.Symbols)),
		zap.Duration("pollInterval", cfg.MarketData.PollInterval))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server forced to shut down", zap.Error(err))
	}

	logger.Info("worker exited")
}
