// Package main provides the API server entry point for the Aksjeradar
// backend.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aksjeradar/internal/access"
	"github.com/aksjeradar/internal/api"
	"github.com/aksjeradar/internal/auth"
	"github.com/aksjeradar/internal/cache"
	"github.com/aksjeradar/internal/config"
	"github.com/aksjeradar/internal/logging"
	"github.com/aksjeradar/internal/metrics"
	"github.com/aksjeradar/internal/news"
	"github.com/aksjeradar/internal/notify"
	"github.com/aksjeradar/internal/ratelimit"
	"github.com/aksjeradar/internal/scheduler"
	"github.com/aksjeradar/internal/service"
	"github.com/aksjeradar/internal/storage"
	"github.com/aksjeradar/internal/ws"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New("aksjeradar-api", cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("api server starting")

	// Database connections. Postgres and Redis are required; ClickHouse
	// only backs price history, so the server degrades without it.
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

	var ticks service.TickHistory
	checkers := map[string]metrics.HealthChecker{
		"postgres": postgres.Ping,
		"redis":    redis.Ping,
	}
	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.Warn("ClickHouse unavailable, price history disabled", zap.Error(err))
	} else {
		defer func() { _ = clickhouse.Close() }()
		ticks = storage.NewTickRepository(clickhouse)
		checkers["clickhouse"] = clickhouse.Ping
	}

	logger.Info("database connections established")

	// Repositories.
	userRepo := storage.NewUserRepository(postgres)
	subscriptionRepo := storage.NewSubscriptionRepository(postgres)
	portfolioRepo := storage.NewPortfolioRepository(postgres)
	watchlistRepo := storage.NewWatchlistRepository(postgres)
	alertRepo := storage.NewAlertRepository(postgres)
	notificationRepo := storage.NewNotificationRepository(postgres)
	achievementRepo := storage.NewAchievementRepository(postgres)
	paymentEventRepo := storage.NewPaymentEventRepository(postgres)

	quoteCache := storage.NewQuoteCache(redis, cfg.MarketData.QuoteTTL)
	refreshTokens := storage.NewRefreshTokenStore(redis, cfg.Auth.RefreshTokenTTL)

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	if err != nil {
		logger.Fatal("failed to create token manager", zap.Error(err))
	}

	quota, err := ratelimit.NewQuotaTracker(&ratelimit.QuotaTrackerConfig{
		Redis:      redis.Client(),
		DailyQuota: int(cfg.RateLimit.DemoDailyQuota),
	})
	if err != nil {
		logger.Fatal("failed to create quota tracker", zap.Error(err))
	}

	checker := access.NewChecker(cfg.Access.ExemptEmails)
	memCache := cache.New()
	mailer := notify.NewEmailSender(cfg.SMTP, logger)

	// Services. The notification service doubles as the in-app notifier
	// and the achievement service as the activity stat recorder.
	notificationService := service.NewNotificationService(notificationRepo, logger)
	achievementService := service.NewAchievementService(achievementRepo, notificationService, memCache, logger)
	userService := service.NewUserService(userRepo, subscriptionRepo, tokens, refreshTokens, checker,
		achievementService, mailer, cfg.Auth.BcryptCost, logger)
	marketService := service.NewMarketService(quoteCache, ticks, memCache,
		cfg.MarketData.Symbols, cfg.MarketData.AllowFallback, logger)
	portfolioService := service.NewPortfolioService(portfolioRepo, marketService, achievementService, memCache, logger)
	watchlistService := service.NewWatchlistService(watchlistRepo, marketService, achievementService, logger)
	alertService := service.NewAlertService(alertRepo, userRepo, quoteCache,
		notificationService, mailer, achievementService, logger)
	billingService := service.NewBillingService(cfg.Billing, subscriptionRepo, paymentEventRepo,
		userRepo, notificationService, mailer, logger)

	logger.Info("services initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// News feed, warmed at startup and refreshed hourly.
	newsClient := news.NewClient(cfg.News.FeedURL, cfg.News.MaxItems, logger)
	go func() {
		warmCtx, warmCancel := context.WithTimeout(ctx, 30*time.Second)
		defer warmCancel()
		_ = newsClient.Refresh(warmCtx)
	}()

	sched := scheduler.New(&scheduler.Config{News: newsClient, Logger: logger})
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}

	// Realtime quote streaming, fed from the Redis price channel.
	hub := ws.NewHub(func(r *http.Request) bool { return true }, logger)
	ws.StartRedisSubscriber(ctx, quoteCache, hub, logger)

	server := api.NewServer(cfg.Server, cfg.RateLimit, &api.Services{
		Users:         userService,
		Market:        marketService,
		Portfolios:    portfolioService,
		Watchlists:    watchlistService,
		Alerts:        alertService,
		Notifications: notificationService,
		Achievements:  achievementService,
		Billing:       billingService,
		News:          newsClient,
		Tokens:        tokens,
		Quota:         quota,
		Realtime:      hub.HandleWS,
	}, logger)

	metricsServer := metrics.NewServer(cfg.Metrics.Port, logger, checkers)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("api server failed", zap.Error(err))
		}
	}()
	go func() {
		if err := metricsServer.Start(); err != nil {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	logger.Info("server started",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("metricsPort", cfg.Metrics.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server forced to shut down", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server forced to shut down", zap.Error(err))
	}

	logger.Info("server exited")
}
