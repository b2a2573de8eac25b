// Package api provides the HTTP API server.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/aksjeradar/internal/access"
	"github.com/aksjeradar/internal/auth"
	"github.com/aksjeradar/internal/config"
	"github.com/aksjeradar/internal/metrics"
	"github.com/aksjeradar/internal/models"
	"github.com/aksjeradar/internal/ratelimit"
	"github.com/aksjeradar/internal/service"
	"github.com/aksjeradar/internal/types"
)

// Service interfaces for dependency injection and testing.

// UserServiceInterface defines the user service operations the API uses.
type UserServiceInterface interface {
	Register(ctx context.Context, username, email, password string) (*service.AuthResult, error)
	Login(ctx context.Context, identifier, password string) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*service.AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	GetProfile(ctx context.Context, userID string) (*service.Profile, error)
	UpdateSettings(ctx context.Context, userID string, settings *models.UserSettings) error
}

// MarketServiceInterface defines the market data operations.
type MarketServiceInterface interface {
	SymbolsForTier(tier types.AccessTier) []string
	GetQuoteForTier(ctx context.Context, symbol string, tier types.AccessTier) (*types.Quote, error)
	GetQuotes(ctx context.Context, symbols []string, tier types.AccessTier) ([]*types.Quote, error)
	Compare(ctx context.Context, symbols []string) ([]*types.Quote, error)
	Search(ctx context.Context, query string, tier types.AccessTier) []string
	GetOverviewForTier(ctx context.Context, tier types.AccessTier) (*service.Overview, error)
	GetHistory(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*types.Tick, error)
}

// PortfolioServiceInterface defines the portfolio operations.
type PortfolioServiceInterface interface {
	Create(ctx context.Context, userID, name string) (*models.Portfolio, error)
	List(ctx context.Context, userID string) ([]*models.Portfolio, error)
	Rename(ctx context.Context, portfolioID, userID, name string) error
	Delete(ctx context.Context, portfolioID, userID string) error
	AddHolding(ctx context.Context, portfolioID, userID, symbol string, quantity, price float64) (*models.Holding, error)
	RemoveHolding(ctx context.Context, portfolioID, userID, holdingID string) error
	Valuation(ctx context.Context, portfolioID, userID string) (*service.PortfolioValuation, error)
	ListTrades(ctx context.Context, userID string, limit int) ([]*models.Trade, error)
}

// WatchlistServiceInterface defines the watchlist operations.
type WatchlistServiceInterface interface {
	Create(ctx context.Context, userID, name string) (*models.Watchlist, error)
	List(ctx context.Context, userID string) ([]*models.Watchlist, error)
	Get(ctx context.Context, watchlistID, userID string) (*service.WatchlistView, error)
	Delete(ctx context.Context, watchlistID, userID string) error
	AddSymbol(ctx context.Context, watchlistID, userID, symbol string) (*models.WatchlistEntry, error)
	RemoveSymbol(ctx context.Context, watchlistID, userID, symbol string) error
}

// AlertServiceInterface defines the price alert operations.
type AlertServiceInterface interface {
	Create(ctx context.Context, userID, symbol string, condition types.AlertCondition, threshold float64) (*models.PriceAlert, error)
	List(ctx context.Context, userID string) ([]*models.PriceAlert, error)
	Rearm(ctx context.Context, alertID, userID string) error
	Delete(ctx context.Context, alertID, userID string) error
}

// NotificationServiceInterface defines the notification operations.
type NotificationServiceInterface interface {
	List(ctx context.Context, userID string, limit int) ([]*models.Notification, int64, error)
	MarkRead(ctx context.Context, notificationID, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// AchievementServiceInterface defines the achievement operations.
type AchievementServiceInterface interface {
	List(ctx context.Context, userID string) ([]*service.AchievementView, error)
	Stats(ctx context.Context, userID string) (*models.UserStats, error)
}

// BillingServiceInterface defines the billing operations.
type BillingServiceInterface interface {
	Plans() []*models.Plan
	GetSubscription(ctx context.Context, userID string) (*models.Subscription, error)
	StartTrial(ctx context.Context, userID, planID string) (*models.Subscription, error)
	Cancel(ctx context.Context, userID string) error
	HandleWebhook(ctx context.Context, body []byte, signature string) error
}

// NewsProvider serves the cached market news feed.
type NewsProvider interface {
	Items() []*models.NewsItem
}

// Services bundles everything the server depends on.
type Services struct {
	Users         UserServiceInterface
	Market        MarketServiceInterface
	Portfolios    PortfolioServiceInterface
	Watchlists    WatchlistServiceInterface
	Alerts        AlertServiceInterface
	Notifications NotificationServiceInterface
	Achievements  AchievementServiceInterface
	Billing       BillingServiceInterface
	News          NewsProvider

	Tokens *auth.TokenManager
	Quota  *ratelimit.QuotaTracker

	// Realtime is the WebSocket endpoint handler, nil to disable.
	Realtime http.HandlerFunc
}

// Server is the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	services   *Services
	logger     *zap.Logger
	cfg        config.ServerConfig
}

// NewServer creates the API server.
func NewServer(cfg config.ServerConfig, rateCfg config.RateLimitConfig, services *Services, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router:   mux.NewRouter(),
		services: services,
		logger:   logger.Named("api"),
		cfg:      cfg,
	}

	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(CORSMiddleware)
	s.router.Use(AuthMiddleware(services.Tokens))
	s.router.Use(RateLimitMiddleware(NewRateLimiter(rateCfg)))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Auth endpoints are always open.
	api.HandleFunc("/auth/register", s.handleRegister).Methods("POST")
	api.HandleFunc("/auth/login", s.handleLogin).Methods("POST")
	api.HandleFunc("/auth/refresh", s.handleRefresh).Methods("POST")
	api.HandleFunc("/auth/logout", s.handleLogout).Methods("POST")

	// Account endpoints require a signed-in user of any tier.
	api.HandleFunc("/me", s.requireUser(s.handleGetMe)).Methods("GET")
	api.HandleFunc("/me/settings", s.requireUser(s.handleUpdateSettings)).Methods("PATCH")

	// Billing: pricing page is public, the webhook authenticates itself
	// with the gateway signature.
	api.HandleFunc("/pricing", s.handlePricing).Methods("GET")
	api.HandleFunc("/billing/subscription", s.requireUser(s.handleGetSubscription)).Methods("GET")
	api.HandleFunc("/billing/trial", s.requireUser(s.handleStartTrial)).Methods("POST")
	api.HandleFunc("/billing/cancel", s.requireUser(s.handleCancelSubscription)).Methods("POST")
	api.HandleFunc("/billing/webhook", s.handleBillingWebhook).Methods("POST")

	// Market data: demo-open with metered quotas, full data premium.
	api.HandleFunc("/market/overview", s.gate(access.ClassDemo, true, s.handleOverview)).Methods("GET")
	api.HandleFunc("/stocks/quote/{symbol}", s.gate(access.ClassDemo, true, s.handleGetQuote)).Methods("GET")
	api.HandleFunc("/stocks/quotes", s.gate(access.ClassDemo, true, s.handleGetQuotes)).Methods("GET")
	api.HandleFunc("/stocks/search", s.gate(access.ClassDemo, false, s.handleSearch)).Methods("GET")
	api.HandleFunc("/stocks/compare", s.gate(access.ClassPremium, false, s.handleCompare)).Methods("GET")
	api.HandleFunc("/stocks/{symbol}/history", s.gate(access.ClassPremium, false, s.handleHistory)).Methods("GET")

	// News is demo-open.
	api.HandleFunc("/news", s.gate(access.ClassDemo, false, s.handleNews)).Methods("GET")

	// Portfolio, watchlists and alerts are premium features.
	api.HandleFunc("/portfolios", s.gate(access.ClassPremium, false, s.handleCreatePortfolio)).Methods("POST")
	api.HandleFunc("/portfolios", s.gate(access.ClassPremium, false, s.handleListPortfolios)).Methods("GET")
	api.HandleFunc("/portfolios/{id}", s.gate(access.ClassPremium, false, s.handleRenamePortfolio)).Methods("PUT")
	api.HandleFunc("/portfolios/{id}", s.gate(access.ClassPremium, false, s.handleDeletePortfolio)).Methods("DELETE")
	api.HandleFunc("/portfolios/{id}/valuation", s.gate(access.ClassPremium, false, s.handlePortfolioValuation)).Methods("GET")
	api.HandleFunc("/portfolios/{id}/holdings", s.gate(access.ClassPremium, false, s.handleAddHolding)).Methods("POST")
	api.HandleFunc("/portfolios/{id}/holdings/{holdingId}", s.gate(access.ClassPremium, false, s.handleRemoveHolding)).Methods("DELETE")
	api.HandleFunc("/trades", s.gate(access.ClassPremium, false, s.handleListTrades)).Methods("GET")

	api.HandleFunc("/watchlists", s.gate(access.ClassPremium, false, s.handleCreateWatchlist)).Methods("POST")
	api.HandleFunc("/watchlists", s.gate(access.ClassPremium, false, s.handleListWatchlists)).Methods("GET")
	api.HandleFunc("/watchlists/{id}", s.gate(access.ClassPremium, false, s.handleGetWatchlist)).Methods("GET")
	api.HandleFunc("/watchlists/{id}", s.gate(access.ClassPremium, false, s.handleDeleteWatchlist)).Methods("DELETE")
	api.HandleFunc("/watchlists/{id}/entries", s.gate(access.ClassPremium, false, s.handleAddWatchlistEntry)).Methods("POST")
	api.HandleFunc("/watchlists/{id}/entries/{symbol}", s.gate(access.ClassPremium, false, s.handleRemoveWatchlistEntry)).Methods("DELETE")

	api.HandleFunc("/alerts", s.gate(access.ClassPremium, false, s.handleCreateAlert)).Methods("POST")
	api.HandleFunc("/alerts", s.gate(access.ClassPremium, false, s.handleListAlerts)).Methods("GET")
	api.HandleFunc("/alerts/{id}/rearm", s.gate(access.ClassPremium, false, s.handleRearmAlert)).Methods("POST")
	api.HandleFunc("/alerts/{id}", s.gate(access.ClassPremium, false, s.handleDeleteAlert)).Methods("DELETE")

	api.HandleFunc("/notifications", s.requireUser(s.handleListNotifications)).Methods("GET")
	api.HandleFunc("/notifications/read-all", s.requireUser(s.handleMarkAllNotificationsRead)).Methods("POST")
	api.HandleFunc("/notifications/{id}/read", s.requireUser(s.handleMarkNotificationRead)).Methods("POST")

	api.HandleFunc("/achievements", s.handleListAchievementCatalog).Methods("GET")
	api.HandleFunc("/achievements/mine", s.requireUser(s.handleListMyAchievements)).Methods("GET")
	api.HandleFunc("/stats", s.requireUser(s.handleGetStats)).Methods("GET")

	// Realtime feed is premium.
	if s.services.Realtime != nil {
		api.HandleFunc("/realtime", s.gate(access.ClassPremium, false, s.services.Realtime)).Methods("GET")
	}
}

// gate wraps a handler with tier gating and, when metered, the daily
// quota for demo sessions.
func (s *Server) gate(class access.RouteClass, metered bool, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tier := Tier(r)

		switch access.Check(class, tier) {
		case access.Allow:
		case access.DenyUnauthenticated:
			respondError(w, r, http.StatusUnauthorized, types.ErrCodeUnauthorized, "sign in to access this endpoint", nil)
			return
		case access.DenyPaymentRequired:
			respondError(w, r, http.StatusPaymentRequired, types.ErrCodePaymentRequired, "an active subscription is required", nil)
			return
		}

		if metered && access.Metered(tier) && s.services.Quota != nil {
			allowed, remaining, err := s.services.Quota.TryConsume(r.Context(), identity(r))
			if err != nil {
				s.logger.Error("quota check failed", zap.Error(err))
				// Fail open: a Redis outage must not take down demo reads.
			} else {
				w.Header().Set("X-Quota-Limit", strconv.Itoa(s.services.Quota.DailyQuota()))
				w.Header().Set("X-Quota-Remaining", strconv.Itoa(remaining))
				if !allowed {
					metrics.RateLimitRejectionsTotal.WithLabelValues("quota").Inc()
					respondError(w, r, http.StatusTooManyRequests, types.ErrCodeQuotaExceeded, "daily quota exhausted", nil)
					return
				}
			}
		}

		next(w, r)
	}
}

// requireUser admits any authenticated account regardless of tier.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if UserID(r) == "" {
			respondError(w, r, http.StatusUnauthorized, types.ErrCodeUnauthorized, "sign in to access this endpoint", nil)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "aksjeradar",
	})
}

// Start starts the HTTP listener.
func (s *Server) Start() error {
	s.logger.Info("api server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down api server")
	return s.httpServer.Shutdown(ctx)
}
