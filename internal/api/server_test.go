package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aksjeradar/internal/auth"
	"github.com/aksjeradar/internal/config"
	"github.com/aksjeradar/internal/models"
	"github.com/aksjeradar/internal/ratelimit"
	"github.com/aksjeradar/internal/service"
	"github.com/aksjeradar/internal/types"
)

// Stub services: each returns canned data so handler wiring, gating
// and serialization can be exercised without storage.

type stubUsers struct {
	registerErr error
}

func (s *stubUsers) Register(ctx context.Context, username, email, password string) (*service.AuthResult, error) {
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return &service.AuthResult{
		User:        &models.User{ID: "user-1", Username: username, Email: email},
		Tier:        types.TierDemo,
		AccessToken: "access", RefreshToken: "refresh",
	}, nil
}

func (s *stubUsers) Login(ctx context.Context, identifier, password string) (*service.AuthResult, error) {
	if password != "hemmelig123" {
		return nil, types.NewServiceError(types.ErrCodeUnauthorized, "invalid credentials")
	}
	return &service.AuthResult{
		User:        &models.User{ID: "user-1", Username: identifier},
		Tier:        types.TierDemo,
		AccessToken: "access", RefreshToken: "refresh",
	}, nil
}

func (s *stubUsers) Refresh(ctx context.Context, refreshToken string) (*service.AuthResult, error) {
	return nil, types.NewServiceError(types.ErrCodeUnauthorized, "invalid or expired refresh token")
}

func (s *stubUsers) Logout(ctx context.Context, refreshToken string) error { return nil }

func (s *stubUsers) GetProfile(ctx context.Context, userID string) (*service.Profile, error) {
	return &service.Profile{
		User: &models.User{ID: userID, Username: "kari"},
		Tier: types.TierPremium,
	}, nil
}

func (s *stubUsers) UpdateSettings(ctx context.Context, userID string, settings *models.UserSettings) error {
	return nil
}

type stubMarket struct {
	lastTier types.AccessTier
}

func (s *stubMarket) SymbolsForTier(tier types.AccessTier) []string {
	return []string{"EQNR.OL", "DNB.OL"}
}

func (s *stubMarket) GetQuoteForTier(ctx context.Context, symbol string, tier types.AccessTier) (*types.Quote, error) {
	s.lastTier = tier
	if symbol == "UNKNOWN" {
		return nil, types.NewServiceError(types.ErrCodeNotFound, "unknown symbol")
	}
	source := types.SourceLive
	if tier == types.TierDemo {
		source = types.SourceSynthetic
	}
	return &types.Quote{Symbol: symbol, Price: 123.45, Currency: "NOK", Source: source, Timestamp: time.Now()}, nil
}

func (s *stubMarket) GetQuotes(ctx context.Context, symbols []string, tier types.AccessTier) ([]*types.Quote, error) {
	out := make([]*types.Quote, 0, len(symbols))
	for _, sym := range symbols {
		q, err := s.GetQuoteForTier(ctx, sym, tier)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func (s *stubMarket) Compare(ctx context.Context, symbols []string) ([]*types.Quote, error) {
	return s.GetQuotes(ctx, symbols, types.TierPremium)
}

func (s *stubMarket) Search(ctx context.Context, query string, tier types.AccessTier) []string {
	return []string{"EQNR.OL"}
}

func (s *stubMarket) GetOverviewForTier(ctx context.Context, tier types.AccessTier) (*service.Overview, error) {
	s.lastTier = tier
	return &service.Overview{AsOf: time.Now()}, nil
}

func (s *stubMarket) GetHistory(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*types.Tick, error) {
	return []*types.Tick{{Symbol: symbol, Price: 100, Source: types.SourceLive, Timestamp: time.Now()}}, nil
}

type stubPortfolios struct{}

func (s *stubPortfolios) Create(ctx context.Context, userID, name string) (*models.Portfolio, error) {
	return &models.Portfolio{ID: "pf-1", UserID: userID, Name: name}, nil
}
func (s *stubPortfolios) List(ctx context.Context, userID string) ([]*models.Portfolio, error) {
	return []*models.Portfolio{{ID: "pf-1", UserID: userID, Name: "Min portefølje"}}, nil
}
func (s *stubPortfolios) Rename(ctx context.Context, portfolioID, userID, name string) error {
	return nil
}
func (s *stubPortfolios) Delete(ctx context.Context, portfolioID, userID string) error { return nil }
func (s *stubPortfolios) AddHolding(ctx context.Context, portfolioID, userID, symbol string, quantity, price float64) (*models.Holding, error) {
	return &models.Holding{ID: "h-1", Portfolio: portfolioID, Symbol: symbol, Quantity: quantity, CostBasis: price}, nil
}
func (s *stubPortfolios) RemoveHolding(ctx context.Context, portfolioID, userID, holdingID string) error {
	return nil
}
func (s *stubPortfolios) Valuation(ctx context.Context, portfolioID, userID string) (*service.PortfolioValuation, error) {
	return &service.PortfolioValuation{}, nil
}
func (s *stubPortfolios) ListTrades(ctx context.Context, userID string, limit int) ([]*models.Trade, error) {
	return nil, nil
}

type stubWatchlists struct{}

func (s *stubWatchlists) Create(ctx context.Context, userID, name string) (*models.Watchlist, error) {
	return &models.Watchlist{ID: "wl-1", UserID: userID, Name: name}, nil
}
func (s *stubWatchlists) List(ctx context.Context, userID string) ([]*models.Watchlist, error) {
	return nil, nil
}
func (s *stubWatchlists) Get(ctx context.Context, watchlistID, userID string) (*service.WatchlistView, error) {
	return &service.WatchlistView{Watchlist: &models.Watchlist{ID: watchlistID}}, nil
}
func (s *stubWatchlists) Delete(ctx context.Context, watchlistID, userID string) error { return nil }
func (s *stubWatchlists) AddSymbol(ctx context.Context, watchlistID, userID, symbol string) (*models.WatchlistEntry, error) {
	return &models.WatchlistEntry{ID: "e-1", WatchlistID: watchlistID, Symbol: symbol}, nil
}
func (s *stubWatchlists) RemoveSymbol(ctx context.Context, watchlistID, userID, symbol string) error {
	return nil
}

type stubAlerts struct{}

func (s *stubAlerts) Create(ctx context.Context, userID, symbol string, condition types.AlertCondition, threshold float64) (*models.PriceAlert, error) {
	return &models.PriceAlert{ID: "a-1", UserID: userID, Symbol: symbol, Condition: condition, Threshold: threshold}, nil
}
func (s *stubAlerts) List(ctx context.Context, userID string) ([]*models.PriceAlert, error) {
	return nil, nil
}
func (s *stubAlerts) Rearm(ctx context.Context, alertID, userID string) error  { return nil }
func (s *stubAlerts) Delete(ctx context.Context, alertID, userID string) error { return nil }

type stubNotifications struct{}

func (s *stubNotifications) List(ctx context.Context, userID string, limit int) ([]*models.Notification, int64, error) {
	return []*models.Notification{{ID: "n-1", UserID: userID}}, 1, nil
}
func (s *stubNotifications) MarkRead(ctx context.Context, notificationID, userID string) error {
	return nil
}
func (s *stubNotifications) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return 2, nil
}

type stubAchievements struct{}

func (s *stubAchievements) List(ctx context.Context, userID string) ([]*service.AchievementView, error) {
	return nil, nil
}
func (s *stubAchievements) Stats(ctx context.Context, userID string) (*models.UserStats, error) {
	return &models.UserStats{UserID: userID}, nil
}

type stubBilling struct {
	webhookBody []byte
	webhookSig  string
}

func (s *stubBilling) Plans() []*models.Plan {
	return []*models.Plan{{ID: "premium-monthly", Name: "Premium måned", Interval: types.IntervalMonthly}}
}
func (s *stubBilling) GetSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	return nil, nil
}
func (s *stubBilling) StartTrial(ctx context.Context, userID, planID string) (*models.Subscription, error) {
	return &models.Subscription{UserID: userID, PlanID: planID, Status: types.SubscriptionTrial}, nil
}
func (s *stubBilling) Cancel(ctx context.Context, userID string) error { return nil }
func (s *stubBilling) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	s.webhookBody = body
	s.webhookSig = signature
	if signature == "bad" {
		return types.NewServiceError(types.ErrCodeUnauthorized, "invalid webhook signature")
	}
	return nil
}

type stubNews struct{}

func (s *stubNews) Items() []*models.NewsItem {
	return []*models.NewsItem{{Title: "Børsmelding", Link: "https://example.no/1"}}
}

type testServer struct {
	server  *Server
	tokens  *auth.TokenManager
	market  *stubMarket
	billing *stubBilling
}

func newTestServer(t *testing.T, quota *ratelimit.QuotaTracker, rateCfg *config.RateLimitConfig) *testServer {
	t.Helper()
	tokens, err := auth.NewTokenManager("test-secret-at-least-32-bytes-long!!", time.Hour)
	require.NoError(t, err)

	market := &stubMarket{}
	billing := &stubBilling{}
	services := &Services{
		Users:         &stubUsers{},
		Market:        market,
		Portfolios:    &stubPortfolios{},
		Watchlists:    &stubWatchlists{},
		Alerts:        &stubAlerts{},
		Notifications: &stubNotifications{},
		Achievements:  &stubAchievements{},
		Billing:       billing,
		News:          &stubNews{},
		Tokens:        tokens,
		Quota:         quota,
	}

	cfg := config.ServerConfig{Host: "127.0.0.1", Port: "0"}
	rc := config.RateLimitConfig{DemoRPS: 100, PremiumRPS: 100, Burst: 100}
	if rateCfg != nil {
		rc = *rateCfg
	}

	return &testServer{
		server:  NewServer(cfg, rc, services, zap.NewNop()),
		tokens:  tokens,
		market:  market,
		billing: billing,
	}
}

func (ts *testServer) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.10:54321"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.server.Router().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) token(t *testing.T, userID string, tier types.AccessTier) string {
	t.Helper()
	token, err := ts.tokens.Issue(userID, string(tier))
	require.NoError(t, err)
	return token
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec := ts.request(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "aksjeradar")
}

func TestRegisterEndpoint(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec := ts.request(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "kari", "email": "kari@example.no", "password": "hemmelig123",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	var result service.AuthResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "kari", result.User.Username)
	assert.NotEmpty(t, result.AccessToken)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec := ts.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"identifier": "kari", "password": "feil",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, types.ErrCodeUnauthorized, decodeError(t, rec).Code)
}

func TestMeRequiresAuthentication(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec := ts.request(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.request(t, http.MethodGet, "/api/me", ts.token(t, "user-1", types.TierDemo), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInvalidTokenRejected(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec := ts.request(t, http.MethodGet, "/api/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOverviewOpenToAnonymous(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec := ts.request(t, http.MethodGet, "/api/market/overview", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.TierDemo, ts.market.lastTier, "anonymous requests are demo sessions")
}

func TestPremiumRouteGating(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	// Demo tier is told to upgrade.
	rec := ts.request(t, http.MethodGet, "/api/portfolios", ts.token(t, "user-1", types.TierDemo), nil)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, types.ErrCodePaymentRequired, decodeError(t, rec).Code)

	// Premium passes.
	rec = ts.request(t, http.MethodGet, "/api/portfolios", ts.token(t, "user-1", types.TierPremium), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Exempt passes everything.
	rec = ts.request(t, http.MethodGet, "/api/portfolios", ts.token(t, "admin", types.TierExempt), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestQuoteEndpointDemoTier(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec := ts.request(t, http.MethodGet, "/api/stocks/quote/EQNR.OL", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var quote types.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.Equal(t, types.SourceSynthetic, quote.Source, "demo sessions get placeholder data")
}

func TestQuoteEndpointPremiumTier(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec := ts.request(t, http.MethodGet, "/api/stocks/quote/EQNR.OL", ts.token(t, "user-1", types.TierPremium), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var quote types.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.Equal(t, types.SourceLive, quote.Source)
}

func TestDemoQuotaEnforced(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	quota, err := ratelimit.NewQuotaTracker(&ratelimit.QuotaTrackerConfig{
		Redis:      client,
		DailyQuota: 2,
	})
	require.NoError(t, err)

	ts := newTestServer(t, quota, nil)

	for i := 0; i < 2; i++ {
		rec := ts.request(t, http.MethodGet, "/api/stocks/quote/EQNR.OL", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-Quota-Limit"))
	}

	rec := ts.request(t, http.MethodGet, "/api/stocks/quote/EQNR.OL", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, types.ErrCodeQuotaExceeded, decodeError(t, rec).Code)
}

func TestPremiumTierNotMetered(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	quota, err := ratelimit.NewQuotaTracker(&ratelimit.QuotaTrackerConfig{
		Redis:      client,
		DailyQuota: 1,
	})
	require.NoError(t, err)

	ts := newTestServer(t, quota, nil)
	token := ts.token(t, "user-1", types.TierPremium)

	for i := 0; i < 3; i++ {
		rec := ts.request(t, http.MethodGet, "/api/stocks/quote/EQNR.OL", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Quota-Limit"))
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rateCfg := &config.RateLimitConfig{DemoRPS: 1, PremiumRPS: 1, Burst: 2}
	ts := newTestServer(t, nil, rateCfg)

	for i := 0; i < 2; i++ {
		rec := ts.request(t, http.MethodGet, "/api/pricing", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := ts.request(t, http.MethodGet, "/api/pricing", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, types.ErrCodeRateLimitExceeded, decodeError(t, rec).Code)
}

func TestWebhookPassesRawBodyAndSignature(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	body := []byte(`{"id":"evt-1","type":"payment.succeeded","userId":"user-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/billing/webhook", bytes.NewReader(body))
	req.RemoteAddr = "192.0.2.10:54321"
	req.Header.Set(webhookSignatureHeader, "abcdef")
	rec := httptest.NewRecorder()
	ts.server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, ts.billing.webhookBody, "the exact raw bytes must reach the HMAC check")
	assert.Equal(t, "abcdef", ts.billing.webhookSig)
}

func TestWebhookBadSignature(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/billing/webhook", bytes.NewReader([]byte(`{}`)))
	req.RemoteAddr = "192.0.2.10:54321"
	req.Header.Set(webhookSignatureHeader, "bad")
	rec := httptest.NewRecorder()
	ts.server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestErrorMessagesLocalized(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	// Default is Norwegian.
	rec := ts.request(t, http.MethodGet, "/api/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "innlogget")

	// English on request.
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.RemoteAddr = "192.0.2.10:54321"
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	englishRec := httptest.NewRecorder()
	ts.server.Router().ServeHTTP(englishRec, req)
	assert.Contains(t, decodeError(t, englishRec).Message, "logged in")
}

func TestCreateAlertEndpoint(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	token := ts.token(t, "user-1", types.TierPremium)

	rec := ts.request(t, http.MethodPost, "/api/alerts", token, map[string]interface{}{
		"symbol": "EQNR.OL", "condition": "above", "threshold": 300.0,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var alert models.PriceAlert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alert))
	assert.Equal(t, types.AlertAbove, alert.Condition)
}

func TestUnknownSymbolReturns404(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	token := ts.token(t, "user-1", types.TierPremium)

	rec := ts.request(t, http.MethodGet, "/api/stocks/quote/UNKNOWN", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, types.ErrCodeNotFound, decodeError(t, rec).Code)
}

func TestNewsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec := ts.request(t, http.MethodGet, "/api/news", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Børsmelding")
}

func TestPricingEndpointPublic(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec := ts.request(t, http.MethodGet, "/api/pricing", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "premium-monthly")
}

func TestNotificationsEndpoints(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	token := ts.token(t, "user-1", types.TierDemo)

	rec := ts.request(t, http.MethodGet, "/api/notifications", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Notifications []*models.Notification `json:"notifications"`
		Unread        int64                  `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Notifications, 1)
	assert.Equal(t, int64(1), resp.Unread)

	rec = ts.request(t, http.MethodPost, "/api/notifications/read-all", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
