package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aksjeradar/internal/cache"
	"github.com/aksjeradar/internal/models"
)

// PortfolioStore is the portfolio persistence surface.
type PortfolioStore interface {
	Create(ctx context.Context, p *models.Portfolio) error
	GetByID(ctx context.Context, portfolioID, userID string) (*models.Portfolio, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Portfolio, error)
	Rename(ctx context.Context, portfolioID, userID, name string) error
	Delete(ctx context.Context, portfolioID, userID string) error
	UpsertHolding(ctx context.Context, h *models.Holding, trade *models.Trade) error
	ListHoldings(ctx context.Context, portfolioID string) ([]*models.Holding, error)
	DeleteHolding(ctx context.Context, holdingID, portfolioID string, trade *models.Trade) error
	ListTrades(ctx context.Context, userID string, limit int) ([]*models.Trade, error)
}

// PortfolioService manages portfolios, holdings and trades, and
// computes valuations against current quotes.
type PortfolioService struct {
	portfolios PortfolioStore
	market     *MarketService
	stats      StatRecorder
	memCache   *cache.Cache
	logger     *zap.Logger
}

// HoldingValuation is a holding priced at the current quote.
type HoldingValuation struct {
	Holding     *models.Holding `json:"holding"`
	Price       float64         `json:"price"`
	PriceSource string          `json:"priceSource"`
	MarketValue float64         `json:"marketValue"`
	Cost        float64         `json:"cost"`
	Gain        float64         `json:"gain"`
	GainPercent float64         `json:"gainPercent"`
}

// PortfolioValuation is a portfolio priced at current quotes.
type PortfolioValuation struct {
	Portfolio   *models.Portfolio   `json:"portfolio"`
	Holdings    []*HoldingValuation `json:"holdings"`
	MarketValue float64             `json:"marketValue"`
	Cost        float64             `json:"cost"`
	Gain        float64             `json:"gain"`
	GainPercent float64             `json:"gainPercent"`
}

// NewPortfolioService creates a portfolio service.
func NewPortfolioService(portfolios PortfolioStore, market *MarketService, stats StatRecorder, memCache *cache.Cache, logger *zap.Logger) *PortfolioService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PortfolioService{
		portfolios: portfolios,
		market:     market,
		stats:      stats,
		memCache:   memCache,
		logger:     logger.Named("portfolio"),
	}
}

func userCacheTag(userID string) string {
	return "user:" + userID
}

// Create creates a portfolio for the user.
func (s *PortfolioService) Create(ctx context.Context, userID, name string) (*models.Portfolio, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return nil, invalidInput("portfolio name must be 1-100 characters")
	}

	p := &models.Portfolio{UserID: userID, Name: name}
	if err := s.portfolios.Create(ctx, p); err != nil {
		return nil, mapStorageErr(err, "", "a portfolio with this name already exists")
	}
	return p, nil
}

// List lists the user's portfolios.
func (s *PortfolioService) List(ctx context.Context, userID string) ([]*models.Portfolio, error) {
	return s.portfolios.ListByUser(ctx, userID)
}

// Rename renames a portfolio.
func (s *PortfolioService) Rename(ctx context.Context, portfolioID, userID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return invalidInput("portfolio name must be 1-100 characters")
	}
	if err := s.portfolios.Rename(ctx, portfolioID, userID, name); err != nil {
		return mapStorageErr(err, "portfolio not found", "")
	}
	return nil
}

// Delete removes a portfolio and its holdings.
func (s *PortfolioService) Delete(ctx context.Context, portfolioID, userID string) error {
	if err := s.portfolios.Delete(ctx, portfolioID, userID); err != nil {
		return mapStorageErr(err, "portfolio not found", "")
	}
	s.memCache.InvalidateTag(userCacheTag(userID))
	return nil
}

// AddHolding records a buy: the position is created or increased and
// the trade logged.
func (s *PortfolioService) AddHolding(ctx context.Context, portfolioID, userID, symbol string, quantity, price float64) (*models.Holding, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, invalidInput("symbol is required")
	}
	if quantity <= 0 {
		return nil, invalidInput("quantity must be positive")
	}
	if price < 0 {
		return nil, invalidInput("price cannot be negative")
	}

	// Ownership check before touching holdings.
	if _, err := s.portfolios.GetByID(ctx, portfolioID, userID); err != nil {
		return nil, mapStorageErr(err, "portfolio not found", "")
	}

	h := &models.Holding{
		Portfolio: portfolioID,
		Symbol:    symbol,
		Quantity:  quantity,
		CostBasis: price,
	}
	trade := &models.Trade{
		UserID:    userID,
		Portfolio: portfolioID,
		Symbol:    symbol,
		Side:      models.TradeBuy,
		Quantity:  quantity,
		Price:     price,
	}
	if err := s.portfolios.UpsertHolding(ctx, h, trade); err != nil {
		return nil, err
	}

	if s.stats != nil {
		s.stats.RecordStat(ctx, userID, models.StatTradesLogged)
	}
	s.memCache.InvalidateTag(userCacheTag(userID))
	return h, nil
}

// RemoveHolding closes a position, logging the sell.
func (s *PortfolioService) RemoveHolding(ctx context.Context, portfolioID, userID, holdingID string) error {
	if _, err := s.portfolios.GetByID(ctx, portfolioID, userID); err != nil {
		return mapStorageErr(err, "portfolio not found", "")
	}

	holdings, err := s.portfolios.ListHoldings(ctx, portfolioID)
	if err != nil {
		return err
	}
	var target *models.Holding
	for _, h := range holdings {
		if h.ID == holdingID {
			target = h
			break
		}
	}
	if target == nil {
		return notFound("holding not found")
	}

	quote, err := s.market.GetQuote(ctx, target.Symbol)
	price := target.CostBasis
	if err == nil {
		price = quote.Price
	}

	trade := &models.Trade{
		UserID:    userID,
		Portfolio: portfolioID,
		Symbol:    target.Symbol,
		Side:      models.TradeSell,
		Quantity:  target.Quantity,
		Price:     price,
	}
	if err := s.portfolios.DeleteHolding(ctx, holdingID, portfolioID, trade); err != nil {
		return mapStorageErr(err, "holding not found", "")
	}

	if s.stats != nil {
		s.stats.RecordStat(ctx, userID, models.StatTradesLogged)
	}
	s.memCache.InvalidateTag(userCacheTag(userID))
	return nil
}

// Valuation prices a portfolio's holdings at current quotes. Holdings
// priced from synthetic quotes are disclosed via PriceSource.
func (s *PortfolioService) Valuation(ctx context.Context, portfolioID, userID string) (*PortfolioValuation, error) {
	cacheKey := "valuation:" + portfolioID
	if cached, ok := s.memCache.Get(cacheKey); ok {
		v := cached.(*PortfolioValuation)
		if v.Portfolio.UserID == userID {
			return v, nil
		}
	}

	p, err := s.portfolios.GetByID(ctx, portfolioID, userID)
	if err != nil {
		return nil, mapStorageErr(err, "portfolio not found", "")
	}

	holdings, err := s.portfolios.ListHoldings(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	valuation := &PortfolioValuation{
		Portfolio: p,
		Holdings:  make([]*HoldingValuation, 0, len(holdings)),
	}

	for _, h := range holdings {
		price := h.CostBasis
		source := "cost_basis"
		if quote, err := s.market.GetQuote(ctx, h.Symbol); err == nil {
			price = quote.Price
			source = string(quote.Source)
		}

		hv := &HoldingValuation{
			Holding:     h,
			Price:       price,
			PriceSource: source,
			MarketValue: price * h.Quantity,
			Cost:        h.CostBasis * h.Quantity,
		}
		hv.Gain = hv.MarketValue - hv.Cost
		if hv.Cost != 0 {
			hv.GainPercent = hv.Gain / hv.Cost * 100
		}

		valuation.Holdings = append(valuation.Holdings, hv)
		valuation.MarketValue += hv.MarketValue
		valuation.Cost += hv.Cost
	}

	valuation.Gain = valuation.MarketValue - valuation.Cost
	if valuation.Cost != 0 {
		valuation.GainPercent = valuation.Gain / valuation.Cost * 100
	}

	s.memCache.Set(cacheKey, valuation, 30*time.Second, userCacheTag(userID))
	return valuation, nil
}

// ListTrades lists a user's trade log.
func (s *PortfolioService) ListTrades(ctx context.Context, userID string, limit int) ([]*models.Trade, error) {
	return s.portfolios.ListTrades(ctx, userID, limit)
}
