package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aksjeradar/internal/cache"
	"github.com/aksjeradar/internal/marketdata"
	"github.com/aksjeradar/internal/metrics"
	"github.com/aksjeradar/internal/types"
)

// QuoteReader is the quote cache surface the market service needs.
type QuoteReader interface {
	Get(ctx context.Context, symbol string) (*types.Quote, bool, error)
}

// TickHistory reads stored price ticks.
type TickHistory interface {
	History(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*types.Tick, error)
	LatestPerSymbol(ctx context.Context, symbols []string) (map[string]*types.Tick, error)
}

// MarketService serves quotes, the market overview, and price history.
type MarketService struct {
	quotes        QuoteReader
	ticks         TickHistory
	memCache      *cache.Cache
	logger        *zap.Logger
	symbols       []string
	symbolSet     map[string]struct{}
	allowFallback bool
}

// Overview is the market landing payload: all tracked symbols plus
// top gainers and losers.
type Overview struct {
	Quotes  []*types.Quote `json:"quotes"`
	Gainers []*types.Quote `json:"gainers"`
	Losers  []*types.Quote `json:"losers"`
	AsOf    time.Time      `json:"asOf"`
}

const (
	overviewCacheKey     = "market:overview"
	demoOverviewCacheKey = "market:overview:demo"
	overviewCacheTTL     = 15 * time.Second
	moverCount           = 3

	// Demo sessions see a capped symbol set.
	demoSymbolCount = 5

	compareMin = 2
	compareMax = 5
)

// NewMarketService creates a market service. ticks may be nil when no
// history store is configured.
func NewMarketService(quotes QuoteReader, ticks TickHistory, memCache *cache.Cache, symbols []string, allowFallback bool, logger *zap.Logger) *MarketService {
	if logger == nil {
		logger = zap.NewNop()
	}
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return &MarketService{
		quotes:        quotes,
		ticks:         ticks,
		memCache:      memCache,
		logger:        logger.Named("market"),
		symbols:       symbols,
		symbolSet:     set,
		allowFallback: allowFallback,
	}
}

// Symbols returns the tracked symbol list.
func (s *MarketService) Symbols() []string {
	return s.symbols
}

// SymbolsForTier returns the symbol list visible to a tier. Demo
// sessions get a capped set.
func (s *MarketService) SymbolsForTier(tier types.AccessTier) []string {
	if tier == types.TierDemo && len(s.symbols) > demoSymbolCount {
		return s.symbols[:demoSymbolCount]
	}
	return s.symbols
}

// GetQuote returns the current quote for a symbol. Cache misses fall
// back to a synthetic quote when fallback is enabled; the source label
// always discloses what the caller got.
func (s *MarketService) GetQuote(ctx context.Context, symbol string) (*types.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, invalidInput("symbol is required")
	}
	if _, ok := s.symbolSet[symbol]; !ok {
		return nil, notFound("unknown symbol")
	}

	quote, found, err := s.quotes.Get(ctx, symbol)
	if err != nil {
		s.logger.Warn("quote cache lookup failed", zap.String("symbol", symbol), zap.Error(err))
	}
	if !found {
		if !s.allowFallback {
			return nil, types.NewServiceError(types.ErrCodeServiceUnavailable, "quote temporarily unavailable")
		}
		quote = marketdata.SyntheticQuote(symbol, time.Now())
	}

	metrics.QuotesServedTotal.WithLabelValues(string(quote.Source)).Inc()
	return quote, nil
}

// GetQuoteForTier returns a quote shaped for the caller's tier. Demo
// sessions only see placeholder data for the capped symbol set; real
// prices require a subscription.
func (s *MarketService) GetQuoteForTier(ctx context.Context, symbol string, tier types.AccessTier) (*types.Quote, error) {
	if tier != types.TierDemo {
		return s.GetQuote(ctx, symbol)
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if !s.demoSymbol(symbol) {
		return nil, notFound("unknown symbol")
	}
	quote := marketdata.SyntheticQuote(symbol, time.Now())
	metrics.QuotesServedTotal.WithLabelValues(string(quote.Source)).Inc()
	return quote, nil
}

// GetQuotes returns quotes for a batch of symbols. Unknown symbols are
// reported in the error; the caller gets all or nothing.
func (s *MarketService) GetQuotes(ctx context.Context, symbols []string, tier types.AccessTier) ([]*types.Quote, error) {
	if len(symbols) == 0 {
		return nil, invalidInput("at least one symbol is required")
	}
	quotes := make([]*types.Quote, 0, len(symbols))
	for _, symbol := range symbols {
		quote, err := s.GetQuoteForTier(ctx, symbol, tier)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, quote)
	}
	return quotes, nil
}

// Compare returns quotes for a small set of symbols side by side.
func (s *MarketService) Compare(ctx context.Context, symbols []string) ([]*types.Quote, error) {
	if len(symbols) < compareMin || len(symbols) > compareMax {
		return nil, invalidInput("compare takes 2-5 symbols")
	}
	quotes := make([]*types.Quote, 0, len(symbols))
	for _, symbol := range symbols {
		quote, err := s.GetQuote(ctx, symbol)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, quote)
	}
	return quotes, nil
}

// Search matches tracked symbols by substring.
func (s *MarketService) Search(ctx context.Context, query string, tier types.AccessTier) []string {
	query = strings.ToUpper(strings.TrimSpace(query))
	visible := s.SymbolsForTier(tier)
	if query == "" {
		return visible
	}
	matches := make([]string, 0, len(visible))
	for _, symbol := range visible {
		if strings.Contains(symbol, query) {
			matches = append(matches, symbol)
		}
	}
	return matches
}

func (s *MarketService) demoSymbol(symbol string) bool {
	for _, visible := range s.SymbolsForTier(types.TierDemo) {
		if visible == symbol {
			return true
		}
	}
	return false
}

// GetOverview returns quotes for every tracked symbol plus movers.
// Symbols missing from the quote cache are served from the last stored
// tick before falling back to synthetic, so a brief cache outage does
// not blank out real prices. The result is cached in-process briefly
// since every landing page hit requests it.
func (s *MarketService) GetOverview(ctx context.Context) (*Overview, error) {
	if cached, ok := s.memCache.Get(overviewCacheKey); ok {
		return cached.(*Overview), nil
	}

	bySymbol := make(map[string]*types.Quote, len(s.symbols))
	var missing []string
	for _, symbol := range s.symbols {
		quote, found, err := s.quotes.Get(ctx, symbol)
		if err != nil {
			s.logger.Warn("quote cache lookup failed", zap.String("symbol", symbol), zap.Error(err))
		}
		if found {
			bySymbol[symbol] = quote
			continue
		}
		missing = append(missing, symbol)
	}
	for symbol, quote := range s.latestStoredQuotes(ctx, missing) {
		bySymbol[symbol] = quote
	}

	quotes := make([]*types.Quote, 0, len(s.symbols))
	for _, symbol := range s.symbols {
		quote, ok := bySymbol[symbol]
		if !ok {
			if !s.allowFallback {
				// A single unavailable symbol should not empty the overview.
				s.logger.Warn("overview quote unavailable", zap.String("symbol", symbol))
				continue
			}
			quote = marketdata.SyntheticQuote(symbol, time.Now())
		}
		metrics.QuotesServedTotal.WithLabelValues(string(quote.Source)).Inc()
		quotes = append(quotes, quote)
	}

	overview := &Overview{
		Quotes:  quotes,
		Gainers: topMovers(quotes, true),
		Losers:  topMovers(quotes, false),
		AsOf:    time.Now(),
	}
	s.memCache.Set(overviewCacheKey, overview, overviewCacheTTL, "market")
	return overview, nil
}

// latestStoredQuotes resolves symbols missing from the quote cache to
// their last stored tick, labeled cached since the price is stale.
func (s *MarketService) latestStoredQuotes(ctx context.Context, symbols []string) map[string]*types.Quote {
	if len(symbols) == 0 || s.ticks == nil {
		return nil
	}
	latest, err := s.ticks.LatestPerSymbol(ctx, symbols)
	if err != nil {
		s.logger.Warn("latest tick lookup failed", zap.Error(err))
		return nil
	}
	out := make(map[string]*types.Quote, len(latest))
	for symbol, tick := range latest {
		out[symbol] = &types.Quote{
			Symbol:    symbol,
			Price:     tick.Price,
			Volume:    tick.Volume,
			Currency:  "NOK",
			Source:    types.SourceCached,
			Timestamp: tick.Timestamp,
		}
	}
	return out
}

// GetOverviewForTier returns the overview shaped for the caller's
// tier. Demo sessions get placeholder quotes for the capped symbol set
// and no movers.
func (s *MarketService) GetOverviewForTier(ctx context.Context, tier types.AccessTier) (*Overview, error) {
	if tier != types.TierDemo {
		return s.GetOverview(ctx)
	}

	if cached, ok := s.memCache.Get(demoOverviewCacheKey); ok {
		return cached.(*Overview), nil
	}

	overview := &Overview{
		Quotes: marketdata.SyntheticQuotes(s.SymbolsForTier(tier), time.Now()),
		AsOf:   time.Now(),
	}
	s.memCache.Set(demoOverviewCacheKey, overview, overviewCacheTTL, "market")
	return overview, nil
}

// GetHistory returns stored ticks for a symbol in a time range.
func (s *MarketService) GetHistory(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*types.Tick, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if _, ok := s.symbolSet[symbol]; !ok {
		return nil, notFound("unknown symbol")
	}
	if s.ticks == nil {
		return nil, types.NewServiceError(types.ErrCodeServiceUnavailable, "history is not available")
	}
	if to.IsZero() {
		to = time.Now()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}
	if !from.Before(to) {
		return nil, invalidInput("from must be before to")
	}

	return s.ticks.History(ctx, symbol, from, to, limit)
}

// topMovers returns the top symbols by percent change. Synthetic
// quotes carry no real change and are excluded.
func topMovers(quotes []*types.Quote, gainers bool) []*types.Quote {
	movers := make([]*types.Quote, 0, len(quotes))
	for _, q := range quotes {
		if q.Source == types.SourceSynthetic {
			continue
		}
		movers = append(movers, q)
	}

	sort.SliceStable(movers, func(i, j int) bool {
		if gainers {
			return movers[i].ChangePercent > movers[j].ChangePercent
		}
		return movers[i].ChangePercent < movers[j].ChangePercent
	})

	if len(movers) > moverCount {
		movers = movers[:moverCount]
	}
	return movers
}
