package marketdata

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aksjeradar/internal/circuitbreaker"
	"github.com/aksjeradar/internal/metrics"
	"github.com/aksjeradar/internal/retry"
	"github.com/aksjeradar/internal/storage"
	"github.com/aksjeradar/internal/types"
)

// Poller periodically fetches quotes for the configured symbols,
// caches them, appends ticks to the history store, and publishes
// updates for realtime subscribers. When the provider is down it
// serves synthetic quotes so the site keeps working, always labeled
// as such.
type Poller struct {
	provider      Provider
	quoteCache    *storage.QuoteCache
	ticks         *storage.TickRepository
	breaker       *circuitbreaker.CircuitBreaker
	retryCfg      *retry.Config
	logger        *zap.Logger
	symbols       []string
	interval      time.Duration
	allowFallback bool
}

// PollerConfig holds the poller dependencies.
type PollerConfig struct {
	Provider      Provider
	QuoteCache    *storage.QuoteCache
	Ticks         *storage.TickRepository
	Logger        *zap.Logger
	Symbols       []string
	Interval      time.Duration
	AllowFallback bool
}

// NewPoller creates a poller. Ticks may be nil if no history store is
// configured.
func NewPoller(cfg *PollerConfig) *Poller {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		provider:      cfg.Provider,
		quoteCache:    cfg.QuoteCache,
		ticks:         cfg.Ticks,
		breaker:       circuitbreaker.New(circuitbreaker.DefaultConfig("quote-provider"), logger),
		retryCfg:      &retry.Config{MaxAttempts: 2, InitialDelay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2},
		logger:        logger.Named("poller"),
		symbols:       cfg.Symbols,
		interval:      cfg.Interval,
		allowFallback: cfg.AllowFallback,
	}
}

// Run polls until the context is canceled. The first cycle runs
// immediately so the cache is warm before the first request.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("quote poller starting",
		zap.Int("symbols", len(p.symbols)),
		zap.Duration("interval", p.interval))

	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("quote poller stopping")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// poll runs one fetch cycle. Failures never abort the loop.
func (p *Poller) poll(ctx context.Context) {
	var quotes []*types.Quote

	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, p.retryCfg, func(ctx context.Context, attempt int) error {
			fetched, err := p.provider.FetchQuotes(ctx, p.symbols)
			if err != nil {
				return err
			}
			quotes = fetched
			return nil
		})
	})

	if err != nil {
		metrics.ProviderFailuresTotal.Inc()
		if !p.allowFallback {
			p.logger.Warn("quote fetch failed, fallback disabled", zap.Error(err))
			metrics.PollCyclesTotal.WithLabelValues("error").Inc()
			return
		}
		p.logger.Warn("quote fetch failed, serving synthetic quotes", zap.Error(err))
		quotes = SyntheticQuotes(p.symbols, time.Now())
		metrics.FallbackActivationsTotal.Inc()
		metrics.PollCyclesTotal.WithLabelValues("synthetic").Inc()
	} else {
		metrics.PollCyclesTotal.WithLabelValues("live").Inc()
	}

	p.store(ctx, quotes)
}

func (p *Poller) store(ctx context.Context, quotes []*types.Quote) {
	ticks := make([]*types.Tick, 0, len(quotes))

	for _, q := range quotes {
		if err := p.quoteCache.Set(ctx, q); err != nil {
			p.logger.Error("failed to cache quote", zap.String("symbol", q.Symbol), zap.Error(err))
			continue
		}
		if err := p.quoteCache.Publish(ctx, q); err != nil {
			p.logger.Error("failed to publish quote", zap.String("symbol", q.Symbol), zap.Error(err))
		}
		// Synthetic prices are placeholders, not observations; they
		// stay out of the history store.
		if q.Source == types.SourceLive {
			ticks = append(ticks, &types.Tick{
				Symbol:    q.Symbol,
				Price:     q.Price,
				Volume:    q.Volume,
				Source:    q.Source,
				Timestamp: q.Timestamp,
			})
		}
	}

	if p.ticks != nil && len(ticks) > 0 {
		if err := p.ticks.InsertBatch(ctx, ticks); err != nil {
			p.logger.Error("failed to store ticks", zap.Error(err))
		}
	}
}
