package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/aksjeradar/internal/models"
	"github.com/aksjeradar/internal/types"
)

// WatchlistStore is the watchlist persistence surface.
type WatchlistStore interface {
	Create(ctx context.Context, w *models.Watchlist) error
	GetByID(ctx context.Context, watchlistID, userID string) (*models.Watchlist, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Watchlist, error)
	Delete(ctx context.Context, watchlistID, userID string) error
	AddEntry(ctx context.Context, e *models.WatchlistEntry) error
	ListEntries(ctx context.Context, watchlistID string) ([]*models.WatchlistEntry, error)
	RemoveEntry(ctx context.Context, watchlistID, symbol string) error
}

// WatchlistService manages watchlists and serves them with quotes.
type WatchlistService struct {
	watchlists WatchlistStore
	market     *MarketService
	stats      StatRecorder
	logger     *zap.Logger
}

// WatchlistView is a watchlist with current quotes for its symbols.
type WatchlistView struct {
	Watchlist *models.Watchlist `json:"watchlist"`
	Entries   []*WatchlistQuote `json:"entries"`
}

// WatchlistQuote pairs an entry with its current quote. Quote is nil
// when no price is available.
type WatchlistQuote struct {
	Entry *models.WatchlistEntry `json:"entry"`
	Quote *types.Quote           `json:"quote,omitempty"`
}

// NewWatchlistService creates a watchlist service.
func NewWatchlistService(watchlists WatchlistStore, market *MarketService, stats StatRecorder, logger *zap.Logger) *WatchlistService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WatchlistService{
		watchlists: watchlists,
		market:     market,
		stats:      stats,
		logger:     logger.Named("watchlist"),
	}
}

// Create creates a watchlist.
func (s *WatchlistService) Create(ctx context.Context, userID, name string) (*models.Watchlist, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return nil, invalidInput("watchlist name must be 1-100 characters")
	}

	w := &models.Watchlist{UserID: userID, Name: name}
	if err := s.watchlists.Create(ctx, w); err != nil {
		return nil, mapStorageErr(err, "", "a watchlist with this name already exists")
	}
	return w, nil
}

// List lists the user's watchlists.
func (s *WatchlistService) List(ctx context.Context, userID string) ([]*models.Watchlist, error) {
	return s.watchlists.ListByUser(ctx, userID)
}

// Get returns a watchlist with quotes for every entry.
func (s *WatchlistService) Get(ctx context.Context, watchlistID, userID string) (*WatchlistView, error) {
	w, err := s.watchlists.GetByID(ctx, watchlistID, userID)
	if err != nil {
		return nil, mapStorageErr(err, "watchlist not found", "")
	}

	entries, err := s.watchlists.ListEntries(ctx, watchlistID)
	if err != nil {
		return nil, err
	}

	view := &WatchlistView{
		Watchlist: w,
		Entries:   make([]*WatchlistQuote, 0, len(entries)),
	}
	for _, e := range entries {
		wq := &WatchlistQuote{Entry: e}
		if quote, err := s.market.GetQuote(ctx, e.Symbol); err == nil {
			wq.Quote = quote
		}
		view.Entries = append(view.Entries, wq)
	}
	return view, nil
}

// Delete removes a watchlist and its entries.
func (s *WatchlistService) Delete(ctx context.Context, watchlistID, userID string) error {
	if err := s.watchlists.Delete(ctx, watchlistID, userID); err != nil {
		return mapStorageErr(err, "watchlist not found", "")
	}
	return nil
}

// AddSymbol adds a tracked symbol to a watchlist.
func (s *WatchlistService) AddSymbol(ctx context.Context, watchlistID, userID, symbol string) (*models.WatchlistEntry, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, invalidInput("symbol is required")
	}

	if _, err := s.watchlists.GetByID(ctx, watchlistID, userID); err != nil {
		return nil, mapStorageErr(err, "watchlist not found", "")
	}

	e := &models.WatchlistEntry{WatchlistID: watchlistID, Symbol: symbol}
	if err := s.watchlists.AddEntry(ctx, e); err != nil {
		return nil, mapStorageErr(err, "", "symbol is already on this watchlist")
	}

	if s.stats != nil {
		s.stats.RecordStat(ctx, userID, models.StatWatchlistAdds)
	}
	return e, nil
}

// RemoveSymbol removes a symbol from a watchlist.
func (s *WatchlistService) RemoveSymbol(ctx context.Context, watchlistID, userID, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if _, err := s.watchlists.GetByID(ctx, watchlistID, userID); err != nil {
		return mapStorageErr(err, "watchlist not found", "")
	}
	if err := s.watchlists.RemoveEntry(ctx, watchlistID, symbol); err != nil {
		return mapStorageErr(err, "symbol is not on this watchlist", "")
	}
	return nil
}
