package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aksjeradar/internal/types"
)

// TickRepository stores intraday price ticks in ClickHouse. The table is
// append-only; the poller writes a batch per cycle and the history
// endpoints read time ranges per symbol.
type TickRepository struct {
	db *ClickHouseDB
}

// NewTickRepository creates a new tick repository
func NewTickRepository(db *ClickHouseDB) *TickRepository {
	return &TickRepository{db: db}
}

// InsertBatch appends a batch of ticks
func (r *TickRepository) InsertBatch(ctx context.Context, ticks []*types.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO price_ticks (symbol, price, volume, source, timestamp)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare tick batch: %w", err)
	}

	for _, t := range ticks {
		if err := batch.Append(t.Symbol, t.Price, t.Volume, string(t.Source), t.Timestamp); err != nil {
			return fmt.Errorf("failed to append tick: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send tick batch: %w", err)
	}
	return nil
}

// History returns ticks for a symbol in the [from, to) range, oldest
// first, capped at limit.
func (r *TickRepository) History(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*types.Tick, error) {
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}

	query := `
		SELECT symbol, price, volume, source, timestamp
		FROM price_ticks
		WHERE symbol = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp
		LIMIT ?
	`

	rows, err := r.db.Conn().Query(ctx, query, symbol, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query tick history: %w", err)
	}
	defer rows.Close()

	var out []*types.Tick
	for rows.Next() {
		var t types.Tick
		var source string
		if err := rows.Scan(&t.Symbol, &t.Price, &t.Volume, &source, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan tick: %w", err)
		}
		t.Source = types.QuoteSource(source)
		out = append(out, &t)
	}
	return out, rows.Err()
}

// LatestPerSymbol returns the most recent tick per symbol, used by the
// market overview to rank movers without hitting the provider.
func (r *TickRepository) LatestPerSymbol(ctx context.Context, symbols []string) (map[string]*types.Tick, error) {
	if len(symbols) == 0 {
		return map[string]*types.Tick{}, nil
	}

	query := `
		SELECT symbol,
		       argMax(price, timestamp) AS price,
		       argMax(volume, timestamp) AS volume,
		       argMax(source, timestamp) AS source,
		       max(timestamp) AS timestamp
		FROM price_ticks
		WHERE symbol IN (?)
		GROUP BY symbol
	`

	rows, err := r.db.Conn().Query(ctx, query, symbols)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest ticks: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*types.Tick, len(symbols))
	for rows.Next() {
		var t types.Tick
		var source string
		if err := rows.Scan(&t.Symbol, &t.Price, &t.Volume, &source, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan tick: %w", err)
		}
		t.Source = types.QuoteSource(source)
		out[t.Symbol] = &t
	}
	return out, rows.Err()
}
