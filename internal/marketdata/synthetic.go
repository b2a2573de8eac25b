package marketdata

import (
	"hash/fnv"
	"time"

	"github.com/aksjeradar/internal/types"
)

// Synthetic prices drift once per bucket so demos look alive without
// becoming random.
const syntheticJitterBucket = 5 * time.Minute

// SyntheticQuote generates a deterministic fallback quote for a
// symbol. The baseline price is a pure function of the symbol name and
// a small jitter derived from the symbol and the current 5-minute
// bucket moves it within ±5 NOK, keeping the price in [100, 200). The
// same symbol in the same bucket always yields the same quote, so
// demos stay stable across restarts. The source label always says
// synthetic; these prices must never be presented as market data.
func SyntheticQuote(symbol string, now time.Time) *types.Quote {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	baseCents := 10500 + int64(h.Sum32()%9000)

	bucket := now.UTC().Truncate(syntheticJitterBucket)
	j := fnv.New32a()
	j.Write([]byte(symbol))
	j.Write([]byte(bucket.Format(time.RFC3339)))
	jitterCents := int64(j.Sum32()%1001) - 500

	price := float64(baseCents+jitterCents) / 100
	change := float64(jitterCents) / 100

	return &types.Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: change / (float64(baseCents) / 100) * 100,
		Volume:        0,
		Currency:      "NOK",
		Source:        types.SourceSynthetic,
		Timestamp:     now.UTC(),
	}
}

// SyntheticQuotes generates fallback quotes for a list of symbols.
func SyntheticQuotes(symbols []string, now time.Time) []*types.Quote {
	out := make([]*types.Quote, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, SyntheticQuote(s, now))
	}
	return out
}
