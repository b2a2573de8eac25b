package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aksjeradar/internal/types"
	"github.com/redis/go-redis/v9"
)

// PriceChannel is the Redis pub/sub channel carrying quote updates from
// the poller to the WebSocket hub.
const PriceChannel = "prices"

// QuoteCache stores the latest quote per symbol in Redis and fans quote
// updates out over pub/sub.
type QuoteCache struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewQuoteCache creates a new quote cache with the given TTL
func NewQuoteCache(redis *RedisCache, ttl time.Duration) *QuoteCache {
	return &QuoteCache{redis: redis, ttl: ttl}
}

func quoteKey(symbol string) string {
	return "quote:" + symbol
}

// Set stores a quote. Synthetic quotes are stored with a short TTL so a
// recovered provider replaces them quickly, and they keep their source
// label so they are never served as live data.
func (c *QuoteCache) Set(ctx context.Context, quote *types.Quote) error {
	b, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("failed to marshal quote: %w", err)
	}

	ttl := c.ttl
	if quote.Source == types.SourceSynthetic {
		ttl = c.ttl / 2
		if ttl < time.Second {
			ttl = time.Second
		}
	}

	if err := c.redis.Client().Set(ctx, quoteKey(quote.Symbol), b, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache quote: %w", err)
	}
	return nil
}

// Get retrieves the cached quote for a symbol. Found quotes are
// relabeled as cached unless they were synthetic to begin with.
func (c *QuoteCache) Get(ctx context.Context, symbol string) (*types.Quote, bool, error) {
	b, err := c.redis.Client().Get(ctx, quoteKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached quote: %w", err)
	}

	var quote types.Quote
	if err := json.Unmarshal(b, &quote); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal quote: %w", err)
	}

	if quote.Source == types.SourceLive {
		quote.Source = types.SourceCached
	}
	return &quote, true, nil
}

// Publish pushes a quote update onto the realtime channel
func (c *QuoteCache) Publish(ctx context.Context, quote *types.Quote) error {
	b, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("failed to marshal quote: %w", err)
	}
	if err := c.redis.Client().Publish(ctx, PriceChannel, b).Err(); err != nil {
		return fmt.Errorf("failed to publish quote: %w", err)
	}
	return nil
}

// Subscribe subscribes to the realtime quote channel
func (c *QuoteCache) Subscribe(ctx context.Context) *redis.PubSub {
	return c.redis.Client().Subscribe(ctx, PriceChannel)
}
