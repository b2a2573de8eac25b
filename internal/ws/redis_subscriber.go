package ws

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/aksjeradar/internal/storage"
	"github.com/aksjeradar/internal/types"
)

// StartRedisSubscriber bridges the Redis price channel to the hub.
// It runs in its own goroutine and stops when the context is
// canceled. Every poller instance publishes to the channel, so the
// hub sees updates regardless of which instance fetched them.
func StartRedisSubscriber(ctx context.Context, quotes *storage.QuoteCache, hub *Hub, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sub := quotes.Subscribe(ctx)
	ch := sub.Channel()

	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var quote types.Quote
				if err := json.Unmarshal([]byte(msg.Payload), &quote); err != nil {
					logger.Warn("failed to decode price update", zap.Error(err))
					continue
				}
				hub.Broadcast(&quote)
			}
		}
	}()
}
