// Package news fetches market news from the exchange's RSS feed.
package news

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/aksjeradar/internal/models"
)

// Client fetches and caches the news feed. The feed is refreshed on a
// schedule; readers always get the last good fetch.
type Client struct {
	feedURL  string
	maxItems int
	client   *http.Client
	logger   *zap.Logger

	mu        sync.RWMutex
	items     []*models.NewsItem
	fetchedAt time.Time
}

// NewClient creates a news client.
func NewClient(feedURL string, maxItems int, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxItems <= 0 {
		maxItems = 25
	}
	return &Client{
		feedURL:  feedURL,
		maxItems: maxItems,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger.Named("news"),
	}
}

// Refresh fetches the feed and replaces the cached items. On error
// the previous items are kept.
func (c *Client) Refresh(ctx context.Context) error {
	items, err := c.fetch(ctx)
	if err != nil {
		c.logger.Warn("news refresh failed, keeping previous items", zap.Error(err))
		return err
	}

	c.mu.Lock()
	c.items = items
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	c.logger.Info("news feed refreshed", zap.Int("items", len(items)))
	return nil
}

// Items returns the cached news items, newest first.
func (c *Client) Items() []*models.NewsItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*models.NewsItem, len(c.items))
	copy(out, c.items)
	return out
}

// FetchedAt returns when the cache was last refreshed.
func (c *Client) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

func (c *Client) fetch(ctx context.Context) ([]*models.NewsItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/rss+xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}

	return c.parse(body)
}

// parse extracts items from an RSS 2.0 document.
func (c *Client) parse(body []byte) ([]*models.NewsItem, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, fmt.Errorf("failed to parse feed XML: %w", err)
	}

	root := doc.SelectElement("rss")
	if root == nil {
		return nil, fmt.Errorf("feed is not RSS")
	}
	channel := root.SelectElement("channel")
	if channel == nil {
		return nil, fmt.Errorf("feed has no channel")
	}

	var items []*models.NewsItem
	for _, el := range channel.SelectElements("item") {
		item := &models.NewsItem{
			Title:       childText(el, "title"),
			Link:        childText(el, "link"),
			Description: childText(el, "description"),
		}
		if item.Title == "" {
			continue
		}
		if pub := childText(el, "pubDate"); pub != "" {
			if ts, err := parsePubDate(pub); err == nil {
				item.PublishedAt = ts
			}
		}
		items = append(items, item)
		if len(items) >= c.maxItems {
			break
		}
	}
	return items, nil
}

func childText(el *etree.Element, name string) string {
	if child := el.SelectElement(name); child != nil {
		return strings.TrimSpace(child.Text())
	}
	return ""
}

// parsePubDate tries the date formats seen in exchange feeds.
func parsePubDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
}
