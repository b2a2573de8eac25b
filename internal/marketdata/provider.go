// Package marketdata fetches quotes for Oslo Børs tickers, caches
// them, and falls back to clearly labeled synthetic prices when the
// provider is unavailable.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aksjeradar/internal/types"
)

// Provider fetches live quotes from an upstream market data API.
type Provider interface {
	FetchQuotes(ctx context.Context, symbols []string) ([]*types.Quote, error)
}

// HTTPProvider talks to the quote provider's REST API.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPProvider creates a provider client.
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// providerQuote is the provider's wire format for a single quote.
type providerQuote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Volume        int64   `json:"volume"`
	Currency      string  `json:"currency"`
	Timestamp     int64   `json:"timestamp"`
}

type providerResponse struct {
	Quotes []providerQuote `json:"quotes"`
	Error  string          `json:"error,omitempty"`
}

// FetchQuotes fetches quotes for the given symbols in one request.
func (p *HTTPProvider) FetchQuotes(ctx context.Context, symbols []string) ([]*types.Quote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	u := fmt.Sprintf("%s/v1/quotes?symbols=%s", p.baseURL, url.QueryEscape(strings.Join(symbols, ",")))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("X-Api-Key", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quotes: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed providerResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse provider response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("provider error: %s", parsed.Error)
	}

	quotes := make([]*types.Quote, 0, len(parsed.Quotes))
	for _, q := range parsed.Quotes {
		if q.Symbol == "" {
			continue
		}
		ts := time.Unix(q.Timestamp, 0).UTC()
		if q.Timestamp == 0 {
			ts = time.Now().UTC()
		}
		currency := q.Currency
		if currency == "" {
			currency = "NOK"
		}
		quotes = append(quotes, &types.Quote{
			Symbol:        q.Symbol,
			Name:          q.Name,
			Price:         q.Price,
			Change:        q.Change,
			ChangePercent: q.ChangePercent,
			Volume:        q.Volume,
			Currency:      currency,
			Source:        types.SourceLive,
			Timestamp:     ts,
		})
	}
	return quotes, nil
}
