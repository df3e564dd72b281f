// Package provider implements the upstream market-data client that
// produces quote snapshots for the screener.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/macks-labs/coinscreen/internal/models"
)

// Client fetches cryptocurrency listings from a CoinMarketCap-style
// HTTP API.
type Client struct {
	baseURL        string
	apiKey         string
	convert        string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// ClientConfig holds transport tuning for the provider client.
type ClientConfig struct {
	APIKey         string
	Convert        string
	MaxRetries     int
	RetryDelayBase time.Duration
}

// listingsResponse mirrors the provider's listings payload. Missing
// numeric fields decode to zero, which is the documented default.
type listingsResponse struct {
	Data []listing `json:"data"`
}

type listing struct {
	Symbol            string           `json:"symbol"`
	Name              string           `json:"name"`
	CirculatingSupply float64          `json:"circulating_supply"`
	DateAdded         string           `json:"date_added"`
	Quote             map[string]quote `json:"quote"`
}

type quote struct {
	Price            float64 `json:"price"`
	MarketCap        float64 `json:"market_cap"`
	Volume24h        float64 `json:"volume_24h"`
	PercentChange24h float64 `json:"percent_change_24h"`
	PercentChange7d  float64 `json:"percent_change_7d"`
	PercentChange30d float64 `json:"percent_change_30d"`
}

// NewClient creates a provider client.
func NewClient(baseURL string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.Convert == "" {
		cfg.Convert = "USD"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         cfg.APIKey,
		convert:        cfg.Convert,
		httpClient:     &http.Client{Timeout: timeout},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
	}
}

// Fetch retrieves up to limit listings sorted upstream by sortKey in
// sortDir order and maps them to asset quotes. The returned slice
// preserves the upstream order; records the provider sends malformed
// are dropped, while a transport or decode failure fails the whole call.
func (c *Client) Fetch(ctx context.Context, limit int, sortKey, sortDir string) ([]models.AssetQuote, error) {
	u, err := url.Parse(c.baseURL + "/v1/cryptocurrency/listings/latest")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("convert", c.convert)
	if sortKey != "" {
		q.Set("sort", sortKey)
	}
	if sortDir != "" {
		q.Set("sort_dir", sortDir)
	}
	u.RawQuery = q.Encode()

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listings: %w", err)
	}
	defer resp.Body.Close()

	var payload listingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode listings: %w", err)
	}

	quotes := make([]models.AssetQuote, 0, len(payload.Data))
	for _, l := range payload.Data {
		aq := mapListing(l, c.convert)
		if aq.Validate() != nil {
			continue
		}
		quotes = append(quotes, aq)
	}
	return quotes, nil
}

func mapListing(l listing, convert string) models.AssetQuote {
	aq := models.AssetQuote{
		Symbol:            strings.ToUpper(l.Symbol),
		Name:              l.Name,
		CirculatingSupply: l.CirculatingSupply,
	}
	if pq, ok := l.Quote[convert]; ok {
		aq.Price = pq.Price
		aq.MarketCap = pq.MarketCap
		aq.Volume24h = pq.Volume24h
		aq.PercentChange24h = pq.PercentChange24h
		aq.PercentChange7d = pq.PercentChange7d
		aq.PercentChange30d = pq.PercentChange30d
	}
	// date_added is optional upstream; an unparseable value is treated
	// as unknown, which the evaluator handles fail-closed.
	if l.DateAdded != "" {
		if ts, err := time.Parse(time.RFC3339, l.DateAdded); err == nil {
			aq.LaunchedAt = &ts
		}
	}
	return aq
}

// doRequest performs the HTTP request with linear-backoff retry on
// transport errors, 429 and 5xx responses.
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("X-CMC_PRO_API_KEY", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if sleepErr := sleepCtx(ctx, c.retryDelayBase*time.Duration(i+1)); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			if sleepErr := sleepCtx(ctx, c.retryDelayBase*time.Duration(i+1)); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
