// Package coingecko provides a retry-wrapped HTTP client for a
// CoinGecko-compatible market-data API. Rate-limit responses (HTTP 429) are
// retried with exponential backoff; every other failure is propagated to the
// caller. Caching is the responsibility of the layer above.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"crypto-dashboard/internal/domain"
)

// Default configuration values.
const (
	DefaultBaseURL     = "https://api.coingecko.com/api/v3"
	DefaultAPIKeyParam = "x_cg_demo_api_key"
	DefaultTimeout     = 10 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 500 * time.Millisecond
)

// Client issues requests against a CoinGecko-compatible API.
type Client struct {
	baseURL     string
	client      *http.Client
	apiKey      string
	apiKeyParam string
	maxRetries  int
	retryDelay  time.Duration
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL sets the API base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithAPIKey attaches an API credential as a query parameter on every request.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithAPIKeyParam overrides the query parameter name used for the API key.
func WithAPIKeyParam(name string) ClientOption {
	return func(c *Client) {
		c.apiKeyParam = name
	}
}

// WithMaxRetries sets the rate-limit retry budget.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets the initial backoff delay between rate-limit retries.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// NewClient creates a new market-data API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		client:      &http.Client{Timeout: DefaultTimeout},
		apiKeyParam: DefaultAPIKeyParam,
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Markets fetches one page of the market snapshot table, ordered by market
// cap descending.
func (c *Client) Markets(ctx context.Context, vsCurrency string, perPage, page int) ([]domain.MarketSnapshot, error) {
	params := url.Values{}
	params.Set("vs_currency", vsCurrency)
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("page", strconv.Itoa(page))
	params.Set("order", "market_cap_desc")
	params.Set("price_change_percentage", "1h,24h,7d")
	params.Set("sparkline", "false")

	var rows []marketRow
	if err := c.get(ctx, "/coins/markets", params, &rows); err != nil {
		return nil, err
	}

	snapshots := make([]domain.MarketSnapshot, len(rows))
	for i, r := range rows {
		snapshots[i] = r.toSnapshot()
	}
	return snapshots, nil
}

// CoinHistory fetches the price series for one asset over the given lookback
// window. interval may be empty to let the provider choose the sampling.
func (c *Client) CoinHistory(ctx context.Context, id string, days int, interval string) (*domain.CoinHistorySeries, error) {
	params := url.Values{}
	params.Set("days", strconv.Itoa(days))
	if interval != "" {
		params.Set("interval", interval)
	}

	var chart marketChart
	if err := c.get(ctx, "/coins/"+url.PathEscape(id)+"/market_chart", params, &chart); err != nil {
		return nil, err
	}
	return chart.toSeries(id, days, interval), nil
}

// CoinDetails fetches the static descriptive record for one asset.
func (c *Client) CoinDetails(ctx context.Context, id string) (*domain.CoinDetails, error) {
	params := url.Values{}
	params.Set("localization", "false")
	params.Set("tickers", "false")
	params.Set("community_data", "false")
	params.Set("developer_data", "false")
	params.Set("sparkline", "false")

	var details coinDetailsResponse
	if err := c.get(ctx, "/coins/"+url.PathEscape(id), params, &details); err != nil {
		return nil, err
	}
	return details.toDomain(), nil
}

// StatusError is returned for non-2xx responses other than rate limiting.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// get performs one logical GET request. Only HTTP 429 is retried, with the
// delay doubling per attempt; all other failures propagate immediately.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if c.apiKey != "" {
		params.Set(c.apiKeyParam, c.apiKey)
	}
	reqURL := c.baseURL + path + "?" + params.Encode()

	delay := c.retryDelay

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			// Timeouts and transport failures are not retried here;
			// the caller decides whether to try again.
			return fmt.Errorf("http request: %w", err)
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if attempt < c.maxRetries {
				continue
			}
			return fmt.Errorf("rate limited after %d retries: %w", c.maxRetries,
				&StatusError{StatusCode: resp.StatusCode, Body: string(respBody)})
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
		}

		if result != nil {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}
}
