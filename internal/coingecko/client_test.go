package coingecko

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const marketsBody = `[
	{
		"id": "bitcoin",
		"symbol": "btc",
		"name": "Bitcoin",
		"image": "https://example.com/btc.png",
		"current_price": 65000.5,
		"market_cap": 1280000000000,
		"market_cap_rank": 1,
		"total_volume": 35000000000,
		"price_change_percentage_24h": 2.4
	},
	{
		"id": "ethereum",
		"symbol": "eth",
		"name": "Ethereum",
		"image": "https://example.com/eth.png",
		"current_price": 3400.25,
		"market_cap": 410000000000,
		"market_cap_rank": 2,
		"total_volume": 18000000000,
		"price_change_percentage_24h": -1.2
	}
]`

func TestClient_Markets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/markets" {
			t.Errorf("expected /coins/markets, got %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("vs_currency") != "usd" {
			t.Errorf("expected vs_currency=usd, got %s", q.Get("vs_currency"))
		}
		if q.Get("per_page") != "20" {
			t.Errorf("expected per_page=20, got %s", q.Get("per_page"))
		}
		if q.Get("order") != "market_cap_desc" {
			t.Errorf("expected order=market_cap_desc, got %s", q.Get("order"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(marketsBody))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	rows, err := client.Markets(context.Background(), "usd", 20, 1)
	if err != nil {
		t.Fatalf("Markets: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].ID != "bitcoin" {
		t.Errorf("expected bitcoin, got %s", rows[0].ID)
	}
	if rows[0].CurrentPrice != 65000.5 {
		t.Errorf("expected price 65000.5, got %f", rows[0].CurrentPrice)
	}
	if rows[1].PriceChangePct24h != -1.2 {
		t.Errorf("expected change -1.2, got %f", rows[1].PriceChangePct24h)
	}
}

func TestClient_RateLimitRetriedThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(marketsBody))
	}))
	defer server.Close()

	client := NewClient(
		WithBaseURL(server.URL),
		WithRetryDelay(time.Millisecond),
	)

	rows, err := client.Markets(context.Background(), "usd", 20, 1)
	if err != nil {
		t.Fatalf("Markets after one 429: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected 2 requests, got %d", got)
	}
}

func TestClient_RateLimitBudgetExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(
		WithBaseURL(server.URL),
		WithMaxRetries(3),
		WithRetryDelay(time.Millisecond),
	)

	_, err := client.Markets(context.Background(), "usd", 20, 1)
	if err == nil {
		t.Fatal("expected error after exhausting retry budget")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", statusErr.StatusCode)
	}

	// Initial attempt plus three retries.
	if got := calls.Load(); got != 4 {
		t.Errorf("expected 4 requests, got %d", got)
	}
}

func TestClient_NonRateLimitErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRetryDelay(time.Millisecond))

	_, err := client.Markets(context.Background(), "usd", 20, 1)
	if err == nil {
		t.Fatal("expected error on 500")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", statusErr.StatusCode)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected exactly 1 request, got %d", got)
	}
}

func TestClient_APIKeyAttachedAsQueryParam(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("x_cg_demo_api_key"); got != "test-key" {
			t.Errorf("expected api key param, got %q", got)
		}
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithAPIKey("test-key"))

	if _, err := client.Markets(context.Background(), "usd", 20, 1); err != nil {
		t.Fatalf("Markets: %v", err)
	}
}

func TestClient_CoinHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/bitcoin/market_chart" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("days") != "7" {
			t.Errorf("expected days=7, got %s", q.Get("days"))
		}
		if q.Get("interval") != "daily" {
			t.Errorf("expected interval=daily, got %s", q.Get("interval"))
		}
		w.Write([]byte(`{"prices": [[1700000000000, 65000.5], [1700086400000, 66000.0]]}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	series, err := client.CoinHistory(context.Background(), "bitcoin", 7, "daily")
	if err != nil {
		t.Fatalf("CoinHistory: %v", err)
	}
	if series.CoinID != "bitcoin" {
		t.Errorf("expected coin id bitcoin, got %s", series.CoinID)
	}
	if len(series.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(series.Points))
	}
	if series.Points[0].TimestampMs != 1700000000000 {
		t.Errorf("expected ts 1700000000000, got %d", series.Points[0].TimestampMs)
	}
	if series.Points[1].Price != 66000.0 {
		t.Errorf("expected price 66000, got %f", series.Points[1].Price)
	}
}

func TestClient_CoinDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/bitcoin" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("localization") != "false" {
			t.Errorf("expected localization=false")
		}
		w.Write([]byte(`{
			"id": "bitcoin",
			"symbol": "btc",
			"name": "Bitcoin",
			"description": {"en": "Digital gold."},
			"image": {"large": "https://example.com/btc-large.png"},
			"market_cap_rank": 1,
			"market_data": {
				"current_price": {"usd": 65000.5},
				"market_cap": {"usd": 1280000000000},
				"total_volume": {"usd": 35000000000},
				"price_change_percentage_24h": 2.4
			}
		}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	details, err := client.CoinDetails(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("CoinDetails: %v", err)
	}
	if details.ID != "bitcoin" {
		t.Errorf("expected bitcoin, got %s", details.ID)
	}
	if details.Description != "Digital gold." {
		t.Errorf("unexpected description %q", details.Description)
	}
	if details.MarketData == nil {
		t.Fatal("expected market data")
	}
	if details.MarketData.CurrentPrice["usd"] != 65000.5 {
		t.Errorf("expected usd price 65000.5, got %f", details.MarketData.CurrentPrice["usd"])
	}
}

func TestClient_ContextCancellationStopsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(
		WithBaseURL(server.URL),
		WithMaxRetries(10),
		WithRetryDelay(time.Hour),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Markets(ctx, "usd", 20, 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("retry loop did not honor context cancellation")
	}
}
