// Package config loads service configuration from environment variables.
package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all runtime settings. Storage backends are optional: with no
// DSN configured the watchlist lives in memory and history archiving is off.
type Config struct {
	Port       string `env:"PORT" envDefault:"8080"`
	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"*"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	VsCurrency string `env:"VS_CURRENCY" envDefault:"usd"`

	CoinGeckoBaseURL     string `env:"COINGECKO_BASE_URL" envDefault:"https://api.coingecko.com/api/v3"`
	CoinGeckoAPIKey      string `env:"COINGECKO_API_KEY"`
	CoinGeckoAPIKeyParam string `env:"COINGECKO_API_KEY_PARAM" envDefault:"x_cg_demo_api_key"`

	BinanceWSEndpoint string   `env:"BINANCE_WS_ENDPOINT" envDefault:"wss://data-stream.binance.vision"`
	TickerSymbols     []string `env:"TICKER_SYMBOLS" envSeparator:"," envDefault:"btcusdt,ethusdt,solusdt"`

	PostgresDSN   string `env:"POSTGRES_DSN"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	ClickhouseDSN string `env:"CLICKHOUSE_DSN"`

	ResponseCacheTTL time.Duration `env:"RESPONSE_CACHE_TTL" envDefault:"5s"`
}

// Load parses the environment.
func Load() (Config, error) {
	var cfg Config
	return cfg, env.Parse(&cfg)
}
