// Package main backfills the ClickHouse price-history archive for one asset
// from the polling API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"crypto-dashboard/internal/coingecko"
	chstore "crypto-dashboard/internal/storage/clickhouse"
	"crypto-dashboard/internal/storage/migrations"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "backfill: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	coin := flag.String("coin", "bitcoin", "asset identifier to backfill")
	days := flag.Int("days", 30, "lookback window in days")
	interval := flag.String("interval", "daily", "sampling interval (minutely, hourly, daily)")
	vsCurrency := flag.String("vs-currency", "usd", "quote currency")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	baseURL := flag.String("api-base-url", coingecko.DefaultBaseURL, "market-data API base URL")
	apiKey := flag.String("api-key", os.Getenv("COINGECKO_API_KEY"), "optional API credential")
	flag.Parse()

	if *clickhouseDSN == "" {
		return fmt.Errorf("clickhouse-dsn is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	conn, err := chstore.NewConn(ctx, *clickhouseDSN)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
		return err
	}

	client := coingecko.NewClient(
		coingecko.WithBaseURL(*baseURL),
		coingecko.WithAPIKey(*apiKey),
	)

	series, err := client.CoinHistory(ctx, *coin, *days, *interval)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}

	archive := chstore.NewHistoryArchive(conn)
	if err := archive.InsertPoints(ctx, *coin, *vsCurrency, series.Points); err != nil {
		return fmt.Errorf("archive points: %w", err)
	}

	fmt.Printf("archived %d points for %s (%dd, %s)\n", len(series.Points), *coin, *days, *interval)
	return nil
}
