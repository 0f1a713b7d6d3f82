// Package main runs the dashboard server: the polled market-data cache, the
// live trade stream, the watchlist store, and the HTTP API on top of them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"crypto-dashboard/internal/binance"
	"crypto-dashboard/internal/cache"
	"crypto-dashboard/internal/coingecko"
	"crypto-dashboard/internal/config"
	"crypto-dashboard/internal/domain"
	"crypto-dashboard/internal/marketdata"
	"crypto-dashboard/internal/server"
	"crypto-dashboard/internal/storage"
	chstore "crypto-dashboard/internal/storage/clickhouse"
	"crypto-dashboard/internal/storage/memory"
	"crypto-dashboard/internal/storage/migrations"
	pgstore "crypto-dashboard/internal/storage/postgres"
	redisstore "crypto-dashboard/internal/storage/redis"
	"crypto-dashboard/internal/ticker"
	"crypto-dashboard/internal/watchlist"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Flags override env for the settings that vary between runs.
	port := flag.String("port", cfg.Port, "HTTP listen port")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string (optional)")
	redisAddr := flag.String("redis-addr", cfg.RedisAddr, "Redis address (optional)")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string (optional)")
	flag.Parse()
	cfg.Port = *port
	cfg.PostgresDSN = *postgresDSN
	cfg.RedisAddr = *redisAddr
	cfg.ClickhouseDSN = *clickhouseDSN

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := buildWatchlistRepo(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	archive, closeArchive, err := buildArchive(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeArchive()

	client := coingecko.NewClient(
		coingecko.WithBaseURL(cfg.CoinGeckoBaseURL),
		coingecko.WithAPIKey(cfg.CoinGeckoAPIKey),
		coingecko.WithAPIKeyParam(cfg.CoinGeckoAPIKeyParam),
	)

	markets := marketdata.NewService(client, archive, logger)
	defer markets.Stop()

	store := watchlist.NewStore(ctx, repo, logger)

	book := ticker.NewBook(0)
	streamCfg := binance.DefaultConfig()
	streamCfg.Endpoint = cfg.BinanceWSEndpoint
	stream := binance.NewStreamClient(streamCfg, binance.Handlers{
		OnTrade: book.Apply,
		OnStatus: func(state domain.ConnectionState) {
			logger.Info("stream state changed", zap.String("state", string(state)))
		},
		OnError: func(err error) {
			logger.Warn("stream error", zap.Error(err))
		},
	}, logger)

	if err := stream.Connect(ctx, cfg.TickerSymbols); err != nil {
		// The client keeps reconnecting on its own.
		logger.Warn("initial stream connect failed", zap.Error(err))
	}
	defer stream.Disconnect()

	respCache, err := cache.New(32<<20, cfg.ResponseCacheTTL)
	if err != nil {
		return fmt.Errorf("build response cache: %w", err)
	}

	srv := server.New(server.Config{
		Addr:       ":" + cfg.Port,
		CORSOrigin: cfg.CORSOrigin,
		VsCurrency: cfg.VsCurrency,
	}, markets, store, book, stream.State, respCache, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", ":"+cfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
	return nil
}

// buildWatchlistRepo picks the persistence backend: postgres when a DSN is
// set, redis when an address is set, in-memory otherwise.
func buildWatchlistRepo(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.WatchlistRepository, func(), error) {
	switch {
	case cfg.PostgresDSN != "":
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		logger.Info("watchlist persistence: postgres")
		return pgstore.NewWatchlistRepository(pool), pool.Close, nil

	case cfg.RedisAddr != "":
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		repo := redisstore.NewWatchlistRepository(client)
		if err := repo.Ping(ctx); err != nil {
			client.Close()
			return nil, nil, err
		}
		logger.Info("watchlist persistence: redis")
		return repo, func() { client.Close() }, nil

	default:
		logger.Info("watchlist persistence: in-memory")
		return memory.NewWatchlistRepository(), func() {}, nil
	}
}

// buildArchive connects the price-history archive when configured. A nil
// archive disables archiving.
func buildArchive(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.HistoryArchive, func(), error) {
	if cfg.ClickhouseDSN == "" {
		return nil, func() {}, nil
	}

	conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse: %w", err)
	}
	if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	logger.Info("price-history archive: clickhouse")
	return chstore.NewHistoryArchive(conn), func() { conn.Close() }, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}
