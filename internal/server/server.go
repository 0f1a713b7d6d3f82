// Package server exposes the reconciled dashboard data over an HTTP JSON
// API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crypto-dashboard/internal/cache"
	"crypto-dashboard/internal/domain"
	"crypto-dashboard/internal/marketdata"
	"crypto-dashboard/internal/observability"
	"crypto-dashboard/internal/ticker"
	"crypto-dashboard/internal/watchlist"
)

// StreamStatus reports the streaming client's current connection state.
type StreamStatus func() domain.ConnectionState

// Server wires the router, services, and middleware.
type Server struct {
	engine       *gin.Engine
	markets      *marketdata.Service
	watchlist    *watchlist.Store
	book         *ticker.Book
	streamStatus StreamStatus
	respCache    *cache.Cache
	logger       *zap.Logger
	vsCurrency   string

	http *http.Server
}

// Config configures the HTTP server.
type Config struct {
	Addr       string
	CORSOrigin string
	VsCurrency string
}

// New builds the server. respCache may be nil to disable response caching;
// streamStatus may be nil when no stream is running.
func New(cfg Config, markets *marketdata.Service, store *watchlist.Store, book *ticker.Book,
	streamStatus StreamStatus, respCache *cache.Cache, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.VsCurrency == "" {
		cfg.VsCurrency = "usd"
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	s := &Server{
		engine:       engine,
		markets:      markets,
		watchlist:    store,
		book:         book,
		streamStatus: streamStatus,
		respCache:    respCache,
		logger:       logger,
		vsCurrency:   cfg.VsCurrency,
	}

	engine.Use(requestIDMiddleware())
	engine.Use(requestLogger(logger))
	engine.Use(metricsMiddleware())
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware(cfg.CORSOrigin))

	engine.GET("/health", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(observability.Handler()))

	api := engine.Group("/api")
	{
		api.GET("/markets", s.handleMarkets)
		api.GET("/overview", s.handleOverview)
		api.GET("/coins/:id", s.handleCoin)
		api.GET("/coins/:id/history", s.handleCoinHistory)
		api.GET("/ticker", s.handleTicker)
		api.GET("/watchlist", s.handleWatchlist)
		api.POST("/watchlist", s.handleWatchlistAdd)
		api.DELETE("/watchlist", s.handleWatchlistClear)
		api.DELETE("/watchlist/:id", s.handleWatchlistRemove)
	}

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Engine exposes the router, used by tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
