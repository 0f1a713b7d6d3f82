package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"crypto-dashboard/internal/domain"
	"crypto-dashboard/internal/marketdata"
	"crypto-dashboard/internal/observability"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type tickerResponse struct {
	Status     domain.ConnectionState   `json:"status"`
	Entries    []domain.LiveTickerEntry `json:"entries"`
	LastUpdate int64                    `json:"last_update,omitempty"`
}

type watchlistResponse struct {
	Items  []domain.WatchlistItem  `json:"items"`
	Rows   []domain.MarketSnapshot `json:"rows"`
	Source domain.DataSource       `json:"source"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// cachedJSON serves the marshalled payload through the response cache when
// one is configured. Cache key is the full request URI.
func (s *Server) cachedJSON(c *gin.Context, status int, payload interface{}) {
	if s.respCache == nil {
		c.JSON(status, payload)
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apiError{Code: "encode_failed", Message: err.Error()})
		return
	}
	s.respCache.Set(c.Request.URL.RequestURI(), body)
	c.Data(status, "application/json; charset=utf-8", body)
}

// serveCached short-circuits the handler on a response-cache hit.
func (s *Server) serveCached(c *gin.Context) bool {
	if s.respCache == nil {
		return false
	}
	body, ok := s.respCache.Get(c.Request.URL.RequestURI())
	if !ok {
		observability.RecordCacheMiss()
		return false
	}
	observability.RecordCacheHit()
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
	return true
}

func (s *Server) handleMarkets(c *gin.Context) {
	if s.serveCached(c) {
		return
	}

	params := marketdata.MarketsParams{
		VsCurrency: c.DefaultQuery("vs_currency", s.vsCurrency),
		PerPage:    intQuery(c, "per_page", 20),
		Page:       intQuery(c, "page", 1),
		SortBy:     marketdata.SortKey(c.DefaultQuery("sort", string(marketdata.SortByMarketCap))),
		TopN:       intQuery(c, "top", 0),
		Search:     c.Query("q"),
	}

	view := s.markets.Markets(c.Request.Context(), params)
	s.cachedJSON(c, http.StatusOK, view)
}

func (s *Server) handleOverview(c *gin.Context) {
	if s.serveCached(c) {
		return
	}
	overview := s.markets.Overview(c.Request.Context(), c.DefaultQuery("vs_currency", s.vsCurrency))
	s.cachedJSON(c, http.StatusOK, overview)
}

func (s *Server) handleCoin(c *gin.Context) {
	id := c.Param("id")
	view, err := s.markets.Coin(c.Request.Context(), id, c.DefaultQuery("vs_currency", s.vsCurrency))
	if err != nil {
		if errors.Is(err, marketdata.ErrNotFound) {
			c.JSON(http.StatusNotFound, apiError{Code: "not_found", Message: "coin " + id + " not found"})
			return
		}
		c.JSON(http.StatusBadGateway, apiError{Code: "upstream_failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleCoinHistory(c *gin.Context) {
	if s.serveCached(c) {
		return
	}

	id := c.Param("id")
	series, err := s.markets.History(c.Request.Context(), id,
		intQuery(c, "days", 7),
		c.Query("interval"),
		c.DefaultQuery("vs_currency", s.vsCurrency))
	if err != nil {
		c.JSON(http.StatusBadGateway, apiError{Code: "upstream_failed", Message: err.Error()})
		return
	}
	s.cachedJSON(c, http.StatusOK, series)
}

func (s *Server) handleTicker(c *gin.Context) {
	status := domain.StateIdle
	if s.streamStatus != nil {
		status = s.streamStatus()
	}

	resp := tickerResponse{Status: status, Entries: []domain.LiveTickerEntry{}}
	if s.book != nil {
		resp.Entries = s.book.Entries()
		resp.LastUpdate = s.book.LastUpdate()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleWatchlist(c *gin.Context) {
	items := s.watchlist.Items()
	rows, source := s.markets.ResolveWatchlist(c.Request.Context(), items, c.DefaultQuery("vs_currency", s.vsCurrency))
	c.JSON(http.StatusOK, watchlistResponse{Items: items, Rows: rows, Source: source})
}

func (s *Server) handleWatchlistAdd(c *gin.Context) {
	var item domain.WatchlistItem
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, apiError{Code: "invalid_body", Message: err.Error()})
		return
	}
	if item.ID == "" {
		c.JSON(http.StatusBadRequest, apiError{Code: "invalid_body", Message: "id is required"})
		return
	}
	if err := s.watchlist.Add(c.Request.Context(), item); err != nil {
		c.JSON(http.StatusInternalServerError, apiError{Code: "persist_failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"items": s.watchlist.Items()})
}

func (s *Server) handleWatchlistRemove(c *gin.Context) {
	if err := s.watchlist.Remove(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, apiError{Code: "persist_failed", Message: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleWatchlistClear(c *gin.Context) {
	if err := s.watchlist.Clear(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, apiError{Code: "persist_failed", Message: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
