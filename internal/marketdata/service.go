// Package marketdata reconciles polled market data with the embedded
// fallback dataset so consumers always have something to show. Views fall
// back to the static dataset while polling has never succeeded, and keep
// serving the last successful data with a warning flag when a later refetch
// fails.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"crypto-dashboard/internal/coingecko"
	"crypto-dashboard/internal/domain"
	"crypto-dashboard/internal/query"
	"crypto-dashboard/internal/storage"
)

// ErrNotFound is returned when an asset is absent from both the live and
// fallback datasets. It is distinct from "still loading".
var ErrNotFound = errors.New("coin not found")

// SortKey selects the markets-table ordering.
type SortKey string

const (
	SortByMarketCap SortKey = "marketCap"
	SortByPrice     SortKey = "price"
	SortByChange24h SortKey = "change24h"
)

// Cache windows per query kind.
const (
	marketsStaleTime   = 60 * time.Second
	marketsRefetchEach = 60 * time.Second
	historyStaleTime   = 5 * time.Minute
	historyRefetchEach = 60 * time.Second
	detailsStaleTime   = 5 * time.Minute
	detailsRetries     = 2
)

// resolveDepth is how deep the markets table is fetched when resolving a
// single asset or the watchlist, mirroring the dashboard's lookup page size.
const resolveDepth = 100

// MarketsParams parameterizes a markets-table view.
type MarketsParams struct {
	VsCurrency string
	PerPage    int
	Page       int
	SortBy     SortKey
	TopN       int // 0 means no truncation
	// Search filters rows by case-insensitive substring match on name or
	// symbol. Empty means no filtering. The filter applies to the
	// reconciled table, so it searches fallback rows too.
	Search string
}

// MarketsView is a renderable markets table plus its provenance.
type MarketsView struct {
	Rows   []domain.MarketSnapshot `json:"rows"`
	Source domain.DataSource       `json:"source"`
	// Warning is set when the most recent refetch failed and the rows shown
	// are the previous successful result (or the fallback dataset). It maps
	// to the non-blocking banner, never a blocking error screen.
	Warning   bool      `json:"warning"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Overview aggregates the displayed market set.
type Overview struct {
	TotalMarketCap float64                `json:"total_market_cap"`
	TotalVolume24h float64                `json:"total_volume_24h"`
	Best           *domain.MarketSnapshot `json:"best_24h,omitempty"`
	Worst          *domain.MarketSnapshot `json:"worst_24h,omitempty"`
	Source         domain.DataSource      `json:"source"`
	Warning        bool                   `json:"warning"`
}

// CoinView is the merged per-asset detail record.
type CoinView struct {
	Details domain.CoinDetails `json:"details"`
	Source  domain.DataSource  `json:"source"`
}

// Service owns the polled-data cache layer and the merge rules on top of it.
type Service struct {
	client  *coingecko.Client
	archive storage.HistoryArchive
	logger  *zap.Logger

	markets *query.Group[[]domain.MarketSnapshot]
	history *query.Group[*domain.CoinHistorySeries]
	details *query.Group[*domain.CoinDetails]
}

// Option overrides a Service default.
type Option func(*serviceConfig)

type serviceConfig struct {
	markets query.Options
	history query.Options
	details query.Options
}

// WithMarketsOptions overrides the cache windows for the markets query.
func WithMarketsOptions(opts query.Options) Option {
	return func(c *serviceConfig) { c.markets = opts }
}

// WithHistoryOptions overrides the cache windows for history queries.
func WithHistoryOptions(opts query.Options) Option {
	return func(c *serviceConfig) { c.history = opts }
}

// WithDetailsOptions overrides the cache windows for detail queries.
func WithDetailsOptions(opts query.Options) Option {
	return func(c *serviceConfig) { c.details = opts }
}

// NewService wires the cache layer around the API client. archive may be
// nil to disable history archiving.
func NewService(client *coingecko.Client, archive storage.HistoryArchive, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := serviceConfig{
		markets: query.Options{
			StaleTime:       marketsStaleTime,
			RefetchInterval: marketsRefetchEach,
		},
		history: query.Options{
			StaleTime:       historyStaleTime,
			RefetchInterval: historyRefetchEach,
		},
		details: query.Options{
			StaleTime:  detailsStaleTime,
			Retries:    detailsRetries,
			RetryDelay: 500 * time.Millisecond,
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Service{
		client:  client,
		archive: archive,
		logger:  logger,
		markets: query.NewGroup[[]domain.MarketSnapshot](cfg.markets, logger),
		history: query.NewGroup[*domain.CoinHistorySeries](cfg.history, logger),
		details: query.NewGroup[*domain.CoinDetails](cfg.details, logger),
	}
}

// Stop terminates all background refetch loops.
func (s *Service) Stop() {
	s.markets.Stop()
	s.history.Stop()
	s.details.Stop()
}

// marketsResult returns the raw cache snapshot for one markets page.
func (s *Service) marketsResult(ctx context.Context, vsCurrency string, perPage, page int) query.Result[[]domain.MarketSnapshot] {
	key := fmt.Sprintf("markets:%s:%d:%d", vsCurrency, perPage, page)
	q := s.markets.GetOrCreate(ctx, key, func(ctx context.Context) ([]domain.MarketSnapshot, error) {
		return s.client.Markets(ctx, vsCurrency, perPage, page)
	})
	return q.Get(ctx)
}

// Markets builds the markets-table view, reconciled against the fallback
// dataset and sorted per params.
func (s *Service) Markets(ctx context.Context, params MarketsParams) MarketsView {
	if params.VsCurrency == "" {
		params.VsCurrency = "usd"
	}
	if params.PerPage <= 0 {
		params.PerPage = 20
	}
	if params.Page <= 0 {
		params.Page = 1
	}

	res := s.marketsResult(ctx, params.VsCurrency, params.PerPage, params.Page)

	view := MarketsView{Warning: res.Err != nil}
	if res.HasData {
		view.Rows = append([]domain.MarketSnapshot(nil), res.Data...)
		view.Source = domain.SourceLive
		view.UpdatedAt = res.FetchedAt
	} else {
		view.Rows = FallbackMarkets()
		view.Source = domain.SourceFallback
	}

	view.Rows = filterRows(view.Rows, params.Search)
	sortRows(view.Rows, params.SortBy)
	if params.TopN > 0 && len(view.Rows) > params.TopN {
		view.Rows = view.Rows[:params.TopN]
	}
	return view
}

// Overview aggregates the default markets page.
func (s *Service) Overview(ctx context.Context, vsCurrency string) Overview {
	view := s.Markets(ctx, MarketsParams{VsCurrency: vsCurrency, SortBy: SortByMarketCap})

	overview := Overview{Source: view.Source, Warning: view.Warning}
	for i := range view.Rows {
		row := &view.Rows[i]
		overview.TotalMarketCap += row.MarketCap
		overview.TotalVolume24h += row.TotalVolume
		if overview.Best == nil || row.PriceChangePct24h > overview.Best.PriceChangePct24h {
			overview.Best = row
		}
		if overview.Worst == nil || row.PriceChangePct24h < overview.Worst.PriceChangePct24h {
			overview.Worst = row
		}
	}
	return overview
}

// Coin returns the merged detail view for one asset: provider details when
// available, filled from the market row, else synthesized entirely from the
// live or fallback table. Returns ErrNotFound when the asset exists in
// neither dataset.
func (s *Service) Coin(ctx context.Context, id, vsCurrency string) (CoinView, error) {
	if id == "" {
		return CoinView{}, ErrNotFound
	}

	res := s.details.GetOrCreate(ctx, "details:"+id, func(ctx context.Context) (*domain.CoinDetails, error) {
		return s.client.CoinDetails(ctx, id)
	}).Get(ctx)

	row, rowSource, found := s.findSnapshot(ctx, id, vsCurrency)

	if res.HasData && res.Data != nil {
		details := *res.Data
		if found {
			fillFromSnapshot(&details, row, vsCurrency)
		}
		return CoinView{Details: details, Source: domain.SourceLive}, nil
	}

	if !found {
		return CoinView{}, ErrNotFound
	}
	// The source reflects which table the row came from: a view synthesized
	// from the live polled table is still live data.
	return CoinView{Details: snapshotDetails(row, vsCurrency), Source: rowSource}, nil
}

// History returns the cached price series for one asset. Successful fetches
// are archived best-effort.
func (s *Service) History(ctx context.Context, id string, days int, interval, vsCurrency string) (*domain.CoinHistorySeries, error) {
	if days <= 0 {
		days = 7
	}
	key := fmt.Sprintf("history:%s:%d:%s", id, days, interval)
	res := s.history.GetOrCreate(ctx, key, func(ctx context.Context) (*domain.CoinHistorySeries, error) {
		series, err := s.client.CoinHistory(ctx, id, days, interval)
		if err != nil {
			return nil, err
		}
		s.archivePoints(ctx, id, vsCurrency, series.Points)
		return series, nil
	}).Get(ctx)

	if !res.HasData {
		return nil, fmt.Errorf("fetch history for %s: %w", id, res.Err)
	}
	return res.Data, nil
}

// ResolveWatchlist maps watchlist items to their current market rows,
// consulting the live table first and the fallback dataset otherwise.
// Unresolvable items are skipped, not errors.
func (s *Service) ResolveWatchlist(ctx context.Context, items []domain.WatchlistItem, vsCurrency string) ([]domain.MarketSnapshot, domain.DataSource) {
	rows, source := s.resolveTable(ctx, vsCurrency)

	byID := make(map[string]domain.MarketSnapshot, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	resolved := make([]domain.MarketSnapshot, 0, len(items))
	for _, item := range items {
		if row, ok := byID[item.ID]; ok {
			resolved = append(resolved, row)
		}
	}
	return resolved, source
}

// resolveTable returns the deep markets table used for lookups.
func (s *Service) resolveTable(ctx context.Context, vsCurrency string) ([]domain.MarketSnapshot, domain.DataSource) {
	if vsCurrency == "" {
		vsCurrency = "usd"
	}
	res := s.marketsResult(ctx, vsCurrency, resolveDepth, 1)
	if res.HasData {
		return res.Data, domain.SourceLive
	}
	return FallbackMarkets(), domain.SourceFallback
}

func (s *Service) findSnapshot(ctx context.Context, id, vsCurrency string) (domain.MarketSnapshot, domain.DataSource, bool) {
	rows, source := s.resolveTable(ctx, vsCurrency)
	for _, row := range rows {
		if row.ID == id {
			return row, source, true
		}
	}
	return domain.MarketSnapshot{}, source, false
}

func (s *Service) archivePoints(ctx context.Context, id, vsCurrency string, points []domain.PricePoint) {
	if s.archive == nil || len(points) == 0 {
		return
	}
	if vsCurrency == "" {
		vsCurrency = "usd"
	}
	if err := s.archive.InsertPoints(ctx, id, vsCurrency, points); err != nil {
		s.logger.Warn("failed to archive price history",
			zap.String("coin", id), zap.Error(err))
	}
}

// filterRows keeps rows whose name or symbol contains the query,
// case-insensitively. An empty or whitespace query keeps everything.
func filterRows(rows []domain.MarketSnapshot, search string) []domain.MarketSnapshot {
	query := strings.ToLower(strings.TrimSpace(search))
	if query == "" {
		return rows
	}
	filtered := rows[:0]
	for _, row := range rows {
		if strings.Contains(strings.ToLower(row.Name), query) ||
			strings.Contains(strings.ToLower(row.Symbol), query) {
			filtered = append(filtered, row)
		}
	}
	return filtered
}

// sortRows orders rows descending by the selected key. Unknown keys fall
// back to market cap.
func sortRows(rows []domain.MarketSnapshot, key SortKey) {
	var less func(a, b *domain.MarketSnapshot) bool
	switch key {
	case SortByPrice:
		less = func(a, b *domain.MarketSnapshot) bool { return a.CurrentPrice > b.CurrentPrice }
	case SortByChange24h:
		less = func(a, b *domain.MarketSnapshot) bool { return a.PriceChangePct24h > b.PriceChangePct24h }
	default:
		less = func(a, b *domain.MarketSnapshot) bool { return a.MarketCap > b.MarketCap }
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return less(&rows[i], &rows[j])
	})
}

// fillFromSnapshot backfills detail fields the provider left empty from the
// market row, preserving detail-first precedence.
func fillFromSnapshot(details *domain.CoinDetails, row domain.MarketSnapshot, vsCurrency string) {
	if details.Name == "" {
		details.Name = row.Name
	}
	if details.Symbol == "" {
		details.Symbol = row.Symbol
	}
	if details.Image.Large == "" {
		details.Image.Large = row.Image
	}
	if details.MarketData == nil {
		md := snapshotMarketData(row, vsCurrency)
		details.MarketData = &md
	}
}

// snapshotDetails synthesizes a detail record from a market row.
func snapshotDetails(row domain.MarketSnapshot, vsCurrency string) domain.CoinDetails {
	md := snapshotMarketData(row, vsCurrency)
	return domain.CoinDetails{
		ID:         row.ID,
		Symbol:     row.Symbol,
		Name:       row.Name,
		Image:      domain.CoinImage{Large: row.Image},
		MarketData: &md,
	}
}

func snapshotMarketData(row domain.MarketSnapshot, vsCurrency string) domain.CoinMarketData {
	currency := strings.ToLower(vsCurrency)
	if currency == "" {
		currency = "usd"
	}
	return domain.CoinMarketData{
		CurrentPrice:      map[string]float64{currency: row.CurrentPrice},
		MarketCap:         map[string]float64{currency: row.MarketCap},
		PriceChangePct24h: row.PriceChangePct24h,
	}
}
