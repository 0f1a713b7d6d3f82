package storage

import (
	"context"

	"crypto-dashboard/internal/domain"
)

// WatchlistKey is the fixed identifier under which the watchlist snapshot is
// stored, matching the original persisted record name.
const WatchlistKey = "crypto-watchlist"

// WatchlistRepository persists the watchlist as a whole-document snapshot.
// Every mutation writes the full collection; there are no incremental
// updates.
type WatchlistRepository interface {
	// Load reads the persisted snapshot. Returns ErrNotFound when nothing
	// has been saved yet.
	Load(ctx context.Context) ([]domain.WatchlistItem, error)

	// Save replaces the persisted snapshot with items.
	Save(ctx context.Context, items []domain.WatchlistItem) error
}

// HistoryArchive stores fetched price-history points for later analysis.
// Writes are best-effort from the dashboard's point of view: archive
// failures are logged, never surfaced.
type HistoryArchive interface {
	// InsertPoints appends the series points for one asset and quote
	// currency. Re-inserting the same (coin, timestamp) pair is allowed;
	// readers deduplicate.
	InsertPoints(ctx context.Context, coinID, vsCurrency string, points []domain.PricePoint) error

	// GetByCoinID retrieves all archived points for an asset, ordered by
	// timestamp ASC.
	GetByCoinID(ctx context.Context, coinID, vsCurrency string) ([]domain.PricePoint, error)
}
