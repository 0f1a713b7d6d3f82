package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"crypto-dashboard/internal/domain"
	"crypto-dashboard/internal/storage"
)

// WatchlistRepository implements storage.WatchlistRepository using
// PostgreSQL. The whole collection lives in one JSONB row keyed by
// storage.WatchlistKey; Save upserts the full document.
type WatchlistRepository struct {
	pool *Pool
}

// NewWatchlistRepository creates a new WatchlistRepository.
func NewWatchlistRepository(pool *Pool) *WatchlistRepository {
	return &WatchlistRepository{pool: pool}
}

// Compile-time interface check.
var _ storage.WatchlistRepository = (*WatchlistRepository)(nil)

// Load reads the persisted snapshot. Returns ErrNotFound when no snapshot
// has been saved yet.
func (r *WatchlistRepository) Load(ctx context.Context) ([]domain.WatchlistItem, error) {
	query := `
		SELECT items
		FROM watchlist_snapshots
		WHERE key = $1
	`

	var raw []byte
	err := r.pool.QueryRow(ctx, query, storage.WatchlistKey).Scan(&raw)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("load watchlist snapshot: %w", err)
	}

	var items []domain.WatchlistItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode watchlist snapshot: %w", err)
	}
	return items, nil
}

// Save replaces the persisted snapshot with items.
func (r *WatchlistRepository) Save(ctx context.Context, items []domain.WatchlistItem) error {
	if items == nil {
		items = []domain.WatchlistItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode watchlist snapshot: %w", err)
	}

	query := `
		INSERT INTO watchlist_snapshots (key, items, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET items = EXCLUDED.items, updated_at = now()
	`

	if _, err := r.pool.Exec(ctx, query, storage.WatchlistKey, raw); err != nil {
		return fmt.Errorf("save watchlist snapshot: %w", err)
	}
	return nil
}
