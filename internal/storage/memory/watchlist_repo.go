// Package memory provides in-memory storage adapters, used as the default
// when no external store is configured and as fakes in tests.
package memory

import (
	"context"
	"sync"

	"crypto-dashboard/internal/domain"
	"crypto-dashboard/internal/storage"
)

// WatchlistRepository is an in-memory implementation of
// storage.WatchlistRepository.
type WatchlistRepository struct {
	mu    sync.RWMutex
	items []domain.WatchlistItem
	saved bool
}

// NewWatchlistRepository creates an empty in-memory watchlist repository.
func NewWatchlistRepository() *WatchlistRepository {
	return &WatchlistRepository{}
}

// Compile-time interface check.
var _ storage.WatchlistRepository = (*WatchlistRepository)(nil)

// Load reads the persisted snapshot. Returns ErrNotFound before the first Save.
func (r *WatchlistRepository) Load(_ context.Context) ([]domain.WatchlistItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.saved {
		return nil, storage.ErrNotFound
	}
	items := make([]domain.WatchlistItem, len(r.items))
	copy(items, r.items)
	return items, nil
}

// Save replaces the snapshot with items.
func (r *WatchlistRepository) Save(_ context.Context, items []domain.WatchlistItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = make([]domain.WatchlistItem, len(items))
	copy(r.items, items)
	r.saved = true
	return nil
}
