// Package watchlist owns the user's tracked-asset collection. The store is
// the single owner of this durable shared state: all mutations are
// synchronous read-modify-write operations on the full collection, and each
// one persists the whole document through the injected repository before
// returning. Read-only views merge the collection against market data by
// identifier lookup and never mutate it.
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"crypto-dashboard/internal/domain"
	"crypto-dashboard/internal/storage"
)

// Store is an explicit state container for the watchlist.
type Store struct {
	repo   storage.WatchlistRepository
	logger *zap.Logger

	mu    sync.Mutex
	items []domain.WatchlistItem
}

// NewStore creates a store rehydrated from the repository. A missing,
// unreadable, or unparseable snapshot is treated as "no saved items" and
// never fails startup.
func NewStore(ctx context.Context, repo storage.WatchlistRepository, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{repo: repo, logger: logger}

	items, err := repo.Load(ctx)
	switch {
	case err == nil:
		s.items = items
	case errors.Is(err, storage.ErrNotFound):
		// First run, nothing saved yet.
	default:
		logger.Warn("failed to load watchlist, starting empty", zap.Error(err))
	}
	return s
}

// Add inserts item unless an item with the same ID is already present, in
// which case the call is a no-op. The full collection is persisted before
// returning.
func (s *Store) Add(ctx context.Context, item domain.WatchlistItem) error {
	if item.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.items {
		if existing.ID == item.ID {
			return nil
		}
	}
	s.items = append(s.items, item)
	return s.persistLocked(ctx)
}

// Remove deletes the item with the given ID. Removing a non-member is a
// no-op and does not rewrite the snapshot.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.items {
		if existing.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return s.persistLocked(ctx)
		}
	}
	return nil
}

// Clear empties the collection and persists the empty snapshot.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	return s.persistLocked(ctx)
}

// Items returns a copy of the current collection.
func (s *Store) Items() []domain.WatchlistItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]domain.WatchlistItem, len(s.items))
	copy(items, s.items)
	return items
}

// Contains reports whether an item with the given ID is tracked.
func (s *Store) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.items {
		if existing.ID == id {
			return true
		}
	}
	return false
}

// persistLocked writes the whole collection. The in-memory mutation stands
// even when persistence fails; the error is returned so callers can surface
// the degraded durability.
func (s *Store) persistLocked(ctx context.Context) error {
	if err := s.repo.Save(ctx, s.items); err != nil {
		s.logger.Error("failed to persist watchlist", zap.Error(err))
		return fmt.Errorf("persist watchlist: %w", err)
	}
	return nil
}
