// Package redis provides a Redis-backed watchlist repository. The watchlist
// is one JSON document under a fixed key, the closest server-side equivalent
// of the original single local-storage record.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"crypto-dashboard/internal/domain"
	"crypto-dashboard/internal/storage"
)

// WatchlistRepository implements storage.WatchlistRepository using Redis.
type WatchlistRepository struct {
	client *redis.Client
}

// NewWatchlistRepository creates a new WatchlistRepository.
func NewWatchlistRepository(client *redis.Client) *WatchlistRepository {
	return &WatchlistRepository{client: client}
}

// Compile-time interface check.
var _ storage.WatchlistRepository = (*WatchlistRepository)(nil)

// Ping checks the connection to the Redis server.
func (r *WatchlistRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Load reads the persisted snapshot. Returns ErrNotFound when the key does
// not exist.
func (r *WatchlistRepository) Load(ctx context.Context) ([]domain.WatchlistItem, error) {
	raw, err := r.client.Get(ctx, storage.WatchlistKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
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

	if err := r.client.Set(ctx, storage.WatchlistKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("save watchlist snapshot: %w", err)
	}
	return nil
}
