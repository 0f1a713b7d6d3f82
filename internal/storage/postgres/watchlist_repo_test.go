package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-dashboard/internal/domain"
	"crypto-dashboard/internal/storage"
)

func TestWatchlistRepository_LoadBeforeSave(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewWatchlistRepository(pool)

	_, err := repo.Load(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWatchlistRepository_SaveAndLoad(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewWatchlistRepository(pool)

	items := []domain.WatchlistItem{
		{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin"},
		{ID: "solana", Symbol: "sol", Name: "Solana"},
	}
	require.NoError(t, repo.Save(ctx, items))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, items, loaded)
}

func TestWatchlistRepository_SaveReplacesSnapshot(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewWatchlistRepository(pool)

	require.NoError(t, repo.Save(ctx, []domain.WatchlistItem{
		{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin"},
		{ID: "ethereum", Symbol: "eth", Name: "Ethereum"},
	}))

	// The whole document is replaced, not merged.
	require.NoError(t, repo.Save(ctx, []domain.WatchlistItem{
		{ID: "cardano", Symbol: "ada", Name: "Cardano"},
	}))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "cardano", loaded[0].ID)
}

func TestWatchlistRepository_SaveEmpty(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewWatchlistRepository(pool)

	require.NoError(t, repo.Save(ctx, []domain.WatchlistItem{{ID: "bitcoin"}}))
	require.NoError(t, repo.Save(ctx, nil))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
