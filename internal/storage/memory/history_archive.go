package memory

import (
	"context"
	"sort"
	"sync"

	"crypto-dashboard/internal/domain"
	"crypto-dashboard/internal/storage"
)

// HistoryArchive is an in-memory implementation of storage.HistoryArchive.
type HistoryArchive struct {
	mu     sync.RWMutex
	points map[string]map[int64]float64 // (coin, currency) key -> timestamp -> price
}

// NewHistoryArchive creates an empty in-memory history archive.
func NewHistoryArchive() *HistoryArchive {
	return &HistoryArchive{points: make(map[string]map[int64]float64)}
}

// Compile-time interface check.
var _ storage.HistoryArchive = (*HistoryArchive)(nil)

func archiveKey(coinID, vsCurrency string) string {
	return coinID + ":" + vsCurrency
}

// InsertPoints appends points for one asset. Duplicate timestamps overwrite.
func (a *HistoryArchive) InsertPoints(_ context.Context, coinID, vsCurrency string, points []domain.PricePoint) error {
	if coinID == "" {
		return storage.ErrInvalidInput
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key := archiveKey(coinID, vsCurrency)
	byTime, ok := a.points[key]
	if !ok {
		byTime = make(map[int64]float64)
		a.points[key] = byTime
	}
	for _, p := range points {
		byTime[p.TimestampMs] = p.Price
	}
	return nil
}

// GetByCoinID retrieves all points for an asset, ordered by timestamp ASC.
func (a *HistoryArchive) GetByCoinID(_ context.Context, coinID, vsCurrency string) ([]domain.PricePoint, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	byTime, ok := a.points[archiveKey(coinID, vsCurrency)]
	if !ok {
		return nil, nil
	}

	points := make([]domain.PricePoint, 0, len(byTime))
	for ts, price := range byTime {
		points = append(points, domain.PricePoint{TimestampMs: ts, Price: price})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].TimestampMs < points[j].TimestampMs
	})
	return points, nil
}
