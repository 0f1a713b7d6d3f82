package clickhouse

import (
	"context"
	"fmt"

	"crypto-dashboard/internal/domain"
	"crypto-dashboard/internal/storage"
)

// HistoryArchive implements storage.HistoryArchive using ClickHouse. The
// table uses a ReplacingMergeTree keyed by (coin_id, vs_currency,
// timestamp_ms), so re-archiving an overlapping window is harmless; readers
// deduplicate with FINAL.
type HistoryArchive struct {
	conn *Conn
}

// NewHistoryArchive creates a new HistoryArchive.
func NewHistoryArchive(conn *Conn) *HistoryArchive {
	return &HistoryArchive{conn: conn}
}

// Compile-time interface check.
var _ storage.HistoryArchive = (*HistoryArchive)(nil)

// InsertPoints appends the series points for one asset and quote currency.
func (a *HistoryArchive) InsertPoints(ctx context.Context, coinID, vsCurrency string, points []domain.PricePoint) error {
	if coinID == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO coin_price_history (
			coin_id, vs_currency, timestamp_ms, price
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(coinID, vsCurrency, uint64(p.TimestampMs), p.Price); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByCoinID retrieves all archived points for an asset, ordered by
// timestamp ASC.
func (a *HistoryArchive) GetByCoinID(ctx context.Context, coinID, vsCurrency string) ([]domain.PricePoint, error) {
	query := `
		SELECT timestamp_ms, price
		FROM coin_price_history FINAL
		WHERE coin_id = ? AND vs_currency = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := a.conn.Query(ctx, query, coinID, vsCurrency)
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer rows.Close()

	var points []domain.PricePoint
	for rows.Next() {
		var (
			ts    uint64
			price float64
		)
		if err := rows.Scan(&ts, &price); err != nil {
			return nil, fmt.Errorf("scan price history row: %w", err)
		}
		points = append(points, domain.PricePoint{TimestampMs: int64(ts), Price: price})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price history rows: %w", err)
	}
	return points, nil
}
