package domain

// PricePoint is one (timestamp, price) sample of a history series.
type PricePoint struct {
	TimestampMs int64   `json:"timestamp_ms"`
	Price       float64 `json:"price"`
}

// CoinHistorySeries is the ordered price series for one asset over a
// requested lookback window and sampling interval. It is wholesale
// replaceable, staleness-governed cached data.
type CoinHistorySeries struct {
	CoinID   string       `json:"coin_id"`
	Days     int          `json:"days"`
	Interval string       `json:"interval"`
	Points   []PricePoint `json:"points"` // ordered by timestamp ASC
}
