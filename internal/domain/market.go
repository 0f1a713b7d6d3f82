package domain

// MarketSnapshot is one tradable asset's latest known state from the polling
// API. Snapshots are immutable per fetch and superseded wholesale on each
// successful refetch; there are no partial-field updates.
type MarketSnapshot struct {
	ID                string  `json:"id"`
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name"`
	Image             string  `json:"image"`
	CurrentPrice      float64 `json:"current_price"`
	MarketCap         float64 `json:"market_cap"`
	MarketCapRank     int     `json:"market_cap_rank"`
	TotalVolume       float64 `json:"total_volume"`
	PriceChangePct24h float64 `json:"price_change_percentage_24h"`
}

// DataSource indicates where a rendered market view came from.
type DataSource string

const (
	// SourceLive means the view was built from successfully polled data.
	SourceLive DataSource = "live"
	// SourceFallback means polling has never succeeded and the embedded
	// fallback dataset is being served instead.
	SourceFallback DataSource = "fallback"
)
