package marketdata

import (
	_ "embed"
	"encoding/json"

	"crypto-dashboard/internal/domain"
)

//go:embed data/fallback_markets.json
var fallbackJSON []byte

// FallbackMarkets returns the embedded static dataset used whenever polling
// has never succeeded. The slice is freshly decoded on each call so callers
// may sort it in place.
func FallbackMarkets() []domain.MarketSnapshot {
	var markets []domain.MarketSnapshot
	if err := json.Unmarshal(fallbackJSON, &markets); err != nil {
		// The dataset is compiled in; a decode failure is a build defect.
		panic("marketdata: invalid embedded fallback dataset: " + err.Error())
	}
	return markets
}
