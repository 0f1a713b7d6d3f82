package domain

// CoinImage holds the provider's image variants for one asset.
type CoinImage struct {
	Large string `json:"large,omitempty"`
	Small string `json:"small,omitempty"`
	Thumb string `json:"thumb,omitempty"`
}

// CoinMarketData is the per-currency market detail block. Maps are keyed by
// lowercase currency code ("usd", "eur", ...).
type CoinMarketData struct {
	CurrentPrice      map[string]float64 `json:"current_price,omitempty"`
	MarketCap         map[string]float64 `json:"market_cap,omitempty"`
	High24h           map[string]float64 `json:"high_24h,omitempty"`
	Low24h            map[string]float64 `json:"low_24h,omitempty"`
	PriceChangePct24h float64            `json:"price_change_percentage_24h"`
	CirculatingSupply float64            `json:"circulating_supply"`
	TotalSupply       *float64           `json:"total_supply,omitempty"`
}

// CoinDetails is the static descriptive record for one asset.
type CoinDetails struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Image       CoinImage       `json:"image"`
	MarketData  *CoinMarketData `json:"market_data,omitempty"`
}
