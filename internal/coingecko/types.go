package coingecko

import "crypto-dashboard/internal/domain"

// Wire formats for API responses.

type marketRow struct {
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

func (r marketRow) toSnapshot() domain.MarketSnapshot {
	return domain.MarketSnapshot{
		ID:                r.ID,
		Symbol:            r.Symbol,
		Name:              r.Name,
		Image:             r.Image,
		CurrentPrice:      r.CurrentPrice,
		MarketCap:         r.MarketCap,
		MarketCapRank:     r.MarketCapRank,
		TotalVolume:       r.TotalVolume,
		PriceChangePct24h: r.PriceChangePct24h,
	}
}

// marketChart mirrors the /market_chart response: rows of [timestamp, value].
type marketChart struct {
	Prices       [][2]float64 `json:"prices"`
	MarketCaps   [][2]float64 `json:"market_caps"`
	TotalVolumes [][2]float64 `json:"total_volumes"`
}

func (m marketChart) toSeries(id string, days int, interval string) *domain.CoinHistorySeries {
	series := &domain.CoinHistorySeries{
		CoinID:   id,
		Days:     days,
		Interval: interval,
		Points:   make([]domain.PricePoint, len(m.Prices)),
	}
	for i, p := range m.Prices {
		series.Points[i] = domain.PricePoint{
			TimestampMs: int64(p[0]),
			Price:       p[1],
		}
	}
	return series
}

type coinDetailsResponse struct {
	ID          string `json:"id"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Description struct {
		En string `json:"en"`
	} `json:"description"`
	Image struct {
		Large string `json:"large"`
		Small string `json:"small"`
		Thumb string `json:"thumb"`
	} `json:"image"`
	MarketData *struct {
		CurrentPrice      map[string]float64 `json:"current_price"`
		MarketCap         map[string]float64 `json:"market_cap"`
		High24h           map[string]float64 `json:"high_24h"`
		Low24h            map[string]float64 `json:"low_24h"`
		PriceChangePct24h float64            `json:"price_change_percentage_24h"`
		CirculatingSupply float64            `json:"circulating_supply"`
		TotalSupply       *float64           `json:"total_supply"`
	} `json:"market_data"`
}

func (d coinDetailsResponse) toDomain() *domain.CoinDetails {
	details := &domain.CoinDetails{
		ID:          d.ID,
		Symbol:      d.Symbol,
		Name:        d.Name,
		Description: d.Description.En,
		Image: domain.CoinImage{
			Large: d.Image.Large,
			Small: d.Image.Small,
			Thumb: d.Image.Thumb,
		},
	}
	if d.MarketData != nil {
		details.MarketData = &domain.CoinMarketData{
			CurrentPrice:      d.MarketData.CurrentPrice,
			MarketCap:         d.MarketData.MarketCap,
			High24h:           d.MarketData.High24h,
			Low24h:            d.MarketData.Low24h,
			PriceChangePct24h: d.MarketData.PriceChangePct24h,
			CirculatingSupply: d.MarketData.CirculatingSupply,
			TotalSupply:       d.MarketData.TotalSupply,
		}
	}
	return details
}
