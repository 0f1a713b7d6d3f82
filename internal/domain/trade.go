package domain

// TradeEvent is one normalized streamed trade. Events are ephemeral: an
// event is superseded by the next event for the same symbol and never
// persisted.
type TradeEvent struct {
	// Symbol is the lowercase trading-pair symbol, the unique join key.
	Symbol string `json:"symbol"`
	// Price and Quantity are parsed from the provider's string encoding.
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	// TradeID is monotonic per symbol per provider.
	TradeID      int64 `json:"trade_id"`
	EventTime    int64 `json:"event_time"` // ms since epoch
	TradeTime    int64 `json:"trade_time"` // ms since epoch
	IsBuyerMaker bool  `json:"is_buyer_maker"`
}

// LiveTickerEntry is the derived per-symbol display record: latest price,
// percent change vs the immediately preceding observed price (0 if none
// observed yet), latest quantity, and last-update timestamp.
type LiveTickerEntry struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	ChangePct float64 `json:"change_pct"`
	Quantity  float64 `json:"quantity"`
	UpdatedAt int64   `json:"updated_at"` // ms since epoch
}

// ConnectionState describes the streaming client's lifecycle. Exactly one
// state is live per client instance.
type ConnectionState string

const (
	StateIdle         ConnectionState = "idle"
	StateConnecting   ConnectionState = "connecting"
	StateOpen         ConnectionState = "open"
	StateReconnecting ConnectionState = "reconnecting"
	StateClosed       ConnectionState = "closed"
)
