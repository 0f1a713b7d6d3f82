package binance

import (
	"fmt"
	"strconv"
	"strings"

	"crypto-dashboard/internal/domain"
)

// Combined-stream wire format. Trade payload fields p and q are decimal
// strings and require numeric parsing.

type combinedStreamMessage struct {
	Stream string       `json:"stream"`
	Data   tradePayload `json:"data"`
}

type tradePayload struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	TradeID      int64  `json:"t"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	BuyerOrderID int64  `json:"b"`
	SellOrderID  int64  `json:"a"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
	Ignore       bool   `json:"M"`
}

// toTradeEvent normalizes a raw trade payload: the symbol is lowercased and
// the string-encoded numeric fields are parsed.
func (p tradePayload) toTradeEvent() (domain.TradeEvent, error) {
	price, err := strconv.ParseFloat(p.Price, 64)
	if err != nil {
		return domain.TradeEvent{}, fmt.Errorf("parse price %q: %w", p.Price, err)
	}
	quantity, err := strconv.ParseFloat(p.Quantity, 64)
	if err != nil {
		return domain.TradeEvent{}, fmt.Errorf("parse quantity %q: %w", p.Quantity, err)
	}

	return domain.TradeEvent{
		Symbol:       strings.ToLower(p.Symbol),
		Price:        price,
		Quantity:     quantity,
		TradeID:      p.TradeID,
		EventTime:    p.EventTime,
		TradeTime:    p.TradeTime,
		IsBuyerMaker: p.IsBuyerMaker,
	}, nil
}

// streamPath builds the combined subscription path for a symbol set, e.g.
// "btcusdt@trade/ethusdt@trade".
func streamPath(symbols []string) string {
	names := make([]string, len(symbols))
	for i, s := range symbols {
		names[i] = strings.ToLower(s) + "@trade"
	}
	return strings.Join(names, "/")
}
