package ticker

import (
	"fmt"
	"math"
	"testing"

	"crypto-dashboard/internal/domain"
)

func trade(symbol string, price float64, eventTime int64) domain.TradeEvent {
	return domain.TradeEvent{
		Symbol:    symbol,
		Price:     price,
		Quantity:  1,
		EventTime: eventTime,
		TradeTime: eventTime,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBook_FirstObservationReportsZeroChange(t *testing.T) {
	book := NewBook(0)
	book.Apply(trade("btcusdt", 100, 1000))

	entries := book.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ChangePct != 0 {
		t.Errorf("expected 0 change on first observation, got %f", entries[0].ChangePct)
	}
	if entries[0].Price != 100 {
		t.Errorf("expected price 100, got %f", entries[0].Price)
	}
}

func TestBook_ChangeBaseAdvancesEveryEvent(t *testing.T) {
	book := NewBook(0)

	// 100 -> 110 is +10% against 100; 110 -> 121 is +10% against 110.
	book.Apply(trade("btcusdt", 100, 1000))
	book.Apply(trade("btcusdt", 110, 2000))

	entries := book.Entries()
	if !almostEqual(entries[0].ChangePct, 10) {
		t.Errorf("expected +10%% after 100->110, got %f", entries[0].ChangePct)
	}

	book.Apply(trade("btcusdt", 121, 3000))
	entries = book.Entries()
	if !almostEqual(entries[0].ChangePct, 10) {
		t.Errorf("expected +10%% after 110->121, got %f", entries[0].ChangePct)
	}
	if entries[0].Price != 121 {
		t.Errorf("expected latest price 121, got %f", entries[0].Price)
	}
}

func TestBook_LastWriteWinsPerSymbol(t *testing.T) {
	book := NewBook(0)
	book.Apply(trade("ethusdt", 2000, 5000))
	book.Apply(trade("ethusdt", 1990, 4000)) // older embedded timestamp still overwrites

	entries := book.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Price != 1990 {
		t.Errorf("expected arrival-order overwrite to 1990, got %f", entries[0].Price)
	}
	if entries[0].UpdatedAt != 4000 {
		t.Errorf("expected updated_at 4000, got %d", entries[0].UpdatedAt)
	}
}

func TestBook_EntriesBoundedAndSortedByRecency(t *testing.T) {
	book := NewBook(0)
	for i := 0; i < 10; i++ {
		sym := fmt.Sprintf("sym%dusdt", i)
		book.Apply(trade(sym, float64(i+1), int64(1000+i)))
	}

	if book.Len() != 10 {
		t.Fatalf("expected 10 symbols observed, got %d", book.Len())
	}

	entries := book.Entries()
	if len(entries) != DefaultLimit {
		t.Fatalf("expected %d entries, got %d", DefaultLimit, len(entries))
	}

	// Most recently updated first.
	if entries[0].Symbol != "sym9usdt" {
		t.Errorf("expected sym9usdt first, got %s", entries[0].Symbol)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].UpdatedAt < entries[i].UpdatedAt {
			t.Errorf("entries not sorted by recency at index %d", i)
		}
	}

	// The oldest symbols fall off the visible list but stay in the book.
	for _, e := range entries {
		if e.Symbol == "sym0usdt" {
			t.Error("expected oldest symbol to be truncated from entries")
		}
	}
}

func TestBook_CustomLimit(t *testing.T) {
	book := NewBook(2)
	book.Apply(trade("a", 1, 1))
	book.Apply(trade("b", 2, 2))
	book.Apply(trade("c", 3, 3))

	entries := book.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestBook_LastUpdate(t *testing.T) {
	book := NewBook(0)
	if book.LastUpdate() != 0 {
		t.Errorf("expected 0 before any event, got %d", book.LastUpdate())
	}

	book.Apply(trade("btcusdt", 100, 7000))
	book.Apply(trade("ethusdt", 200, 6000))
	if book.LastUpdate() != 7000 {
		t.Errorf("expected newest event time 7000, got %d", book.LastUpdate())
	}
}

func TestBook_ResetDiscardsPreviousPrices(t *testing.T) {
	book := NewBook(0)
	book.Apply(trade("btcusdt", 100, 1000))
	book.Apply(trade("btcusdt", 110, 2000))

	book.Reset()
	if book.Len() != 0 {
		t.Fatalf("expected empty book after reset, got %d symbols", book.Len())
	}

	// The old base price must not leak into the new subscription.
	book.Apply(trade("btcusdt", 200, 3000))
	entries := book.Entries()
	if entries[0].ChangePct != 0 {
		t.Errorf("expected 0 change after reset, got %f", entries[0].ChangePct)
	}
}
