// Package ticker derives a bounded, most-recent-per-symbol display list from
// a stream of trade events.
package ticker

import (
	"sort"
	"sync"

	"crypto-dashboard/internal/domain"
)

// DefaultLimit is how many entries the projection exposes.
const DefaultLimit = 6

// Book holds the reducer state: the latest event per symbol plus a
// "previous price" side table used for change computation. The side table's
// lifetime is the active symbol subscription; Reset discards it when the
// subscription set changes.
//
// Apply is expected to be called from a single goroutine (the stream
// client's delivery path); reads may come from anywhere.
type Book struct {
	mu     sync.RWMutex
	latest map[string]domain.TradeEvent
	change map[string]float64
	prev   map[string]float64
	limit  int
}

// NewBook creates an empty book. limit <= 0 selects DefaultLimit.
func NewBook(limit int) *Book {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Book{
		latest: make(map[string]domain.TradeEvent),
		change: make(map[string]float64),
		prev:   make(map[string]float64),
		limit:  limit,
	}
}

// Apply folds one event into the book. The entry for the event's symbol is
// overwritten last-write-wins by arrival order, not by embedded timestamp.
// The percent change is computed against the previously observed price for
// that symbol; the first observation seeds the side table and reports 0.
// The comparison base advances on every event.
func (b *Book) Apply(event domain.TradeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	changePct := 0.0
	if prev, ok := b.prev[event.Symbol]; ok && prev != 0 {
		changePct = (event.Price - prev) / prev * 100
	}
	b.prev[event.Symbol] = event.Price

	b.latest[event.Symbol] = event
	b.change[event.Symbol] = changePct
}

// Entries projects the current state into the display list: all entries
// sorted by event timestamp descending, truncated to the book's limit.
func (b *Book) Entries() []domain.LiveTickerEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := make([]domain.TradeEvent, 0, len(b.latest))
	for _, ev := range b.latest {
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].EventTime > events[j].EventTime
	})

	if len(events) > b.limit {
		events = events[:b.limit]
	}

	entries := make([]domain.LiveTickerEntry, len(events))
	for i, ev := range events {
		entries[i] = domain.LiveTickerEntry{
			Symbol:    ev.Symbol,
			Price:     ev.Price,
			ChangePct: b.change[ev.Symbol],
			Quantity:  ev.Quantity,
			UpdatedAt: ev.EventTime,
		}
	}
	return entries
}

// Len reports how many symbols have been observed.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.latest)
}

// LastUpdate returns the newest event timestamp observed, 0 if none.
func (b *Book) LastUpdate() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var last int64
	for _, ev := range b.latest {
		if ev.EventTime > last {
			last = ev.EventTime
		}
	}
	return last
}

// Reset discards all state, including the previous-price side table. Called
// when the subscription set changes.
func (b *Book) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest = make(map[string]domain.TradeEvent)
	b.change = make(map[string]float64)
	b.prev = make(map[string]float64)
}
