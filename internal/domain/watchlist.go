package domain

// WatchlistItem is a user-chosen tracked asset. The watchlist has set
// semantics keyed by ID: no duplicates. Items are created and removed by
// explicit user action only and persisted as a whole-document snapshot on
// every mutation.
type WatchlistItem struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}
