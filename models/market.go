package models

import (
	"github.com/shopspring/decimal"
)

// Wire shapes consumed from the backend REST API. These are read-only here:
// the backend owns and persists them, this core only fetches and evaluates.

// WatchlistStock is one entry of the user's watchlist
type WatchlistStock struct {
	Symbol string `json:"symbol"`
}

// WatchlistResponse represents GET watchlist
type WatchlistResponse struct {
	Stocks []WatchlistStock `json:"stocks"`
}

// PriceQuote is an ephemeral per-cycle quote from GET price/batch. Never
// persisted by this core.
type PriceQuote struct {
	Symbol       string          `json:"symbol"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
}

// Alert rule types
const (
	AlertTypeAbove = "above"
	AlertTypeBelow = "below"
)

// AlertRule is a user-defined price-threshold condition over a symbol.
// The active->triggered transition is driven by evaluation here; resetting
// a triggered rule back to active is an external action.
type AlertRule struct {
	Symbol      string          `json:"symbol"`
	Type        string          `json:"type"` // above, below
	TargetPrice decimal.Decimal `json:"targetPrice"`
}

// AlertsResponse represents GET user/alerts
type AlertsResponse struct {
	Alerts []AlertRule `json:"alerts"`
}
