package domain

import "time"

// Position is the open holding for one (market, outcome) pair. At most one
// exists per pair; it is created on first buy and removed when quantity
// reaches zero or the market settles.
type Position struct {
	MarketID      string
	Slug          string
	Outcome       Outcome
	Quantity      float64
	AvgEntryPrice float64
	CurrentPrice  float64
	UnrealizedPnL float64
}

// Value returns the mark-to-market value of the position.
func (p Position) Value() float64 {
	return p.Quantity * p.CurrentPrice
}

// Trade is one append-only ledger entry. Immutable once written.
// RuleID is empty for manual and settlement trades.
type Trade struct {
	ID        string
	MarketID  string
	Slug      string
	Side      TradeSide
	Outcome   Outcome
	Price     float64
	Quantity  float64
	Fee       float64
	Total     float64 // cost debited on buys, proceeds credited on sells
	Timestamp time.Time
	RuleID    string
}
