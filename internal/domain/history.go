package domain

import "time"

// MarketRow is one resolved market as stored in the history store.
type MarketRow struct {
	ID        string
	Slug      string
	Question  string
	StartTime time.Time
	EndTime   time.Time
	Outcome   Outcome
}

// SnapshotRow is one recorded price observation for a market. BestBid and
// BestAsk are required; LastPrice is the fallback when the book was one-sided.
// A row missing both a usable mid and a last price is malformed and skipped
// during replay.
type SnapshotRow struct {
	MarketID   string
	RecordedAt time.Time
	BestBid    float64
	BestAsk    float64
	LastPrice  float64
	Volume     float64
}

// Mid returns the snapshot mid price and whether one could be derived.
func (s SnapshotRow) Mid() (float64, bool) {
	if s.BestBid > 0 && s.BestAsk > 0 {
		return (s.BestBid + s.BestAsk) / 2, true
	}
	if s.LastPrice > 0 {
		return s.LastPrice, true
	}
	return 0, false
}

// OutcomeRow is one binary outcome in the derived view ordered by market
// start time. Value is 1 for YES (up) and 0 for NO (down).
type OutcomeRow struct {
	MarketID  string
	StartTime time.Time
	Value     int
}

// BacktestConfig is everything a backtest run needs besides the historical
// rows. Identical config plus identical rows must reproduce an identical
// result; Seed pins the RNG used by random rules.
type BacktestConfig struct {
	RunID           string
	StartingBalance float64
	FeeRate         float64
	Rules           []TradingRule
	AOIWindow       int
	Seed            int64
	From            time.Time
	To              time.Time
}

// EquityPoint is one sample of the equity curve: cash balance plus the
// mark-to-market value of open positions after a processed step.
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
}

// BacktestResult is the all-or-nothing output of one backtest run.
type BacktestResult struct {
	RunID            string
	StartingBalance  float64
	FinalBalance     float64
	Trades           []Trade
	EquityCurve      []EquityPoint
	TradeCount       int
	WinRate          float64 // settled positions that paid out above cost basis
	TotalPnL         float64
	MaxDrawdown      float64 // worst peak-to-trough equity drop, fraction of peak
	MarketsProcessed int
	SkippedRows      int
}
