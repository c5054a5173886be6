package domain

import "time"

// Market is one 5-minute binary up/down prediction market.
type Market struct {
	ID         string
	Slug       string
	Question   string
	TokenYesID string
	TokenNoID  string
	StartTime  time.Time
	EndTime    time.Time
	Active     bool
	Closed     bool
}

// TimeToClose returns the seconds remaining until the market resolves,
// clamped at 0 once the end time has passed.
func (m Market) TimeToClose(now time.Time) float64 {
	if m.EndTime.IsZero() {
		return 0
	}
	s := m.EndTime.Sub(now).Seconds()
	if s < 0 {
		return 0
	}
	return s
}

// Outcome is the binary side of a market.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// Opposite returns the other side.
func (o Outcome) Opposite() Outcome {
	if o == OutcomeYes {
		return OutcomeNo
	}
	return OutcomeYes
}

// BookLevel is one price level of the order book.
type BookLevel struct {
	Price float64
	Size  float64
}

// OrderBook holds the YES-side book of a market.
// Bids sorted descending by price, asks ascending.
type OrderBook struct {
	Bids []BookLevel
	Asks []BookLevel
}

// BestBid returns the highest bid price, or 0 if the side is empty.
func (ob OrderBook) BestBid() float64 {
	if len(ob.Bids) == 0 {
		return 0
	}
	return ob.Bids[0].Price
}

// BestAsk returns the lowest ask price, or 0 if the side is empty.
func (ob OrderBook) BestAsk() float64 {
	if len(ob.Asks) == 0 {
		return 0
	}
	return ob.Asks[0].Price
}

// Midpoint returns the mid price, or 0 if either side is empty.
func (ob OrderBook) Midpoint() float64 {
	bid := ob.BestBid()
	ask := ob.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return (bid + ask) / 2
}

// Spread returns ask minus bid, or 0 if either side is empty.
func (ob OrderBook) Spread() float64 {
	bid := ob.BestBid()
	ask := ob.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return ask - bid
}

// TradeSide marks who crossed the spread in a feed trade.
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// Sign returns +1 for aggressive buys and -1 for aggressive sells.
func (s TradeSide) Sign() float64 {
	if s == SideBuy {
		return 1
	}
	return -1
}

// FeedTrade is one trade observed on the live feed.
type FeedTrade struct {
	Price     float64
	Size      float64
	Side      TradeSide
	Timestamp time.Time
}

// Candle is one OHLCV bar built from feed trades.
type Candle struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	StartTime time.Time
}

// FeedStatus is the connection state of the live feed.
type FeedStatus string

const (
	FeedConnected    FeedStatus = "connected"
	FeedConnecting   FeedStatus = "connecting"
	FeedDisconnected FeedStatus = "disconnected"
)

// MarketSnapshot is an immutable point-in-time view of the feed state.
// The feed publishes a fresh snapshot after every event batch; readers must
// never mutate one. Version increases monotonically with each swap.
type MarketSnapshot struct {
	Market  Market
	Book    OrderBook
	Mid     float64
	Trades  []FeedTrade // oldest first, bounded window
	Candles []Candle    // oldest first, bounded window
	Version uint64
	TakenAt time.Time
}
