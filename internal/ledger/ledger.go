// Package ledger implements the paper-trading ledger: a cash balance, an
// append-only trade log and at most one open position per (market, outcome).
//
// All errors are returned synchronously so a failed rule execution can be
// logged without aborting anything else. A Ledger is not safe for concurrent
// use; the live trader and each backtest run own their own instance and
// invoke it sequentially.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/polyrule/polyrule/internal/domain"
)

var (
	// ErrInvalidOrder rejects a buy with a price outside (0, 1) or a
	// non-positive quantity.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrInsufficientBalance rejects a buy whose cost exceeds the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInsufficientPosition rejects a sell without a matching position or
	// beyond the held quantity.
	ErrInsufficientPosition = errors.New("insufficient position")
)

// FeeFunc is the pluggable fee model, a deterministic function of price and
// quantity. Applied on buys and sells, never on settlement.
type FeeFunc func(price, quantity float64) float64

// NoFee charges nothing.
func NoFee(price, quantity float64) float64 { return 0 }

// ProportionalFee charges rate × notional.
func ProportionalFee(rate float64) FeeFunc {
	return func(price, quantity float64) float64 {
		return rate * price * quantity
	}
}

type positionKey struct {
	marketID string
	outcome  domain.Outcome
}

// Ledger holds the paper-trading state.
type Ledger struct {
	balance   float64
	trades    []domain.Trade
	positions map[positionKey]*domain.Position
	fee       FeeFunc
	now       func() time.Time
	newID     func() string
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock replaces the timestamp source. Backtests pin it to the replay
// clock so results are reproducible.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator replaces the trade ID source.
func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) { l.newID = gen }
}

// New creates a ledger with the given starting balance and fee model.
// A nil fee defaults to NoFee.
func New(startingBalance float64, fee FeeFunc, opts ...Option) *Ledger {
	if fee == nil {
		fee = NoFee
	}
	l := &Ledger{
		balance:   startingBalance,
		positions: make(map[positionKey]*domain.Position),
		fee:       fee,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Balance returns the current cash balance.
func (l *Ledger) Balance() float64 { return l.balance }

// Trades returns a copy of the append-only trade log, in insertion order.
func (l *Ledger) Trades() []domain.Trade {
	out := make([]domain.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Positions returns a copy of all open positions.
func (l *Ledger) Positions() []domain.Position {
	out := make([]domain.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	return out
}

// Position returns the open position for (marketID, outcome), if any.
func (l *Ledger) Position(marketID string, outcome domain.Outcome) (domain.Position, bool) {
	p, ok := l.positions[positionKey{marketID, outcome}]
	if !ok {
		return domain.Position{}, false
	}
	return *p, true
}

// Equity returns cash plus the mark-to-market value of open positions.
func (l *Ledger) Equity() float64 {
	eq := l.balance
	for _, p := range l.positions {
		eq += p.Value()
	}
	return eq
}

// Buy debits cost = price·quantity + fee, appends a BUY trade and merges the
// quantity into the position at a quantity-weighted average entry price.
// The balance check happens before any state change; a rejected buy leaves
// the ledger untouched.
func (l *Ledger) Buy(marketID, slug string, outcome domain.Outcome, price, quantity float64, ruleID string) (domain.Trade, error) {
	if price <= 0 || price >= 1 || quantity <= 0 {
		return domain.Trade{}, fmt.Errorf("ledger.Buy: price=%.4f qty=%.4f: %w", price, quantity, ErrInvalidOrder)
	}
	fee := l.fee(price, quantity)
	cost := price*quantity + fee
	if cost > l.balance {
		return domain.Trade{}, fmt.Errorf("ledger.Buy: cost %.4f > balance %.4f: %w", cost, l.balance, ErrInsufficientBalance)
	}

	l.balance -= cost
	trade := domain.Trade{
		ID:        l.newID(),
		MarketID:  marketID,
		Slug:      slug,
		Side:      domain.SideBuy,
		Outcome:   outcome,
		Price:     price,
		Quantity:  quantity,
		Fee:       fee,
		Total:     cost,
		Timestamp: l.now(),
		RuleID:    ruleID,
	}
	l.trades = append(l.trades, trade)

	key := positionKey{marketID, outcome}
	if pos, ok := l.positions[key]; ok {
		total := pos.Quantity + quantity
		pos.AvgEntryPrice = (pos.AvgEntryPrice*pos.Quantity + price*quantity) / total
		pos.Quantity = total
		pos.CurrentPrice = price
		pos.UnrealizedPnL = (pos.CurrentPrice - pos.AvgEntryPrice) * pos.Quantity
	} else {
		l.positions[key] = &domain.Position{
			MarketID:      marketID,
			Slug:          slug,
			Outcome:       outcome,
			Quantity:      quantity,
			AvgEntryPrice: price,
			CurrentPrice:  price,
		}
	}
	return trade, nil
}

// Sell credits price·quantity − fee, appends a SELL trade and reduces or
// removes the position.
func (l *Ledger) Sell(marketID string, outcome domain.Outcome, price, quantity float64) (domain.Trade, error) {
	key := positionKey{marketID, outcome}
	pos, ok := l.positions[key]
	if !ok {
		return domain.Trade{}, fmt.Errorf("ledger.Sell: no position for %s/%s: %w", marketID, outcome, ErrInsufficientPosition)
	}
	if quantity <= 0 || quantity > pos.Quantity {
		return domain.Trade{}, fmt.Errorf("ledger.Sell: qty %.4f held %.4f: %w", quantity, pos.Quantity, ErrInsufficientPosition)
	}

	fee := l.fee(price, quantity)
	proceeds := price*quantity - fee
	l.balance += proceeds
	trade := domain.Trade{
		ID:        l.newID(),
		MarketID:  marketID,
		Slug:      pos.Slug,
		Side:      domain.SideSell,
		Outcome:   outcome,
		Price:     price,
		Quantity:  quantity,
		Fee:       fee,
		Total:     proceeds,
		Timestamp: l.now(),
	}
	l.trades = append(l.trades, trade)

	pos.Quantity -= quantity
	if pos.Quantity <= 1e-12 {
		delete(l.positions, key)
	} else {
		pos.UnrealizedPnL = (pos.CurrentPrice - pos.AvgEntryPrice) * pos.Quantity
	}
	return trade, nil
}

// SettleMarket closes every open position on the market: winning positions
// pay quantity·1.0, losing ones quantity·0.0, fee-free. One synthetic SELL
// trade is appended per position. No-op when no positions exist.
func (l *Ledger) SettleMarket(marketID, slug string, outcomeWon domain.Outcome) []domain.Trade {
	var settled []domain.Trade
	for _, outcome := range []domain.Outcome{domain.OutcomeYes, domain.OutcomeNo} {
		key := positionKey{marketID, outcome}
		pos, ok := l.positions[key]
		if !ok {
			continue
		}
		payout := 0.0
		if pos.Outcome == outcomeWon {
			payout = 1.0
		}
		proceeds := pos.Quantity * payout
		l.balance += proceeds
		trade := domain.Trade{
			ID:        l.newID(),
			MarketID:  marketID,
			Slug:      slug,
			Side:      domain.SideSell,
			Outcome:   outcome,
			Price:     payout,
			Quantity:  pos.Quantity,
			Total:     proceeds,
			Timestamp: l.now(),
		}
		l.trades = append(l.trades, trade)
		settled = append(settled, trade)
		delete(l.positions, key)
	}
	return settled
}

// MarkToMarket refreshes CurrentPrice and UnrealizedPnL for every open
// position on the market from the current YES price.
func (l *Ledger) MarkToMarket(marketID string, currentPriceYes float64) {
	for _, outcome := range []domain.Outcome{domain.OutcomeYes, domain.OutcomeNo} {
		pos, ok := l.positions[positionKey{marketID, outcome}]
		if !ok {
			continue
		}
		price := currentPriceYes
		if outcome == domain.OutcomeNo {
			price = 1 - currentPriceYes
		}
		pos.CurrentPrice = price
		pos.UnrealizedPnL = (price - pos.AvgEntryPrice) * pos.Quantity
	}
}
