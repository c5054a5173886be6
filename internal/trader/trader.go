// Package trader runs the live paper-trading loop: read the latest feed
// snapshot, build the rule context, evaluate the rule set and apply fires to
// the ledger. Execution failures are logged and reported, never fatal; the
// loop only stops with its context.
package trader

import (
	"context"
	"log/slog"
	"time"

	"github.com/polyrule/polyrule/internal/aoi"
	"github.com/polyrule/polyrule/internal/domain"
	"github.com/polyrule/polyrule/internal/ledger"
	"github.com/polyrule/polyrule/internal/ports"
	"github.com/polyrule/polyrule/internal/rules"
)

// DefaultInterval is the evaluation cadence.
const DefaultInterval = 2 * time.Second

// Trader owns the live session state: the ledger, rule fire times and the
// rolling outcome aggregator. Not safe for concurrent use; Run is the only
// expected caller of its methods once started.
type Trader struct {
	source   ports.SnapshotSource
	store    ports.HistoryStore
	notifier ports.Notifier
	book     *ledger.Ledger
	rules    []domain.TradingRule

	agg       *aoi.Aggregator
	aoiWindow int
	interval  time.Duration
	now       func() time.Time

	lastFired   map[string]time.Time
	lastVersion uint64
	current     *domain.Market
	lastMid     float64
	settled     bool
}

// Config wires a trader's dependencies.
type Config struct {
	Source    ports.SnapshotSource
	Store     ports.HistoryStore
	Notifier  ports.Notifier
	Ledger    *ledger.Ledger
	Rules     []domain.TradingRule
	AOIWindow int
	Interval  time.Duration
	Now       func() time.Time // tests override; nil means time.Now
}

// New builds a trader. The outcome aggregator is seeded from the store so
// AOI conditions work from the first tick.
func New(ctx context.Context, cfg Config) (*Trader, error) {
	if cfg.AOIWindow <= 0 {
		cfg.AOIWindow = 6
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	agg := aoi.New(cfg.AOIWindow)
	if cfg.Store != nil {
		rows, err := cfg.Store.Outcomes(ctx, time.Time{}, time.Time{})
		if err != nil {
			slog.Warn("seeding outcome history failed, starting empty", "err", err)
		} else {
			agg = aoi.FromRows(rows, cfg.AOIWindow)
		}
	}

	return &Trader{
		source:    cfg.Source,
		store:     cfg.Store,
		notifier:  cfg.Notifier,
		book:      cfg.Ledger,
		rules:     cfg.Rules,
		agg:       agg,
		aoiWindow: cfg.AOIWindow,
		interval:  cfg.Interval,
		now:       cfg.Now,
		lastFired: make(map[string]time.Time),
	}, nil
}

// Ledger exposes the session ledger for reporting.
func (t *Trader) Ledger() *ledger.Ledger { return t.book }

// RunWith binds a snapshot source for one market session and evaluates until
// ctx is cancelled. The ledger, fire times and outcome history carry over
// between sessions.
func (t *Trader) RunWith(ctx context.Context, source ports.SnapshotSource) error {
	t.source = source
	return t.Run(ctx)
}

// Run evaluates on a fixed cadence until ctx is cancelled.
func (t *Trader) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	slog.Info("trader started", "rules", len(t.rules), "interval", t.interval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.tick(ctx, t.now())
		}
	}
}

func (t *Trader) tick(ctx context.Context, now time.Time) {
	if t.source.Status() != domain.FeedConnected {
		slog.Debug("feed not connected, skipping evaluation")
		return
	}
	snap := t.source.Snapshot()
	if snap == nil {
		return
	}

	t.handleRollover(ctx, snap.Market)

	mid := snap.Mid
	if mid <= 0 && len(snap.Trades) > 0 {
		mid = snap.Trades[len(snap.Trades)-1].Price
	}
	if mid <= 0 {
		slog.Debug("no usable price in snapshot", "market", snap.Market.Slug)
		return
	}

	if snap.Version != t.lastVersion {
		t.lastVersion = snap.Version
		t.recordSnapshot(ctx, snap, now)
	}

	mctx := domain.NewMarketContext(snap.Market.Slug, mid, snap.Book.Spread(),
		tradeVolume(snap.Trades), snap.Market.TimeToClose(now))
	if v, ok := t.agg.Value(t.aoiWindow); ok {
		mctx = mctx.WithAOI(v)
	}

	for _, match := range rules.Evaluate(t.rules, mctx, t.lastFired, now, nil) {
		t.execute(ctx, snap.Market, match)
	}

	t.book.MarkToMarket(snap.Market.ID, mctx.PriceYes)
	t.lastMid = mid

	if !t.settled && !snap.Market.EndTime.IsZero() && !now.Before(snap.Market.EndTime) {
		t.settle(ctx, snap.Market, mid)
	}
}

// execute applies one rule fire to the ledger. A rejected order is a failed
// execution: reported, logged, and the cooldown is left unconsumed.
func (t *Trader) execute(ctx context.Context, market domain.Market, match domain.RuleMatch) {
	price := match.Context.PriceYes
	if match.ResolvedOutcome == domain.OutcomeNo {
		price = match.Context.PriceNo
	}
	if price <= 0 {
		return
	}
	quantity := match.Rule.Action.Amount / price

	trade, err := t.book.Buy(market.ID, market.Slug, match.ResolvedOutcome,
		price, quantity, match.Rule.ID)
	if err != nil {
		slog.Warn("rule fired but order rejected",
			"rule", match.Rule.ID, "market", market.Slug, "err", err)
		t.notify(ctx, match, nil, err)
		return
	}

	t.lastFired[match.Rule.ID] = match.Timestamp
	slog.Info("rule fired",
		"rule", match.Rule.ID, "market", market.Slug,
		"outcome", match.ResolvedOutcome, "price", price, "quantity", quantity)

	if t.store != nil {
		if err := t.store.SaveTrade(ctx, trade); err != nil {
			slog.Error("persisting trade failed", "trade", trade.ID, "err", err)
		}
	}
	t.notify(ctx, match, &trade, nil)
}

// handleRollover settles the previous market when the feed moves on to a new
// one before the end-of-market settle ran.
func (t *Trader) handleRollover(ctx context.Context, market domain.Market) {
	if t.current == nil {
		t.current = &market
		return
	}
	if t.current.ID == market.ID {
		return
	}
	if !t.settled {
		t.settle(ctx, *t.current, t.lastMid)
	}
	t.current = &market
	t.settled = false
}

// settle resolves a finished market from its final mid price, pays out the
// ledger, persists the resolved row and feeds the outcome aggregator.
func (t *Trader) settle(ctx context.Context, market domain.Market, finalMid float64) {
	outcome := domain.OutcomeNo
	value := 0
	if finalMid >= 0.5 {
		outcome = domain.OutcomeYes
		value = 1
	}

	settles := t.book.SettleMarket(market.ID, market.Slug, outcome)
	t.settled = true
	t.agg.Append(value)
	slog.Info("market settled",
		"market", market.Slug, "outcome", outcome, "positions", len(settles))

	if t.store != nil {
		row := domain.MarketRow{
			ID:        market.ID,
			Slug:      market.Slug,
			Question:  market.Question,
			StartTime: market.StartTime,
			EndTime:   market.EndTime,
			Outcome:   outcome,
		}
		if err := t.store.SaveMarket(ctx, row); err != nil {
			slog.Error("persisting market outcome failed", "market", market.ID, "err", err)
		}
		for _, tr := range settles {
			if err := t.store.SaveTrade(ctx, tr); err != nil {
				slog.Error("persisting settlement failed", "trade", tr.ID, "err", err)
			}
		}
	}
}

// recordSnapshot writes the price observation backing future backtests.
func (t *Trader) recordSnapshot(ctx context.Context, snap *domain.MarketSnapshot, now time.Time) {
	if t.store == nil {
		return
	}
	row := domain.SnapshotRow{
		MarketID:   snap.Market.ID,
		RecordedAt: now,
		BestBid:    snap.Book.BestBid(),
		BestAsk:    snap.Book.BestAsk(),
		Volume:     tradeVolume(snap.Trades),
	}
	if len(snap.Trades) > 0 {
		row.LastPrice = snap.Trades[len(snap.Trades)-1].Price
	}
	if err := t.store.SaveSnapshot(ctx, row); err != nil {
		slog.Error("persisting snapshot failed", "market", snap.Market.ID, "err", err)
	}
}

func (t *Trader) notify(ctx context.Context, match domain.RuleMatch, trade *domain.Trade, execErr error) {
	if t.notifier == nil {
		return
	}
	if err := t.notifier.NotifyMatch(ctx, match, trade, execErr); err != nil {
		slog.Error("notify failed", "rule", match.Rule.ID, "err", err)
	}
}

func tradeVolume(trades []domain.FeedTrade) float64 {
	var v float64
	for _, tr := range trades {
		v += tr.Size
	}
	return v
}
