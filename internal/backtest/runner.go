// Package backtest replays historical market data through the same rule
// engine and ledger the live trader uses, on its own goroutine with no
// shared mutable state. The caller and the run communicate only through a
// message channel: any number of progress messages followed by exactly one
// done or error. Results are all-or-nothing; a failed run delivers no
// partial output.
package backtest

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/polyrule/polyrule/internal/aoi"
	"github.com/polyrule/polyrule/internal/domain"
	"github.com/polyrule/polyrule/internal/ledger"
	"github.com/polyrule/polyrule/internal/rules"
)

// Kind discriminates the messages a run emits.
type Kind string

const (
	KindProgress Kind = "progress"
	KindDone     Kind = "done"
	KindError    Kind = "error"
)

// Message is one response from a backtest run. Percent is set for progress,
// Result for done, Err for error.
type Message struct {
	Kind    Kind
	Percent int
	Result  *domain.BacktestResult
	Err     string
}

// Request carries everything a run needs. The runner deep-copies the slices
// before replaying, so the caller may reuse them freely.
type Request struct {
	Config    domain.BacktestConfig
	Markets   []domain.MarketRow
	Snapshots []domain.SnapshotRow
	Outcomes  []domain.OutcomeRow
}

// Run starts the replay on its own goroutine and returns its message
// channel. The channel is closed after the terminal message. There is no
// cooperative cancellation: a caller that stops reading and discards the
// channel simply abandons the run's state.
func Run(req Request) <-chan Message {
	out := make(chan Message, 16)
	req = copyRequest(req)
	go func() {
		defer close(out)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("backtest run failed", "run_id", req.Config.RunID, "panic", r)
				out <- Message{Kind: KindError, Err: fmt.Sprintf("backtest engine fault: %v", r)}
			}
		}()

		result, err := replay(req, func(percent int) {
			out <- Message{Kind: KindProgress, Percent: percent}
		})
		if err != nil {
			out <- Message{Kind: KindError, Err: err.Error()}
			return
		}
		out <- Message{Kind: KindDone, Result: result}
	}()
	return out
}

// Replay runs the backtest synchronously. Exposed for callers that want the
// result without the message protocol (and for tests).
func Replay(req Request) (*domain.BacktestResult, error) {
	return replay(copyRequest(req), func(int) {})
}

func replay(req Request, progress func(percent int)) (*domain.BacktestResult, error) {
	cfg := req.Config
	if cfg.StartingBalance <= 0 {
		return nil, fmt.Errorf("backtest.replay: starting balance must be positive")
	}
	if cfg.AOIWindow <= 0 {
		cfg.AOIWindow = 6
	}

	markets := filterMarkets(req.Markets, cfg.From, cfg.To)
	sort.SliceStable(markets, func(i, j int) bool {
		return markets[i].StartTime.Before(markets[j].StartTime)
	})

	snapshotsByMarket := make(map[string][]domain.SnapshotRow, len(markets))
	for _, s := range req.Snapshots {
		snapshotsByMarket[s.MarketID] = append(snapshotsByMarket[s.MarketID], s)
	}
	totalSteps := 0
	for _, rows := range snapshotsByMarket {
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].RecordedAt.Before(rows[j].RecordedAt)
		})
		totalSteps += len(rows)
	}

	outcomes := append([]domain.OutcomeRow(nil), req.Outcomes...)
	sort.SliceStable(outcomes, func(i, j int) bool {
		return outcomes[i].StartTime.Before(outcomes[j].StartTime)
	})

	// Replay clock: the ledger stamps trades with the row being processed,
	// and trade IDs are sequential, so identical inputs give identical
	// output byte for byte.
	var clock time.Time
	seq := 0
	book := ledger.New(cfg.StartingBalance, ledger.ProportionalFee(cfg.FeeRate),
		ledger.WithClock(func() time.Time { return clock }),
		ledger.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("%s-%06d", cfg.RunID, seq)
		}),
	)
	rng := rand.New(rand.NewSource(cfg.Seed))
	lastFired := make(map[string]time.Time, len(cfg.Rules))

	agg := aoi.New(cfg.AOIWindow)
	nextOutcome := 0

	var (
		equity      []domain.EquityPoint
		skipped     int
		wins        int
		settlements int
		step        int
		lastPercent = -1
	)

	for _, market := range markets {
		// The AOI a snapshot sees covers only markets resolved before this
		// one started.
		for nextOutcome < len(outcomes) && outcomes[nextOutcome].StartTime.Before(market.StartTime) {
			agg.Append(outcomes[nextOutcome].Value)
			nextOutcome++
		}
		aoiValue, aoiOK := agg.Value(cfg.AOIWindow)

		for _, row := range snapshotsByMarket[market.ID] {
			step++
			if totalSteps > 0 {
				if pct := step * 100 / totalSteps; pct != lastPercent {
					lastPercent = pct
					progress(pct)
				}
			}

			mid, ok := row.Mid()
			if !ok {
				skipped++
				slog.Debug("skipping malformed snapshot row",
					"market", market.ID, "recorded_at", row.RecordedAt)
				continue
			}
			clock = row.RecordedAt

			spread := 0.0
			if row.BestBid > 0 && row.BestAsk > 0 {
				spread = row.BestAsk - row.BestBid
			}
			timeToClose := market.EndTime.Sub(row.RecordedAt).Seconds()
			if timeToClose < 0 {
				timeToClose = 0
			}

			ctx := domain.NewMarketContext(market.Slug, mid, spread, row.Volume, timeToClose)
			if aoiOK {
				ctx = ctx.WithAOI(aoiValue)
			}

			for _, match := range rules.Evaluate(cfg.Rules, ctx, lastFired, row.RecordedAt, rng) {
				if applyMatch(book, market, match) {
					lastFired[match.Rule.ID] = row.RecordedAt
				}
			}

			book.MarkToMarket(market.ID, ctx.PriceYes)
			equity = append(equity, domain.EquityPoint{
				Timestamp: row.RecordedAt,
				Equity:    book.Equity(),
			})
		}

		if market.Outcome == domain.OutcomeYes || market.Outcome == domain.OutcomeNo {
			clock = market.EndTime
			for _, tr := range book.SettleMarket(market.ID, market.Slug, market.Outcome) {
				settlements++
				if tr.Price == 1 {
					wins++
				}
			}
		}
	}

	winRate := 0.0
	if settlements > 0 {
		winRate = float64(wins) / float64(settlements)
	}

	trades := book.Trades()
	return &domain.BacktestResult{
		RunID:            cfg.RunID,
		StartingBalance:  cfg.StartingBalance,
		FinalBalance:     book.Balance(),
		Trades:           trades,
		EquityCurve:      equity,
		TradeCount:       len(trades),
		WinRate:          winRate,
		TotalPnL:         book.Equity() - cfg.StartingBalance,
		MaxDrawdown:      maxDrawdown(equity),
		MarketsProcessed: len(markets),
		SkippedRows:      skipped,
	}, nil
}

// applyMatch executes one rule fire against the run's ledger. A rejected
// execution (insufficient balance, bad price) is a skipped fire, not a run
// failure; it reports false so the cooldown is not consumed.
func applyMatch(book *ledger.Ledger, market domain.MarketRow, match domain.RuleMatch) bool {
	price := match.Context.PriceYes
	if match.ResolvedOutcome == domain.OutcomeNo {
		price = match.Context.PriceNo
	}
	if price <= 0 {
		return false
	}
	quantity := match.Rule.Action.Amount / price

	_, err := book.Buy(market.ID, market.Slug, match.ResolvedOutcome, price, quantity, match.Rule.ID)
	if err != nil {
		slog.Debug("rule fire not executable",
			"rule", match.Rule.ID, "market", market.ID, "err", err)
		return false
	}
	return true
}

func filterMarkets(markets []domain.MarketRow, from, to time.Time) []domain.MarketRow {
	out := make([]domain.MarketRow, 0, len(markets))
	for _, m := range markets {
		if !from.IsZero() && m.StartTime.Before(from) {
			continue
		}
		if !to.IsZero() && m.StartTime.After(to) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// maxDrawdown returns the worst peak-to-trough equity drop as a fraction of
// the peak.
func maxDrawdown(curve []domain.EquityPoint) float64 {
	var peak, worst float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

func copyRequest(req Request) Request {
	cp := req
	cp.Markets = append([]domain.MarketRow(nil), req.Markets...)
	cp.Snapshots = append([]domain.SnapshotRow(nil), req.Snapshots...)
	cp.Outcomes = append([]domain.OutcomeRow(nil), req.Outcomes...)
	cp.Config.Rules = append([]domain.TradingRule(nil), req.Config.Rules...)
	return cp
}
