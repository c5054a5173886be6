package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/polyrule/polyrule/config"
	"github.com/polyrule/polyrule/internal/adapters/notify"
	"github.com/polyrule/polyrule/internal/adapters/polymarket"
	"github.com/polyrule/polyrule/internal/adapters/storage"
	"github.com/polyrule/polyrule/internal/domain"
	"github.com/polyrule/polyrule/internal/feed"
	"github.com/polyrule/polyrule/internal/indicator"
	"github.com/polyrule/polyrule/internal/ledger"
	"github.com/polyrule/polyrule/internal/trader"
)

// feedLinger keeps the session alive briefly past the market end so the
// final settle tick runs before resubscribing.
const feedLinger = 15 * time.Second

// runLive follows the configured market series: one feed session per market,
// the indicator engine and trader evaluating on their own cadences. When a
// market ends the loop fetches the next one and resubscribes.
func runLive(ctx context.Context, cfg *config.Config, client *polymarket.Client,
	store *storage.SQLiteStore, notifier *notify.Console, ruleSet []domain.TradingRule) error {

	book := ledger.New(cfg.Trading.StartingBalance, ledger.ProportionalFee(cfg.Trading.FeeRate))

	tr, err := trader.New(ctx, trader.Config{
		Source:    nil, // bound per market session below
		Store:     store,
		Notifier:  notifier,
		Ledger:    book,
		Rules:     ruleSet,
		AOIWindow: cfg.Trading.AOIWindow,
		Interval:  cfg.TradeInterval(),
	})
	if err != nil {
		return fmt.Errorf("main.runLive: %w", err)
	}

	for ctx.Err() == nil {
		market, err := client.FetchCurrentMarket(ctx, cfg.Trading.SeriesSlug)
		if err != nil {
			return fmt.Errorf("main.runLive: fetch current market: %w", err)
		}
		slog.Info("following market",
			"slug", market.Slug, "ends", market.EndTime, "condition", market.ID)

		if err := runMarketSession(ctx, cfg, market, tr); err != nil && ctx.Err() == nil {
			slog.Warn("market session ended with error", "market", market.Slug, "err", err)
		}
	}
	return ctx.Err()
}

// runMarketSession runs the feed, indicator engine and trader for one market
// until it closes or ctx is cancelled.
func runMarketSession(ctx context.Context, cfg *config.Config, market domain.Market, tr *trader.Trader) error {
	var sessionCtx context.Context
	var cancel context.CancelFunc
	if market.EndTime.IsZero() {
		sessionCtx, cancel = context.WithCancel(ctx)
	} else {
		sessionCtx, cancel = context.WithDeadline(ctx, market.EndTime.Add(feedLinger))
	}
	defer cancel()

	listener := feed.New(cfg.Feed.URL, market,
		feed.WithBuffers(cfg.Feed.TradeBuffer, cfg.Feed.CandleBuffer))

	engine := indicator.NewEngine(listener, biasConfig(cfg), cfg.IndicatorInterval())

	errs := make(chan error, 3)
	go func() { errs <- listener.Run(sessionCtx) }()
	go func() { errs <- engine.Run(sessionCtx) }()
	go func() { errs <- tr.RunWith(sessionCtx, listener) }()
	go logStatus(sessionCtx, market, engine, tr)

	err := <-errs
	cancel()
	<-errs
	<-errs
	return err
}

// logStatus prints a one-line session status with the composite bias every
// half minute.
func logStatus(ctx context.Context, market domain.Market, engine *indicator.Engine, tr *trader.Trader) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			args := []any{
				"market", market.Slug,
				"balance", tr.Ledger().Balance(),
				"equity", tr.Ledger().Equity(),
				"positions", len(tr.Ledger().Positions()),
			}
			if r := engine.Latest(); r != nil {
				args = append(args,
					"bias", r.Bias.Signal,
					"score", r.Bias.Score,
					"stale", r.Stale,
				)
			}
			slog.Info("session status", args...)
		}
	}
}

func biasConfig(cfg *config.Config) indicator.BiasConfig {
	bias := indicator.DefaultBiasConfig()
	for name, weight := range cfg.Indicators.Weights {
		bias.Weights[domain.IndicatorName(name)] = weight
	}
	if cfg.Indicators.BullishThreshold != 0 {
		bias.BullishThreshold = cfg.Indicators.BullishThreshold
	}
	if cfg.Indicators.BearishThreshold != 0 {
		bias.BearishThreshold = cfg.Indicators.BearishThreshold
	}
	return bias
}
