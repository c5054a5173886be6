package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/polyrule/polyrule/config"
	"github.com/polyrule/polyrule/internal/adapters/export"
	"github.com/polyrule/polyrule/internal/adapters/notify"
	"github.com/polyrule/polyrule/internal/adapters/polymarket"
	"github.com/polyrule/polyrule/internal/adapters/storage"
	"github.com/polyrule/polyrule/internal/backtest"
	"github.com/polyrule/polyrule/internal/domain"
)

// runBacktest replays the stored history through the rule set and prints the
// report. Progress goes to the log; the result goes through the notifier.
func runBacktest(ctx context.Context, cfg *config.Config, store *storage.SQLiteStore,
	notifier *notify.Console, ruleSet []domain.TradingRule, rngSeed int64, from, to time.Time) error {

	markets, err := store.Markets(ctx, from, to)
	if err != nil {
		return fmt.Errorf("main.runBacktest: load markets: %w", err)
	}
	if len(markets) == 0 {
		return fmt.Errorf("main.runBacktest: no stored markets in range, run -seed first")
	}

	var snapshots []domain.SnapshotRow
	for _, m := range markets {
		rows, err := store.Snapshots(ctx, m.ID)
		if err != nil {
			return fmt.Errorf("main.runBacktest: load snapshots for %s: %w", m.ID, err)
		}
		snapshots = append(snapshots, rows...)
	}

	outcomes, err := store.Outcomes(ctx, time.Time{}, to)
	if err != nil {
		return fmt.Errorf("main.runBacktest: load outcomes: %w", err)
	}

	seed := cfg.Backtest.Seed
	if rngSeed != 0 {
		seed = rngSeed
	}

	req := backtest.Request{
		Config: domain.BacktestConfig{
			RunID:           uuid.NewString()[:8],
			StartingBalance: cfg.Backtest.StartingBalance,
			FeeRate:         cfg.Backtest.FeeRate,
			Rules:           ruleSet,
			AOIWindow:       cfg.Backtest.AOIWindow,
			Seed:            seed,
			From:            from,
			To:              to,
		},
		Markets:   markets,
		Snapshots: snapshots,
		Outcomes:  outcomes,
	}

	slog.Info("backtest starting",
		"run_id", req.Config.RunID,
		"markets", len(markets),
		"snapshots", len(snapshots),
		"rules", len(ruleSet),
	)

	lastLogged := -10
	for msg := range backtest.Run(req) {
		switch msg.Kind {
		case backtest.KindProgress:
			if msg.Percent >= lastLogged+10 {
				lastLogged = msg.Percent
				slog.Info("backtest progress", "percent", msg.Percent)
			}
		case backtest.KindError:
			return fmt.Errorf("main.runBacktest: %s", msg.Err)
		case backtest.KindDone:
			if err := notifier.NotifyBacktest(ctx, *msg.Result); err != nil {
				slog.Warn("notifier error", "err", err)
			}
		}
	}
	return nil
}

// runSeed backfills market and price history from the API so backtests have
// something to replay.
func runSeed(ctx context.Context, cfg *config.Config, client *polymarket.Client,
	store *storage.SQLiteStore, from, to time.Time) error {

	if from.IsZero() {
		from = time.Now().Add(-24 * time.Hour)
	}
	if to.IsZero() {
		to = time.Now()
	}

	market, err := client.FetchCurrentMarket(ctx, cfg.Trading.SeriesSlug)
	if err != nil {
		return fmt.Errorf("main.runSeed: resolve series: %w", err)
	}

	rows, err := client.PriceHistory(ctx, market.ID, market.TokenYesID, from, to)
	if err != nil {
		return fmt.Errorf("main.runSeed: %w", err)
	}

	saved := 0
	for _, row := range rows {
		if err := store.SaveSnapshot(ctx, row); err != nil {
			slog.Warn("seed row failed", "market", row.MarketID, "err", err)
			continue
		}
		saved++
	}

	slog.Info("seed complete", "series", cfg.Trading.SeriesSlug,
		"fetched", len(rows), "saved", saved, "from", from, "to", to)
	return nil
}

// runExport dumps the stored trade log as CSV.
func runExport(ctx context.Context, store *storage.SQLiteStore, path string) error {
	trades, err := store.Trades(ctx)
	if err != nil {
		return fmt.Errorf("main.runExport: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("main.runExport: create %q: %w", path, err)
	}
	defer f.Close()

	if err := export.WriteTrades(f, trades); err != nil {
		return err
	}
	slog.Info("trade log exported", "path", path, "trades", len(trades))
	return nil
}
