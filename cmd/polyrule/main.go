package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/polyrule/polyrule/config"
	"github.com/polyrule/polyrule/internal/adapters/notify"
	"github.com/polyrule/polyrule/internal/adapters/polymarket"
	"github.com/polyrule/polyrule/internal/adapters/storage"
	"github.com/polyrule/polyrule/internal/domain"
	"github.com/polyrule/polyrule/internal/rules"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	backtest := flag.Bool("backtest", false, "replay stored history instead of trading live")
	seed := flag.Bool("seed", false, "backfill price history from the API and exit")
	exportPath := flag.String("export", "", "write the stored trade log to a CSV file and exit")
	from := flag.String("from", "", "history range start (RFC3339), backtest and seed modes")
	to := flag.String("to", "", "history range end (RFC3339), backtest and seed modes")
	rngSeed := flag.Int64("rng-seed", 0, "RNG seed for random rules in backtests (overrides config)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print the full trade table in backtest reports")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("polyrule starting",
		"config", *configPath,
		"series", cfg.Trading.SeriesSlug,
		"backtest", *backtest,
		"seed", *seed,
	)

	store, err := storage.NewSQLiteStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase)
	notifier := notify.NewConsole(*table)

	switch {
	case *exportPath != "":
		if err := runExport(ctx, store, *exportPath); err != nil {
			slog.Error("export failed", "err", err)
			os.Exit(1)
		}
	case *seed:
		if err := runSeed(ctx, cfg, client, store, parseBound(*from), parseBound(*to)); err != nil {
			slog.Error("seed failed", "err", err)
			os.Exit(1)
		}
	case *backtest:
		ruleSet := mustLoadRules(cfg.Trading.RulesPath)
		if err := runBacktest(ctx, cfg, store, notifier, ruleSet, *rngSeed, parseBound(*from), parseBound(*to)); err != nil {
			slog.Error("backtest failed", "err", err)
			os.Exit(1)
		}
	default:
		ruleSet := mustLoadRules(cfg.Trading.RulesPath)
		if err := runLive(ctx, cfg, client, store, notifier, ruleSet); err != nil && ctx.Err() == nil {
			slog.Error("live loop exited with error", "err", err)
			os.Exit(1)
		}
	}

	slog.Info("polyrule stopped cleanly")
}

func mustLoadRules(path string) []domain.TradingRule {
	ruleSet, err := rules.LoadRules(path)
	if err != nil {
		slog.Error("failed to load rules", "err", err, "path", path)
		os.Exit(1)
	}
	if len(ruleSet) == 0 {
		slog.Warn("rule set is empty, nothing will ever fire", "path", path)
	}
	return ruleSet
}

func parseBound(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		slog.Error("invalid time bound, expected RFC3339", "value", s, "err", err)
		os.Exit(1)
	}
	return t
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
