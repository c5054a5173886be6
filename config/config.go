package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration of the trading loop.
type Config struct {
	Trading    TradingConfig    `yaml:"trading"`
	Indicators IndicatorsConfig `yaml:"indicators"`
	Feed       FeedConfig       `yaml:"feed"`
	API        APIConfig        `yaml:"api"`
	Storage    StorageConfig    `yaml:"storage"`
	Backtest   BacktestConfig   `yaml:"backtest"`
	Log        LogConfig        `yaml:"log"`
}

// TradingConfig controls the paper-trading session.
type TradingConfig struct {
	SeriesSlug      string  `yaml:"series_slug"` // recurring market series to follow
	RulesPath       string  `yaml:"rules_path"`
	StartingBalance float64 `yaml:"starting_balance"`
	FeeRate         float64 `yaml:"fee_rate"`
	IntervalSeconds int     `yaml:"interval_seconds"`
	AOIWindow       int     `yaml:"aoi_window"`
}

// IndicatorsConfig controls the indicator engine and bias aggregation.
type IndicatorsConfig struct {
	IntervalSeconds  int                `yaml:"interval_seconds"`
	Weights          map[string]float64 `yaml:"weights"`
	BullishThreshold float64            `yaml:"bullish_threshold"`
	BearishThreshold float64            `yaml:"bearish_threshold"`
}

// FeedConfig controls the websocket market feed.
type FeedConfig struct {
	URL          string `yaml:"url"`
	TradeBuffer  int    `yaml:"trade_buffer"`
	CandleBuffer int    `yaml:"candle_buffer"`
}

// APIConfig holds the HTTP API base URLs.
type APIConfig struct {
	CLOBBase  string `yaml:"clob_base"`
	GammaBase string `yaml:"gamma_base"`
}

// StorageConfig controls where history persists.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path, or ":memory:"
}

// BacktestConfig holds backtest run defaults; flags override.
type BacktestConfig struct {
	StartingBalance float64 `yaml:"starting_balance"`
	FeeRate         float64 `yaml:"fee_rate"`
	AOIWindow       int     `yaml:"aoi_window"`
	Seed            int64   `yaml:"seed"`
}

// LogConfig controls log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML file and the .env file if present. Environment
// variables override YAML for the keys they cover.
func Load(path string) (*Config, error) {
	// Load .env when present, silently skip otherwise.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// TradeInterval returns the rule evaluation cadence.
func (c *Config) TradeInterval() time.Duration {
	return time.Duration(c.Trading.IntervalSeconds) * time.Second
}

// IndicatorInterval returns the indicator recompute cadence.
func (c *Config) IndicatorInterval() time.Duration {
	return time.Duration(c.Indicators.IntervalSeconds) * time.Second
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("POLYRULE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("POLYRULE_RULES"); v != "" {
		cfg.Trading.RulesPath = v
	}
	if v := os.Getenv("POLYRULE_FEED_URL"); v != "" {
		cfg.Feed.URL = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Trading.SeriesSlug == "" {
		cfg.Trading.SeriesSlug = "bitcoin-up-or-down"
	}
	if cfg.Trading.RulesPath == "" {
		cfg.Trading.RulesPath = "rules.json"
	}
	if cfg.Trading.StartingBalance <= 0 {
		cfg.Trading.StartingBalance = 1000
	}
	if cfg.Trading.IntervalSeconds <= 0 {
		cfg.Trading.IntervalSeconds = 2
	}
	if cfg.Trading.AOIWindow <= 0 {
		cfg.Trading.AOIWindow = 6
	}
	if cfg.Indicators.IntervalSeconds <= 0 {
		cfg.Indicators.IntervalSeconds = 2
	}
	if cfg.Indicators.BullishThreshold == 0 {
		cfg.Indicators.BullishThreshold = 1.5
	}
	if cfg.Indicators.BearishThreshold == 0 {
		cfg.Indicators.BearishThreshold = -1.5
	}
	if cfg.Feed.URL == "" {
		cfg.Feed.URL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
	}
	if cfg.Feed.TradeBuffer <= 0 {
		cfg.Feed.TradeBuffer = 200
	}
	if cfg.Feed.CandleBuffer <= 0 {
		cfg.Feed.CandleBuffer = 120
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "polyrule.db"
	}
	if cfg.Backtest.StartingBalance <= 0 {
		cfg.Backtest.StartingBalance = cfg.Trading.StartingBalance
	}
	if cfg.Backtest.AOIWindow <= 0 {
		cfg.Backtest.AOIWindow = cfg.Trading.AOIWindow
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
