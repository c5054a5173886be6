package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyrule/polyrule/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "trading:\n  starting_balance: 500\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 500.0, cfg.Trading.StartingBalance)
	assert.Equal(t, "bitcoin-up-or-down", cfg.Trading.SeriesSlug)
	assert.Equal(t, 6, cfg.Trading.AOIWindow)
	assert.Equal(t, "polyrule.db", cfg.Storage.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 1.5, cfg.Indicators.BullishThreshold)
	// Backtest falls back to the trading balance.
	assert.Equal(t, 500.0, cfg.Backtest.StartingBalance)
}

func TestLoadParsesWeights(t *testing.T) {
	path := writeConfig(t, `
indicators:
  weights:
    rsi: 2.0
    obi: 0.5
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.Indicators.Weights["rsi"])
	assert.Equal(t, 0.5, cfg.Indicators.Weights["obi"])
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("POLYRULE_DSN", "override.db")

	path := writeConfig(t, "log:\n  level: warn\nstorage:\n  dsn: file.db\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "override.db", cfg.Storage.DSN)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
