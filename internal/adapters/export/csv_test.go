package export_test

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyrule/polyrule/internal/adapters/export"
	"github.com/polyrule/polyrule/internal/domain"
)

func TestWriteTrades(t *testing.T) {
	ts := time.Date(2026, 3, 10, 12, 3, 20, 0, time.UTC)
	trades := []domain.Trade{
		{
			ID: "t1", MarketID: "m1", Slug: "btc-up-1200",
			Side: domain.SideBuy, Outcome: domain.OutcomeYes,
			Price: 0.4, Quantity: 25, Fee: 0.1, Total: 10.1,
			Timestamp: ts, RuleID: "r1",
		},
		{
			ID: "t2", MarketID: "m1", Slug: "btc-up-1200",
			Side: domain.SideSell, Outcome: domain.OutcomeYes,
			Price: 1, Quantity: 25, Total: 25,
			Timestamp: ts.Add(5 * time.Minute),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, export.WriteTrades(&buf, trades))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "id", records[0][0])
	assert.Equal(t, "rule_id", records[0][10])

	assert.Equal(t, []string{
		"t1", "2026-03-10T12:03:20Z", "m1", "btc-up-1200", "BUY", "YES",
		"0.4", "25", "0.1", "10.1", "r1",
	}, records[1])
	assert.Equal(t, "SELL", records[2][4])
	assert.Equal(t, "", records[2][10])
}

func TestWriteTradesEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.WriteTrades(&buf, nil))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1) // header only
}
