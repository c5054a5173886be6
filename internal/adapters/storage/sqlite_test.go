package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyrule/polyrule/internal/adapters/storage"
	"github.com/polyrule/polyrule/internal/domain"
)

var storeStart = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	s, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func marketRow(id string, offset time.Duration, outcome domain.Outcome) domain.MarketRow {
	start := storeStart.Add(offset)
	return domain.MarketRow{
		ID:        id,
		Slug:      "btc-up-" + id,
		Question:  "Bitcoin up?",
		StartTime: start,
		EndTime:   start.Add(5 * time.Minute),
		Outcome:   outcome,
	}
}

func TestSaveMarketUpsert(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	// First save without an outcome, then the resolution overwrites it.
	row := marketRow("m1", 0, "")
	require.NoError(t, s.SaveMarket(ctx, row))
	row.Outcome = domain.OutcomeYes
	require.NoError(t, s.SaveMarket(ctx, row))

	got, err := s.Markets(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.OutcomeYes, got[0].Outcome)
	assert.Equal(t, row.StartTime, got[0].StartTime.UTC())
}

func TestMarketsRangeAndOrder(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveMarket(ctx, marketRow("m2", 10*time.Minute, domain.OutcomeNo)))
	require.NoError(t, s.SaveMarket(ctx, marketRow("m1", 0, domain.OutcomeYes)))
	require.NoError(t, s.SaveMarket(ctx, marketRow("m3", time.Hour, domain.OutcomeYes)))

	got, err := s.Markets(ctx, storeStart, storeStart.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, "m2", got[1].ID)
}

func TestSnapshotsOrderedAndDeduplicated(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	second := domain.SnapshotRow{
		MarketID: "m1", RecordedAt: storeStart.Add(20 * time.Second),
		BestBid: 0.41, BestAsk: 0.43, Volume: 120,
	}
	first := domain.SnapshotRow{
		MarketID: "m1", RecordedAt: storeStart.Add(10 * time.Second),
		BestBid: 0.39, BestAsk: 0.41, LastPrice: 0.40, Volume: 100,
	}
	require.NoError(t, s.SaveSnapshot(ctx, second))
	require.NoError(t, s.SaveSnapshot(ctx, first))
	// Duplicate timestamp keeps the original row.
	dup := first
	dup.BestBid = 0.99
	require.NoError(t, s.SaveSnapshot(ctx, dup))

	got, err := s.Snapshots(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0.39, got[0].BestBid)
	assert.Equal(t, 0.41, got[1].BestBid)
	assert.True(t, got[0].RecordedAt.Before(got[1].RecordedAt))
}

func TestOutcomesView(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveMarket(ctx, marketRow("m1", 0, domain.OutcomeYes)))
	require.NoError(t, s.SaveMarket(ctx, marketRow("m2", 5*time.Minute, domain.OutcomeNo)))
	require.NoError(t, s.SaveMarket(ctx, marketRow("m3", 10*time.Minute, ""))) // unresolved

	got, err := s.Outcomes(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Value)
	assert.Equal(t, 0, got[1].Value)
	assert.Equal(t, "m1", got[0].MarketID)
}

func TestTradeLogRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	trade := domain.Trade{
		ID:        "t1",
		MarketID:  "m1",
		Slug:      "btc-up-m1",
		Side:      domain.SideBuy,
		Outcome:   domain.OutcomeYes,
		Price:     0.40,
		Quantity:  25,
		Fee:       0.1,
		Total:     10.1,
		Timestamp: storeStart.Add(10 * time.Second),
		RuleID:    "r1",
	}
	require.NoError(t, s.SaveTrade(ctx, trade))

	got, err := s.Trades(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, trade.ID, got[0].ID)
	assert.Equal(t, domain.SideBuy, got[0].Side)
	assert.Equal(t, domain.OutcomeYes, got[0].Outcome)
	assert.InDelta(t, 10.1, got[0].Total, 1e-9)
	assert.Equal(t, trade.Timestamp, got[0].Timestamp.UTC())
}

func TestDuplicateTradeIDRejected(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	trade := domain.Trade{ID: "t1", MarketID: "m1", Side: domain.SideBuy,
		Outcome: domain.OutcomeYes, Price: 0.4, Quantity: 1, Total: 0.4,
		Timestamp: storeStart}
	require.NoError(t, s.SaveTrade(ctx, trade))
	require.Error(t, s.SaveTrade(ctx, trade))
}
