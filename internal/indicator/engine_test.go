package indicator

import (
	"testing"
	"time"

	"github.com/polyrule/polyrule/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	snap   *domain.MarketSnapshot
	status domain.FeedStatus
}

func (f *fakeSource) Snapshot() *domain.MarketSnapshot { return f.snap }
func (f *fakeSource) Status() domain.FeedStatus        { return f.status }

func bookSnapshot(version uint64) *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		Mid: 0.5,
		Book: domain.OrderBook{
			Bids: []domain.BookLevel{{Price: 0.49, Size: 100}},
			Asks: []domain.BookLevel{{Price: 0.51, Size: 50}},
		},
		Trades:  []domain.FeedTrade{{Price: 0.5, Size: 2, Side: domain.SideBuy}},
		Version: version,
	}
}

func TestEngine_TickComputesReading(t *testing.T) {
	src := &fakeSource{snap: bookSnapshot(1), status: domain.FeedConnected}
	e := NewEngine(src, DefaultBiasConfig(), 0)

	require.Nil(t, e.Latest(), "no reading before the first tick")

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e.tick(now)

	reading := e.Latest()
	require.NotNil(t, reading)
	assert.Equal(t, uint64(1), reading.SnapshotVersion)
	assert.Equal(t, now, reading.ComputedAt)
	assert.False(t, reading.Stale)
	assert.Contains(t, reading.Set, domain.IndOBI)
	assert.Contains(t, reading.Set, domain.IndCVD)
}

func TestEngine_UnchangedSnapshotKeepsReading(t *testing.T) {
	src := &fakeSource{snap: bookSnapshot(7), status: domain.FeedConnected}
	e := NewEngine(src, DefaultBiasConfig(), 0)

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e.tick(t0)
	e.tick(t0.Add(2 * time.Second))

	reading := e.Latest()
	require.NotNil(t, reading)
	assert.Equal(t, t0, reading.ComputedAt, "quiet feed does not recompute")
}

func TestEngine_NewVersionRecomputes(t *testing.T) {
	src := &fakeSource{snap: bookSnapshot(1), status: domain.FeedConnected}
	e := NewEngine(src, DefaultBiasConfig(), 0)

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e.tick(t0)
	src.snap = bookSnapshot(2)
	e.tick(t0.Add(2 * time.Second))

	reading := e.Latest()
	require.NotNil(t, reading)
	assert.Equal(t, uint64(2), reading.SnapshotVersion)
}

func TestEngine_DisconnectedFeedMarksStale(t *testing.T) {
	src := &fakeSource{snap: bookSnapshot(1), status: domain.FeedConnected}
	e := NewEngine(src, DefaultBiasConfig(), 0)

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e.tick(t0)
	require.False(t, e.Latest().Stale)

	src.status = domain.FeedDisconnected
	e.tick(t0.Add(2 * time.Second))

	reading := e.Latest()
	require.NotNil(t, reading)
	assert.True(t, reading.Stale, "last-known values remain visible but stale")
	assert.Equal(t, uint64(1), reading.SnapshotVersion)
}

func TestEngine_NoSnapshotNoReading(t *testing.T) {
	src := &fakeSource{status: domain.FeedConnecting}
	e := NewEngine(src, DefaultBiasConfig(), 0)

	e.tick(time.Now())
	assert.Nil(t, e.Latest())
}
