package indicator

import (
	"testing"
	"time"

	"github.com/polyrule/polyrule/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candlesFromCloses(closes ...float64) []domain.Candle {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	candles := make([]domain.Candle, len(closes))
	open := closes[0]
	for i, c := range closes {
		candles[i] = domain.Candle{
			Open:      open,
			High:      maxF(open, c),
			Low:       minF(open, c),
			Close:     c,
			Volume:    1,
			StartTime: start.Add(time.Duration(i) * time.Minute),
		}
		open = c
	}
	return candles
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func rampCloses(n int, from, to float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + (to-from)*float64(i)/float64(n-1)
	}
	return out
}

func repeatCloses(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func snapWithBook(mid float64, bids, asks []domain.BookLevel) *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		Mid:  mid,
		Book: domain.OrderBook{Bids: bids, Asks: asks},
	}
}

func TestOrderBookImbalance(t *testing.T) {
	t.Run("nil on empty book", func(t *testing.T) {
		assert.Nil(t, OrderBookImbalance(&domain.MarketSnapshot{Mid: 0.5}))
	})

	t.Run("balanced book is neutral", func(t *testing.T) {
		snap := snapWithBook(0.51,
			[]domain.BookLevel{{Price: 0.50, Size: 100}},
			[]domain.BookLevel{{Price: 0.52, Size: 100}},
		)
		res := OrderBookImbalance(snap)
		require.NotNil(t, res)
		assert.InDelta(t, 0.0, res.Value, 1e-12)
		assert.Equal(t, domain.SignalNeutral, res.Signal)
	})

	t.Run("bid-heavy book is bullish", func(t *testing.T) {
		snap := snapWithBook(0.51,
			[]domain.BookLevel{{Price: 0.50, Size: 300}},
			[]domain.BookLevel{{Price: 0.52, Size: 100}},
		)
		res := OrderBookImbalance(snap)
		require.NotNil(t, res)
		assert.InDelta(t, 0.5, res.Value, 1e-12, "equal distances cancel the weights")
		assert.Equal(t, domain.SignalBullish, res.Signal)
	})

	t.Run("levels outside the band are ignored", func(t *testing.T) {
		snap := snapWithBook(0.51,
			[]domain.BookLevel{{Price: 0.50, Size: 100}, {Price: 0.30, Size: 9999}},
			[]domain.BookLevel{{Price: 0.52, Size: 100}},
		)
		res := OrderBookImbalance(snap)
		require.NotNil(t, res)
		assert.InDelta(t, 0.0, res.Value, 1e-12)
	})
}

func TestCumulativeVolumeDelta(t *testing.T) {
	assert.Nil(t, CumulativeVolumeDelta(&domain.MarketSnapshot{}))

	snap := &domain.MarketSnapshot{Trades: []domain.FeedTrade{
		{Side: domain.SideBuy, Size: 10},
		{Side: domain.SideSell, Size: 4},
	}}
	res := CumulativeVolumeDelta(snap)
	require.NotNil(t, res)
	assert.InDelta(t, 6.0, res.Value, 1e-12)
	assert.Equal(t, domain.SignalBullish, res.Signal)

	snap.Trades[0].Side = domain.SideSell
	res = CumulativeVolumeDelta(snap)
	assert.Equal(t, domain.SignalBearish, res.Signal)
}

func TestRSI(t *testing.T) {
	t.Run("nil below lookback", func(t *testing.T) {
		snap := &domain.MarketSnapshot{Candles: candlesFromCloses(rampCloses(rsiPeriod, 0.4, 0.6)...)}
		assert.Nil(t, RSI(snap))
	})

	t.Run("all gains saturate at 100", func(t *testing.T) {
		snap := &domain.MarketSnapshot{Candles: candlesFromCloses(rampCloses(30, 0.3, 0.7)...)}
		res := RSI(snap)
		require.NotNil(t, res)
		assert.InDelta(t, 100, res.Value, 1e-9)
		assert.Equal(t, domain.SignalBearish, res.Signal, "overbought")
	})

	t.Run("all losses saturate at 0", func(t *testing.T) {
		snap := &domain.MarketSnapshot{Candles: candlesFromCloses(rampCloses(30, 0.7, 0.3)...)}
		res := RSI(snap)
		require.NotNil(t, res)
		assert.InDelta(t, 0, res.Value, 1e-9)
		assert.Equal(t, domain.SignalBullish, res.Signal, "oversold")
	})

	t.Run("flat closes read 50", func(t *testing.T) {
		snap := &domain.MarketSnapshot{Candles: candlesFromCloses(repeatCloses(30, 0.5)...)}
		res := RSI(snap)
		require.NotNil(t, res)
		assert.InDelta(t, 50, res.Value, 1e-9)
		assert.Equal(t, domain.SignalNeutral, res.Signal)
	})
}

func TestMACD(t *testing.T) {
	t.Run("nil below lookback", func(t *testing.T) {
		snap := &domain.MarketSnapshot{Candles: candlesFromCloses(rampCloses(30, 0.4, 0.6)...)}
		assert.Nil(t, MACD(snap))
	})

	t.Run("late surge is bullish", func(t *testing.T) {
		closes := append(repeatCloses(35, 0.5), rampCloses(10, 0.51, 0.7)...)
		snap := &domain.MarketSnapshot{Candles: candlesFromCloses(closes...)}
		res := MACD(snap)
		require.NotNil(t, res)
		assert.Greater(t, res.Value, 0.0)
		assert.Equal(t, domain.SignalBullish, res.Signal)
	})

	t.Run("late drop is bearish", func(t *testing.T) {
		closes := append(repeatCloses(35, 0.5), rampCloses(10, 0.49, 0.3)...)
		snap := &domain.MarketSnapshot{Candles: candlesFromCloses(closes...)}
		res := MACD(snap)
		require.NotNil(t, res)
		assert.Equal(t, domain.SignalBearish, res.Signal)
	})
}

func TestEMACross(t *testing.T) {
	assert.Nil(t, EMACross(&domain.MarketSnapshot{Candles: candlesFromCloses(rampCloses(20, 0.4, 0.6)...)}))

	up := &domain.MarketSnapshot{Candles: candlesFromCloses(append(repeatCloses(21, 0.4), rampCloses(10, 0.42, 0.6)...)...)}
	res := EMACross(up)
	require.NotNil(t, res)
	assert.Equal(t, domain.SignalBullish, res.Signal, "fast EMA above slow after a rally")

	down := &domain.MarketSnapshot{Candles: candlesFromCloses(append(repeatCloses(21, 0.6), rampCloses(10, 0.58, 0.4)...)...)}
	res = EMACross(down)
	require.NotNil(t, res)
	assert.Equal(t, domain.SignalBearish, res.Signal)
}

func TestVWAP(t *testing.T) {
	assert.Nil(t, VWAP(&domain.MarketSnapshot{Mid: 0.5}))

	snap := &domain.MarketSnapshot{
		Mid: 0.5,
		Trades: []domain.FeedTrade{
			{Price: 0.40, Size: 30, Side: domain.SideBuy},
			{Price: 0.40, Size: 10, Side: domain.SideSell},
		},
	}
	res := VWAP(snap)
	require.NotNil(t, res)
	assert.InDelta(t, 0.1, res.Value, 1e-12, "mid trades above VWAP")
	assert.Equal(t, domain.SignalBullish, res.Signal)

	snap.Mid = 0.3
	res = VWAP(snap)
	assert.Equal(t, domain.SignalBearish, res.Signal)
}

func TestHeikinAshiStreak(t *testing.T) {
	assert.Nil(t, HeikinAshiStreak(&domain.MarketSnapshot{Candles: candlesFromCloses(0.5)}))

	up := &domain.MarketSnapshot{Candles: candlesFromCloses(0.50, 0.52, 0.54, 0.56, 0.58)}
	res := HeikinAshiStreak(up)
	require.NotNil(t, res)
	assert.GreaterOrEqual(t, res.Value, float64(haStreakMin))
	assert.Equal(t, domain.SignalBullish, res.Signal)

	down := &domain.MarketSnapshot{Candles: candlesFromCloses(0.58, 0.56, 0.54, 0.52, 0.50)}
	res = HeikinAshiStreak(down)
	require.NotNil(t, res)
	assert.LessOrEqual(t, res.Value, -float64(haStreakMin))
	assert.Equal(t, domain.SignalBearish, res.Signal)

	short := &domain.MarketSnapshot{Candles: candlesFromCloses(0.50, 0.52, 0.51)}
	res = HeikinAshiStreak(short)
	require.NotNil(t, res)
	assert.Equal(t, domain.SignalNeutral, res.Signal, "streak below minimum")
}

func TestPointOfControl(t *testing.T) {
	assert.Nil(t, PointOfControl(&domain.MarketSnapshot{Mid: 0.5}))

	snap := &domain.MarketSnapshot{
		Mid: 0.50,
		Trades: []domain.FeedTrade{
			{Price: 0.40, Size: 100, Side: domain.SideBuy},
			{Price: 0.45, Size: 30, Side: domain.SideSell},
			{Price: 0.401, Size: 50, Side: domain.SideBuy}, // same bucket as 0.40
		},
	}
	res := PointOfControl(snap)
	require.NotNil(t, res)
	assert.InDelta(t, 0.40, res.Value, 1e-9)
	assert.Equal(t, domain.SignalBullish, res.Signal, "mid above the control point")
}

func TestWallDetection(t *testing.T) {
	assert.Nil(t, WallDetection(&domain.MarketSnapshot{}))

	snap := snapWithBook(0.5,
		[]domain.BookLevel{
			{Price: 0.49, Size: 200}, {Price: 0.48, Size: 10}, {Price: 0.47, Size: 10},
			{Price: 0.46, Size: 10}, {Price: 0.45, Size: 10},
		},
		[]domain.BookLevel{
			{Price: 0.51, Size: 10}, {Price: 0.52, Size: 10}, {Price: 0.53, Size: 10},
			{Price: 0.54, Size: 10}, {Price: 0.55, Size: 10},
		},
	)
	res := WallDetection(snap)
	require.NotNil(t, res)
	assert.Equal(t, 1.0, res.Value, "one bid wall, no ask walls")
	assert.Equal(t, domain.SignalBullish, res.Signal)
}

func TestBollingerPercentB(t *testing.T) {
	alternating := make([]float64, bollingerPeriod)
	for i := range alternating {
		if i%2 == 0 {
			alternating[i] = 0.4
		} else {
			alternating[i] = 0.6
		}
	}

	t.Run("nil when band is degenerate", func(t *testing.T) {
		snap := &domain.MarketSnapshot{Mid: 0.5, Candles: candlesFromCloses(repeatCloses(25, 0.5)...)}
		assert.Nil(t, BollingerPercentB(snap))
	})

	t.Run("near lower band is bullish", func(t *testing.T) {
		// mean 0.5, sd 0.1 → band [0.3, 0.7]
		snap := &domain.MarketSnapshot{Mid: 0.32, Candles: candlesFromCloses(alternating...)}
		res := BollingerPercentB(snap)
		require.NotNil(t, res)
		assert.InDelta(t, 0.05, res.Value, 1e-9)
		assert.Equal(t, domain.SignalBullish, res.Signal)
	})

	t.Run("near upper band is bearish", func(t *testing.T) {
		snap := &domain.MarketSnapshot{Mid: 0.68, Candles: candlesFromCloses(alternating...)}
		res := BollingerPercentB(snap)
		require.NotNil(t, res)
		assert.InDelta(t, 0.95, res.Value, 1e-9)
		assert.Equal(t, domain.SignalBearish, res.Signal)
	})

	t.Run("clamped to [0,1]", func(t *testing.T) {
		snap := &domain.MarketSnapshot{Mid: 0.95, Candles: candlesFromCloses(alternating...)}
		res := BollingerPercentB(snap)
		require.NotNil(t, res)
		assert.Equal(t, 1.0, res.Value)
	})
}

func TestFlowToxicity(t *testing.T) {
	assert.Nil(t, FlowToxicity(&domain.MarketSnapshot{}))

	buys := &domain.MarketSnapshot{Trades: []domain.FeedTrade{
		{Side: domain.SideBuy, Size: 5}, {Side: domain.SideBuy, Size: 5},
	}}
	res := FlowToxicity(buys)
	require.NotNil(t, res)
	assert.InDelta(t, 1.0, res.Value, 1e-12)
	assert.Equal(t, domain.SignalBullish, res.Signal)

	mixed := &domain.MarketSnapshot{Trades: []domain.FeedTrade{
		{Side: domain.SideBuy, Size: 5}, {Side: domain.SideSell, Size: 5},
	}}
	res = FlowToxicity(mixed)
	require.NotNil(t, res)
	assert.Equal(t, domain.SignalNeutral, res.Signal, "balanced flow stays inside the threshold")
}

func TestRateOfChange(t *testing.T) {
	assert.Nil(t, RateOfChange(&domain.MarketSnapshot{Candles: candlesFromCloses(rampCloses(10, 0.4, 0.6)...)}))

	closes := append(repeatCloses(10, 0.5), 0.55)
	snap := &domain.MarketSnapshot{Candles: candlesFromCloses(closes...)}
	res := RateOfChange(snap)
	require.NotNil(t, res)
	assert.InDelta(t, 10.0, res.Value, 1e-9)
	assert.Equal(t, domain.SignalBullish, res.Signal)
}

func TestComputeAll_SkipsUnmetLookbacks(t *testing.T) {
	// Book and trades only: candle-based indicators must be absent, not zero.
	snap := &domain.MarketSnapshot{
		Mid: 0.5,
		Book: domain.OrderBook{
			Bids: []domain.BookLevel{{Price: 0.49, Size: 10}},
			Asks: []domain.BookLevel{{Price: 0.51, Size: 10}},
		},
		Trades: []domain.FeedTrade{{Price: 0.5, Size: 1, Side: domain.SideBuy}},
	}
	set := ComputeAll(snap)

	assert.Contains(t, set, domain.IndOBI)
	assert.Contains(t, set, domain.IndCVD)
	assert.NotContains(t, set, domain.IndRSI)
	assert.NotContains(t, set, domain.IndMACD)
	assert.NotContains(t, set, domain.IndBollingerB)
	assert.NotContains(t, set, domain.IndROC)
}
