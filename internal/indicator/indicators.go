// Package indicator turns raw feed snapshots into normalized technical
// readings and a composite directional bias. Every indicator is a pure
// function of one immutable MarketSnapshot and returns nil when its lookback
// is unmet. Callers must treat nil as "no opinion", not neutral.
package indicator

import (
	"math"

	"github.com/polyrule/polyrule/internal/domain"
)

const (
	obiBand          = 0.10 // price distance from mid considered "near"
	obiThreshold     = 0.10
	rsiPeriod        = 14
	macdFast         = 12
	macdSlow         = 26
	macdSignal       = 9
	emaFastPeriod    = 9
	emaSlowPeriod    = 21
	haStreakMin      = 3
	pocBucket        = 0.01
	wallMultiple     = 4.0
	bollingerPeriod  = 20
	bollingerStdDev  = 2.0
	bollingerLow     = 0.20
	bollingerHigh    = 0.80
	toxicityHalfLife = 20 // trades
	toxicityThreshold = 0.30
	rocPeriod        = 10
)

// Func computes one indicator from a snapshot.
type Func func(snap *domain.MarketSnapshot) *domain.IndicatorResult

// All maps every indicator name to its function, in IndicatorNames order.
var All = map[domain.IndicatorName]Func{
	domain.IndOBI:          OrderBookImbalance,
	domain.IndCVD:          CumulativeVolumeDelta,
	domain.IndRSI:          RSI,
	domain.IndMACD:         MACD,
	domain.IndEMACross:     EMACross,
	domain.IndVWAP:         VWAP,
	domain.IndHeikinAshi:   HeikinAshiStreak,
	domain.IndPOC:          PointOfControl,
	domain.IndWalls:        WallDetection,
	domain.IndBollingerB:   BollingerPercentB,
	domain.IndFlowToxicity: FlowToxicity,
	domain.IndROC:          RateOfChange,
}

// ComputeAll runs every indicator against the snapshot. Entries with unmet
// lookbacks are simply absent from the result.
func ComputeAll(snap *domain.MarketSnapshot) domain.IndicatorSet {
	set := make(domain.IndicatorSet, len(All))
	for _, name := range domain.IndicatorNames {
		if res := All[name](snap); res != nil {
			set[name] = res
		}
	}
	return set
}

// OrderBookImbalance measures bid-vs-ask volume imbalance near the mid,
// weighting each level down with distance. Range [-1, 1].
func OrderBookImbalance(snap *domain.MarketSnapshot) *domain.IndicatorResult {
	mid := snap.Mid
	if mid <= 0 || len(snap.Book.Bids) == 0 || len(snap.Book.Asks) == 0 {
		return nil
	}

	weigh := func(levels []domain.BookLevel) float64 {
		var total float64
		for _, lvl := range levels {
			dist := math.Abs(lvl.Price - mid)
			if dist > obiBand {
				continue
			}
			total += lvl.Size * (1 - dist/obiBand)
		}
		return total
	}

	bidVol := weigh(snap.Book.Bids)
	askVol := weigh(snap.Book.Asks)
	if bidVol+askVol == 0 {
		return nil
	}

	value := (bidVol - askVol) / (bidVol + askVol)
	return &domain.IndicatorResult{
		Name:   domain.IndOBI,
		Value:  value,
		Signal: thresholdSignal(value, obiThreshold, -obiThreshold),
	}
}

// CumulativeVolumeDelta sums signed trade volume over the buffered window.
func CumulativeVolumeDelta(snap *domain.MarketSnapshot) *domain.IndicatorResult {
	if len(snap.Trades) == 0 {
		return nil
	}
	var delta float64
	for _, t := range snap.Trades {
		delta += t.Side.Sign() * t.Size
	}
	return &domain.IndicatorResult{
		Name:   domain.IndCVD,
		Value:  delta,
		Signal: thresholdSignal(delta, 0, 0),
	}
}

// RSI is the Wilder-smoothed relative strength index over candle closes.
// Oversold (<30) reads bullish, overbought (>70) bearish.
func RSI(snap *domain.MarketSnapshot) *domain.IndicatorResult {
	closes := candleCloses(snap.Candles)
	if len(closes) < rsiPeriod+1 {
		return nil
	}

	var avgGain, avgLoss float64
	for i := 1; i <= rsiPeriod; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= rsiPeriod
	avgLoss /= rsiPeriod

	for i := rsiPeriod + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*(rsiPeriod-1) + gain) / rsiPeriod
		avgLoss = (avgLoss*(rsiPeriod-1) + loss) / rsiPeriod
	}

	var value float64
	switch {
	case avgLoss == 0 && avgGain == 0:
		value = 50
	case avgLoss == 0:
		value = 100
	default:
		rs := avgGain / avgLoss
		value = 100 - 100/(1+rs)
	}

	signal := domain.SignalNeutral
	if value < 30 {
		signal = domain.SignalBullish
	} else if value > 70 {
		signal = domain.SignalBearish
	}
	return &domain.IndicatorResult{Name: domain.IndRSI, Value: value, Signal: signal}
}

// MACD returns the signal-line histogram of the fast/slow EMA difference.
func MACD(snap *domain.MarketSnapshot) *domain.IndicatorResult {
	closes := candleCloses(snap.Candles)
	if len(closes) < macdSlow+macdSignal {
		return nil
	}

	fast := emaSeries(closes, macdFast)
	slow := emaSeries(closes, macdSlow)

	// MACD line exists once the slow EMA does.
	line := make([]float64, 0, len(closes)-macdSlow+1)
	for i := macdSlow - 1; i < len(closes); i++ {
		line = append(line, fast[i]-slow[i])
	}
	signalLine := emaSeries(line, macdSignal)

	histogram := line[len(line)-1] - signalLine[len(signalLine)-1]
	return &domain.IndicatorResult{
		Name:   domain.IndMACD,
		Value:  histogram,
		Signal: thresholdSignal(histogram, 0, 0),
	}
}

// EMACross compares the fast EMA against the slow EMA of candle closes.
// Value is the fast−slow spread.
func EMACross(snap *domain.MarketSnapshot) *domain.IndicatorResult {
	closes := candleCloses(snap.Candles)
	if len(closes) < emaSlowPeriod {
		return nil
	}
	fast := emaSeries(closes, emaFastPeriod)
	slow := emaSeries(closes, emaSlowPeriod)
	diff := fast[len(fast)-1] - slow[len(slow)-1]
	return &domain.IndicatorResult{
		Name:   domain.IndEMACross,
		Value:  diff,
		Signal: thresholdSignal(diff, 0, 0),
	}
}

// VWAP compares the mid against the volume-weighted average trade price
// since the start of the buffered window. Value is mid−vwap.
func VWAP(snap *domain.MarketSnapshot) *domain.IndicatorResult {
	if snap.Mid <= 0 || len(snap.Trades) == 0 {
		return nil
	}
	var pv, vol float64
	for _, t := range snap.Trades {
		pv += t.Price * t.Size
		vol += t.Size
	}
	if vol == 0 {
		return nil
	}
	vwap := pv / vol
	diff := snap.Mid - vwap
	return &domain.IndicatorResult{
		Name:   domain.IndVWAP,
		Value:  diff,
		Signal: thresholdSignal(diff, 0, 0),
	}
}

// HeikinAshiStreak counts consecutive same-direction synthetic candles at
// the end of the window. Value is the signed streak length.
func HeikinAshiStreak(snap *domain.MarketSnapshot) *domain.IndicatorResult {
	candles := snap.Candles
	if len(candles) < 2 {
		return nil
	}

	haOpen := (candles[0].Open + candles[0].Close) / 2
	directions := make([]int, len(candles))
	for i, c := range candles {
		haClose := (c.Open + c.High + c.Low + c.Close) / 4
		if i > 0 {
			prev := candles[i-1]
			prevClose := (prev.Open + prev.High + prev.Low + prev.Close) / 4
			haOpen = (haOpen + prevClose) / 2
		}
		switch {
		case haClose > haOpen:
			directions[i] = 1
		case haClose < haOpen:
			directions[i] = -1
		}
	}

	last := directions[len(directions)-1]
	if last == 0 {
		return &domain.IndicatorResult{Name: domain.IndHeikinAshi, Value: 0, Signal: domain.SignalNeutral}
	}
	streak := 0
	for i := len(directions) - 1; i >= 0 && directions[i] == last; i-- {
		streak++
	}
	value := float64(streak * last)

	signal := domain.SignalNeutral
	if streak >= haStreakMin {
		if last > 0 {
			signal = domain.SignalBullish
		} else {
			signal = domain.SignalBearish
		}
	}
	return &domain.IndicatorResult{Name: domain.IndHeikinAshi, Value: value, Signal: signal}
}

// PointOfControl finds the price bucket with the highest traded volume in
// the window. Trading above the POC reads bullish.
func PointOfControl(snap *domain.MarketSnapshot) *domain.IndicatorResult {
	if snap.Mid <= 0 || len(snap.Trades) == 0 {
		return nil
	}
	volume := make(map[int]float64)
	for _, t := range snap.Trades {
		volume[int(math.Round(t.Price/pocBucket))] += t.Size
	}
	bestBucket, bestVol := 0, -1.0
	for bucket, vol := range volume {
		if vol > bestVol || (vol == bestVol && bucket < bestBucket) {
			bestBucket, bestVol = bucket, vol
		}
	}
	poc := float64(bestBucket) * pocBucket
	return &domain.IndicatorResult{
		Name:   domain.IndPOC,
		Value:  poc,
		Signal: thresholdSignal(snap.Mid-poc, 0, 0),
	}
}

// WallDetection counts order-book levels whose size exceeds a multiple of
// that side's average. Value is bid walls minus ask walls: support-heavy
// books read bullish.
func WallDetection(snap *domain.MarketSnapshot) *domain.IndicatorResult {
	if len(snap.Book.Bids) == 0 || len(snap.Book.Asks) == 0 {
		return nil
	}

	countWalls := func(levels []domain.BookLevel) int {
		var total float64
		for _, lvl := range levels {
			total += lvl.Size
		}
		avg := total / float64(len(levels))
		if avg == 0 {
			return 0
		}
		n := 0
		for _, lvl := range levels {
			if lvl.Size > wallMultiple*avg {
				n++
			}
		}
		return n
	}

	net := countWalls(snap.Book.Bids) - countWalls(snap.Book.Asks)
	return &domain.IndicatorResult{
		Name:   domain.IndWalls,
		Value:  float64(net),
		Signal: thresholdSignal(float64(net), 0, 0),
	}
}

// BollingerPercentB places the mid within the Bollinger band of candle
// closes, clamped to [0, 1]. Near the lower band reads bullish.
func BollingerPercentB(snap *domain.MarketSnapshot) *domain.IndicatorResult {
	closes := candleCloses(snap.Candles)
	if snap.Mid <= 0 || len(closes) < bollingerPeriod {
		return nil
	}
	window := closes[len(closes)-bollingerPeriod:]

	var sum float64
	for _, c := range window {
		sum += c
	}
	mean := sum / bollingerPeriod

	var variance float64
	for _, c := range window {
		d := c - mean
		variance += d * d
	}
	sd := math.Sqrt(variance / bollingerPeriod)
	if sd == 0 {
		return nil
	}

	upper := mean + bollingerStdDev*sd
	lower := mean - bollingerStdDev*sd
	value := (snap.Mid - lower) / (upper - lower)
	value = math.Max(0, math.Min(1, value))

	signal := domain.SignalNeutral
	if value < bollingerLow {
		signal = domain.SignalBullish
	} else if value > bollingerHigh {
		signal = domain.SignalBearish
	}
	return &domain.IndicatorResult{Name: domain.IndBollingerB, Value: value, Signal: signal}
}

// FlowToxicity is an aggressiveness-weighted trade-flow measure in [-1, 1]:
// recent trades weigh more, with an exponential half-life in trade count.
func FlowToxicity(snap *domain.MarketSnapshot) *domain.IndicatorResult {
	if len(snap.Trades) == 0 {
		return nil
	}
	var signed, total float64
	n := len(snap.Trades)
	for i, t := range snap.Trades {
		age := float64(n - 1 - i)
		w := math.Exp2(-age / toxicityHalfLife)
		signed += t.Side.Sign() * t.Size * w
		total += t.Size * w
	}
	if total == 0 {
		return nil
	}
	value := signed / total
	return &domain.IndicatorResult{
		Name:   domain.IndFlowToxicity,
		Value:  value,
		Signal: thresholdSignal(value, toxicityThreshold, -toxicityThreshold),
	}
}

// RateOfChange is the percentage close change over the ROC lookback.
func RateOfChange(snap *domain.MarketSnapshot) *domain.IndicatorResult {
	closes := candleCloses(snap.Candles)
	if len(closes) < rocPeriod+1 {
		return nil
	}
	past := closes[len(closes)-1-rocPeriod]
	if past == 0 {
		return nil
	}
	value := (closes[len(closes)-1] - past) / past * 100
	return &domain.IndicatorResult{
		Name:   domain.IndROC,
		Value:  value,
		Signal: thresholdSignal(value, 0, 0),
	}
}

// thresholdSignal reads bullish above bullAbove, bearish below bearBelow.
// With both at 0 the sign decides and exact zero is neutral.
func thresholdSignal(value, bullAbove, bearBelow float64) domain.Signal {
	switch {
	case value > bullAbove:
		return domain.SignalBullish
	case value < bearBelow:
		return domain.SignalBearish
	}
	return domain.SignalNeutral
}

func candleCloses(candles []domain.Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}

// emaSeries returns the EMA at every index. Indices before period−1 hold the
// running simple average as the conventional warm-up.
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	k := 2.0 / float64(period+1)
	var sum float64
	for i, v := range values {
		if i < period {
			sum += v
			out[i] = sum / float64(i+1)
			continue
		}
		out[i] = (v-out[i-1])*k + out[i-1]
	}
	return out
}
