package domain

// Signal is the qualitative reading of an indicator or bias score.
type Signal string

const (
	SignalBullish Signal = "bullish"
	SignalBearish Signal = "bearish"
	SignalNeutral Signal = "neutral"
)

// Vote returns the signed vote the signal casts in the bias aggregation.
func (s Signal) Vote() float64 {
	switch s {
	case SignalBullish:
		return 1
	case SignalBearish:
		return -1
	}
	return 0
}

// IndicatorName identifies one of the streaming indicators.
type IndicatorName string

const (
	IndOBI         IndicatorName = "obi"
	IndCVD         IndicatorName = "cvd"
	IndRSI         IndicatorName = "rsi"
	IndMACD        IndicatorName = "macd"
	IndEMACross    IndicatorName = "ema_cross"
	IndVWAP        IndicatorName = "vwap"
	IndHeikinAshi  IndicatorName = "heikin_ashi"
	IndPOC         IndicatorName = "poc"
	IndWalls       IndicatorName = "walls"
	IndBollingerB  IndicatorName = "bollinger_b"
	IndFlowToxicity IndicatorName = "flow_toxicity"
	IndROC         IndicatorName = "roc"
)

// IndicatorNames lists all indicators in a stable order.
var IndicatorNames = []IndicatorName{
	IndOBI, IndCVD, IndRSI, IndMACD, IndEMACross, IndVWAP,
	IndHeikinAshi, IndPOC, IndWalls, IndBollingerB, IndFlowToxicity, IndROC,
}

// IndicatorResult is one indicator reading. A nil *IndicatorResult means the
// lookback is unmet: "no opinion", which is not the same as neutral.
type IndicatorResult struct {
	Name   IndicatorName
	Value  float64
	Signal Signal
}

// IndicatorSet is the latest reading of every indicator. Absent entries mean
// insufficient history.
type IndicatorSet map[IndicatorName]*IndicatorResult

// BiasResult is the composite directional score over all indicators.
type BiasResult struct {
	Score  float64
	Signal Signal
}
