package indicator

import (
	"testing"

	"github.com/polyrule/polyrule/internal/domain"
	"github.com/stretchr/testify/assert"
)

func readings(signals map[domain.IndicatorName]domain.Signal) domain.IndicatorSet {
	set := make(domain.IndicatorSet, len(signals))
	for name, sig := range signals {
		set[name] = &domain.IndicatorResult{Name: name, Signal: sig}
	}
	return set
}

func TestAggregateBias_EqualWeights(t *testing.T) {
	cfg := DefaultBiasConfig()

	set := readings(map[domain.IndicatorName]domain.Signal{
		domain.IndOBI:  domain.SignalBullish,
		domain.IndCVD:  domain.SignalBullish,
		domain.IndRSI:  domain.SignalBearish,
		domain.IndVWAP: domain.SignalNeutral,
	})

	bias := AggregateBias(set, cfg)
	assert.InDelta(t, 1.0, bias.Score, 1e-12)
	assert.Equal(t, domain.SignalNeutral, bias.Signal, "score below bullish threshold")
}

func TestAggregateBias_Thresholds(t *testing.T) {
	cfg := DefaultBiasConfig()

	bullish := readings(map[domain.IndicatorName]domain.Signal{
		domain.IndOBI: domain.SignalBullish,
		domain.IndCVD: domain.SignalBullish,
	})
	bias := AggregateBias(bullish, cfg)
	assert.Equal(t, domain.SignalBullish, bias.Signal, "score 2.0 >= 1.5")

	bearish := readings(map[domain.IndicatorName]domain.Signal{
		domain.IndOBI:  domain.SignalBearish,
		domain.IndCVD:  domain.SignalBearish,
		domain.IndMACD: domain.SignalBearish,
	})
	bias = AggregateBias(bearish, cfg)
	assert.InDelta(t, -3.0, bias.Score, 1e-12)
	assert.Equal(t, domain.SignalBearish, bias.Signal)
}

func TestAggregateBias_WeightsScaleVotes(t *testing.T) {
	cfg := DefaultBiasConfig()
	cfg.Weights[domain.IndOBI] = 2.0
	cfg.Weights[domain.IndCVD] = 0.5

	set := readings(map[domain.IndicatorName]domain.Signal{
		domain.IndOBI: domain.SignalBullish,
		domain.IndCVD: domain.SignalBearish,
	})

	bias := AggregateBias(set, cfg)
	assert.InDelta(t, 1.5, bias.Score, 1e-12)
	assert.Equal(t, domain.SignalBullish, bias.Signal)
}

func TestAggregateBias_AbsentIndicatorsCastNoVote(t *testing.T) {
	cfg := DefaultBiasConfig()

	bias := AggregateBias(domain.IndicatorSet{}, cfg)
	assert.Equal(t, 0.0, bias.Score)
	assert.Equal(t, domain.SignalNeutral, bias.Signal)

	// nil entry behaves like an absent one.
	set := domain.IndicatorSet{domain.IndOBI: nil}
	bias = AggregateBias(set, cfg)
	assert.Equal(t, 0.0, bias.Score)
}

func TestAggregateBias_Deterministic(t *testing.T) {
	cfg := DefaultBiasConfig()
	set := readings(map[domain.IndicatorName]domain.Signal{
		domain.IndOBI:   domain.SignalBullish,
		domain.IndWalls: domain.SignalBearish,
		domain.IndROC:   domain.SignalBullish,
	})
	a := AggregateBias(set, cfg)
	b := AggregateBias(set, cfg)
	assert.Equal(t, a, b)
}
