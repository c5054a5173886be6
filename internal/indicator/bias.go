package indicator

import "github.com/polyrule/polyrule/internal/domain"

// BiasConfig weighs each indicator's vote and sets the classification
// thresholds for the composite score.
type BiasConfig struct {
	Weights          map[domain.IndicatorName]float64
	BullishThreshold float64
	BearishThreshold float64
}

// DefaultBiasConfig weighs every indicator equally at 1.0 and classifies
// scores beyond ±1.5 as directional.
func DefaultBiasConfig() BiasConfig {
	weights := make(map[domain.IndicatorName]float64, len(domain.IndicatorNames))
	for _, name := range domain.IndicatorNames {
		weights[name] = 1.0
	}
	return BiasConfig{
		Weights:          weights,
		BullishThreshold: 1.5,
		BearishThreshold: -1.5,
	}
}

// AggregateBias folds the current indicator readings into one directional
// score. Absent indicators cast no vote. Deterministic and side-effect-free.
func AggregateBias(set domain.IndicatorSet, cfg BiasConfig) domain.BiasResult {
	var score float64
	for _, name := range domain.IndicatorNames {
		res, ok := set[name]
		if !ok || res == nil {
			continue
		}
		score += res.Signal.Vote() * cfg.Weights[name]
	}

	signal := domain.SignalNeutral
	if score >= cfg.BullishThreshold {
		signal = domain.SignalBullish
	} else if score <= cfg.BearishThreshold {
		signal = domain.SignalBearish
	}
	return domain.BiasResult{Score: score, Signal: signal}
}
