// Package rules implements the pure rule-matching engine shared by the live
// trader and the backtest replay. Both paths call Evaluate with the same
// contract, so a rule can never behave differently live than it would in a
// replay of the same data.
package rules

import (
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/polyrule/polyrule/internal/domain"
)

// equalEpsilon tolerates floating-point noise in "==" conditions.
const equalEpsilon = 1e-4

// Evaluate returns the rules that fire against the context, in rule input
// order, at most one match per rule. It never mutates rules, ctx or
// lastFired; the caller records fire times after acting on a match.
//
// rng drives random-rule outcome draws. Backtests pass a seeded source so
// replays reproduce; nil falls back to the shared global source.
func Evaluate(
	rules []domain.TradingRule,
	ctx domain.MarketContext,
	lastFired map[string]time.Time,
	now time.Time,
	rng *rand.Rand,
) []domain.RuleMatch {
	var matches []domain.RuleMatch
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if !MatchesMarket(rule.MarketFilter, ctx.Slug) {
			continue
		}
		if fired, ok := lastFired[rule.ID]; ok {
			if now.Sub(fired) < time.Duration(rule.Cooldown*float64(time.Second)) {
				continue
			}
		}

		var outcome domain.Outcome
		switch {
		case rule.IsRandom():
			if ctx.TimeToClose > rule.Random.TriggerAtTimeToClose {
				continue
			}
			outcome = drawOutcome(rule.Random.UpRatio, rng)
		default:
			if !conditionsHold(rule, ctx) {
				continue
			}
			outcome = rule.Action.Outcome
		}

		matches = append(matches, domain.RuleMatch{
			Rule:            rule,
			ResolvedOutcome: outcome,
			Context:         ctx,
			Timestamp:       now,
		})
	}
	return matches
}

// MatchesMarket applies the rule's market filter to a slug. Supported forms:
// "*" (everything), "prefix*" (trailing wildcard) and an exact slug. No other
// glob syntax exists.
func MatchesMarket(filter, slug string) bool {
	switch {
	case filter == "" || filter == "*":
		return true
	case strings.HasSuffix(filter, "*"):
		return strings.HasPrefix(slug, strings.TrimSuffix(filter, "*"))
	default:
		return filter == slug
	}
}

func conditionsHold(rule domain.TradingRule, ctx domain.MarketContext) bool {
	if len(rule.Conditions) == 0 {
		return false
	}
	anyTrue := false
	for _, cond := range rule.Conditions {
		ok := evalCondition(cond, ctx)
		if rule.Mode == domain.ModeOr {
			if ok {
				anyTrue = true
			}
			continue
		}
		// AND is the default mode.
		if !ok {
			return false
		}
	}
	if rule.Mode == domain.ModeOr {
		return anyTrue
	}
	return true
}

func evalCondition(cond domain.Condition, ctx domain.MarketContext) bool {
	value, ok := ctx.Lookup(cond.Field)
	if !ok {
		return false
	}
	switch cond.Op {
	case domain.OpLess:
		return value < cond.Value
	case domain.OpGreater:
		return value > cond.Value
	case domain.OpEqual:
		return math.Abs(value-cond.Value) < equalEpsilon
	case domain.OpBetween:
		return value >= cond.Value && value <= cond.Upper
	}
	return false
}

func drawOutcome(upRatio float64, rng *rand.Rand) domain.Outcome {
	var roll float64
	if rng != nil {
		roll = rng.Float64()
	} else {
		roll = rand.Float64()
	}
	if roll < upRatio {
		return domain.OutcomeYes
	}
	return domain.OutcomeNo
}
