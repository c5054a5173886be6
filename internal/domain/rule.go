package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Operator compares a context field against a condition value.
type Operator string

const (
	OpLess    Operator = "<"
	OpGreater Operator = ">"
	OpEqual   Operator = "=="
	OpBetween Operator = "between"
)

// Valid reports whether op is a known operator.
func (op Operator) Valid() bool {
	switch op {
	case OpLess, OpGreater, OpEqual, OpBetween:
		return true
	}
	return false
}

// ConditionMode combines the results of a rule's conditions.
type ConditionMode string

const (
	ModeAnd ConditionMode = "AND"
	ModeOr  ConditionMode = "OR"
)

// Condition is one threshold check against a MarketContext field.
// For OpBetween the bounds are [Value, Upper], both inclusive.
type Condition struct {
	Field ConditionField
	Op    Operator
	Value float64
	Upper float64 // only meaningful for OpBetween
}

// conditionJSON is the wire form: value is either a number or a two-element
// array for between.
type conditionJSON struct {
	Field    ConditionField  `json:"field"`
	Operator Operator        `json:"operator"`
	Value    json.RawMessage `json:"value"`
}

// MarshalJSON encodes between-conditions with an array value.
func (c Condition) MarshalJSON() ([]byte, error) {
	var value any = c.Value
	if c.Op == OpBetween {
		value = [2]float64{c.Value, c.Upper}
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(conditionJSON{Field: c.Field, Operator: c.Op, Value: raw})
}

// UnmarshalJSON accepts a scalar value or a [low, high] pair and rejects
// unknown fields and operators.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var w conditionJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if !w.Field.Valid() {
		return fmt.Errorf("domain.Condition: unknown field %q", w.Field)
	}
	if !w.Operator.Valid() {
		return fmt.Errorf("domain.Condition: unknown operator %q", w.Operator)
	}

	c.Field = w.Field
	c.Op = w.Operator
	if w.Operator == OpBetween {
		var bounds [2]float64
		if err := json.Unmarshal(w.Value, &bounds); err != nil {
			return fmt.Errorf("domain.Condition: between needs [low, high]: %w", err)
		}
		c.Value, c.Upper = bounds[0], bounds[1]
		return nil
	}
	if err := json.Unmarshal(w.Value, &c.Value); err != nil {
		return fmt.Errorf("domain.Condition: numeric value: %w", err)
	}
	return nil
}

// RandomConfig makes a rule fire near market close with a random outcome.
// UpRatio is the probability of resolving the trigger to YES.
type RandomConfig struct {
	TriggerAtTimeToClose float64 `json:"triggerAtTimeToClose"` // seconds
	UpRatio              float64 `json:"upRatio"`
}

// ActionType is what a fired rule does. Only paper buys exist today.
type ActionType string

const ActionBuy ActionType = "BUY"

// RuleAction describes the trade a fired rule requests. Amount is in quote
// currency (USDC); the executor derives quantity from the fill price.
type RuleAction struct {
	Type    ActionType `json:"type"`
	Outcome Outcome    `json:"outcome"`
	Amount  float64    `json:"amount"`
}

// TradingRule is one user-defined threshold rule. Exactly one of Conditions
// or Random drives triggering.
type TradingRule struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Enabled      bool          `json:"enabled"`
	MarketFilter string        `json:"marketFilter"` // "*", "prefix*" or exact slug
	Mode         ConditionMode `json:"conditionMode"`
	Conditions   []Condition   `json:"conditions,omitempty"`
	Random       *RandomConfig `json:"randomConfig,omitempty"`
	Cooldown     float64       `json:"cooldown"` // seconds between fires
	Action       RuleAction    `json:"action"`
}

// IsRandom reports whether the rule triggers via RandomConfig.
func (r TradingRule) IsRandom() bool {
	return r.Random != nil
}

// RuleMatch is one rule that fired during an evaluation pass.
type RuleMatch struct {
	Rule            TradingRule
	ResolvedOutcome Outcome
	Context         MarketContext
	Timestamp       time.Time
}
