package rules

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/polyrule/polyrule/internal/domain"
)

// CurrentVersion is the rule file format version this build writes.
const CurrentVersion = 2

// ruleFile is the on-disk envelope. Version gates an explicit migration per
// bump; structural compatibility across versions is never assumed.
type ruleFile struct {
	Version int             `json:"version"`
	Rules   json.RawMessage `json:"rules"`
}

// migration upgrades the raw rules payload from version v to v+1.
type migration func(raw json.RawMessage) (json.RawMessage, error)

var migrations = map[int]migration{
	1: migrateV1,
}

// LoadRules reads, migrates and validates a rule file. A missing file is an
// empty rule set, not an error.
func LoadRules(path string) ([]domain.TradingRule, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rules.LoadRules: read %q: %w", path, err)
	}
	return ParseRules(data)
}

// ParseRules decodes a rule file payload, applying migrations as needed.
func ParseRules(data []byte) ([]domain.TradingRule, error) {
	var file ruleFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("rules.ParseRules: decode envelope: %w", err)
	}
	if file.Version == 0 {
		file.Version = 1
	}
	if file.Version > CurrentVersion {
		return nil, fmt.Errorf("rules.ParseRules: file version %d newer than supported %d", file.Version, CurrentVersion)
	}

	raw := file.Rules
	for v := file.Version; v < CurrentVersion; v++ {
		mig, ok := migrations[v]
		if !ok {
			return nil, fmt.Errorf("rules.ParseRules: no migration from version %d", v)
		}
		migrated, err := mig(raw)
		if err != nil {
			return nil, fmt.Errorf("rules.ParseRules: migrate v%d: %w", v, err)
		}
		raw = migrated
	}

	var out []domain.TradingRule
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("rules.ParseRules: decode rules: %w", err)
		}
	}
	for i := range out {
		if err := validateRule(out[i]); err != nil {
			return nil, fmt.Errorf("rules.ParseRules: rule %q: %w", out[i].ID, err)
		}
	}
	return out, nil
}

// SaveRules writes the rule set at the current format version.
func SaveRules(path string, ruleSet []domain.TradingRule) error {
	raw, err := json.Marshal(ruleSet)
	if err != nil {
		return fmt.Errorf("rules.SaveRules: encode rules: %w", err)
	}
	data, err := json.MarshalIndent(ruleFile{Version: CurrentVersion, Rules: raw}, "", "  ")
	if err != nil {
		return fmt.Errorf("rules.SaveRules: encode envelope: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("rules.SaveRules: write %q: %w", path, err)
	}
	return nil
}

func validateRule(r domain.TradingRule) error {
	if r.ID == "" {
		return fmt.Errorf("missing id")
	}
	hasConditions := len(r.Conditions) > 0
	if hasConditions == (r.Random != nil) {
		return fmt.Errorf("exactly one of conditions or randomConfig must be set")
	}
	if r.Random != nil {
		if r.Random.UpRatio < 0 || r.Random.UpRatio > 1 {
			return fmt.Errorf("upRatio %.4f outside [0,1]", r.Random.UpRatio)
		}
	}
	if r.Cooldown < 0 {
		return fmt.Errorf("negative cooldown")
	}
	if r.Action.Type != domain.ActionBuy {
		return fmt.Errorf("unknown action type %q", r.Action.Type)
	}
	if !r.IsRandom() && r.Action.Outcome != domain.OutcomeYes && r.Action.Outcome != domain.OutcomeNo {
		return fmt.Errorf("unknown action outcome %q", r.Action.Outcome)
	}
	if r.Action.Amount <= 0 {
		return fmt.Errorf("action amount must be positive")
	}
	return nil
}

// migrateV1 upgrades v1 rules: cooldown was stored in milliseconds and the
// market filter field was called "market". Everything else carries over.
func migrateV1(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	var v1 []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &v1); err != nil {
		return nil, err
	}
	for _, r := range v1 {
		if cd, ok := r["cooldown"]; ok {
			var ms float64
			if err := json.Unmarshal(cd, &ms); err != nil {
				return nil, fmt.Errorf("cooldown: %w", err)
			}
			sec, err := json.Marshal(ms / 1000)
			if err != nil {
				return nil, err
			}
			r["cooldown"] = sec
		}
		if mf, ok := r["market"]; ok {
			r["marketFilter"] = mf
			delete(r, "market")
		}
	}
	return json.Marshal(v1)
}
