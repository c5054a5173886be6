package polymarket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/polyrule/polyrule/internal/domain"
)

// mapGammaMarket converts a Gamma DTO to a domain.Market. The token order in
// clobTokenIds follows the outcomes field; the Yes/Up token comes first on
// binary markets, but we match on the outcome labels to be safe.
func mapGammaMarket(gm gammaMarket) (domain.Market, error) {
	m := domain.Market{
		ID:       gm.ConditionID,
		Slug:     gm.Slug,
		Question: gm.Question,
		Active:   gm.Active,
		Closed:   gm.Closed,
	}
	if m.ID == "" {
		m.ID = gm.ID
	}

	tokens, err := decodeStringArray(gm.ClobTokenIDs)
	if err != nil {
		return domain.Market{}, fmt.Errorf("polymarket.mapGammaMarket: token ids: %w", err)
	}
	outcomes, err := decodeStringArray(gm.Outcomes)
	if err != nil {
		return domain.Market{}, fmt.Errorf("polymarket.mapGammaMarket: outcomes: %w", err)
	}
	if len(tokens) < 2 {
		return domain.Market{}, fmt.Errorf("polymarket.mapGammaMarket: market %s has %d tokens", m.ID, len(tokens))
	}

	m.TokenYesID, m.TokenNoID = tokens[0], tokens[1]
	if len(outcomes) >= 2 && isNoLabel(outcomes[0]) {
		m.TokenYesID, m.TokenNoID = tokens[1], tokens[0]
	}

	m.StartTime = parseGammaTime(gm.StartDateISO)
	m.EndTime = parseGammaTime(gm.EndDateISO)
	return m, nil
}

// decodeStringArray reads Gamma's nested encoding: a JSON string containing
// a JSON array of strings.
func decodeStringArray(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func isNoLabel(outcome string) bool {
	switch strings.ToLower(outcome) {
	case "no", "down":
		return true
	}
	return false
}

// parseGammaTime tries the date layouts Gamma is known to emit. Zero time on
// anything unparseable.
func parseGammaTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05Z",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
