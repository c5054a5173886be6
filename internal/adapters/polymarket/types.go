package polymarket

// Raw DTOs for the Polymarket APIs. Used only inside this package; the
// conversion to domain entities lives in mapping.go.

// --- Gamma API ---

// gammaMarketsResponse is the response of GET /markets on Gamma.
type gammaMarketsResponse []gammaMarket

// gammaMarket is one market's metadata. ClobTokenIDs and Outcomes arrive as
// JSON-encoded string arrays inside strings.
type gammaMarket struct {
	ID           string `json:"id"`
	ConditionID  string `json:"conditionId"`
	Question     string `json:"question"`
	Slug         string `json:"slug"`
	StartDateISO string `json:"startDateIso"`
	EndDateISO   string `json:"endDateIso"`
	ClobTokenIDs string `json:"clobTokenIds"`
	Outcomes     string `json:"outcomes"`
	Active       bool   `json:"active"`
	Closed       bool   `json:"closed"`
}

// --- CLOB API ---

// pricesHistoryResponse is the response of GET /prices-history.
type pricesHistoryResponse struct {
	History []pricePointRaw `json:"history"`
}

// pricePointRaw is one sampled price: unix seconds and probability.
type pricePointRaw struct {
	T int64   `json:"t"`
	P float64 `json:"p"`
}
