package domain

// MarketContext is the only input the rule engine sees. PriceNo is always
// derived as 1−PriceYes so the invariant priceYes+priceNo == 1 holds by
// construction.
type MarketContext struct {
	Slug        string
	PriceYes    float64
	PriceNo     float64
	Spread      float64
	Volume      float64
	TimeToClose float64 // seconds until the market resolves
	AOI         float64
	HasAOI      bool // false while outcome history is shorter than the window
}

// NewMarketContext builds a context, deriving PriceNo from PriceYes.
func NewMarketContext(slug string, priceYes, spread, volume, timeToClose float64) MarketContext {
	return MarketContext{
		Slug:        slug,
		PriceYes:    priceYes,
		PriceNo:     1 - priceYes,
		Spread:      spread,
		Volume:      volume,
		TimeToClose: timeToClose,
	}
}

// WithAOI returns a copy of the context carrying the given AOI reading.
func (c MarketContext) WithAOI(aoi float64) MarketContext {
	c.AOI = aoi
	c.HasAOI = true
	return c
}

// ConditionField is the closed set of context fields a rule condition may
// reference. Unknown fields are a parse error, never a silent zero.
type ConditionField string

const (
	FieldPriceYes    ConditionField = "priceYes"
	FieldPriceNo     ConditionField = "priceNo"
	FieldSpread      ConditionField = "spread"
	FieldVolume      ConditionField = "volume"
	FieldTimeToClose ConditionField = "timeToClose"
	FieldAOI         ConditionField = "aoi"
)

// Valid reports whether f is one of the known condition fields.
func (f ConditionField) Valid() bool {
	switch f {
	case FieldPriceYes, FieldPriceNo, FieldSpread, FieldVolume, FieldTimeToClose, FieldAOI:
		return true
	}
	return false
}

// Lookup returns the value of the field in the context. The second return is
// false when the field has no reading yet (AOI with insufficient history);
// conditions on an absent field do not match.
func (c MarketContext) Lookup(f ConditionField) (float64, bool) {
	switch f {
	case FieldPriceYes:
		return c.PriceYes, true
	case FieldPriceNo:
		return c.PriceNo, true
	case FieldSpread:
		return c.Spread, true
	case FieldVolume:
		return c.Volume, true
	case FieldTimeToClose:
		return c.TimeToClose, true
	case FieldAOI:
		return c.AOI, c.HasAOI
	}
	return 0, false
}
