package ports

import (
	"context"

	"github.com/polyrule/polyrule/internal/domain"
)

// MarketProvider looks up market metadata: the two outcome token IDs,
// question text and timing. Used to know what to subscribe to live and what
// a historical row represents.
type MarketProvider interface {
	FetchMarket(ctx context.Context, conditionID string) (domain.Market, error)
	FetchCurrentMarket(ctx context.Context, seriesSlug string) (domain.Market, error)
}
