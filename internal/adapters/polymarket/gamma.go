package polymarket

import (
	"context"
	"fmt"
	"net/url"

	"github.com/polyrule/polyrule/internal/domain"
)

const gammaMarketsPath = "/markets"

// FetchMarket looks up one market on Gamma by condition ID.
func (c *Client) FetchMarket(ctx context.Context, conditionID string) (domain.Market, error) {
	u := fmt.Sprintf("%s%s?condition_ids=%s&limit=1",
		c.gammaBase, gammaMarketsPath, url.QueryEscape(conditionID))

	var resp gammaMarketsResponse
	if err := c.get(ctx, c.gammaLimiter, u, &resp); err != nil {
		return domain.Market{}, fmt.Errorf("polymarket.FetchMarket: %w", err)
	}
	if len(resp) == 0 {
		return domain.Market{}, fmt.Errorf("polymarket.FetchMarket: no market for condition %s", conditionID)
	}
	return mapGammaMarket(resp[0])
}

// FetchCurrentMarket returns the newest open market of a recurring series,
// identified by its slug prefix. The 5-minute series mint a fresh market
// every period, so "newest open" is the one currently trading.
func (c *Client) FetchCurrentMarket(ctx context.Context, seriesSlug string) (domain.Market, error) {
	q := url.Values{}
	q.Set("slug_contains", seriesSlug)
	q.Set("active", "true")
	q.Set("closed", "false")
	q.Set("order", "startDate")
	q.Set("ascending", "false")
	q.Set("limit", "1")
	u := fmt.Sprintf("%s%s?%s", c.gammaBase, gammaMarketsPath, q.Encode())

	var resp gammaMarketsResponse
	if err := c.get(ctx, c.gammaLimiter, u, &resp); err != nil {
		return domain.Market{}, fmt.Errorf("polymarket.FetchCurrentMarket: %w", err)
	}
	if len(resp) == 0 {
		return domain.Market{}, fmt.Errorf("polymarket.FetchCurrentMarket: no open market for series %s", seriesSlug)
	}
	return mapGammaMarket(resp[0])
}
