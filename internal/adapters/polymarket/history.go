package polymarket

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/polyrule/polyrule/internal/domain"
)

const pricesHistoryPath = "/prices-history"

// PriceHistory fetches sampled YES prices for one token from the CLOB and
// returns them as snapshot rows for the given market. The API has no books
// for past periods, so LastPrice is the only populated price field.
func (c *Client) PriceHistory(ctx context.Context, marketID, tokenID string, from, to time.Time) ([]domain.SnapshotRow, error) {
	q := url.Values{}
	q.Set("market", tokenID)
	q.Set("startTs", fmt.Sprintf("%d", from.Unix()))
	q.Set("endTs", fmt.Sprintf("%d", to.Unix()))
	q.Set("fidelity", "1")
	u := fmt.Sprintf("%s%s?%s", c.clobBase, pricesHistoryPath, q.Encode())

	var resp pricesHistoryResponse
	if err := c.get(ctx, c.clobLimiter, u, &resp); err != nil {
		return nil, fmt.Errorf("polymarket.PriceHistory: %w", err)
	}

	rows := make([]domain.SnapshotRow, 0, len(resp.History))
	for _, p := range resp.History {
		if p.P <= 0 {
			continue
		}
		rows = append(rows, domain.SnapshotRow{
			MarketID:   marketID,
			RecordedAt: time.Unix(p.T, 0).UTC(),
			LastPrice:  p.P,
		})
	}
	return rows, nil
}
