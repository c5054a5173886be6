package ports

import "github.com/polyrule/polyrule/internal/domain"

// SnapshotSource hands out the latest immutable feed snapshot. Snapshot must
// be cheap and safe to call from the indicator timer loop; nil means the feed
// has not produced a consistent state yet.
type SnapshotSource interface {
	Snapshot() *domain.MarketSnapshot
	Status() domain.FeedStatus
}
