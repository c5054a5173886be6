package ports

import (
	"context"
	"time"

	"github.com/polyrule/polyrule/internal/domain"
)

// HistoryStore is the tabular store boundary. The core treats it as opaque
// read/write: resolved markets, their price snapshots, and the derived
// outcome view that feeds the rolling-outcome aggregator.
type HistoryStore interface {
	SaveMarket(ctx context.Context, m domain.MarketRow) error
	SaveSnapshot(ctx context.Context, s domain.SnapshotRow) error
	Markets(ctx context.Context, from, to time.Time) ([]domain.MarketRow, error)
	Snapshots(ctx context.Context, marketID string) ([]domain.SnapshotRow, error)
	// Outcomes returns binary outcomes ordered by market start time.
	Outcomes(ctx context.Context, from, to time.Time) ([]domain.OutcomeRow, error)
	SaveTrade(ctx context.Context, t domain.Trade) error
	Close() error
}
