package ports

import (
	"context"

	"github.com/polyrule/polyrule/internal/domain"
)

// Notifier receives rule fires and run results for presentation. Failures
// are logged by callers and never abort trading.
type Notifier interface {
	NotifyMatch(ctx context.Context, match domain.RuleMatch, trade *domain.Trade, execErr error) error
	NotifyBacktest(ctx context.Context, result domain.BacktestResult) error
}
