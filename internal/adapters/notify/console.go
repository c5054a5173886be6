// Package notify presents rule fires and backtest results on the console.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/polyrule/polyrule/internal/domain"
)

// Console implements ports.Notifier. With table mode off it prints compact
// one-liners suited to a long-running live session.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole creates a notifier writing to stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter creates a notifier for tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// NotifyMatch prints one rule fire: the executed trade, or the rejection.
func (c *Console) NotifyMatch(_ context.Context, match domain.RuleMatch, trade *domain.Trade, execErr error) error {
	ts := match.Timestamp.Format("15:04:05")

	if execErr != nil {
		fmt.Fprintf(c.out, "[%s] rule %q fired on %s but was rejected: %v\n",
			ts, match.Rule.Name, match.Context.Slug, execErr)
		return nil
	}
	if trade == nil {
		return nil
	}

	fmt.Fprintf(c.out, "[%s] rule %q: BUY %s %.2f @ %.3f on %s (total $%.2f)\n",
		ts, match.Rule.Name, trade.Outcome, trade.Quantity, trade.Price,
		match.Context.Slug, trade.Total)
	return nil
}

// NotifyBacktest prints the run report: a summary block and, in table mode,
// the full trade log.
func (c *Console) NotifyBacktest(_ context.Context, result domain.BacktestResult) error {
	fmt.Fprintf(c.out, "\n")
	fmt.Fprintf(c.out, "========================================================\n")
	fmt.Fprintf(c.out, "  BACKTEST %s\n", result.RunID)
	fmt.Fprintf(c.out, "========================================================\n\n")

	fmt.Fprintf(c.out, "  Starting balance:   $%.2f\n", result.StartingBalance)
	fmt.Fprintf(c.out, "  Final balance:      $%.2f\n", result.FinalBalance)
	fmt.Fprintf(c.out, "  Total P&L:          $%+.2f (%+.2f%%)\n",
		result.TotalPnL, pct(result.TotalPnL, result.StartingBalance))
	fmt.Fprintf(c.out, "  Trades:             %d\n", result.TradeCount)
	fmt.Fprintf(c.out, "  Win rate:           %.1f%%\n", result.WinRate*100)
	fmt.Fprintf(c.out, "  Max drawdown:       %.1f%%\n", result.MaxDrawdown*100)
	fmt.Fprintf(c.out, "  Markets processed:  %d\n", result.MarketsProcessed)
	if result.SkippedRows > 0 {
		fmt.Fprintf(c.out, "  Skipped rows:       %d\n", result.SkippedRows)
	}

	if c.table && len(result.Trades) > 0 {
		fmt.Fprintf(c.out, "\n")
		c.printTrades(result.Trades)
	}
	return nil
}

func (c *Console) printTrades(trades []domain.Trade) {
	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("Time", "Market", "Side", "Outcome", "Price", "Qty", "Fee", "Total", "Rule")

	for _, t := range trades {
		tbl.Append(
			t.Timestamp.Format(time.TimeOnly),
			t.Slug,
			string(t.Side),
			string(t.Outcome),
			fmt.Sprintf("%.3f", t.Price),
			fmt.Sprintf("%.2f", t.Quantity),
			fmt.Sprintf("$%.4f", t.Fee),
			fmt.Sprintf("$%.2f", t.Total),
			t.RuleID,
		)
	}
	tbl.Render()
}

func pct(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}
