// Package export writes the trade log as CSV for spreadsheet analysis.
// Pure formatting boundary over encoding/csv; no third-party CSV library is
// warranted for a fixed eleven-column layout.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/polyrule/polyrule/internal/domain"
)

var header = []string{
	"id", "timestamp", "market_id", "slug", "side", "outcome",
	"price", "quantity", "fee", "total", "rule_id",
}

// WriteTrades writes the trades as CSV, header first, in the given order.
func WriteTrades(w io.Writer, trades []domain.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("export.WriteTrades: header: %w", err)
	}

	for _, t := range trades {
		record := []string{
			t.ID,
			t.Timestamp.UTC().Format(time.RFC3339),
			t.MarketID,
			t.Slug,
			string(t.Side),
			string(t.Outcome),
			formatFloat(t.Price),
			formatFloat(t.Quantity),
			formatFloat(t.Fee),
			formatFloat(t.Total),
			t.RuleID,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("export.WriteTrades: trade %s: %w", t.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export.WriteTrades: flush: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
