package feed

import (
	"time"

	"github.com/polyrule/polyrule/internal/domain"
)

// candleBuilder aggregates feed trades into 1-minute OHLCV bars. The bar in
// progress is included in the output so indicators see the current minute.
type candleBuilder struct {
	interval time.Duration
	maxBars  int
	closed   []domain.Candle
	current  *domain.Candle
}

func newCandleBuilder(maxBars int) *candleBuilder {
	return &candleBuilder{interval: time.Minute, maxBars: maxBars}
}

// Add folds one trade into the bar for its minute, closing the previous bar
// when the trade falls into a later bucket.
func (b *candleBuilder) Add(t domain.FeedTrade) {
	bucket := t.Timestamp.Truncate(b.interval)

	if b.current != nil && bucket.After(b.current.StartTime) {
		b.closed = append(b.closed, *b.current)
		if len(b.closed) > b.maxBars {
			b.closed = b.closed[len(b.closed)-b.maxBars:]
		}
		b.current = nil
	}

	if b.current == nil {
		b.current = &domain.Candle{
			Open:      t.Price,
			High:      t.Price,
			Low:       t.Price,
			Close:     t.Price,
			Volume:    t.Size,
			StartTime: bucket,
		}
		return
	}

	if t.Price > b.current.High {
		b.current.High = t.Price
	}
	if t.Price < b.current.Low {
		b.current.Low = t.Price
	}
	b.current.Close = t.Price
	b.current.Volume += t.Size
}

// Bars returns the closed bars plus the bar in progress, oldest first. The
// returned slice is a fresh copy.
func (b *candleBuilder) Bars() []domain.Candle {
	out := make([]domain.Candle, 0, len(b.closed)+1)
	out = append(out, b.closed...)
	if b.current != nil {
		out = append(out, *b.current)
	}
	return out
}
