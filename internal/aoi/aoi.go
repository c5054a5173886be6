// Package aoi computes the Aggregate Outcome Index: rolling means of binary
// market outcomes over a set of window sizes. A window value exists only once
// the window is completely filled; partial averages are never substituted.
package aoi

import "github.com/polyrule/polyrule/internal/domain"

// DefaultWindows are the configured window sizes in markets. With 5-minute
// markets they cover the last market, 30 minutes, 1 hour, 12 hours and 24
// hours.
var DefaultWindows = []int{1, 6, 12, 144, 288}

// Aggregator maintains rolling outcome sums incrementally as resolved
// markets arrive. Not safe for concurrent use.
type Aggregator struct {
	windows  []int
	outcomes []int       // full history, ordered by market start time
	sums     map[int]int // window size → sum of the last N outcomes
}

// New creates an aggregator for the given window sizes, or DefaultWindows
// when none are given.
func New(windows ...int) *Aggregator {
	if len(windows) == 0 {
		windows = DefaultWindows
	}
	sums := make(map[int]int, len(windows))
	for _, w := range windows {
		sums[w] = 0
	}
	return &Aggregator{windows: windows, sums: sums}
}

// FromRows builds an aggregator preloaded with the outcome view from the
// history store. Rows must already be ordered by start time.
func FromRows(rows []domain.OutcomeRow, windows ...int) *Aggregator {
	a := New(windows...)
	for _, r := range rows {
		a.Append(r.Value)
	}
	return a
}

// Append records the next resolved outcome (1 = YES, anything else = NO) and
// updates every rolling sum in O(windows).
func (a *Aggregator) Append(outcome int) {
	v := 0
	if outcome == 1 {
		v = 1
	}
	a.outcomes = append(a.outcomes, v)
	n := len(a.outcomes)
	for _, w := range a.windows {
		a.sums[w] += v
		if n > w {
			a.sums[w] -= a.outcomes[n-1-w]
		}
	}
}

// Len returns the number of outcomes seen.
func (a *Aggregator) Len() int {
	return len(a.outcomes)
}

// Value returns the rolling mean for the window ending at the latest outcome.
// ok is false while fewer than window outcomes exist.
func (a *Aggregator) Value(window int) (float64, bool) {
	if window <= 0 || len(a.outcomes) < window {
		return 0, false
	}
	sum, tracked := a.sums[window]
	if !tracked {
		// Untracked window: fall back to a direct scan.
		sum = 0
		for _, v := range a.outcomes[len(a.outcomes)-window:] {
			sum += v
		}
	}
	return float64(sum) / float64(window), true
}

// At returns the rolling mean for the window ending at index i, computed from
// the recorded history. ok is false when i < window−1.
func (a *Aggregator) At(window, i int) (float64, bool) {
	if window <= 0 || i < window-1 || i >= len(a.outcomes) {
		return 0, false
	}
	sum := 0
	for _, v := range a.outcomes[i-window+1 : i+1] {
		sum += v
	}
	return float64(sum) / float64(window), true
}

// Series returns the full rolling-mean series for one window. Entries before
// the window fills are nil.
func (a *Aggregator) Series(window int) []*float64 {
	out := make([]*float64, len(a.outcomes))
	if window <= 0 {
		return out
	}
	sum := 0
	for i, v := range a.outcomes {
		sum += v
		if i >= window {
			sum -= a.outcomes[i-window]
		}
		if i >= window-1 {
			mean := float64(sum) / float64(window)
			out[i] = &mean
		}
	}
	return out
}
