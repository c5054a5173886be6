package indicator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/polyrule/polyrule/internal/domain"
	"github.com/polyrule/polyrule/internal/ports"
)

// DefaultInterval is the fixed recompute cadence. Indicators read the latest
// immutable snapshot on each tick instead of reacting to every feed event,
// which decouples their cost from feed burstiness.
const DefaultInterval = 2 * time.Second

// Reading is one recompute tick's output.
type Reading struct {
	Set             domain.IndicatorSet
	Bias            domain.BiasResult
	SnapshotVersion uint64
	ComputedAt      time.Time
	Stale           bool // feed stopped delivering; values are last known
}

// Engine recomputes all indicators on a timer from an atomically swapped
// feed snapshot. Latest() is safe to call from any goroutine.
type Engine struct {
	source   ports.SnapshotSource
	biasCfg  BiasConfig
	interval time.Duration

	mu     sync.RWMutex
	latest *Reading
}

// NewEngine creates an engine over the given snapshot source. A zero
// interval uses DefaultInterval.
func NewEngine(source ports.SnapshotSource, biasCfg BiasConfig, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Engine{source: source, biasCfg: biasCfg, interval: interval}
}

// Latest returns the most recent reading, or nil before the first tick with
// feed data.
func (e *Engine) Latest() *Reading {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.latest
}

// Run ticks until the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("indicator engine starting", "interval", e.interval)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("indicator engine stopped")
			return nil
		case <-ticker.C:
			e.tick(time.Now())
		}
	}
}

// tick recomputes from the current snapshot. When the feed has nothing new
// (or is disconnected) the previous reading stays visible, flagged stale.
func (e *Engine) tick(now time.Time) {
	snap := e.source.Snapshot()
	if snap == nil || e.source.Status() != domain.FeedConnected {
		e.markStale()
		return
	}

	e.mu.Lock()
	if e.latest != nil && e.latest.SnapshotVersion == snap.Version {
		// Same snapshot as last tick: feed is quiet, not disconnected.
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	set := ComputeAll(snap)
	bias := AggregateBias(set, e.biasCfg)

	e.mu.Lock()
	e.latest = &Reading{
		Set:             set,
		Bias:            bias,
		SnapshotVersion: snap.Version,
		ComputedAt:      now,
	}
	e.mu.Unlock()

	slog.Debug("indicators recomputed",
		"version", snap.Version,
		"indicators", len(set),
		"bias_score", bias.Score,
		"bias", bias.Signal,
	)
}

func (e *Engine) markStale() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.latest != nil && !e.latest.Stale {
		stale := *e.latest
		stale.Stale = true
		e.latest = &stale
		slog.Warn("feed unavailable, indicator readings are stale",
			"version", stale.SnapshotVersion)
	}
}
