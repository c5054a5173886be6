// Package feed maintains a live view of one market from the CLOB websocket
// market channel. Each processed event batch publishes a fresh immutable
// MarketSnapshot through an atomic pointer; readers never see partial state
// and never block the read loop.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/polyrule/polyrule/internal/domain"
)

const (
	defaultTradeBuffer  = 200
	defaultCandleBuffer = 120

	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	pingInterval   = 10 * time.Second
)

// Listener subscribes to the market channel for one market and keeps bounded
// book, trade and candle buffers. It satisfies ports.SnapshotSource.
type Listener struct {
	url    string
	market domain.Market

	tradeBuffer int
	dialer      *websocket.Dialer

	snapshot atomic.Pointer[domain.MarketSnapshot]
	status   atomic.Value // domain.FeedStatus

	// Mutable feed state, owned by the run goroutine.
	bids    map[string]float64 // price string → size, zero-size levels removed
	asks    map[string]float64
	trades  []domain.FeedTrade
	candles *candleBuilder
	version uint64
}

// Option adjusts listener construction.
type Option func(*Listener)

// WithBuffers overrides the bounded trade and candle window sizes.
func WithBuffers(trades, candles int) Option {
	return func(l *Listener) {
		l.tradeBuffer = trades
		l.candles = newCandleBuilder(candles)
	}
}

// New creates a listener for the given market channel endpoint.
func New(url string, market domain.Market, opts ...Option) *Listener {
	l := &Listener{
		url:         url,
		market:      market,
		tradeBuffer: defaultTradeBuffer,
		dialer:      websocket.DefaultDialer,
		bids:        make(map[string]float64),
		asks:        make(map[string]float64),
		candles:     newCandleBuilder(defaultCandleBuffer),
	}
	l.status.Store(domain.FeedDisconnected)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Snapshot returns the latest published snapshot, or nil before the first
// event arrives.
func (l *Listener) Snapshot() *domain.MarketSnapshot {
	return l.snapshot.Load()
}

// Status reports the current connection state.
func (l *Listener) Status() domain.FeedStatus {
	return l.status.Load().(domain.FeedStatus)
}

// Run connects and consumes events until ctx is cancelled, reconnecting with
// exponential backoff on any failure. It always returns ctx.Err().
func (l *Listener) Run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			l.status.Store(domain.FeedDisconnected)
			return ctx.Err()
		}

		l.status.Store(domain.FeedConnecting)
		err := l.session(ctx)
		l.status.Store(domain.FeedDisconnected)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		slog.Warn("feed session ended, reconnecting",
			"market", l.market.Slug, "backoff", backoff, "err", err)
		select {
		case <-ctx.Done():
			l.status.Store(domain.FeedDisconnected)
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// session runs one connection: dial, subscribe, read until failure.
func (l *Listener) session(ctx context.Context) error {
	conn, _, err := l.dialer.DialContext(ctx, l.url, nil)
	if err != nil {
		return fmt.Errorf("feed.session: dial %s: %w", l.url, err)
	}
	defer conn.Close()

	sub := map[string]any{
		"type":       "market",
		"assets_ids": []string{l.market.TokenYesID},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("feed.session: subscribe: %w", err)
	}

	l.status.Store(domain.FeedConnected)
	slog.Info("feed connected", "market", l.market.Slug, "url", l.url)

	// Unblock the read loop when ctx is cancelled and keep the connection
	// alive with pings in between.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		var events []wsEvent
		if err := conn.ReadJSON(&events); err != nil {
			return fmt.Errorf("feed.session: read: %w", err)
		}
		for _, ev := range events {
			l.apply(ev)
		}
		l.publish(time.Now())
	}
}

type wsLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type wsChange struct {
	Price string `json:"price"`
	Side  string `json:"side"`
	Size  string `json:"size"`
}

// wsEvent is one market-channel event. The channel multiplexes book
// snapshots, incremental changes and last-trade prints on event_type.
type wsEvent struct {
	EventType string     `json:"event_type"`
	AssetID   string     `json:"asset_id"`
	Bids      []wsLevel  `json:"bids"`
	Asks      []wsLevel  `json:"asks"`
	Changes   []wsChange `json:"changes"`
	Price     string     `json:"price"`
	Size      string     `json:"size"`
	Side      string     `json:"side"`
	Timestamp string     `json:"timestamp"`
}

func (l *Listener) apply(ev wsEvent) {
	if ev.AssetID != "" && ev.AssetID != l.market.TokenYesID {
		return
	}
	switch ev.EventType {
	case "book":
		l.bids = levelsToMap(ev.Bids)
		l.asks = levelsToMap(ev.Asks)
	case "price_change":
		for _, ch := range ev.Changes {
			side := l.asks
			if ch.Side == "BUY" {
				side = l.bids
			}
			size := parseFloat(ch.Size)
			if size <= 0 {
				delete(side, ch.Price)
			} else {
				side[ch.Price] = size
			}
		}
	case "last_trade_price":
		trade := domain.FeedTrade{
			Price:     parseFloat(ev.Price),
			Size:      parseFloat(ev.Size),
			Side:      domain.TradeSide(ev.Side),
			Timestamp: parseTimestamp(ev.Timestamp),
		}
		if trade.Price <= 0 {
			return
		}
		l.trades = append(l.trades, trade)
		if len(l.trades) > l.tradeBuffer {
			l.trades = l.trades[len(l.trades)-l.tradeBuffer:]
		}
		l.candles.Add(trade)
	default:
		slog.Debug("ignoring feed event", "event_type", ev.EventType)
	}
}

// publish swaps in a fresh snapshot built from the current feed state.
func (l *Listener) publish(now time.Time) {
	book := domain.OrderBook{
		Bids: sortedLevels(l.bids, true),
		Asks: sortedLevels(l.asks, false),
	}
	l.version++

	snap := &domain.MarketSnapshot{
		Market:  l.market,
		Book:    book,
		Mid:     book.Midpoint(),
		Trades:  append([]domain.FeedTrade(nil), l.trades...),
		Candles: l.candles.Bars(),
		Version: l.version,
		TakenAt: now,
	}
	l.snapshot.Store(snap)
}

func levelsToMap(levels []wsLevel) map[string]float64 {
	m := make(map[string]float64, len(levels))
	for _, lv := range levels {
		if size := parseFloat(lv.Size); size > 0 {
			m[lv.Price] = size
		}
	}
	return m
}

func sortedLevels(side map[string]float64, descending bool) []domain.BookLevel {
	out := make([]domain.BookLevel, 0, len(side))
	for price, size := range side {
		out = append(out, domain.BookLevel{Price: parseFloat(price), Size: size})
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	return out
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// parseTimestamp reads the channel's millisecond epoch strings, falling back
// to the local clock on garbage.
func parseTimestamp(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return time.Now()
	}
	return time.UnixMilli(ms)
}
