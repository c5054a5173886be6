// Package storage implements ports.HistoryStore on SQLite (pure Go driver,
// no CGo). One database holds the resolved market history that backtests
// replay plus the session trade log.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/polyrule/polyrule/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Resolved 5-minute markets, one row each
CREATE TABLE IF NOT EXISTS markets (
    id         TEXT PRIMARY KEY,
    slug       TEXT NOT NULL,
    question   TEXT,
    start_time DATETIME NOT NULL,
    end_time   DATETIME NOT NULL,
    outcome    TEXT NOT NULL DEFAULT ''
);

-- Price observations recorded during a market's life
CREATE TABLE IF NOT EXISTS snapshots (
    market_id   TEXT NOT NULL,
    recorded_at DATETIME NOT NULL,
    best_bid    REAL NOT NULL DEFAULT 0,
    best_ask    REAL NOT NULL DEFAULT 0,
    last_price  REAL NOT NULL DEFAULT 0,
    volume      REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (market_id, recorded_at)
);

-- Session trade log, append only
CREATE TABLE IF NOT EXISTS trades (
    id        TEXT PRIMARY KEY,
    market_id TEXT NOT NULL,
    slug      TEXT,
    side      TEXT NOT NULL,
    outcome   TEXT NOT NULL,
    price     REAL NOT NULL,
    quantity  REAL NOT NULL,
    fee       REAL NOT NULL DEFAULT 0,
    total     REAL NOT NULL,
    ts        DATETIME NOT NULL,
    rule_id   TEXT
);

CREATE INDEX IF NOT EXISTS idx_markets_start  ON markets(start_time);
CREATE INDEX IF NOT EXISTS idx_snapshots_mkt  ON snapshots(market_id, recorded_at);
CREATE INDEX IF NOT EXISTS idx_trades_ts      ON trades(ts);
`

// SQLiteStore persists market history and trades on SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at the given path and
// applies the schema. ":memory:" works for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveMarket upserts one resolved market. Re-saving with a different outcome
// overwrites; the outcome recording is the source of truth.
func (s *SQLiteStore) SaveMarket(ctx context.Context, m domain.MarketRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO markets (id, slug, question, start_time, end_time, outcome)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			slug       = excluded.slug,
			question   = excluded.question,
			start_time = excluded.start_time,
			end_time   = excluded.end_time,
			outcome    = excluded.outcome
	`, m.ID, m.Slug, m.Question, m.StartTime.UTC(), m.EndTime.UTC(), string(m.Outcome))
	if err != nil {
		return fmt.Errorf("storage.SaveMarket: upsert %s: %w", m.ID, err)
	}
	return nil
}

// SaveSnapshot records one price observation. Duplicate (market, timestamp)
// pairs keep the first write.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, row domain.SnapshotRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (market_id, recorded_at, best_bid, best_ask, last_price, volume)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(market_id, recorded_at) DO NOTHING
	`, row.MarketID, row.RecordedAt.UTC(), row.BestBid, row.BestAsk, row.LastPrice, row.Volume)
	if err != nil {
		return fmt.Errorf("storage.SaveSnapshot: insert %s: %w", row.MarketID, err)
	}
	return nil
}

// Markets returns resolved markets whose start time falls in [from, to],
// ordered by start time. Zero bounds are open.
func (s *SQLiteStore) Markets(ctx context.Context, from, to time.Time) ([]domain.MarketRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slug, question, start_time, end_time, outcome
		FROM markets
		WHERE start_time >= ? AND start_time <= ?
		ORDER BY start_time
	`, lowerBound(from), upperBound(to))
	if err != nil {
		return nil, fmt.Errorf("storage.Markets: query: %w", err)
	}
	defer rows.Close()

	var out []domain.MarketRow
	for rows.Next() {
		var m domain.MarketRow
		var outcome string
		if err := rows.Scan(&m.ID, &m.Slug, &m.Question, &m.StartTime, &m.EndTime, &outcome); err != nil {
			return nil, fmt.Errorf("storage.Markets: scan row: %w", err)
		}
		m.Outcome = domain.Outcome(outcome)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Snapshots returns all observations for one market ordered by time.
func (s *SQLiteStore) Snapshots(ctx context.Context, marketID string) ([]domain.SnapshotRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT market_id, recorded_at, best_bid, best_ask, last_price, volume
		FROM snapshots
		WHERE market_id = ?
		ORDER BY recorded_at
	`, marketID)
	if err != nil {
		return nil, fmt.Errorf("storage.Snapshots: query %s: %w", marketID, err)
	}
	defer rows.Close()

	var out []domain.SnapshotRow
	for rows.Next() {
		var r domain.SnapshotRow
		if err := rows.Scan(&r.MarketID, &r.RecordedAt, &r.BestBid, &r.BestAsk, &r.LastPrice, &r.Volume); err != nil {
			return nil, fmt.Errorf("storage.Snapshots: scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Outcomes returns the binary outcome view ordered by market start time.
// Markets without a recorded outcome are excluded.
func (s *SQLiteStore) Outcomes(ctx context.Context, from, to time.Time) ([]domain.OutcomeRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, start_time, CASE outcome WHEN 'YES' THEN 1 ELSE 0 END
		FROM markets
		WHERE outcome != '' AND start_time >= ? AND start_time <= ?
		ORDER BY start_time
	`, lowerBound(from), upperBound(to))
	if err != nil {
		return nil, fmt.Errorf("storage.Outcomes: query: %w", err)
	}
	defer rows.Close()

	var out []domain.OutcomeRow
	for rows.Next() {
		var r domain.OutcomeRow
		if err := rows.Scan(&r.MarketID, &r.StartTime, &r.Value); err != nil {
			return nil, fmt.Errorf("storage.Outcomes: scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveTrade appends one trade to the session log.
func (s *SQLiteStore) SaveTrade(ctx context.Context, t domain.Trade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (id, market_id, slug, side, outcome, price, quantity, fee, total, ts, rule_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.MarketID, t.Slug, string(t.Side), string(t.Outcome),
		t.Price, t.Quantity, t.Fee, t.Total, t.Timestamp.UTC(), t.RuleID)
	if err != nil {
		return fmt.Errorf("storage.SaveTrade: insert %s: %w", t.ID, err)
	}
	return nil
}

// Trades returns the session trade log ordered by time.
func (s *SQLiteStore) Trades(ctx context.Context) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, market_id, slug, side, outcome, price, quantity, fee, total, ts, rule_id
		FROM trades
		ORDER BY ts
	`)
	if err != nil {
		return nil, fmt.Errorf("storage.Trades: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var side, outcome string
		if err := rows.Scan(&t.ID, &t.MarketID, &t.Slug, &side, &outcome,
			&t.Price, &t.Quantity, &t.Fee, &t.Total, &t.Timestamp, &t.RuleID); err != nil {
			return nil, fmt.Errorf("storage.Trades: scan row: %w", err)
		}
		t.Side = domain.TradeSide(side)
		t.Outcome = domain.Outcome(outcome)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// lowerBound and upperBound turn zero times into open range bounds.
func lowerBound(t time.Time) time.Time {
	if t.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return t.UTC()
}

func upperBound(t time.Time) time.Time {
	if t.IsZero() {
		return time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return t.UTC()
}
