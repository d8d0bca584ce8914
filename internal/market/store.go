// Package market implements MarketStore: the idempotent OHLCV and
// on-chain metric row store. It is the sole writer of persisted bars.
package market

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/domain"
)

// Order selects ascending or descending time order for QueryBars.
type Order int

const (
	Asc Order = iota
	Desc
)

// Store is the repository over market.db, grounded on the teacher's
// BaseRepository + TradeRepository shape.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// New builds a Store and ensures the schema exists.
func New(db *sql.DB, log zerolog.Logger) (*Store, error) {
	if err := InitSchema(db); err != nil {
		return nil, fmt.Errorf("market: init schema: %w", err)
	}
	return &Store{db: db, log: log.With().Str("component", "market_store").Logger()}, nil
}

// UpsertResult reports how many of a batch were newly inserted versus
// already present (the duplicate count spec.md §4.2 calls for).
type UpsertResult struct {
	Inserted  int
	Duplicate int
}

// UpsertBars inserts rows idempotently; the whole batch commits or
// rolls back together. A key collision is not an error — the existing
// row wins and is counted as a duplicate.
func (s *Store) UpsertBars(rows []domain.Bar) (UpsertResult, error) {
	var result UpsertResult
	if len(rows) == 0 {
		return result, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return result, fmt.Errorf("market: begin upsert_bars: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO ohlcv_bars
			(venue, symbol, timeframe, open_time_ms, open, high, low, close, volume, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(venue, symbol, timeframe, open_time_ms) DO NOTHING
	`)
	if err != nil {
		return result, fmt.Errorf("market: prepare upsert_bars: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, bar := range rows {
		if !bar.Valid() {
			return result, fmt.Errorf("market: bar %s/%s@%d: %w", bar.Symbol, bar.Timeframe, bar.OpenTimeMs, errInvalidBar)
		}
		res, err := stmt.Exec(bar.Venue, bar.Symbol, bar.Timeframe, bar.OpenTimeMs,
			bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, now)
		if err != nil {
			return result, fmt.Errorf("market: exec upsert_bars: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return result, fmt.Errorf("market: rows_affected upsert_bars: %w", err)
		}
		if affected == 0 {
			result.Duplicate++
		} else {
			result.Inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return UpsertResult{}, fmt.Errorf("market: commit upsert_bars: %w", err)
	}

	s.log.Debug().Int("inserted", result.Inserted).Int("duplicate", result.Duplicate).Msg("upsert_bars")
	return result, nil
}

// QueryBars returns bars for (symbol, timeframe) in the requested order,
// capped at limit.
func (s *Store) QueryBars(symbol, timeframe string, order Order, limit int) ([]domain.Bar, error) {
	dir := "ASC"
	if order == Desc {
		dir = "DESC"
	}
	query := fmt.Sprintf(`
		SELECT venue, symbol, timeframe, open_time_ms, open, high, low, close, volume, created_at
		FROM ohlcv_bars
		WHERE symbol = ? AND timeframe = ?
		ORDER BY open_time_ms %s
		LIMIT ?
	`, dir)

	rows, err := s.db.Query(query, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("market: query_bars: %w", err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		var createdAt string
		if err := rows.Scan(&b.Venue, &b.Symbol, &b.Timeframe, &b.OpenTimeMs,
			&b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &createdAt); err != nil {
			return nil, fmt.Errorf("market: scan bar: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			b.CreatedAt = t
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("market: iterate bars: %w", err)
	}
	return bars, nil
}

// Count returns the row count of one of the three market.db tables.
func (s *Store) Count(table string) (int, error) {
	if !validTable[table] {
		return 0, fmt.Errorf("market: count: %w: %s", errUnknownTable, table)
	}
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		return 0, fmt.Errorf("market: count %s: %w", table, err)
	}
	return n, nil
}

var validTable = map[string]bool{
	"ohlcv_bars":        true,
	"chain_metrics":     true,
	"exchange_netflows": true,
}

// UpsertChainMetric inserts a single on-chain metric row, idempotent on
// (asset, metric_name, source, timestamp_s).
func (s *Store) UpsertChainMetric(m domain.ChainMetric) error {
	var extraJSON *string
	if len(m.Extra) > 0 {
		b, err := json.Marshal(m.Extra)
		if err != nil {
			return fmt.Errorf("market: marshal chain metric extra: %w", err)
		}
		s := string(b)
		extraJSON = &s
	}

	_, err := s.db.Exec(`
		INSERT INTO chain_metrics
			(asset, metric_name, source, timestamp_s, value, exchange_netflow, whale_inflow_count, extra_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(asset, metric_name, source, timestamp_s) DO NOTHING
	`, m.Asset, m.MetricName, m.Source, m.TimestampS, m.Value, m.ExchangeNetflow, m.WhaleInflowCount, extraJSON)
	if err != nil {
		return fmt.Errorf("market: upsert_chain_metric: %w", err)
	}
	return nil
}

// UpsertNetflow inserts a single netflow row, idempotent on
// (asset, venue, timestamp_s). Netflow is recomputed here, never trusted
// from the caller, to preserve the derived-field invariant.
func (s *Store) UpsertNetflow(n domain.Netflow) error {
	n = domain.NewNetflow(n.Asset, n.Venue, n.TimestampS, n.Inflow, n.Outflow)
	_, err := s.db.Exec(`
		INSERT INTO exchange_netflows (asset, venue, timestamp_s, inflow, outflow, netflow)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(asset, venue, timestamp_s) DO NOTHING
	`, n.Asset, n.Venue, n.TimestampS, n.Inflow, n.Outflow, n.Netflow)
	if err != nil {
		return fmt.Errorf("market: upsert_netflow: %w", err)
	}
	return nil
}

// LatestNetflows returns the n most recent netflow rows for an asset,
// descending by timestamp.
func (s *Store) LatestNetflows(asset string, n int) ([]domain.Netflow, error) {
	rows, err := s.db.Query(`
		SELECT asset, venue, timestamp_s, inflow, outflow, netflow
		FROM exchange_netflows
		WHERE asset = ?
		ORDER BY timestamp_s DESC
		LIMIT ?
	`, asset, n)
	if err != nil {
		return nil, fmt.Errorf("market: latest_netflows: %w", err)
	}
	defer rows.Close()

	var out []domain.Netflow
	for rows.Next() {
		var nf domain.Netflow
		if err := rows.Scan(&nf.Asset, &nf.Venue, &nf.TimestampS, &nf.Inflow, &nf.Outflow, &nf.Netflow); err != nil {
			return nil, fmt.Errorf("market: scan netflow: %w", err)
		}
		out = append(out, nf)
	}
	return out, rows.Err()
}
