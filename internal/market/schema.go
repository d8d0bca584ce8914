package market

import "database/sql"

// Schema holds the three tables market.db owns: OHLCV bars, on-chain
// metrics, and exchange netflows, each with the unique index that makes
// upsert idempotent per the natural key in the data model.
const Schema = `
CREATE TABLE IF NOT EXISTS ohlcv_bars (
    id INTEGER PRIMARY KEY,
    venue TEXT NOT NULL,
    symbol TEXT NOT NULL,
    timeframe TEXT NOT NULL,
    open_time_ms INTEGER NOT NULL,
    open REAL NOT NULL,
    high REAL NOT NULL,
    low REAL NOT NULL,
    close REAL NOT NULL,
    volume REAL NOT NULL,
    created_at TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_ohlcv_bars_key
    ON ohlcv_bars(venue, symbol, timeframe, open_time_ms);

CREATE INDEX IF NOT EXISTS idx_ohlcv_bars_symbol_time
    ON ohlcv_bars(symbol, timeframe, open_time_ms DESC);

CREATE TABLE IF NOT EXISTS chain_metrics (
    id INTEGER PRIMARY KEY,
    asset TEXT NOT NULL,
    metric_name TEXT NOT NULL,
    source TEXT NOT NULL,
    timestamp_s INTEGER NOT NULL,
    value REAL NOT NULL,
    exchange_netflow REAL,
    whale_inflow_count INTEGER,
    extra_json TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_chain_metrics_key
    ON chain_metrics(asset, metric_name, source, timestamp_s);

CREATE TABLE IF NOT EXISTS exchange_netflows (
    id INTEGER PRIMARY KEY,
    asset TEXT NOT NULL,
    venue TEXT NOT NULL,
    timestamp_s INTEGER NOT NULL,
    inflow REAL NOT NULL,
    outflow REAL NOT NULL,
    netflow REAL NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_exchange_netflows_key
    ON exchange_netflows(asset, venue, timestamp_s);
`

// InitSchema creates the market.db tables if they do not already exist.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
