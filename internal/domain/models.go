// Package domain holds the shared value types that flow between the
// market store, indicator kit, risk sizer and executor. None of these
// types own I/O; they are plain data.
package domain

import "time"

// Side is the direction of an order or signal.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType distinguishes limit from market execution.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// OrderStatus is the uniform status vocabulary TradeExecutor returns.
type OrderStatus string

const (
	OrderStatusSuccess  OrderStatus = "success"
	OrderStatusError    OrderStatus = "error"
	OrderStatusFiltered OrderStatus = "filtered"
	OrderStatusClosed   OrderStatus = "closed" // gateway-level: order filled
)

// Bar is one OHLCV candle, keyed by (venue, symbol, timeframe, open_time_ms).
// Invariant: Low <= min(Open, Close) <= max(Open, Close) <= High, Volume >= 0.
type Bar struct {
	Venue      string
	Symbol     string
	Timeframe  string
	OpenTimeMs int64
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	CreatedAt  time.Time
}

// Valid reports whether the bar satisfies the OHLCV invariant.
func (b Bar) Valid() bool {
	lo, hi := b.Open, b.Close
	if hi < lo {
		lo, hi = hi, lo
	}
	return b.Low <= lo && hi <= b.High && b.Volume >= 0
}

// ChainMetric is a scalar on-chain observation, keyed by
// (asset, metric_name, source, timestamp_s).
type ChainMetric struct {
	Asset            string
	MetricName       string
	Source           string
	TimestampS       int64
	Value            float64
	ExchangeNetflow  *float64
	WhaleInflowCount *int64
	Extra            map[string]any
}

// Netflow is the derived exchange inflow/outflow record, keyed by
// (asset, venue, timestamp_s). Netflow = Inflow - Outflow always.
type Netflow struct {
	Asset      string
	Venue      string
	TimestampS int64
	Inflow     float64
	Outflow    float64
	Netflow    float64
}

// NewNetflow builds a Netflow preserving the derived-field invariant.
func NewNetflow(asset, venue string, timestampS int64, inflow, outflow float64) Netflow {
	return Netflow{
		Asset:      asset,
		Venue:      venue,
		TimestampS: timestampS,
		Inflow:     inflow,
		Outflow:    outflow,
		Netflow:    inflow - outflow,
	}
}

// Signal is the transient value the scan job hands to the executor.
type Signal struct {
	Symbol   string
	Side     Side
	Price    *float64
	Amount   float64
	Features map[string]float64
}

// Position is a read-only venue position, possibly missing entry price
// (see SPEC_FULL.md §9 open question on entry-price sourcing).
type Position struct {
	Symbol     string
	Contracts  float64
	EntryPrice *float64
}

// Order is the uniform result TradeExecutor.PlaceOrder returns,
// regardless of which gateway handled it.
type Order struct {
	Status    OrderStatus
	OrderID   string
	Symbol    string
	Side      Side
	Amount    float64
	Price     float64
	Timestamp time.Time
	Error     string
}

// Ticker is the last/bid/ask price triple fetched from a gateway.
type Ticker struct {
	Symbol string
	Last   float64
	Bid    float64
	Ask    float64
}

// AssetBalance is one entry of a fetch_balance() response.
type AssetBalance struct {
	Asset string
	Free  float64
	Used  float64
	Total float64
}
