// Package exchange implements ExchangeGateway: a uniform capability
// over a live venue and a simulated one. Grounded on the teacher's
// internal/clients/tradernet.Client for the live REST shape and on
// original_source's app/core/execution/paper_exchange.py for the
// simulated venue's ledger semantics.
package exchange

import (
	"context"

	"github.com/aristath/arduino-trader/internal/domain"
)

// Gateway is the capability both venues implement.
type Gateway interface {
	// FetchBalance returns every asset's {free, used, total}.
	FetchBalance(ctx context.Context) (map[string]domain.AssetBalance, error)

	// FetchTicker returns {last, bid, ask} for symbol. Even the
	// simulated venue consults a live price source here — simulation
	// refers only to the ledger, never to prices.
	FetchTicker(ctx context.Context, symbol string) (domain.Ticker, error)

	// FetchOHLCV returns bars in the venue's native ordering.
	FetchOHLCV(ctx context.Context, symbol, timeframe string, since *int64, limit int) ([]domain.Bar, error)

	// CreateOrder places an order. price is nil for a market order, or
	// for a limit order whose price should be resolved from the ticker.
	CreateOrder(ctx context.Context, symbol string, orderType domain.OrderType, side domain.Side, amount float64, price *float64) (domain.Order, error)

	// FetchPositions is an optional capability; ok is false when the
	// venue cannot report positions directly (the executor then derives
	// them from non-quote balances with unknown entry price).
	FetchPositions(ctx context.Context) (positions []domain.Position, ok bool, err error)
}
