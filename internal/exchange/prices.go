package exchange

import (
	"context"

	"github.com/aristath/arduino-trader/internal/domain"
)

// PriceSource is the live quote feed the simulated venue defers to for
// tickers and historical bars — simulation refers only to the ledger,
// never to prices (spec.md §4.1).
type PriceSource interface {
	FetchTicker(ctx context.Context, symbol string) (domain.Ticker, error)
	FetchOHLCV(ctx context.Context, symbol, timeframe string, since *int64, limit int) ([]domain.Bar, error)
}
