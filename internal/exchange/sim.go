package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/apperrors"
	"github.com/aristath/arduino-trader/internal/domain"
)

// SimGateway is the simulated venue: a virtual ledger of non-negative
// asset balances plus an append-only order log, mutated only through
// CreateOrder's six-step atomic sequence (spec.md §4.1).
type SimGateway struct {
	prices PriceSource
	log    zerolog.Logger

	snapshotPath  string
	replayLogPath string

	// mu covers the entire six-step create_order sequence as a single
	// critical section, per spec.md §5.
	mu             sync.Mutex
	balances       map[string]float64
	orderHistory   []domain.Order
	orderIDCounter int
}

// NewSimGateway builds a SimGateway, loading a prior snapshot from
// snapshotPath if one exists; otherwise it starts from a single quote
// balance.
func NewSimGateway(prices PriceSource, quoteAsset string, initialQuoteBalance float64, snapshotPath, replayLogPath string, log zerolog.Logger) (*SimGateway, error) {
	g := &SimGateway{
		prices:        prices,
		log:           log.With().Str("component", "sim_gateway").Logger(),
		snapshotPath:  snapshotPath,
		replayLogPath: replayLogPath,
		balances:      map[string]float64{quoteAsset: initialQuoteBalance},
	}

	existing, err := loadSnapshot(snapshotPath)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		g.balances = existing.Balances
		g.orderHistory = existing.OrderHistory
		g.orderIDCounter = existing.OrderIDCounter
	}
	return g, nil
}

// FetchBalance returns a snapshot of the ledger with used=0 and
// free=total=balances[asset].
func (g *SimGateway) FetchBalance(ctx context.Context) (map[string]domain.AssetBalance, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]domain.AssetBalance, len(g.balances))
	for asset, amount := range g.balances {
		out[asset] = domain.AssetBalance{Asset: asset, Free: amount, Used: 0, Total: amount}
	}
	return out, nil
}

// FetchTicker always consults the live price source.
func (g *SimGateway) FetchTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	return g.prices.FetchTicker(ctx, symbol)
}

// FetchOHLCV always consults the live price source.
func (g *SimGateway) FetchOHLCV(ctx context.Context, symbol, timeframe string, since *int64, limit int) ([]domain.Bar, error) {
	return g.prices.FetchOHLCV(ctx, symbol, timeframe, since, limit)
}

// CreateOrder executes the six-step atomic sequence: resolve price,
// compute cost, check balance, debit/credit, append to log, persist
// snapshot. The whole sequence runs under g.mu so no other caller ever
// observes balances mutated without a matching log/snapshot update.
func (g *SimGateway) CreateOrder(ctx context.Context, symbol string, orderType domain.OrderType, side domain.Side, amount float64, price *float64) (domain.Order, error) {
	base, quote, err := splitSymbol(symbol)
	if err != nil {
		return domain.Order{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Step 1: resolve execution price, inside the atomic section like
	// every step after it.
	executionPrice, err := g.resolveExecutionPrice(ctx, symbol, orderType, side, price)
	if err != nil {
		return domain.Order{}, err
	}

	// Step 2: cost.
	cost := amount * executionPrice

	// Step 3: balance check.
	if side == domain.SideBuy {
		if g.balances[quote] < cost {
			return domain.Order{}, &apperrors.InsufficientBalanceError{Asset: quote, Required: cost, Available: g.balances[quote]}
		}
	} else {
		if g.balances[base] < amount {
			return domain.Order{}, &apperrors.InsufficientBalanceError{Asset: base, Required: amount, Available: g.balances[base]}
		}
	}

	// Step 4: debit/credit.
	if side == domain.SideBuy {
		g.balances[quote] -= cost
		g.balances[base] += amount
	} else {
		g.balances[base] -= amount
		g.balances[quote] += cost
	}

	// Step 5: append to the log with a fresh id.
	g.orderIDCounter++
	order := domain.Order{
		Status:    domain.OrderStatusClosed,
		OrderID:   fmt.Sprintf("PAPER_%d", g.orderIDCounter),
		Symbol:    symbol,
		Side:      side,
		Amount:    amount,
		Price:     executionPrice,
		Timestamp: time.Now().UTC(),
	}
	g.orderHistory = append(g.orderHistory, order)

	// Step 6: persist the snapshot.
	if err := writeSnapshot(g.snapshotPath, snapshot{
		Balances:       g.balances,
		OrderHistory:   g.orderHistory,
		OrderIDCounter: g.orderIDCounter,
	}); err != nil {
		g.log.Error().Err(err).Msg("snapshot write failed after order; in-memory state and disk are now divergent")
	}

	if err := appendReplayLog(g.replayLogPath, replayEntry{Order: order, Balances: cloneBalances(g.balances)}); err != nil {
		g.log.Warn().Err(err).Msg("replay log append failed")
	}

	return order, nil
}

func (g *SimGateway) resolveExecutionPrice(ctx context.Context, symbol string, orderType domain.OrderType, side domain.Side, price *float64) (float64, error) {
	if orderType == domain.OrderTypeLimit && price != nil {
		return *price, nil
	}

	ticker, err := g.prices.FetchTicker(ctx, symbol)
	if err != nil {
		return 0, &apperrors.VenueError{Op: "fetch_ticker", Err: err}
	}
	if side == domain.SideBuy {
		return ticker.Ask, nil
	}
	return ticker.Bid, nil
}

// FetchPositions is unsupported by the simulated venue; the executor
// falls back to deriving positions from non-quote balances.
func (g *SimGateway) FetchPositions(ctx context.Context) ([]domain.Position, bool, error) {
	return nil, false, nil
}

// GetOrderHistory returns a copy of the order log, most recent last.
func (g *SimGateway) GetOrderHistory() []domain.Order {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.Order, len(g.orderHistory))
	copy(out, g.orderHistory)
	return out
}

// Reset clears the ledger back to a single quote balance and an empty
// log, matching original_source's PaperExchange.reset().
func (g *SimGateway) Reset(quoteAsset string, initialQuoteBalance float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.balances = map[string]float64{quoteAsset: initialQuoteBalance}
	g.orderHistory = nil
	g.orderIDCounter = 0
	return writeSnapshot(g.snapshotPath, snapshot{Balances: g.balances, OrderIDCounter: 0})
}

func cloneBalances(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func splitSymbol(symbol string) (base, quote string, err error) {
	parts := strings.SplitN(symbol, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("exchange: malformed symbol %q, want BASE/QUOTE", symbol)
	}
	return parts[0], parts[1], nil
}

// correlationID returns a fresh random UUID string, independent of the
// venue's own order id. Nothing in the repository calls it.
func correlationID() string { return uuid.NewString() }
