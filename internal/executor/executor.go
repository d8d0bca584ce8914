// Package executor implements TradeExecutor: the integrating
// component that gates order placement on the kill switch, the panic
// score and the ML filter, then dispatches through ExchangeGateway.
// Grounded on internal/services/trade_execution_service.go's
// constructor-with-dependencies shape, generalized from rebalancing
// recommendations to spec.md §4.7's gate sequence.
package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/apperrors"
	"github.com/aristath/arduino-trader/internal/control"
	"github.com/aristath/arduino-trader/internal/domain"
	"github.com/aristath/arduino-trader/internal/exchange"
	"github.com/aristath/arduino-trader/internal/mlfilter"
)

// Config holds the executor's risk parameters, constructed once at
// startup from internal/config.Config.
type Config struct {
	MaxPositionSize float64
	StopLossPercent float64
	TakeProfitMin   float64
	TakeProfitMax   float64
	PanicThreshold  float64
	QuoteAsset      string
}

// Executor is the TradeExecutor.
type Executor struct {
	gateway  exchange.Gateway
	control  *control.Surface
	mlFilter *mlfilter.Filter
	notifier Notifier
	cfg      Config
	log      zerolog.Logger
}

// New builds an Executor. notifier may be nil, in which case alerts are
// silently dropped.
func New(gateway exchange.Gateway, ctrl *control.Surface, filter *mlfilter.Filter, notifier Notifier, cfg Config, log zerolog.Logger) *Executor {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Executor{
		gateway:  gateway,
		control:  ctrl,
		mlFilter: filter,
		notifier: notifier,
		cfg:      cfg,
		log:      log.With().Str("component", "trade_executor").Logger(),
	}
}

// PlaceOrder is the entry point: kill switch, then panic gate, then
// dispatch. Gate failures return a typed error (TradingSuspended,
// PanicTooHigh); venue-level failures are translated into an error
// order record with a nil error, per spec.md §4.7.
func (e *Executor) PlaceOrder(ctx context.Context, symbol string, side domain.Side, amount float64, price *float64, orderType domain.OrderType, panicScore *float64) (domain.Order, error) {
	// Gate 1: kill switch. A ControlSurface read failure already fails
	// open inside Surface.Get, so there is nothing further to do here.
	if e.control.Get(ctx) == "false" {
		return domain.Order{}, fmt.Errorf("%s %s: %w", side, symbol, apperrors.ErrTradingSuspended)
	}

	// Gate 2: panic score. Sells are never panic-gated so risk can
	// always be closed.
	if side == domain.SideBuy && panicScore != nil && *panicScore > e.cfg.PanicThreshold {
		return domain.Order{}, &apperrors.PanicTooHighError{Score: *panicScore, Threshold: e.cfg.PanicThreshold}
	}

	// Gate 3: dispatch. type=limit with a price stays a limit order;
	// otherwise it becomes a market order.
	effectiveType := orderType
	if price == nil {
		effectiveType = domain.OrderTypeMarket
	}

	order, err := e.gateway.CreateOrder(ctx, symbol, effectiveType, side, amount, price)
	if err != nil {
		e.log.Warn().Err(err).Str("symbol", symbol).Str("side", string(side)).Msg("order dispatch failed")
		return domain.Order{
			Status: domain.OrderStatusError,
			Symbol: symbol,
			Side:   side,
			Amount: amount,
			Error:  err.Error(),
		}, nil
	}

	e.notifier.SendTradeSignal(ctx, symbol, string(side), amount, order.Price)
	order.Status = domain.OrderStatusSuccess
	return order, nil
}

// StrategyResult is one outcome of ExecuteStrategy: either a dispatched
// order, an ML-filtered rejection, or a gate failure, discriminated by
// Status.
type StrategyResult struct {
	Status         domain.OrderStatus
	Order          domain.Order
	Reason         string
	Probability    float64
	Recommendation mlfilter.Recommendation
	Error          string
}

// ExecuteStrategy fans a scan-tick's signals out to PlaceOrder, in list
// order. The kill switch is checked once at entry: if suspended, zero
// orders are placed for the whole tick (the monotonicity invariant of
// spec.md §8). ML filtering applies only to buys with features present.
func (e *Executor) ExecuteStrategy(ctx context.Context, signals []domain.Signal, panicScore *float64, useMLFilter bool, mlThreshold float64) []StrategyResult {
	if e.control.Get(ctx) == "false" {
		e.log.Info().Msg("kill switch is off, skipping entire strategy tick")
		return nil
	}

	results := make([]StrategyResult, 0, len(signals))
	for _, sig := range signals {
		if useMLFilter && sig.Side == domain.SideBuy && len(sig.Features) > 0 {
			decision := e.mlFilter.Decide(sig.Features, mlThreshold)
			if !decision.ShouldTrade {
				results = append(results, StrategyResult{
					Status:         domain.OrderStatusFiltered,
					Order:          domain.Order{Symbol: sig.Symbol, Side: sig.Side, Amount: sig.Amount},
					Reason:         "ml_filter",
					Probability:    decision.Probability,
					Recommendation: decision.Recommendation,
				})
				continue
			}
		}

		order, err := e.PlaceOrder(ctx, sig.Symbol, sig.Side, sig.Amount, sig.Price, domain.OrderTypeLimit, panicScore)
		if err != nil {
			results = append(results, StrategyResult{
				Status: domain.OrderStatusError,
				Order:  domain.Order{Symbol: sig.Symbol, Side: sig.Side, Amount: sig.Amount},
				Error:  err.Error(),
			})
			continue
		}
		results = append(results, StrategyResult{Status: order.Status, Order: order})
	}
	return results
}

// MaxPosition is the sizing helper from spec.md §4.7:
// free_quote * max_position_size / price.
func (e *Executor) MaxPosition(ctx context.Context, symbol string, price float64) (float64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("executor: max_position: price must be positive, got %v", price)
	}
	_, quote, err := splitSymbol(symbol)
	if err != nil {
		return 0, err
	}

	balances, err := e.gateway.FetchBalance(ctx)
	if err != nil {
		return 0, fmt.Errorf("executor: max_position: fetch_balance: %w", err)
	}
	freeQuote := balances[quote].Free
	return freeQuote * e.cfg.MaxPositionSize / price, nil
}

func splitSymbol(symbol string) (base, quote string, err error) {
	parts := strings.SplitN(symbol, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("executor: malformed symbol %q, want BASE/QUOTE", symbol)
	}
	return parts[0], parts[1], nil
}
