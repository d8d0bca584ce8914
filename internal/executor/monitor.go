package executor

import (
	"context"

	"github.com/aristath/arduino-trader/internal/domain"
)

// StopLossPrice is the price at which a long position's loss reaches
// stopLossPct, per spec.md §4.7: entry * (1 - stop_loss_pct).
func StopLossPrice(entry, stopLossPct float64) float64 {
	return entry * (1 - stopLossPct)
}

// ShouldStopLoss reports whether current has fallen to or below the
// stop-loss price.
func ShouldStopLoss(entry, current, stopLossPct float64) bool {
	return current <= StopLossPrice(entry, stopLossPct)
}

// TakeProfitPrice is the minimum take-profit trigger price: entry * (1
// + take_profit_min).
func TakeProfitPrice(entry, takeProfitMin float64) float64 {
	return entry * (1 + takeProfitMin)
}

// ShouldTakeProfit reports whether current has risen to or above the
// take-profit trigger price.
func ShouldTakeProfit(entry, current, takeProfitMin float64) bool {
	return current >= TakeProfitPrice(entry, takeProfitMin)
}

// MonitorResult is one outcome of a position check: a triggered exit, a
// skip (no entry price on file), or a failed close.
type MonitorResult struct {
	Symbol string
	Reason string // "stop_loss", "take_profit", "skipped"
	Order  domain.Order
	Error  string
}

// MonitorPositions walks every open position and closes (market-sells)
// the ones that have crossed their stop-loss or take-profit trigger.
// Positions without an entry price are skipped with a warning, per
// SPEC_FULL.md §9's open question on entry-price sourcing — there is no
// safe trigger price to compute without one.
func (e *Executor) MonitorPositions(ctx context.Context) []MonitorResult {
	positions, ok, err := e.gateway.FetchPositions(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("fetch_positions failed, skipping monitor pass")
		return nil
	}
	if !ok {
		// Gateway doesn't support positions (the sim gateway, for one):
		// derive them from non-quote balances, with no entry price.
		balances, err := e.gateway.FetchBalance(ctx)
		if err != nil {
			e.log.Warn().Err(err).Msg("fetch_balance failed, skipping monitor pass")
			return nil
		}
		for asset, bal := range balances {
			if asset != e.cfg.QuoteAsset && bal.Total > 0 {
				positions = append(positions, domain.Position{Symbol: asset + "/" + e.cfg.QuoteAsset, Contracts: bal.Total})
			}
		}
	}

	results := make([]MonitorResult, 0, len(positions))
	for _, pos := range positions {
		if pos.EntryPrice == nil {
			e.log.Warn().Str("symbol", pos.Symbol).Msg("position has no entry price on file, skipping")
			results = append(results, MonitorResult{Symbol: pos.Symbol, Reason: "skipped"})
			continue
		}

		ticker, err := e.gateway.FetchTicker(ctx, pos.Symbol)
		if err != nil {
			e.log.Warn().Err(err).Str("symbol", pos.Symbol).Msg("fetch_ticker failed during monitor pass")
			results = append(results, MonitorResult{Symbol: pos.Symbol, Reason: "skipped", Error: err.Error()})
			continue
		}

		entry := *pos.EntryPrice
		current := ticker.Last

		var reason string
		switch {
		case ShouldStopLoss(entry, current, e.cfg.StopLossPercent):
			reason = "stop_loss"
		case ShouldTakeProfit(entry, current, e.cfg.TakeProfitMin):
			reason = "take_profit"
		default:
			continue
		}

		order, err := e.gateway.CreateOrder(ctx, pos.Symbol, domain.OrderTypeMarket, domain.SideSell, pos.Contracts, nil)
		result := MonitorResult{Symbol: pos.Symbol, Reason: reason, Order: order}
		if err != nil {
			result.Error = err.Error()
			e.log.Warn().Err(err).Str("symbol", pos.Symbol).Str("reason", reason).Msg("position exit order failed")
		} else if reason == "stop_loss" {
			e.notifier.SendStopLossAlert(ctx, pos.Symbol, entry, current)
		} else {
			e.notifier.SendTakeProfitAlert(ctx, pos.Symbol, entry, current)
		}
		results = append(results, result)
	}
	return results
}

// CloseAllPositions market-sells every non-quote asset balance. It
// never raises: venue failures become error-status orders in the
// returned slice, mirroring PlaceOrder's gate-3 contract. Idempotent
// when there is nothing left to close.
func (e *Executor) CloseAllPositions(ctx context.Context) []domain.Order {
	balances, err := e.gateway.FetchBalance(ctx)
	if err != nil {
		e.log.Error().Err(err).Msg("fetch_balance failed, cannot close positions")
		return nil
	}

	orders := make([]domain.Order, 0, len(balances))
	for asset, bal := range balances {
		if asset == e.cfg.QuoteAsset || bal.Free <= 0 {
			continue
		}
		symbol := asset + "/" + e.cfg.QuoteAsset
		order, err := e.gateway.CreateOrder(ctx, symbol, domain.OrderTypeMarket, domain.SideSell, bal.Free, nil)
		if err != nil {
			e.log.Warn().Err(err).Str("symbol", symbol).Msg("close_all_positions: sell failed")
			orders = append(orders, domain.Order{
				Status: domain.OrderStatusError,
				Symbol: symbol,
				Side:   domain.SideSell,
				Amount: bal.Free,
				Error:  err.Error(),
			})
			continue
		}
		orders = append(orders, order)
	}
	return orders
}
