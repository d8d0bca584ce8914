// Package backtest implements BacktestEngine: an offline replay of a
// technical rule over historical bars, producing the return/risk
// summary spec.md §4.10 requires. Entirely offline — no gateway I/O.
// Grounded on pkg/formulas/{sharpe,drawdown}.go, which are already
// generic return/price-series statistics reused here unmodified for
// equity-curve analysis, and on pkg/indicators for the entry/exit
// rules themselves.
package backtest

import (
	"fmt"

	"github.com/aristath/arduino-trader/internal/domain"
	"github.com/aristath/arduino-trader/pkg/formulas"
	"github.com/aristath/arduino-trader/pkg/indicators"
)

// Rule selects the entry/exit signal generator.
type Rule string

const (
	RuleRSI       Rule = "rsi"
	RuleBollinger Rule = "bollinger"
)

// rsiOversold/rsiOverbought are the fixed 30/70 thresholds spec.md
// §4.10 names for the RSI rule.
const (
	rsiOversold     = 30.0
	rsiOverbought   = 70.0
	rsiPeriod       = 14
	bollingerPeriod = 20
	bollingerK      = 2.0
)

// Config parameterizes one backtest run.
type Config struct {
	Rule           Rule
	Commission     float64 // fraction of trade value, e.g. 0.001 = 10bps
	SlippagePct    float64 // fraction applied against the trader, both legs
	InitialBalance float64
}

// Result is BacktestEngine's output, per spec.md §4.10.
type Result struct {
	TotalReturn float64   `json:"total_return"`
	Sharpe      *float64  `json:"sharpe"`
	MaxDrawdown *float64  `json:"max_drawdown"`
	WinRate     float64   `json:"win_rate"`
	TotalTrades int       `json:"total_trades"`
	EquityCurve []float64 `json:"equity_curve"`
}

// trade tracks one open-to-close round trip for win-rate accounting.
type trade struct {
	entryPrice float64
	open       bool
}

// Run replays bars (oldest first) under cfg's rule, long-only,
// single-position, and returns the resulting performance summary.
func Run(bars []domain.Bar, cfg Config) (Result, error) {
	if len(bars) < bollingerPeriod+1 {
		return Result{}, fmt.Errorf("backtest: need at least %d bars, got %d", bollingerPeriod+1, len(bars))
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	balance := cfg.InitialBalance
	position := 0.0
	var pos trade
	equity := make([]float64, 0, len(bars))
	var wins, losses int

	for i := range bars {
		window := closes[:i+1]
		price := closes[i]

		entrySignal, exitSignal := evaluateRule(cfg.Rule, window)

		if position == 0 && entrySignal {
			fillPrice := price * (1 + cfg.SlippagePct)
			cost := balance * (1 - cfg.Commission)
			position = cost / fillPrice
			balance = 0
			pos = trade{entryPrice: fillPrice, open: true}
		} else if position > 0 && exitSignal {
			fillPrice := price * (1 - cfg.SlippagePct)
			proceeds := position * fillPrice * (1 - cfg.Commission)
			if fillPrice > pos.entryPrice {
				wins++
			} else {
				losses++
			}
			balance = proceeds
			position = 0
			pos = trade{}
		}

		equity = append(equity, balance+position*price)
	}

	// An open position is not liquidated; the last equity point already
	// marks it to market at the last close.
	finalEquity := equity[len(equity)-1]
	totalReturn := 0.0
	if cfg.InitialBalance > 0 {
		totalReturn = (finalEquity - cfg.InitialBalance) / cfg.InitialBalance
	}

	returns := formulas.CalculateReturns(equity)
	sharpe := formulas.CalculateSharpeRatio(returns, 0, 252)
	maxDrawdown := formulas.CalculateMaxDrawdown(equity)

	totalTrades := wins + losses
	winRate := 0.0
	if totalTrades > 0 {
		winRate = float64(wins) / float64(totalTrades)
	}

	return Result{
		TotalReturn: totalReturn,
		Sharpe:      sharpe,
		MaxDrawdown: maxDrawdown,
		WinRate:     winRate,
		TotalTrades: totalTrades,
		EquityCurve: equity,
	}, nil
}

// evaluateRule returns (shouldEnter, shouldExit) for the configured
// rule against window, the close-price series up to and including the
// current bar.
func evaluateRule(rule Rule, window []float64) (entry, exit bool) {
	switch rule {
	case RuleBollinger:
		bb := indicators.BollingerBands(window, bollingerPeriod, bollingerK)
		if bb == nil {
			return false, false
		}
		current := window[len(window)-1]
		return current <= bb.Lower, current >= bb.Upper
	default: // RuleRSI
		rsi := indicators.RSI(window, rsiPeriod)
		if rsi == nil {
			return false, false
		}
		return *rsi <= rsiOversold, *rsi >= rsiOverbought
	}
}
