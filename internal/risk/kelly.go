// Package risk implements RiskSizer: Kelly-criterion position sizing
// with volatility damping. Grounded on original_source's
// app/core/risk/kelly.py.
package risk

import "gonum.org/v1/gonum/stat"

// Sizer is a configured Kelly calculator.
type Sizer struct {
	Fraction    float64 // proportion of Kelly-optimal size actually taken
	MaxPosition float64
	MinPosition float64
}

// New builds a Sizer. MinPosition defaults to 0 per spec.md §4.6.
func New(fraction, maxPosition float64) *Sizer {
	return &Sizer{Fraction: fraction, MaxPosition: maxPosition, MinPosition: 0}
}

// Calculate returns the Kelly position size, clipped to [MinPosition,
// MaxPosition]. odds == 0 or a negative raw Kelly value yields 0.
func (s *Sizer) Calculate(winRate, odds float64) float64 {
	if odds <= 0 {
		return 0
	}
	kelly := (winRate*odds - (1 - winRate)) / odds
	if kelly < 0 {
		return 0
	}
	return clip(kelly*s.Fraction, s.MinPosition, s.MaxPosition)
}

// CalculateWithVolatility damps Calculate's result by 1/(1+k*volatility).
func (s *Sizer) CalculateWithVolatility(winRate, odds, volatility, k float64) float64 {
	base := s.Calculate(winRate, odds)
	damped := base / (1 + k*volatility)
	return clip(damped, s.MinPosition, s.MaxPosition)
}

// CalculateFromReturns infers win_rate, odds (avg_win/avg_loss), and
// volatility from the trailing `lookback` returns, then sizes with
// volatility damping (k=2.0, matching original_source's default).
// Returns 0 when there is no usable data or no losing trades.
func (s *Sizer) CalculateFromReturns(returns []float64, lookback int) float64 {
	if len(returns) == 0 {
		return 0
	}
	if lookback > 0 && lookback < len(returns) {
		returns = returns[len(returns)-lookback:]
	}

	var wins, losses []float64
	for _, r := range returns {
		if r > 0 {
			wins = append(wins, r)
		} else if r < 0 {
			losses = append(losses, -r)
		}
	}
	if len(losses) == 0 {
		return 0
	}

	winRate := float64(len(wins)) / float64(len(returns))
	avgWin := stat.Mean(wins, nil)
	avgLoss := stat.Mean(losses, nil)
	if avgLoss == 0 {
		return 0
	}
	odds := avgWin / avgLoss
	volatility := stat.StdDev(returns, nil)

	return s.CalculateWithVolatility(winRate, odds, volatility, 2.0)
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
