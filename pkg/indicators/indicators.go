// Package indicators implements IndicatorKit: pure functions over
// numeric sequences, no I/O. Grounded on the teacher's pkg/formulas,
// generalized from portfolio scoring to the crypto composite score.
package indicators

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// RSI returns the last Relative Strength Index value over period,
// or nil if there isn't enough data.
func RSI(closes []float64, period int) *float64 {
	if len(closes) < period+1 {
		return nil
	}
	values := talib.Rsi(closes, period)
	return lastFinite(values)
}

// SMA returns the last simple moving average over period, or nil.
func SMA(x []float64, period int) *float64 {
	if len(x) < period {
		return nil
	}
	values := talib.Sma(x, period)
	return lastFinite(values)
}

// EMA returns the last exponential moving average over period, or nil.
func EMA(x []float64, period int) *float64 {
	if len(x) < period {
		return nil
	}
	values := talib.Ema(x, period)
	return lastFinite(values)
}

// Bollinger is the (upper, middle, lower) band triple, plus the width
// (upper-lower)/middle.
type Bollinger struct {
	Upper, Middle, Lower, Width float64
}

// BollingerBands computes the last Bollinger band triple over period
// with k standard deviations, or nil if there isn't enough data.
func BollingerBands(closes []float64, period int, k float64) *Bollinger {
	if len(closes) < period {
		return nil
	}
	upper, middle, lower := talib.BollingerBands(closes, period, k, k, talib.SMA)
	u, m, l := lastFinite(upper), lastFinite(middle), lastFinite(lower)
	if u == nil || m == nil || l == nil || *m == 0 {
		return nil
	}
	return &Bollinger{Upper: *u, Middle: *m, Lower: *l, Width: (*u - *l) / *m}
}

// MACD is the moving-average-convergence-divergence triple.
type MACD struct {
	MACD, Signal, Histogram float64
}

// CalculateMACD computes the last MACD triple for the standard 12/26/9
// periods; histogram = macd - signal.
func CalculateMACD(closes []float64, fast, slow, signal int) *MACD {
	if len(closes) < slow+signal {
		return nil
	}
	macd, sig, hist := talib.Macd(closes, fast, slow, signal)
	m, s, h := lastFinite(macd), lastFinite(sig), lastFinite(hist)
	if m == nil || s == nil || h == nil {
		return nil
	}
	return &MACD{MACD: *m, Signal: *s, Histogram: *h}
}

// ATR returns the last Average True Range over period, or nil.
func ATR(highs, lows, closes []float64, period int) *float64 {
	if len(highs) < period+1 || len(lows) < period+1 || len(closes) < period+1 {
		return nil
	}
	values := talib.Atr(highs, lows, closes, period)
	return lastFinite(values)
}

// Volatility is the rolling standard deviation of returns over the
// trailing window, optionally annualized by factor (pass 1 to skip).
func Volatility(closes []float64, window int, annualizationFactor float64) *float64 {
	if len(closes) < window+1 {
		return nil
	}
	tail := closes[len(closes)-window-1:]
	returns := toReturns(tail)
	sd := stat.StdDev(returns, nil)
	sd *= annualizationFactor
	return &sd
}

// HourlyAnnualization is √(365·24), the annualization factor for
// hourly-cadence crypto volatility per spec.md §4.4.
var HourlyAnnualization = math.Sqrt(365 * 24)

// OnchainZScore is the rolling (x - mean) / std of the trailing window,
// used to detect on-chain netflow extremes.
func OnchainZScore(series []float64, window int) *float64 {
	if len(series) < window {
		return nil
	}
	tail := series[len(series)-window:]
	mean := stat.Mean(tail, nil)
	sd := stat.StdDev(tail, nil)
	if sd == 0 {
		return nil
	}
	z := (tail[len(tail)-1] - mean) / sd
	return &z
}

func toReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			out[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}
	return out
}

func lastFinite(values []float64) *float64 {
	for i := len(values) - 1; i >= 0; i-- {
		if !math.IsNaN(values[i]) {
			v := values[i]
			return &v
		}
	}
	return nil
}
