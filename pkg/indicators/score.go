package indicators

import "github.com/aristath/arduino-trader/internal/domain"

// Weights are the composite-score blend weights from spec.md §4.4.
type Weights struct {
	RSI        float64
	Trend      float64
	Volatility float64
	Volume     float64
}

// DefaultWeights is the spec's default blend: momentum and trend
// weighted 0.30 each, volatility and volume 0.20 each.
var DefaultWeights = Weights{RSI: 0.30, Trend: 0.30, Volatility: 0.20, Volume: 0.20}

const (
	rsiPeriod        = 14
	volatilityWindow = 20
	volumeSMAPeriod  = 20
	macdFast         = 12
	macdSlow         = 26
	macdSignal       = 9
)

// CompositeScore blends RSI, MACD trend, inverse volatility and
// relative volume into a single 0-100 scalar, optionally adjusted for
// an on-chain netflow z-score extreme. Returns nil when there isn't
// enough bar history to compute every sub-score.
func CompositeScore(bars []domain.Bar, weights Weights, onchainZ *float64) *float64 {
	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	rsiScore := RSI(closes, rsiPeriod)
	if rsiScore == nil {
		return nil
	}

	macd := CalculateMACD(closes, macdFast, macdSlow, macdSignal)
	if macd == nil {
		return nil
	}
	trendScore := 0.0
	if macd.MACD > macd.Signal {
		trendScore = 100
	}

	volSeries := rollingVolatilitySeries(closes, volatilityWindow)
	if len(volSeries) == 0 {
		return nil
	}
	currentVol := volSeries[len(volSeries)-1]
	maxVol := currentVol
	for _, v := range volSeries {
		if v > maxVol {
			maxVol = v
		}
	}
	volatilityScore := 0.0
	if maxVol > 0 {
		volatilityScore = (1 - currentVol/maxVol) * 100
	}

	volumeSMA := SMA(volumes, volumeSMAPeriod)
	if volumeSMA == nil {
		return nil
	}
	volumeScore := 0.0
	if *volumeSMA > 0 {
		volumeScore = clip(volumes[len(volumes)-1]/(*volumeSMA)*50, 0, 100)
	}

	score := *rsiScore*weights.RSI +
		trendScore*weights.Trend +
		volatilityScore*weights.Volatility +
		volumeScore*weights.Volume

	if onchainZ != nil {
		switch {
		case *onchainZ > 2.0:
			score -= 20 // bearish inflow extreme
		case *onchainZ < -2.0:
			score += 10 // bullish outflow extreme
		}
	}

	score = clip(score, 0, 100)
	return &score
}

// rollingVolatilitySeries computes the trailing-window volatility of
// returns at every index that has enough history, unannualized.
func rollingVolatilitySeries(closes []float64, window int) []float64 {
	if len(closes) < window+1 {
		return nil
	}
	var series []float64
	for end := window + 1; end <= len(closes); end++ {
		v := Volatility(closes[:end], window, 1)
		if v != nil {
			series = append(series, *v)
		}
	}
	return series
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
