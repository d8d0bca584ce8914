// Package mlfilter implements MLFilter: the single process-wide signal
// predictor. Grounded on original_source's app/core/ml/predictor.py
// Singleton, translated to a Filter built once by New and shared by
// pointer, its state held in atomic.Value/atomic.Pointer fields rather
// than a double-checked-lock class.
package mlfilter

import (
	"encoding/gob"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"gonum.org/v1/gonum/mat"
)

// Lifecycle is the predictor's current state.
type Lifecycle string

const (
	Uninitialized Lifecycle = "uninitialized"
	Ready         Lifecycle = "ready"
	Disabled      Lifecycle = "disabled"
)

// disabledProbability is what Predict returns whenever no usable model
// is loaded, per spec.md §4.5.
const disabledProbability = 0.5

// Recommendation bands from spec.md §4.5.
type Recommendation string

const (
	StrongBuy Recommendation = "STRONG_BUY"
	Buy       Recommendation = "BUY"
	Hold      Recommendation = "HOLD"
	Avoid     Recommendation = "AVOID"
)

// Bundle is the serialized model blob: {model, version, trained_at, feature_names}.
type Bundle struct {
	Version      string
	TrainedAt    string
	FeatureNames []string
	Weights      []float64 // linear-model coefficients, ordered by FeatureNames
	Bias         float64
}

// Decision is the result of Decide.
type Decision struct {
	Probability    float64
	ShouldTrade    bool
	Recommendation Recommendation
	Confidence     float64
}

// Filter is the process-wide predictor. Construct one with New and
// share the pointer; Predict/Decide are safe for concurrent calls.
type Filter struct {
	path string
	log  zerolog.Logger

	state     atomic.Value // Lifecycle
	bundle    atomic.Pointer[Bundle]
	threshold atomic.Value // float64

	loadGroup singleflight.Group
	mu        sync.Mutex // serializes bundle loads in Reload
}

// New builds a Filter and attempts an initial load. A load failure
// transitions it to Disabled rather than returning an error — the
// filter must always be usable, just inert.
func New(path string, defaultThreshold float64, log zerolog.Logger) *Filter {
	f := &Filter{path: path, log: log.With().Str("component", "mlfilter").Logger()}
	f.state.Store(Uninitialized)
	f.threshold.Store(defaultThreshold)
	f.Reload()
	return f
}

// Reload re-attempts loading the model bundle from disk.
func (f *Filter) Reload() {
	_, _, _ = f.loadGroup.Do("reload", func() (any, error) {
		f.mu.Lock()
		defer f.mu.Unlock()

		bundle, err := loadBundle(f.path)
		if err != nil {
			f.log.Warn().Err(err).Str("path", f.path).Msg("model load failed, disabling ML filter")
			f.state.Store(Disabled)
			f.bundle.Store(nil)
			return nil, nil
		}

		f.bundle.Store(bundle)
		f.state.Store(Ready)
		f.log.Info().Str("version", bundle.Version).Msg("model loaded")
		return nil, nil
	})
}

func loadBundle(path string) (*Bundle, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var bundle Bundle
	if err := gob.NewDecoder(file).Decode(&bundle); err != nil {
		return nil, err
	}
	if len(bundle.Weights) != len(bundle.FeatureNames) {
		return nil, errWeightFeatureMismatch
	}
	return &bundle, nil
}

// Status returns the filter's current lifecycle.
func (f *Filter) Status() Lifecycle {
	return f.state.Load().(Lifecycle)
}

// SetThreshold updates the should_trade threshold, clipped to [0,1].
func (f *Filter) SetThreshold(t float64) {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	f.threshold.Store(t)
}

// Threshold returns the current should_trade threshold.
func (f *Filter) Threshold() float64 {
	return f.threshold.Load().(float64)
}

// Predict maps a feature vector to a profit probability. Accepts a map
// keyed by feature name; missing features coerce to 0, NaN coerces to 0.
// Returns 0.5 when disabled.
func (f *Filter) Predict(features map[string]float64) float64 {
	bundle := f.bundle.Load()
	if f.Status() != Ready || bundle == nil {
		return disabledProbability
	}

	vec := make([]float64, len(bundle.FeatureNames))
	for i, name := range bundle.FeatureNames {
		v := features[name]
		if math.IsNaN(v) {
			v = 0
		}
		vec[i] = v
	}

	x := mat.NewVecDense(len(vec), vec)
	w := mat.NewVecDense(len(bundle.Weights), bundle.Weights)
	logit := mat.Dot(x, w) + bundle.Bias

	return sigmoid(logit)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Decide wraps Predict with the should_trade gate and the
// STRONG_BUY/BUY/HOLD/AVOID recommendation bands.
func (f *Filter) Decide(features map[string]float64, threshold float64) Decision {
	p := f.Predict(features)

	var rec Recommendation
	var confidence float64
	switch {
	case p >= 0.7:
		rec, confidence = StrongBuy, highConfidence
	case p >= 0.6:
		rec, confidence = Buy, mediumConfidence
	case p >= 0.4:
		rec, confidence = Hold, lowConfidence
	default:
		rec = Avoid
		if p < 0.2 {
			confidence = mediumConfidence
		} else {
			confidence = lowConfidence
		}
	}

	return Decision{
		Probability:    p,
		ShouldTrade:    p >= threshold,
		Recommendation: rec,
		Confidence:     confidence,
	}
}

const (
	highConfidence   = 1.0
	mediumConfidence = 0.66
	lowConfidence    = 0.33
)
