package mlfilter

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNew_MissingModelDisables(t *testing.T) {
	f := New(filepath.Join(t.TempDir(), "missing.gob"), 0.6, zerolog.Nop())
	require.Equal(t, Disabled, f.Status())
	require.Equal(t, 0.5, f.Predict(map[string]float64{"rsi": 80}))
}

func TestDecide_DisabledBuyIsFilteredAtDefaultThreshold(t *testing.T) {
	f := New(filepath.Join(t.TempDir(), "missing.gob"), 0.6, zerolog.Nop())
	decision := f.Decide(map[string]float64{"rsi": 80}, 0.6)
	require.False(t, decision.ShouldTrade)
	require.Equal(t, 0.5, decision.Probability)
	require.Equal(t, Hold, decision.Recommendation)
}

func writeBundle(t *testing.T, path string, bundle Bundle) {
	t.Helper()
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()
	require.NoError(t, gob.NewEncoder(file).Encode(bundle))
}

func TestNew_LoadsValidBundleAndPredicts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.gob")
	writeBundle(t, path, Bundle{
		Version:      "v1",
		FeatureNames: []string{"rsi", "volume_ratio"},
		Weights:      []float64{0.05, 0.1},
		Bias:         -3.0,
	})

	f := New(path, 0.6, zerolog.Nop())
	require.Equal(t, Ready, f.Status())

	p := f.Predict(map[string]float64{"rsi": 80, "volume_ratio": 1.5})
	require.GreaterOrEqual(t, p, 0.0)
	require.LessOrEqual(t, p, 1.0)
}

func TestPredict_MissingFeaturesCoerceToZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.gob")
	writeBundle(t, path, Bundle{
		FeatureNames: []string{"rsi", "volume_ratio"},
		Weights:      []float64{1, 1},
		Bias:         0,
	})
	f := New(path, 0.6, zerolog.Nop())

	withMissing := f.Predict(map[string]float64{"rsi": 10})
	withExplicitZero := f.Predict(map[string]float64{"rsi": 10, "volume_ratio": 0})
	require.Equal(t, withExplicitZero, withMissing)
}

func TestSetThreshold_Clips(t *testing.T) {
	f := New(filepath.Join(t.TempDir(), "missing.gob"), 0.6, zerolog.Nop())
	f.SetThreshold(1.5)
	require.Equal(t, 1.0, f.Threshold())
	f.SetThreshold(-0.5)
	require.Equal(t, 0.0, f.Threshold())
}

func TestReload_RecoversAfterModelAppears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.gob")
	f := New(path, 0.6, zerolog.Nop())
	require.Equal(t, Disabled, f.Status())

	writeBundle(t, path, Bundle{FeatureNames: []string{"rsi"}, Weights: []float64{1}})
	f.Reload()
	require.Equal(t, Ready, f.Status())
}
