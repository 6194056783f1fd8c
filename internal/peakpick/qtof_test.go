package peakpick

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindPeaksQTofEmpty(t *testing.T) {
	out, err := FindPeaksQTof(RawSpectrum{}, nil, PeakPickerParams{}, nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

type stubPicker struct {
	mz, intensity []float64
}

func (s stubPicker) Pick(_, _ []float64, _ float64) ([]float64, []float64) {
	return s.mz, s.intensity
}

func TestFindPeaksQTofTwoCentroidsSplitAtMinimum(t *testing.T) {
	spec := RawSpectrum{
		MZ:        []float64{500, 500.1, 500.2, 500.3, 500.4, 500.5},
		Intensity: []float64{50, 100, 10, 5, 80, 40},
	}
	picker := stubPicker{mz: []float64{500.1, 500.4}, intensity: []float64{100, 80}}
	out, err := FindPeaksQTof(spec, nil, PeakPickerParams{ComputeFWHM: false}, picker)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 500.1, out[0].MZ)
	assert.Equal(t, 100.0, out[0].Intensity)
	assert.Equal(t, 500.4, out[1].MZ)
	assert.Equal(t, 80.0, out[1].Intensity)
}

func TestFindPeaksQTofFallsBackToMostIntensePoint(t *testing.T) {
	spec := RawSpectrum{
		MZ:        []float64{500, 500.1, 500.2},
		Intensity: []float64{10, 50, 20},
	}
	// An empty picker simulates the external picker finding nothing.
	picker := stubPicker{}
	out, err := FindPeaksQTof(spec, nil, PeakPickerParams{}, picker)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.InDelta(t, 500.1, out[0].MZ, 0.01)
	assert.Equal(t, 50.0, out[0].Intensity)
}

func TestFindPeaksQTofAllZeroFallsBackToNothing(t *testing.T) {
	spec := RawSpectrum{
		MZ:        []float64{500, 500.1},
		Intensity: []float64{0, 0},
	}
	out, err := FindPeaksQTof(spec, nil, PeakPickerParams{}, stubPicker{})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestLowestIntensityBetween(t *testing.T) {
	mz := []float64{500, 500.1, 500.2, 500.3, 500.4}
	intensity := []float64{100, 10, 5, 20, 80}
	idx := lowestIntensityBetween(mz, intensity, 500, 500.4)
	assert.Equal(t, 2, idx)
}

func TestDefaultCentroidPickerUsesLocalMaxima(t *testing.T) {
	picker := DefaultCentroidPicker{Baseline: 0}
	mz := []float64{1, 2, 3, 4, 5}
	intensity := []float64{0, 5, 1, 8, 0}
	pickedMZ, pickedInt := picker.Pick(mz, intensity, QTofResolution)
	assert.Equal(t, []float64{2, 4}, pickedMZ)
	assert.Equal(t, []float64{5, 8}, pickedInt)
}
