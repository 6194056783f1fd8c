package peakpick

import (
	"errors"
	"math"
	"testing"

	"github.com/mzcore/msarchive/internal/mserrors"
	"github.com/mzcore/msarchive/internal/msdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurveFitterEmptyInitialPassesThrough(t *testing.T) {
	out, err := (CurveFitter{}).Fit(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestCurveFitterTooManyCentroidsPassesThrough(t *testing.T) {
	initial := make([]msdata.Centroid, maxFittableCentroids+1)
	for i := range initial {
		initial[i] = msdata.Centroid{MZ: float64(i), Intensity: 1, LeftHWHM: 0.01, RightHWHM: 0.01}
	}
	out, err := (CurveFitter{}).Fit([]msdata.Point{{MZ: 0, Intensity: 1}}, initial)
	require.NoError(t, err)
	assert.Equal(t, initial, out)
}

func TestCurveFitterEmptyWindowFails(t *testing.T) {
	initial := []msdata.Centroid{{MZ: 500, Intensity: 10, LeftHWHM: 0.01, RightHWHM: 0.01}}
	out, err := (CurveFitter{}).Fit(nil, initial)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mserrors.ErrFitFailed))
	assert.Equal(t, initial, out)
}

func TestCurveFitterRefinesSingleGaussian(t *testing.T) {
	mu, sigma, amp := 500.0, 0.02, 1000.0
	window := make([]msdata.Point, 0, 21)
	for i := -10; i <= 10; i++ {
		x := mu + float64(i)*sigma/2
		y := amp * gaussianAt(x, mu, sigma)
		window = append(window, msdata.Point{MZ: x, Intensity: y})
	}
	initial := []msdata.Centroid{{MZ: mu, Intensity: amp * 0.8, LeftHWHM: sigma * 1.3, RightHWHM: sigma * 1.3}}

	out, err := (CurveFitter{}).Fit(window, initial)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.InDelta(t, mu, out[0].MZ, 1e-9) // position is held fixed
	assert.Greater(t, out[0].Intensity, 0.0)
	assert.Greater(t, out[0].LeftHWHM, 0.0)
	assert.Greater(t, out[0].RightHWHM, 0.0)
}

func TestAcceptScalarRejectsNonFiniteAndNonPositive(t *testing.T) {
	assert.Equal(t, 5.0, acceptScalar(5, 0, false, 500))
	assert.Equal(t, 5.0, acceptScalar(5, -1, false, 500))
}

func TestAcceptScalarRejectsLargeRelativeChange(t *testing.T) {
	// 50% or greater change is rejected.
	assert.Equal(t, 10.0, acceptScalar(10, 16, false, 500))
	// Under 50% change is accepted.
	assert.Equal(t, 14.0, acceptScalar(10, 14, false, 500))
}

func TestAcceptScalarRejectsOversizedHWHM(t *testing.T) {
	mz := 500.0
	// sigma so large that sigma*SigmaFactor/2 exceeds mz*ppmHWHMCap.
	bigSigma := mz * ppmHWHMCap * 10 / (msdata.SigmaFactor / 2)
	assert.Equal(t, 0.01, acceptScalar(0.01, bigSigma, true, mz))
}

// gaussianAt is a plain symmetric Gaussian used only to synthesize test
// fixtures; it is independent of msdata.AsymmetricGaussian so the test
// doesn't simply check the fitter against its own model definition.
func gaussianAt(x, mu, sigma float64) float64 {
	d := (x - mu) / sigma
	return math.Exp(-d * d / 2)
}
