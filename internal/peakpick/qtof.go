package peakpick

import (
	"github.com/mzcore/msarchive/internal/msdata"
)

// CentroidPicker is the external peak-picker the QTof algorithm delegates
// initial centroid detection to. DefaultCentroidPicker
// provides a reference implementation; production use can swap in a
// vendor-specific picker.
type CentroidPicker interface {
	Pick(mz, intensity []float64, resolution float64) (pickedMZ, pickedIntensity []float64)
}

// DefaultCentroidPicker detects centroids as local maxima above baseline,
// the same classic detection used by the zero-bounded algorithm's
// detect_peaks path, standing in for a vendor-specific QTof picker.
type DefaultCentroidPicker struct {
	Baseline float64
}

// Pick implements CentroidPicker.
func (d DefaultCentroidPicker) Pick(mz, intensity []float64, resolution float64) ([]float64, []float64) {
	maxima := findLocalMaxima(intensity, d.Baseline)
	mzOut := make([]float64, len(maxima))
	intOut := make([]float64, len(maxima))
	for i, idx := range maxima {
		mzOut[i] = mz[idx]
		intOut[i] = intensity[idx]
	}
	return mzOut, intOut
}

// QTofResolution is the default single resolution parameter passed to the
// external picker.
const QTofResolution = 20000

// FindPeaksQTof implements a QTof-style algorithm, suited to AB
// Sciex-style instruments: delegated centroid detection, boundary-by-
// minimum blocking, then per-block fitting. It satisfies FindPeaksFunc.
func FindPeaksQTof(spec RawSpectrum, centroidsInOut []msdata.Centroid, params PeakPickerParams, picker CentroidPicker) ([]msdata.Centroid, error) {
	if len(spec.MZ) == 0 || len(spec.Intensity) == 0 {
		return nil, nil
	}
	if picker == nil {
		picker = DefaultCentroidPicker{Baseline: params.Baseline}
	}

	cMZ, cInt := picker.Pick(spec.MZ, spec.Intensity, QTofResolution)
	if len(cMZ) == 0 {
		// Fall back to the single most-intense raw point, offset to
		// avoid a duplicate abscissa with its neighbor.
		apex := 0
		for i := 1; i < len(spec.Intensity); i++ {
			if spec.Intensity[i] > spec.Intensity[apex] {
				apex = i
			}
		}
		if spec.Intensity[apex] <= 0 {
			return nil, nil
		}
		cMZ = []float64{spec.MZ[apex] + zeroAnchor}
		cInt = []float64{spec.Intensity[apex]}
	}

	blockStarts := make([]int, len(cMZ))
	blockEnds := make([]int, len(cMZ))
	blockStarts[0] = 0
	for i := 0; i < len(cMZ)-1; i++ {
		boundary := lowestIntensityBetween(spec.MZ, spec.Intensity, cMZ[i], cMZ[i+1])
		blockEnds[i] = boundary
		blockStarts[i+1] = boundary
	}
	blockEnds[len(cMZ)-1] = len(spec.MZ) - 1

	var out []msdata.Centroid
	for i := range cMZ {
		start, end := blockStarts[i], blockEnds[i]
		if end < start {
			continue
		}
		samples := make([]msdata.Point, 0, end-start+1)
		for j := start; j <= end; j++ {
			samples = append(samples, msdata.Point{MZ: spec.MZ[j], Intensity: spec.Intensity[j]})
		}
		base := msdata.Centroid{MZ: cMZ[i], Intensity: cInt[i], LeftHWHM: msdata.PlatformMinHWHM, RightHWHM: msdata.PlatformMinHWHM, RT: spec.RT}

		if !params.ComputeFWHM {
			out = append(out, base)
			continue
		}
		fitted, err := (CurveFitter{}).Fit(samples, []msdata.Centroid{base})
		if err != nil || len(fitted) == 0 {
			out = append(out, base)
			continue
		}
		out = append(out, fitted[0])
	}
	return out, nil
}

// lowestIntensityBetween returns the index of the lowest-intensity point
// strictly between two m/z positions, the boundary between adjacent QTof
// blocks.
func lowestIntensityBetween(mz, intensity []float64, mzLo, mzHi float64) int {
	best := -1
	for i := range mz {
		if mz[i] <= mzLo || mz[i] >= mzHi {
			continue
		}
		if best < 0 || intensity[i] < intensity[best] {
			best = i
		}
	}
	if best < 0 {
		// No point strictly between the two centroids (adjacent
		// samples); split at the first sample at or above mzHi.
		for i := range mz {
			if mz[i] >= mzHi {
				return i
			}
		}
		return len(mz) - 1
	}
	return best
}
