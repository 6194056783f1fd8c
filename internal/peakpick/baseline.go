package peakpick

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// AdaptiveBaselineAndNoise computes baseline and noise from a spectrum's
// intensity array: drop zero intensities, sort the remainder, trim the
// lowest and highest 10%, then take the mean and population variance of
// what's left.
//
// If every intensity is zero there is nothing left after trimming; this
// returns baseline=0, noise=1, so a caller computing SNR against it
// requires min_snr=0 and emits nothing.
func AdaptiveBaselineAndNoise(intensities []float64) (baseline, noise float64, err error) {
	if len(intensities) == 0 {
		return 0, 0, fmt.Errorf("peakpick: getBaselineAndNoise called on an empty spectrum")
	}

	nonZero := make([]float64, 0, len(intensities))
	for _, v := range intensities {
		if v != 0 {
			nonZero = append(nonZero, v)
		}
	}
	if len(nonZero) == 0 {
		return 0, 1, nil
	}

	sort.Float64s(nonZero)

	n := len(nonZero)
	trim := int((0.1*float64(n) + 0.999999999))
	if 2*trim >= n {
		// Too few samples to trim 10% off each end; fall back to using
		// every non-zero sample rather than trimming to nothing.
		trim = 0
	}
	trimmed := nonZero[trim : n-trim]

	baseline = stat.Mean(trimmed, nil)

	var sumSq float64
	for _, v := range trimmed {
		d := v - baseline
		sumSq += d * d
	}
	noise = sumSq / float64(len(trimmed))

	return baseline, noise, nil
}
