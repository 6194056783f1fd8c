package peakpick

import (
	"github.com/mzcore/msarchive/internal/msdata"
)

// zeroAnchor is the synthetic near-zero intensity used to bracket a
// flushed buffer so a boundary sample still participates in curvature
// detection.
const zeroAnchor = 1e-3

// FindPeaksZeroBounded implements a zero-bounded peak-picking algorithm,
// recommended for Orbitrap-style profile data with zero-intensity
// separators. It satisfies FindPeaksFunc.
func FindPeaksZeroBounded(spec RawSpectrum, centroidsInOut []msdata.Centroid, params PeakPickerParams) ([]msdata.Centroid, error) {
	if len(spec.MZ) == 0 || len(spec.Intensity) == 0 {
		return nil, nil
	}

	baseline, noise := params.Baseline, params.Noise
	if params.AdaptiveBaselineAndNoise {
		b, nz, err := AdaptiveBaselineAndNoise(spec.Intensity)
		if err == nil {
			baseline, noise = b, nz
		}
	}
	params.Baseline, params.Noise = baseline, noise

	var out []msdata.Centroid
	var mzBuf, intBuf []float64
	vendorIdx := 0

	flush := func() {
		if len(mzBuf) == 0 {
			return
		}
		flushed := flushBuffer(mzBuf, intBuf, spec, centroidsInOut, &vendorIdx, params)
		out = append(out, flushed...)
		mzBuf = mzBuf[:0]
		intBuf = intBuf[:0]
	}

	var lastMZ, lastInt float64
	for i := 0; i < len(spec.MZ); i++ {
		mz, inten := spec.MZ[i], spec.Intensity[i]
		switch {
		case lastInt == 0 && inten > 0:
			anchorMZ := lastMZ
			if anchorMZ == 0 {
				anchorMZ = mz - zeroAnchor
			}
			mzBuf = append(mzBuf, anchorMZ, mz)
			intBuf = append(intBuf, zeroAnchor, inten)
		case lastInt > 0 && inten == 0:
			mzBuf = append(mzBuf, mz)
			intBuf = append(intBuf, zeroAnchor)
			flush()
		case lastInt > 0 && inten > 0:
			mzBuf = append(mzBuf, mz)
			intBuf = append(intBuf, inten)
		}
		lastMZ, lastInt = mz, inten
	}

	if len(mzBuf) > 0 {
		mzBuf = append(mzBuf, lastMZ+zeroAnchor)
		intBuf = append(intBuf, zeroAnchor)
		flush()
	}

	return out, nil
}

// flushBuffer turns one zero-bounded buffer into centroids, either by
// re-detecting local maxima (params.DetectPeaks) or by refining whatever
// vendor centroids fall within the buffer's m/z span.
func flushBuffer(mzBuf, intBuf []float64, spec RawSpectrum, vendorCentroids []msdata.Centroid, vendorIdx *int, params PeakPickerParams) []msdata.Centroid {
	samples := make([]msdata.Point, len(mzBuf))
	for i := range mzBuf {
		samples[i] = msdata.Point{MZ: mzBuf[i], Intensity: intBuf[i]}
	}
	window := msdata.Peak{Samples: samples, SpectrumID: spec.SpectrumID, RT: spec.RT}

	if params.DetectPeaks {
		return detectAndFit(samples, window, params)
	}

	bufEnd := mzBuf[len(mzBuf)-1]
	var bucket []msdata.Centroid
	for *vendorIdx < len(vendorCentroids) && vendorCentroids[*vendorIdx].MZ <= bufEnd {
		bucket = append(bucket, vendorCentroids[*vendorIdx])
		*vendorIdx++
	}
	if len(bucket) == 0 {
		return nil
	}
	if !params.ComputeFWHM {
		return bucket
	}
	fitted, err := (CurveFitter{}).Fit(samples, bucket)
	if err != nil {
		return bucket
	}
	return fitted
}

// detectAndFit re-detects local maxima within a flushed buffer (classic,
// non-wavelet detection) and fits each resulting peak window.
func detectAndFit(samples []msdata.Point, window msdata.Peak, params PeakPickerParams) []msdata.Centroid {
	intensities := make([]float64, len(samples))
	for i, s := range samples {
		intensities[i] = s.Intensity
	}
	if !PassesSNR(maxOf(intensities), params) {
		return nil
	}

	maxima := findLocalMaxima(intensities, params.Baseline)
	triples := findFlankingMinima(maxima, intensities)

	var initial []msdata.Centroid
	var peaks []msdata.Peak
	for _, t := range triples {
		left := t.LeftMin
		if left < 0 {
			left = 0
		}
		right := t.RightMin
		if right < 0 {
			right = len(samples) - 1
		}
		sub := msdata.Peak{Samples: samples[left : right+1], SpectrumID: window.SpectrumID, RT: window.RT}
		c, err := sub.ComputeCentroid()
		if err != nil {
			continue
		}
		initial = append(initial, c)
		peaks = append(peaks, sub)
	}
	if len(initial) == 0 {
		return nil
	}
	if !params.ComputeFWHM {
		return initial
	}
	fitted, err := (CurveFitter{}).Fit(samples, initial)
	if err != nil {
		return initial
	}
	return fitted
}

func maxOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	m := v[0]
	for _, x := range v[1:] {
		if x > m {
			m = x
		}
	}
	return m
}
