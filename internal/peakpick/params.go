// Package peakpick implements the three peak-finding algorithms and the
// non-linear least-squares curve fitter of the peak-picking pipeline:
// zero-bounded (Orbitrap-style profile data), wavelet/CWT (TOF-style
// data), and QTof (delegated centroid detection with boundary-by-minimum
// blocking), plus the shared SNR filter and baseline/noise estimation.
package peakpick

import "github.com/mzcore/msarchive/internal/msdata"

// PeakPickerParams carries the tunables shared by every algorithm in this
// package: the minimum SNR to accept a peak, the expected FWHM (used to
// pick CWT scales), a baseline/noise pair (either fixed or adaptively
// recomputed per spectrum), and the detect/fit switches from find_peaks.
type PeakPickerParams struct {
	MinSNR                   float64
	FWHM                     float64
	Baseline                 float64
	Noise                    float64
	AdaptiveBaselineAndNoise bool
	DetectPeaks              bool // re-pick from raw profile instead of keeping vendor centroids
	ComputeFWHM              bool // also fit half-widths via CurveFitter
}

// IsEmpty reports whether baseline and noise are both unset, mirroring the
// source's isEmpty() guard before adaptive estimation runs.
func (p PeakPickerParams) IsEmpty() bool {
	return p.Baseline == 0 && p.Noise == 0
}

// FindPeaksFunc is the common interface all three algorithms satisfy:
// find_peaks(spectrum, centroids_in_out, params, detect_peaks, compute_fwhm).
type FindPeaksFunc func(spec RawSpectrum, centroidsInOut []msdata.Centroid, params PeakPickerParams) ([]msdata.Centroid, error)

// RawSpectrum is the minimal view over a raw spectrum this package needs:
// parallel m/z and intensity arrays plus the retention time and spectrum
// id to stamp onto produced centroids.
type RawSpectrum struct {
	SpectrumID uint32
	RT         float64
	MZ         []float64
	Intensity  []float64
}
