package peakpick

import (
	"fmt"
	"math"

	"github.com/mzcore/msarchive/internal/msdata"
	"gonum.org/v1/gonum/dsp/fourier"
)

// mexicanHat evaluates the Mexican-hat mother wavelet (the negative
// normalized second derivative of a Gaussian) at t.
func mexicanHat(t float64) float64 {
	const norm = 0.8673250705840776 // 2 / (sqrt(3) * pi^0.25)
	t2 := t * t
	return norm * (1 - t2) * math.Exp(-t2/2)
}

// nextPowerOfTwo returns the smallest power of two >= n, with a floor of
// 4 (it never returns 1 or 2).
func nextPowerOfTwo(n int) int {
	b := 1
	for b < n {
		b <<= 1
	}
	if b == 1 || b == 2 {
		b = 4
	}
	return b
}

// cwtCoefficients computes the continuous wavelet transform of
// intensities at a single scale using a Mexican-hat mother wavelet,
// applied via an FFT-based circular convolution. The input
// is padded with trailing zeros to the next power of two before
// transforming, and the result is truncated back to the original length.
func cwtCoefficients(intensities []float64, scale float64) ([]float64, error) {
	if len(intensities) == 0 {
		return nil, fmt.Errorf("peakpick: cwt called on an empty spectrum")
	}
	if scale <= 0 {
		return nil, fmt.Errorf("peakpick: cwt scale must be positive, got %v", scale)
	}

	n := nextPowerOfTwo(len(intensities))
	padded := make([]float64, n)
	copy(padded, intensities)

	kernel := make([]float64, n)
	// Support half-width of 4 scales covers >99.9% of the Mexican hat's
	// energy; beyond that the wavelet is numerically negligible.
	support := int(math.Ceil(4 * scale))
	if support > n/2 {
		support = n / 2
	}
	kernel[0] = mexicanHat(0) / math.Sqrt(scale)
	for i := 1; i <= support; i++ {
		v := mexicanHat(float64(i)/scale) / math.Sqrt(scale)
		kernel[i] = v
		kernel[n-i] = v // wavelet is symmetric; wrap the negative lag
	}

	fft := fourier.NewFFT(n)
	xf := fft.Coefficients(nil, padded)
	kf := fft.Coefficients(nil, kernel)
	for i := range xf {
		xf[i] *= kf[i]
	}
	conv := fft.Sequence(nil, xf)

	return conv[:len(intensities)], nil
}

// FindPeaksWavelet implements a wavelet/CWT algorithm, suited
// to TOF-style instruments. It satisfies FindPeaksFunc.
func FindPeaksWavelet(spec RawSpectrum, centroidsInOut []msdata.Centroid, params PeakPickerParams) ([]msdata.Centroid, error) {
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

	fwhm := params.FWHM
	if fwhm <= 0 {
		fwhm = 1
	}

	// Input of length 0/1/2 must yield no peaks; the minimum FFT size of
	// 4 already makes the maxima/minima search degenerate for len < 3,
	// so this is a belt-and-suspenders guard ahead of the transform.
	if len(spec.Intensity) < 3 {
		return nil, nil
	}

	// Evaluated over the scale range {fwhm, 2*fwhm, 3*fwhm}; the combined
	// response at each point is the max across scales, an envelope over
	// the wavelet's ridge lines rather than a per-scale vote.
	scales := []float64{fwhm, 2 * fwhm, 3 * fwhm}
	coeffs := make([]float64, len(spec.Intensity))
	for _, scale := range scales {
		c, err := cwtCoefficients(spec.Intensity, scale)
		if err != nil {
			return nil, err
		}
		for i, v := range c {
			if v > coeffs[i] {
				coeffs[i] = v
			}
		}
	}

	maxima := findLocalMaxima(coeffs, baseline)
	triples := findFlankingMinima(maxima, coeffs)

	var optimizer msdata.Optimizer
	if params.ComputeFWHM {
		optimizer = (CurveFitter{}).AsOptimizer()
	}

	var out []msdata.Centroid
	for _, t := range triples {
		if !t.HasLeft() && !t.HasRight() {
			continue // neither flank present: drop the candidate
		}
		peak := peakFromTriple(spec, t)
		if !PassesSNR(spec.Intensity[t.Apex], params) {
			continue
		}

		var c msdata.Centroid
		var err error
		if params.ComputeFWHM {
			c, err = peak.ComputeFittedCentroid(optimizer)
		} else {
			c, err = peak.ComputeCentroid()
		}
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// peakFromTriple builds a msdata.Peak window from a maxima/minima triple,
// using the data boundary when a flank is missing.
func peakFromTriple(spec RawSpectrum, t MaximaMinimaTriple) msdata.Peak {
	left := t.LeftMin
	if left < 0 {
		left = 0
	}
	right := t.RightMin
	if right < 0 {
		right = len(spec.MZ) - 1
	}
	samples := make([]msdata.Point, 0, right-left+1)
	for i := left; i <= right; i++ {
		samples = append(samples, msdata.Point{MZ: spec.MZ[i], Intensity: spec.Intensity[i]})
	}
	return msdata.Peak{Samples: samples, SpectrumID: spec.SpectrumID, RT: spec.RT}
}
