package msdata

import "math"

// AsymmetricGaussian evaluates a single piecewise-asymmetric Gaussian peak
// at position x: intensity*exp(-((x-mu)/(2*sigmaL))^2) for x <= mu, and the
// mirror with sigmaR otherwise.
func AsymmetricGaussian(x, mu, intensity, sigmaL, sigmaR float64) float64 {
	sigma := sigmaR
	if x <= mu {
		sigma = sigmaL
	}
	if sigma == 0 {
		sigma = PlatformMinHWHM
	}
	z := (x - mu) / (2 * sigma)
	return intensity * math.Exp(-(z * z))
}

// PeakParams is one peak's mutable fit parameters: amplitude and the two
// asymmetric half-widths. Position (mu) is held fixed during a fit: positions are already
// well-determined from the raw maxima.
type PeakParams struct {
	Intensity float64
	SigmaL    float64
	SigmaR    float64
}

// MultiPeakModel is a sum of AsymmetricGaussian peaks sharing one raw
// window, with fixed positions and free (intensity, sigmaL, sigmaR) per
// peak.
type MultiPeakModel struct {
	Positions []float64 // mu_i, fixed during the fit
}

// NumParams returns 3*len(Positions), the flattened parameter count.
func (m MultiPeakModel) NumParams() int {
	return 3 * len(m.Positions)
}

// Eval evaluates the summed model at x given a flattened parameter vector
// laid out as [I_1, sigmaL_1, sigmaR_1, I_2, sigmaL_2, sigmaR_2, ...].
func (m MultiPeakModel) Eval(x float64, params []float64) float64 {
	var total float64
	for i, mu := range m.Positions {
		base := 3 * i
		total += AsymmetricGaussian(x, mu, params[base], params[base+1], params[base+2])
	}
	return total
}

// Residual computes y - Eval(x, params) for one observation, the quantity
// CurveFitter's least-squares solver drives toward zero.
func (m MultiPeakModel) Residual(x, y float64, params []float64) float64 {
	return y - m.Eval(x, params)
}

// ParamsFromCentroids flattens a slice of Centroids into the initial
// parameter vector CurveFitter refines: intensity unchanged, half-widths
// converted from HWHM to a Gaussian sigma via SigmaFactor.
func ParamsFromCentroids(centroids []Centroid) []float64 {
	params := make([]float64, 0, 3*len(centroids))
	for _, c := range centroids {
		params = append(params, c.Intensity, 2*c.LeftHWHM/SigmaFactor, 2*c.RightHWHM/SigmaFactor)
	}
	return params
}

// SigmaFactor is 2*sqrt(2*ln(2)), a Gaussian's full-width-at-half-maximum
// to sigma ratio; a HWHM h converts to sigma as 2*h/SigmaFactor.
var SigmaFactor = 2 * math.Sqrt(2*math.Ln2)
