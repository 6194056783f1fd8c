package peakpick

import (
	"fmt"
	"math"

	"github.com/mzcore/msarchive/internal/mserrors"
	"github.com/mzcore/msarchive/internal/msdata"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// maxFittableCentroids is the pragmatic performance guard: windows
// with more centroids than this are passed through unrefined.
const maxFittableCentroids = 10

// maxFitIterations is the hard iteration cap; the fitter has no
// wall-clock timeout.
const maxFitIterations = 50

// ppmHWHMCap is the fractional half-width ceiling applied relative to
// each centroid's position: a HWHM at or above mz*ppmHWHMCap is rejected
// by the acceptance rules (a 100ppm cap, halved per side).
const ppmHWHMCap = 100e-6 / 2

// CurveFitter refines a set of centroids sharing one raw window using a
// damped Gauss-Newton (Levenberg-Marquardt-style) non-linear least
// squares solver with a finite-difference Jacobian.
type CurveFitter struct{}

// Fit refines initial against the raw (x, y) samples in window, applying
// the acceptance rules independently per parameter. Centroid positions
// (mz) are held fixed; only intensity and the two half-widths are
// refined. When len(initial) > maxFittableCentroids the input is returned
// unchanged. A singular Jacobian or non-finite residual returns a
// FitFailed error with the input unchanged so the caller retains the raw
// centroids.
func (CurveFitter) Fit(window []msdata.Point, initial []msdata.Centroid) ([]msdata.Centroid, error) {
	if len(initial) == 0 {
		return initial, nil
	}
	if len(initial) > maxFittableCentroids {
		return initial, nil
	}
	if len(window) == 0 {
		return initial, fmt.Errorf("peakpick: %w: empty fit window", mserrors.ErrFitFailed)
	}

	positions := make([]float64, len(initial))
	for i, c := range initial {
		positions[i] = c.MZ
	}
	model := msdata.MultiPeakModel{Positions: positions}
	params := msdata.ParamsFromCentroids(initial)

	xs := make([]float64, len(window))
	ys := make([]float64, len(window))
	for i, p := range window {
		xs[i] = p.MZ
		ys[i] = p.Intensity
	}

	residual := func(dst, p []float64) {
		for i := range xs {
			dst[i] = model.Residual(xs[i], ys[i], p)
		}
	}

	refined, err := gaussNewton(residual, params, len(xs))
	if err != nil {
		return initial, fmt.Errorf("peakpick: %w: %v", mserrors.ErrFitFailed, err)
	}

	return acceptRefinedParams(initial, params, refined), nil
}

// gaussNewton runs a damped Gauss-Newton iteration with a
// finite-difference Jacobian until convergence, the iteration cap, or a
// singular normal-equation system or a non-finite residual (both errors).
func gaussNewton(residual func(dst, p []float64), x0 []float64, m int) ([]float64, error) {
	n := len(x0)
	x := append([]float64(nil), x0...)
	lambda := 1e-3

	r0 := make([]float64, m)
	residual(r0, x)
	cost := sumSquares(r0)
	if !isFinite(cost) {
		return nil, fmt.Errorf("non-finite residual at the initial parameters")
	}

	jac := mat.NewDense(m, n, nil)
	for iter := 0; iter < maxFitIterations; iter++ {
		fd.Jacobian(jac, residual, x, &fd.JacobianSettings{
			Formula: fd.Central,
		})

		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		for i := 0; i < n; i++ {
			jtj.Set(i, i, jtj.At(i, i)*(1+lambda))
		}

		r := mat.NewVecDense(m, r0)
		var jtr mat.VecDense
		jtr.MulVec(jac.T(), r)

		var delta mat.VecDense
		if err := delta.SolveVec(&jtj, &jtr); err != nil {
			return nil, fmt.Errorf("singular normal equations: %w", err)
		}

		candidate := make([]float64, n)
		for i := range candidate {
			candidate[i] = x[i] + delta.AtVec(i)
		}

		rc := make([]float64, m)
		residual(rc, candidate)
		newCost := sumSquares(rc)

		if !isFinite(newCost) {
			return nil, fmt.Errorf("non-finite residual at iteration %d", iter)
		}
		if newCost < cost {
			x = candidate
			r0 = rc
			if cost-newCost < 1e-12*(cost+1e-12) {
				return x, nil
			}
			cost = newCost
			lambda = math.Max(lambda/10, 1e-12)
		} else {
			lambda *= 10
			if lambda > 1e12 {
				return x, nil // last accepted values stand; not an error
			}
		}
	}
	return x, nil
}

func sumSquares(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return s
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// acceptRefinedParams applies the per-parameter acceptance rules,
// reconstructing the final Centroid slice with rejected parameters
// falling back to their initial value.
func acceptRefinedParams(initial []msdata.Centroid, before, after []float64) []msdata.Centroid {
	out := make([]msdata.Centroid, len(initial))
	for i, c := range initial {
		base := 3 * i
		intensity := acceptScalar(before[base], after[base], false, c.MZ)
		sigmaL := acceptScalar(before[base+1], after[base+1], true, c.MZ)
		sigmaR := acceptScalar(before[base+2], after[base+2], true, c.MZ)

		out[i] = msdata.Centroid{
			MZ:        c.MZ,
			Intensity: intensity,
			LeftHWHM:  sigmaL * msdata.SigmaFactor / 2,
			RightHWHM: sigmaR * msdata.SigmaFactor / 2,
			RT:        c.RT,
		}
	}
	return out
}

// AsOptimizer adapts CurveFitter to msdata.Optimizer, fitting a single
// centroid against its own peak window. Callers that only ever see one
// centroid per window (the wavelet algorithm's per-triple refinement)
// use this instead of calling Fit directly with a one-element slice.
func (cf CurveFitter) AsOptimizer() msdata.Optimizer {
	return func(p msdata.Peak, base msdata.Centroid) (msdata.Centroid, bool, error) {
		fitted, err := cf.Fit(p.Samples, []msdata.Centroid{base})
		if err != nil {
			return msdata.Centroid{}, false, err
		}
		if len(fitted) == 0 {
			return msdata.Centroid{}, false, nil
		}
		return fitted[0], true, nil
	}
}

// acceptScalar applies the acceptance rules to a single refined
// parameter: it must be finite and positive, change by less than 50% of
// its initial value, and (for half-width parameters) stay below the
// ppmHWHMCap fraction of mz.
func acceptScalar(oldV, newV float64, isHWHM bool, mz float64) float64 {
	if !isFinite(newV) || newV <= 0 {
		return oldV
	}
	if math.Abs(newV-oldV) >= 0.5*math.Abs(oldV) {
		return oldV
	}
	if isHWHM {
		sigmaToHWHM := newV * msdata.SigmaFactor / 2
		if sigmaToHWHM >= mz*ppmHWHMCap {
			return oldV
		}
	}
	return newV
}
