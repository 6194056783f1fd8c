package msdata

import (
	"fmt"
	"math"
)

// Point is one raw (m/z, intensity) sample.
type Point struct {
	MZ        float64
	Intensity float64
}

// Peak is a contiguous window of raw samples bracketed by a pair of local
// minima (or the data boundary), plus the identity of the spectrum it was
// cut from. PeakFinder algorithms (internal/peakpick) produce Peaks from a
// raw spectrum; compute_centroid reduces a Peak to a single Centroid.
type Peak struct {
	Samples    []Point
	SpectrumID uint32
	RT         float64
}

// ApexIndex returns the index of the sample with maximum intensity. It
// fails if the window is empty.
func (p Peak) ApexIndex() (int, error) {
	if len(p.Samples) == 0 {
		return 0, fmt.Errorf("msdata: apex index of empty peak window")
	}
	apex := 0
	for i := 1; i < len(p.Samples); i++ {
		if p.Samples[i].Intensity > p.Samples[apex].Intensity {
			apex = i
		}
	}
	return apex, nil
}

// Optimizer refines a base centroid against the peak's raw samples,
// reporting whether it improved on the base estimate. CurveFitter
// (internal/peakpick) implements this signature; Peak.ComputeFittedCentroid
// takes it as a parameter so msdata has no dependency on the fitter.
type Optimizer func(p Peak, base Centroid) (refined Centroid, ok bool, err error)

// ComputeCentroid reduces the peak window to a single Centroid: three-point
// apex refinement and half-maximum interpolation for windows of 3+ points
// with samples on both sides of the apex, direct construction for windows
// of 1 or 2 points.
func (p Peak) ComputeCentroid() (Centroid, error) {
	apex, err := p.ApexIndex()
	if err != nil {
		return Centroid{}, err
	}
	n := len(p.Samples)

	switch {
	case n == 1:
		s := p.Samples[0]
		return Centroid{
			MZ:        s.MZ,
			Intensity: s.Intensity,
			LeftHWHM:  PlatformMinHWHM,
			RightHWHM: PlatformMinHWHM,
			RT:        p.RT,
		}, nil

	case n == 2:
		other := 0
		if apex == 0 {
			other = 1
		}
		w := math.Abs(p.Samples[apex].MZ - p.Samples[other].MZ)
		w = clampHWHM(w)
		return Centroid{
			MZ:        p.Samples[apex].MZ,
			Intensity: p.Samples[apex].Intensity,
			LeftHWHM:  w,
			RightHWHM: w,
			RT:        p.RT,
		}, nil

	default:
		hasLeft := apex > 0
		hasRight := apex < n-1
		mz := p.Samples[apex].MZ
		if hasLeft && hasRight {
			mz = gaussianCentroidApex(p.Samples[apex-1], p.Samples[apex], p.Samples[apex+1])
		}

		windowWidth := math.Abs(p.Samples[n-1].MZ - p.Samples[0].MZ)
		fallback := clampHWHM(windowWidth / 2)

		left := fallback
		if hasLeft {
			if w, ok := halfMaxInterpolateLeft(p.Samples, apex, mz); ok {
				left = clampHWHM(w)
			}
		}
		right := fallback
		if hasRight {
			if w, ok := halfMaxInterpolateRight(p.Samples, apex, mz); ok {
				right = clampHWHM(w)
			}
		}

		return Centroid{
			MZ:        mz,
			Intensity: p.Samples[apex].Intensity,
			LeftHWHM:  left,
			RightHWHM: right,
			RT:        p.RT,
		}, nil
	}
}

// ComputeFittedCentroid computes the base centroid via ComputeCentroid and,
// if opt is non-nil, offers it the peak for refinement. The refined value
// is kept only if opt reports success and the refined centroid passes
// Validate; otherwise the base centroid stands.
func (p Peak) ComputeFittedCentroid(opt Optimizer) (Centroid, error) {
	base, err := p.ComputeCentroid()
	if err != nil {
		return Centroid{}, err
	}
	if opt == nil {
		return base, nil
	}
	refined, ok, err := opt(p, base)
	if err != nil || !ok {
		return base, nil
	}
	if refined.Validate() != nil {
		return base, nil
	}
	return refined, nil
}

// gaussianCentroidApex refines the apex position from the triplet
// (left, apex, right) using a three-point parabolic fit in log-intensity
// space, the discrete analogue of a Gaussian vertex estimate. Falls back
// to the raw apex m/z if any sample is non-positive (log undefined) or
// the denominator is zero (the three log-intensities lie on a line).
func gaussianCentroidApex(left, apex, right Point) float64 {
	if left.Intensity <= 0 || apex.Intensity <= 0 || right.Intensity <= 0 {
		return apex.MZ
	}
	y1 := math.Log(left.Intensity)
	y2 := math.Log(apex.Intensity)
	y3 := math.Log(right.Intensity)

	denom := y1 - 2*y2 + y3
	if denom == 0 {
		return apex.MZ
	}
	// Vertex offset in units of sample spacing, assuming uniform spacing
	// between left/apex and apex/right; for non-uniform spacing this
	// degrades gracefully toward the raw apex.
	offset := 0.5 * (y1 - y3) / denom
	spacingLeft := apex.MZ - left.MZ
	spacingRight := right.MZ - apex.MZ
	spacing := (spacingLeft + spacingRight) / 2
	return apex.MZ + offset*spacing
}

// halfMaxInterpolateLeft finds the m/z at half the apex intensity by
// linear interpolation walking left from the apex, returning false if no
// crossing exists in the available samples.
func halfMaxInterpolateLeft(samples []Point, apex int, apexMZ float64) (float64, bool) {
	halfMax := samples[apex].Intensity / 2
	for i := apex; i > 0; i-- {
		a, b := samples[i], samples[i-1]
		if a.Intensity >= halfMax && b.Intensity <= halfMax {
			if a.Intensity == b.Intensity {
				return apexMZ - b.MZ, true
			}
			frac := (a.Intensity - halfMax) / (a.Intensity - b.Intensity)
			crossMZ := a.MZ + frac*(b.MZ-a.MZ)
			return apexMZ - crossMZ, true
		}
	}
	return 0, false
}

// halfMaxInterpolateRight is the mirror of halfMaxInterpolateLeft, walking
// right from the apex.
func halfMaxInterpolateRight(samples []Point, apex int, apexMZ float64) (float64, bool) {
	n := len(samples)
	halfMax := samples[apex].Intensity / 2
	for i := apex; i < n-1; i++ {
		a, b := samples[i], samples[i+1]
		if a.Intensity >= halfMax && b.Intensity <= halfMax {
			if a.Intensity == b.Intensity {
				return b.MZ - apexMZ, true
			}
			frac := (a.Intensity - halfMax) / (a.Intensity - b.Intensity)
			crossMZ := a.MZ + frac*(b.MZ-a.MZ)
			return crossMZ - apexMZ, true
		}
	}
	return 0, false
}
