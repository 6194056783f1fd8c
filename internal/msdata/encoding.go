// Package msdata holds the shared data entities of the archive core: the
// peak encodings and data modes, Centroid and Peak, Scan and DataEncoding,
// the asymmetric-Gaussian peak model, and ParamTree metadata containers.
// Every other package in this module (peakpick, blobcodec, bbuilder,
// archive, spatialindex, spectrumiter, region) builds on these types.
package msdata

import "fmt"

// PlatformMinHWHM is the smallest half-width at half-maximum the codec and
// peak model will ever record; degenerate fits (single-point windows,
// zero-width interpolation) fall back to this value rather than to zero.
const PlatformMinHWHM = 1e-3

// PeakEncoding selects the on-disk byte layout of a single peak: the width
// of its m/z and intensity fields.
type PeakEncoding int

const (
	// HighRes stores m/z as 64-bit and intensity as 32-bit (12 B/point).
	HighRes PeakEncoding = iota
	// LowRes stores both m/z and intensity as 32-bit (8 B/point).
	LowRes
	// NoLoss stores both m/z and intensity as 64-bit (16 B/point).
	NoLoss
)

func (e PeakEncoding) String() string {
	switch e {
	case HighRes:
		return "HighRes"
	case LowRes:
		return "LowRes"
	case NoLoss:
		return "NoLoss"
	default:
		return fmt.Sprintf("PeakEncoding(%d)", int(e))
	}
}

// PointSize returns the byte size of one point under this encoding,
// excluding any data-mode surcharge (see DataMode.PointSurcharge).
func (e PeakEncoding) PointSize() (int, error) {
	switch e {
	case HighRes:
		return 12, nil
	case LowRes:
		return 8, nil
	case NoLoss:
		return 16, nil
	default:
		return 0, fmt.Errorf("msdata: unknown peak encoding %d", int(e))
	}
}

// DataMode selects how a scan's points are interpreted: raw samples,
// centroided peaks, or centroided peaks carrying fitted half-widths.
type DataMode int

const (
	// Profile stores raw (mz, intensity) samples.
	Profile DataMode = iota
	// Centroid stores picked peaks with no half-width information.
	Centroid
	// Fitted stores picked peaks plus left/right half-widths.
	Fitted
)

func (m DataMode) String() string {
	switch m {
	case Profile:
		return "Profile"
	case Centroid:
		return "Centroid"
	case Fitted:
		return "Fitted"
	default:
		return fmt.Sprintf("DataMode(%d)", int(m))
	}
}

// PointSurcharge returns the extra bytes per point this mode adds on top
// of the peak encoding's base point size: 8 bytes (two 32-bit half-widths)
// for Fitted, zero otherwise.
func (m DataMode) PointSurcharge() int {
	if m == Fitted {
		return 8
	}
	return 0
}

// PointByteSize returns the total per-point byte size for a (encoding,
// mode) pair, matching the universal invariant that it equals 8, 12, or
// 16, plus 8 when Fitted.
func PointByteSize(enc PeakEncoding, mode DataMode) (int, error) {
	base, err := enc.PointSize()
	if err != nil {
		return 0, err
	}
	return base + mode.PointSurcharge(), nil
}
