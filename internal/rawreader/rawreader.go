// Package rawreader defines the RawReader interface consumed by the
// conversion driver, plus MemoryReader — a deterministic, file-free
// reference implementation for tests and the --synthetic CLI mode. It
// implements no vendor-specific parsing; a real vendor SDK binding is
// out of scope for the core.
package rawreader

import (
	"fmt"

	"github.com/mzcore/msarchive/internal/mserrors"
	"github.com/mzcore/msarchive/internal/msdata"
	"github.com/mzcore/msarchive/internal/peakpick"
)

// Polarity is the scan polarity reported alongside a raw spectrum.
type Polarity int

const (
	PolarityUnknown Polarity = iota
	Positive
	Negative
)

// VendorTag identifies the instrument family a RawReader is reading from,
// used to select which peak-picking algorithm to run.
type VendorTag string

const (
	VendorOrbitrap VendorTag = "orbitrap"
	VendorTOF      VendorTag = "tof"
	VendorQTof     VendorTag = "qtof"
	VendorUnknown  VendorTag = "unknown"
)

// Precursor describes the isolation target of an MSn scan, aliased from
// internal/msdata so a picked Scan can carry the same value onward to the
// catalog without a conversion step.
type Precursor = msdata.Precursor

// RawSpectrum is one instrument-emitted spectrum as the RawReader
// surfaces it, before any peak picking has run.
type RawSpectrum struct {
	ID        uint32
	MSLevel   int
	RT        float64
	Polarity  Polarity
	MZ        []float64
	Intensity []float64
	Precursor *Precursor
}

// ToPeakSpectrum narrows a RawSpectrum to the minimal view
// internal/peakpick operates on.
func (s RawSpectrum) ToPeakSpectrum() peakpick.RawSpectrum {
	return peakpick.RawSpectrum{SpectrumID: s.ID, RT: s.RT, MZ: s.MZ, Intensity: s.Intensity}
}

// RawReader is the external collaborator that decodes a vendor raw file
// into a stream of RawSpectrum values. Implementations are not part of
// the core; MemoryReader below is a reference implementation for tests
// and the synthetic CLI mode, not a vendor decoder.
type RawReader interface {
	// Vendor reports the instrument family, used to pick a peak-picking
	// algorithm.
	Vendor() VendorTag
	// NextSpectrum returns the next spectrum, or ok=false once the input
	// is exhausted.
	NextSpectrum() (spec RawSpectrum, ok bool, err error)
	// Close releases any resources the reader holds.
	Close() error
}

// MemoryReader replays a pre-built in-memory slice of RawSpectrum. It is
// used by the conversion driver's tests and by cmd/msconvert's
// --synthetic mode as a deterministic, file-free stand-in for an opaque
// vendor source.
type MemoryReader struct {
	vendor  VendorTag
	spectra []RawSpectrum
	pos     int
	closed  bool
}

// NewMemoryReader builds a MemoryReader over spectra, tagged as vendor.
func NewMemoryReader(vendor VendorTag, spectra []RawSpectrum) *MemoryReader {
	return &MemoryReader{vendor: vendor, spectra: spectra}
}

// Vendor implements RawReader.
func (r *MemoryReader) Vendor() VendorTag {
	return r.vendor
}

// NextSpectrum implements RawReader.
func (r *MemoryReader) NextSpectrum() (RawSpectrum, bool, error) {
	if r.closed {
		return RawSpectrum{}, false, fmt.Errorf("rawreader: %w: read from closed MemoryReader", mserrors.ErrIOFailed)
	}
	if r.pos >= len(r.spectra) {
		return RawSpectrum{}, false, nil
	}
	spec := r.spectra[r.pos]
	r.pos++
	return spec, true, nil
}

// Close implements RawReader.
func (r *MemoryReader) Close() error {
	r.closed = true
	return nil
}
