package msdata

import (
	"fmt"
	"sort"
)

// DataEncoding is a first-class catalog entity: the (mode, peak-encoding,
// compression) triple every Scan references. Compression is an opaque tag
// interpreted by internal/blobcodec; "" means no outer compression.
type DataEncoding struct {
	ID          int64
	Mode        DataMode
	PeakEnc     PeakEncoding
	Compression string
}

// PointByteSize returns the per-point byte size implied by this encoding.
func (e DataEncoding) PointByteSize() (int, error) {
	return PointByteSize(e.PeakEnc, e.Mode)
}

// Precursor describes the isolation target of an MSn scan.
type Precursor struct {
	MZ     float64
	Charge int
}

// Scan is one instrument-emitted spectrum: its identity, the encoding its
// centroids are stored under, and its ordered peak list. Precursor is nil
// for MS1 scans.
type Scan struct {
	ID        uint32
	MSLevel   int
	RT        float64
	Encoding  DataEncoding
	Precursor *Precursor
	Centroids []Centroid
}

// Validate checks that ms_level >= 1 and centroids are sorted strictly
// non-decreasing by m/z.
func (s Scan) Validate() error {
	if s.MSLevel < 1 {
		return fmt.Errorf("msdata: scan %d has ms_level %d, want >= 1", s.ID, s.MSLevel)
	}
	if !sort.SliceIsSorted(s.Centroids, func(i, j int) bool {
		return s.Centroids[i].MZ < s.Centroids[j].MZ
	}) {
		return fmt.Errorf("msdata: scan %d centroids not sorted ascending by m/z", s.ID)
	}
	for i := 1; i < len(s.Centroids); i++ {
		if s.Centroids[i].MZ < s.Centroids[i-1].MZ {
			return fmt.Errorf("msdata: scan %d has decreasing m/z at index %d", s.ID, i)
		}
	}
	return nil
}

// NPoints returns the number of centroids (points) in the scan.
func (s Scan) NPoints() int {
	return len(s.Centroids)
}
