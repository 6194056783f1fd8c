// Package spatialindex provides the three read-only query oracles over an
// open archive: R-tree range queries, exact run-slice queries, and the
// dense per-scan identity maps built once on reader open.
package spatialindex

import (
	"fmt"

	"github.com/mzcore/msarchive/internal/archive"
	"github.com/mzcore/msarchive/internal/msdata"
)

// ScanOracle answers ms_level/rt/encoding lookups for a scan id without a
// per-call database round trip. It is built once when the archive is
// opened for reading and is immutable thereafter, so concurrent readers
// share it without locks.
type ScanOracle struct {
	msLevel  map[uint32]int
	rt       map[uint32]float64
	encoding map[uint32]msdata.DataEncoding
}

// NewScanOracle loads the three dense maps from the spectrum catalog.
func NewScanOracle(db *archive.DB) (*ScanOracle, error) {
	rows, err := db.Query(
		`SELECT s.id, s.ms_level, s.rt, e.id, e.mode, e.peak_enc, e.compression
		 FROM spectrum s JOIN data_encoding e ON e.id = s.data_encoding_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("spatialindex: load scan oracle: %w", err)
	}
	defer rows.Close()

	o := &ScanOracle{
		msLevel:  make(map[uint32]int),
		rt:       make(map[uint32]float64),
		encoding: make(map[uint32]msdata.DataEncoding),
	}
	for rows.Next() {
		var id uint32
		var msLevel int
		var rt float64
		var encID int64
		var mode, peakEnc, compression string
		if err := rows.Scan(&id, &msLevel, &rt, &encID, &mode, &peakEnc, &compression); err != nil {
			return nil, fmt.Errorf("spatialindex: scan oracle row: %w", err)
		}
		o.msLevel[id] = msLevel
		o.rt[id] = rt
		o.encoding[id] = msdata.DataEncoding{
			ID:          encID,
			Mode:        archive.ParseDataMode(mode),
			PeakEnc:     archive.ParsePeakEncoding(peakEnc),
			Compression: compression,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("spatialindex: scan oracle iteration: %w", err)
	}
	return o, nil
}

// MSLevel returns the ms_level of scanID and whether it is known.
func (o *ScanOracle) MSLevel(scanID uint32) (int, bool) {
	v, ok := o.msLevel[scanID]
	return v, ok
}

// RT returns the retention time of scanID and whether it is known.
func (o *ScanOracle) RT(scanID uint32) (float64, bool) {
	v, ok := o.rt[scanID]
	return v, ok
}

// Encoding returns the DataEncoding of scanID and whether it is known.
func (o *ScanOracle) Encoding(scanID uint32) (msdata.DataEncoding, bool) {
	v, ok := o.encoding[scanID]
	return v, ok
}

// Encodings returns a copy of the full scan_id -> DataEncoding map, for
// callers (internal/blobcodec's decode entry points) that need the whole
// table rather than single lookups.
func (o *ScanOracle) Encodings() map[uint32]msdata.DataEncoding {
	out := make(map[uint32]msdata.DataEncoding, len(o.encoding))
	for k, v := range o.encoding {
		out[k] = v
	}
	return out
}

// RTs returns a copy of the full scan_id -> rt map.
func (o *ScanOracle) RTs() map[uint32]float64 {
	out := make(map[uint32]float64, len(o.rt))
	for k, v := range o.rt {
		out[k] = v
	}
	return out
}
