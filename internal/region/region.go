// Package region implements the two public region-extraction queries:
// an inflated-rectangle R-tree lookup and an exact run-slice lookup, both
// reassembling scans via internal/spectrumiter and clipping the result
// to the caller's exact bounds.
package region

import (
	"fmt"
	"sort"

	"github.com/mzcore/msarchive/internal/archive"
	"github.com/mzcore/msarchive/internal/blobcodec"
	"github.com/mzcore/msarchive/internal/msdata"
	"github.com/mzcore/msarchive/internal/spatialindex"
)

// Extractor answers region queries against an open archive.
type Extractor struct {
	db     *archive.DB
	oracle *spatialindex.ScanOracle
}

// New builds an Extractor from an already-open archive and its scan
// oracle.
func New(db *archive.DB, oracle *spatialindex.ScanOracle) *Extractor {
	return &Extractor{db: db, oracle: oracle}
}

// ExtractRegion inflates [mzMin,mzMax]x[rtMin,rtMax] by one bounding-box
// step per side, queries the R-tree oracle, decodes the candidate tiles,
// reassembles scans, then drops scans outside [rtMin,rtMax] and peaks
// outside [mzMin,mzMax]. Results are ordered by ascending scan_id.
func (x *Extractor) ExtractRegion(mzMin, mzMax, rtMin, rtMax float64, msLevel int, bbMzStep, bbTimeStep float64) ([]msdata.Scan, error) {
	ids, err := spatialindex.RangeQuery(x.db, mzMin, mzMax, rtMin, rtMax, bbMzStep, bbTimeStep)
	if err != nil {
		return nil, fmt.Errorf("region: extract_region range query: %w", err)
	}
	scans, err := x.assembleTiles(ids, msLevel)
	if err != nil {
		return nil, err
	}
	return clip(scans, mzMin, mzMax, rtMin, rtMax, true), nil
}

// ExtractRunSlice uses the exact run-slice oracle (no rt clipping).
func (x *Extractor) ExtractRunSlice(mzMin, mzMax float64, msLevel int) ([]msdata.Scan, error) {
	ids, err := spatialindex.RunSliceQuery(x.db, mzMin, mzMax, msLevel)
	if err != nil {
		return nil, fmt.Errorf("region: extract_run_slice query: %w", err)
	}
	scans, err := x.assembleTiles(ids, msLevel)
	if err != nil {
		return nil, err
	}
	return clip(scans, mzMin, mzMax, 0, 0, false), nil
}

// assembleTiles decodes the given bounding_box ids, grouped by
// first_spectrum_id the same way internal/spectrumiter does, and returns
// the reconstructed scans restricted to msLevel.
func (x *Extractor) assembleTiles(ids []int64, msLevel int) ([]msdata.Scan, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]any, len(ids))
	qmarks := make([]byte, 0, len(ids)*2)
	for i, id := range ids {
		placeholders[i] = id
		if i > 0 {
			qmarks = append(qmarks, ',')
		}
		qmarks = append(qmarks, '?')
	}
	rows, err := x.db.Query(
		fmt.Sprintf(`SELECT id, run_slice_id, ms_level, first_spectrum_id, data FROM bounding_box WHERE id IN (%s) ORDER BY first_spectrum_id ASC, run_slice_id ASC`, string(qmarks)),
		placeholders...,
	)
	if err != nil {
		return nil, fmt.Errorf("region: fetch candidate tiles: %w", err)
	}
	defer rows.Close()

	encodings := x.oracle.Encodings()
	rts := x.oracle.RTs()

	scans := make(map[uint32]*msdata.Scan)
	var order []uint32
	for rows.Next() {
		var id, runSliceID int64
		var tileMSLevel int
		var firstSpectrumID uint32
		var data []byte
		if err := rows.Scan(&id, &runSliceID, &tileMSLevel, &firstSpectrumID, &data); err != nil {
			return nil, fmt.Errorf("region: tile row: %w", err)
		}
		if tileMSLevel != msLevel {
			continue
		}
		entries, err := blobcodec.BuildPositionIndex(data, encodings)
		if err != nil {
			return nil, fmt.Errorf("region: decode tile %d: %w", id, err)
		}
		for _, e := range entries {
			enc := encodings[e.ScanID]
			rt := rts[e.ScanID]
			centroids, err := blobcodec.DecodeScanAt(data, e, enc, rt)
			if err != nil {
				return nil, fmt.Errorf("region: decode scan %d in tile %d: %w", e.ScanID, id, err)
			}
			s, ok := scans[e.ScanID]
			if !ok {
				s = &msdata.Scan{ID: e.ScanID, MSLevel: msLevel, RT: rt, Encoding: enc}
				scans[e.ScanID] = s
				order = append(order, e.ScanID)
			}
			s.Centroids = append(s.Centroids, centroids...)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("region: tile iteration: %w", err)
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	out := make([]msdata.Scan, len(order))
	for i, id := range order {
		out[i] = *scans[id]
	}
	return out, nil
}

// clip drops scans outside the rt range (if clipRT) and, within each
// remaining scan, drops peaks outside [mzMin, mzMax].
func clip(scans []msdata.Scan, mzMin, mzMax, rtMin, rtMax float64, clipRT bool) []msdata.Scan {
	out := make([]msdata.Scan, 0, len(scans))
	for _, s := range scans {
		if clipRT && (s.RT < rtMin || s.RT > rtMax) {
			continue
		}
		kept := make([]msdata.Centroid, 0, len(s.Centroids))
		for _, c := range s.Centroids {
			if c.MZ < mzMin || c.MZ > mzMax {
				continue
			}
			kept = append(kept, c)
		}
		s.Centroids = kept
		out = append(out, s)
	}
	return out
}
