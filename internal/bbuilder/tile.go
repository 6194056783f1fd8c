package bbuilder

import "github.com/mzcore/msarchive/internal/msdata"

// Tile is one emitted bounding box: the scan-level contributions of a
// single (ms_level, run_slice) bucket accumulated over one cycle.
type Tile struct {
	RunSliceID  int
	MSLevel     int
	FirstScanID uint32
	Scans       []TileScan
}

// TileScan is one scan's contribution to a Tile: its identity, retention
// time, encoding, and the subset of its centroids that fell in this
// tile's run-slice.
type TileScan struct {
	ScanID    uint32
	RT        float64
	Encoding  msdata.DataEncoding
	Centroids []msdata.Centroid
}
