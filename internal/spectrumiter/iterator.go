// Package spectrumiter reconstructs per-ms-level spectra from a tile
// stream in ascending scan-id order, reversing the tiling
// internal/bbuilder performed at write time.
package spectrumiter

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/mzcore/msarchive/internal/archive"
	"github.com/mzcore/msarchive/internal/blobcodec"
	"github.com/mzcore/msarchive/internal/msdata"
	"github.com/mzcore/msarchive/internal/spatialindex"
)

// Iterator streams msdata.Scan values in ascending scan_id order. Each
// call to Next() may decode zero or more tiles before a scan becomes
// available; callers should treat it as a one-pass, non-restartable
// sequence (reopen the archive for a second pass).
type Iterator struct {
	db     *archive.DB
	oracle *spatialindex.ScanOracle

	encodings map[uint32]msdata.DataEncoding
	rts       map[uint32]float64

	rows       *sql.Rows
	pendingRow *tileRow
	exhausted  bool

	fifos map[int][]msdata.Scan
}

type tileRow struct {
	id              int64
	runSliceID      int64
	msLevel         int
	firstSpectrumID uint32
	data            []byte
}

// New opens a cursor over bounding_box ordered by (first_spectrum_id,
// run_slice_id) — the same order tiles were written in per cycle — and
// primes the scan oracle's dense maps.
func New(db *archive.DB, oracle *spatialindex.ScanOracle) (*Iterator, error) {
	rows, err := db.Query(
		`SELECT id, run_slice_id, ms_level, first_spectrum_id, data
		 FROM bounding_box ORDER BY first_spectrum_id ASC, run_slice_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("spectrumiter: open tile cursor: %w", err)
	}
	return &Iterator{
		db:        db,
		oracle:    oracle,
		encodings: oracle.Encodings(),
		rts:       oracle.RTs(),
		rows:      rows,
		fifos:     make(map[int][]msdata.Scan),
	}, nil
}

// Close releases the underlying tile cursor.
func (it *Iterator) Close() error {
	return it.rows.Close()
}

func (it *Iterator) readRow() (*tileRow, error) {
	if !it.rows.Next() {
		if err := it.rows.Err(); err != nil {
			return nil, fmt.Errorf("spectrumiter: tile cursor: %w", err)
		}
		return nil, nil
	}
	var r tileRow
	if err := it.rows.Scan(&r.id, &r.runSliceID, &r.msLevel, &r.firstSpectrumID, &r.data); err != nil {
		return nil, fmt.Errorf("spectrumiter: tile cursor row: %w", err)
	}
	return &r, nil
}

// loadNext decodes every tile sharing the next first_spectrum_id
// (one cycle's worth of tiles), merges per-scan centroids across them in
// run_slice-ascending order, and pushes the completed scans into their
// per-ms-level FIFOs in ascending scan_id order.
func (it *Iterator) loadNext() error {
	if it.exhausted {
		return nil
	}

	first := it.pendingRow
	if first == nil {
		row, err := it.readRow()
		if err != nil {
			return err
		}
		if row == nil {
			it.exhausted = true
			return nil
		}
		first = row
	}
	it.pendingRow = nil

	batchKey := first.firstSpectrumID
	scans := make(map[uint32]*msdata.Scan)
	var order []uint32

	appendTile := func(row *tileRow) error {
		entries, err := blobcodec.BuildPositionIndex(row.data, it.encodings)
		if err != nil {
			return fmt.Errorf("spectrumiter: decode tile %d: %w", row.id, err)
		}
		for _, e := range entries {
			enc := it.encodings[e.ScanID]
			rt := it.rts[e.ScanID]
			centroids, err := blobcodec.DecodeScanAt(row.data, e, enc, rt)
			if err != nil {
				return fmt.Errorf("spectrumiter: decode scan %d in tile %d: %w", e.ScanID, row.id, err)
			}
			s, ok := scans[e.ScanID]
			if !ok {
				msLevel, _ := it.oracle.MSLevel(e.ScanID)
				s = &msdata.Scan{ID: e.ScanID, MSLevel: msLevel, RT: rt, Encoding: enc}
				scans[e.ScanID] = s
				order = append(order, e.ScanID)
			}
			s.Centroids = append(s.Centroids, centroids...)
		}
		return nil
	}

	if err := appendTile(first); err != nil {
		return err
	}

	for {
		row, err := it.readRow()
		if err != nil {
			return err
		}
		if row == nil {
			it.exhausted = true
			break
		}
		if row.firstSpectrumID != batchKey {
			it.pendingRow = row
			break
		}
		if err := appendTile(row); err != nil {
			return err
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	for _, id := range order {
		s := *scans[id]
		it.fifos[s.MSLevel] = append(it.fifos[s.MSLevel], s)
	}
	return nil
}

// Next returns the scan for msLevel's FIFO head, loading tiles until one
// is available or the input is exhausted (io.EOF).
func (it *Iterator) Next(msLevel int) (msdata.Scan, error) {
	for len(it.fifos[msLevel]) == 0 {
		if it.exhausted {
			return msdata.Scan{}, io.EOF
		}
		if err := it.loadNext(); err != nil {
			return msdata.Scan{}, err
		}
	}
	head := it.fifos[msLevel][0]
	it.fifos[msLevel] = it.fifos[msLevel][1:]
	return head, nil
}

// Drain loads every remaining tile and returns all buffered scans across
// every ms-level, ordered by ascending scan_id. This is a convenience for
// callers that want the whole run rather than level-at-a-time streaming.
func (it *Iterator) Drain() ([]msdata.Scan, error) {
	for !it.exhausted {
		if err := it.loadNext(); err != nil {
			return nil, err
		}
	}
	var all []msdata.Scan
	for _, fifo := range it.fifos {
		all = append(all, fifo...)
	}
	for k := range it.fifos {
		it.fifos[k] = nil
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

// ErrExhausted reports whether err signals a clean end of the scan
// stream for a single-level Next call.
func ErrExhausted(err error) bool {
	return errors.Is(err, io.EOF)
}
