// Package convert wires the archive core into a single conversion
// pipeline: a sequential producer drains a RawReader, a bounded worker
// pool peak-picks each dispatch batch in parallel, and the calling
// goroutine (the consumer) folds picked scans through internal/bbuilder
// and persists the resulting tiles and catalog rows through
// internal/archive, updating internal/spatialindex's backing tables as it
// goes.
package convert

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/mzcore/msarchive/internal/archive"
	"github.com/mzcore/msarchive/internal/bbuilder"
	"github.com/mzcore/msarchive/internal/blobcodec"
	"github.com/mzcore/msarchive/internal/convertopts"
	"github.com/mzcore/msarchive/internal/mlog"
	"github.com/mzcore/msarchive/internal/mserrors"
	"github.com/mzcore/msarchive/internal/msdata"
	"github.com/mzcore/msarchive/internal/peakpick"
	"github.com/mzcore/msarchive/internal/rawreader"
)

// maxConsecutiveReadFailures is the hard cap: three consecutive RawReader
// failures abort the conversion.
const maxConsecutiveReadFailures = 3

// Picker resolves the peak-picking algorithm and its parameters for one
// ms_level, given the RawReader's vendor tag. The zero Picker runs
// zero-bounded picking with adaptive baseline/noise for every ms_level and
// no half-width fitting.
type Picker struct {
	Vendor rawreader.VendorTag
	// ParamsFor returns the PeakPickerParams to use for msLevel. A nil
	// func uses adaptive baseline/noise and min_snr=0 for every level.
	ParamsFor func(msLevel int) peakpick.PeakPickerParams
}

// paramsFor returns the PeakPickerParams for msLevel. The default sets
// DetectPeaks because pickOne always passes a nil vendor-centroid list to
// findPeaks: this driver has no channel for vendor-supplied centroids
// separate from the raw profile, and FindPeaksZeroBounded's
// non-DetectPeaks path only refines an existing vendor centroid list.
func (p Picker) paramsFor(msLevel int) peakpick.PeakPickerParams {
	if p.ParamsFor != nil {
		return p.ParamsFor(msLevel)
	}
	return peakpick.PeakPickerParams{AdaptiveBaselineAndNoise: true, DetectPeaks: true}
}

// findPeaks dispatches to the algorithm matching p.Vendor: wavelet for
// TOF/QTof-style time-of-flight data, QTof for delegated picking on QTof
// instruments, zero-bounded otherwise (the Orbitrap-style default).
func (p Picker) findPeaks(spec peakpick.RawSpectrum, vendor []msdata.Centroid, params peakpick.PeakPickerParams) ([]msdata.Centroid, error) {
	switch p.Vendor {
	case rawreader.VendorQTof:
		return peakpick.FindPeaksQTof(spec, vendor, params, nil)
	case rawreader.VendorTOF:
		return peakpick.FindPeaksWavelet(spec, vendor, params)
	default:
		return peakpick.FindPeaksZeroBounded(spec, vendor, params)
	}
}

// Driver drives a single conversion run to completion.
type Driver struct {
	reader rawreader.RawReader
	db     *archive.DB
	opts   *convertopts.ConversionOptions
	picker Picker

	builder      *bbuilder.Builder
	workers      int
	currentCycle int // cycle index the scan currently being folded belongs to

	cancel      atomic.Bool
	emptyLogged atomic.Bool // ErrEmptySpectrum is logged once per run

	encodingIDs map[string]int64 // cache key: mode|peakEnc|compression
}

// New builds a Driver over an already-open reader and archive. opts must
// have passed Validate(). Close the reader and db separately; the Driver
// takes no ownership of either.
func New(reader rawreader.RawReader, db *archive.DB, opts *convertopts.ConversionOptions, picker Picker) *Driver {
	workers := opts.GetWorkers()
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	cfg := bbuilder.Config{
		BBTimeWidth:    opts.GetBBTimeWidth(),
		BBTimeWidthMSn: opts.GetBBTimeWidthMSn(),
		BBMzWidth:      opts.GetBBMzWidth(),
		BBMzWidthMSn:   opts.GetBBMzWidthMSn(),
	}
	return &Driver{
		reader:      reader,
		db:          db,
		opts:        opts,
		picker:      picker,
		builder:     bbuilder.New(cfg),
		workers:     workers,
		encodingIDs: make(map[string]int64),
	}
}

// Cancel requests cooperative cancellation: the run finishes the batch
// currently in flight, closes and persists its cycle, then stops. It is
// safe to call from another goroutine.
func (d *Driver) Cancel() {
	d.cancel.Store(true)
}

// Stats summarizes one completed (or cancelled) conversion run.
type Stats struct {
	SpectraRead     int
	SpectraPicked   int
	TilesWritten    int
	RunSlicesFinal  int
	Cancelled       bool
	SkippedEmpty    int
	SkippedPickFail int
}

// Run drains the reader to completion (or until cancellation / nscans is
// reached), persisting tiles and catalog rows as cycles close. Fatal
// errors abort and return non-nil; recoverable per-spectrum conditions
// are logged via internal/mlog and the run continues.
func (d *Driver) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	var ms1Seen int
	nscans := d.opts.GetNScans()
	consecutiveFailures := 0

	for {
		if d.cancel.Load() {
			stats.Cancelled = true
			break
		}
		if nscans > 0 && ms1Seen >= nscans {
			break
		}

		batch, done, readErr := d.readDispatchBatch(nscans, ms1Seen)
		if len(batch) > 0 {
			stats.SpectraRead += len(batch)
			for _, raw := range batch {
				if raw.MSLevel == 1 {
					ms1Seen++
				}
			}

			picked, err := d.pickBatch(ctx, batch, &stats)
			if err != nil {
				return stats, err
			}

			tiles, err := d.foldAndPersist(picked)
			if err != nil {
				return stats, err
			}
			stats.TilesWritten += tiles
		}

		if readErr != nil {
			consecutiveFailures++
			if consecutiveFailures >= maxConsecutiveReadFailures {
				return stats, fmt.Errorf("convert: %w: %d consecutive spectrum read failures", mserrors.ErrIOFailed, consecutiveFailures)
			}
			mlog.Recoverable("read", 0, readErr.Error())
			continue
		}
		consecutiveFailures = 0

		if done {
			break
		}
	}

	// A cancelled run also flushes the cycle the builder still holds open,
	// so every scan already folded in is persisted.
	tiles, err := d.flushFinal()
	if err != nil {
		return stats, err
	}
	stats.TilesWritten += tiles

	if err := d.repairRunSlices(); err != nil {
		return stats, err
	}
	stats.RunSlicesFinal = len(d.builder.RunSlices())

	if err := d.stampCompletion(stats.Cancelled); err != nil {
		return stats, err
	}
	return stats, nil
}

// readDispatchBatch accumulates raw spectra until CycleSize MS1 scans
// have been read (the unit of parallel dispatch) or the reader is
// exhausted or nscans is reached. The batch is a scheduling convenience
// only; internal/bbuilder.Builder still makes the authoritative cycle
// close decision once the batch's scans are fed to it in order.
func (d *Driver) readDispatchBatch(nscans, ms1SeenBefore int) ([]rawreader.RawSpectrum, bool, error) {
	const dispatchMS1Count = 3
	var batch []rawreader.RawSpectrum
	ms1InBatch := 0
	for {
		spec, ok, err := d.reader.NextSpectrum()
		if err != nil {
			return batch, false, fmt.Errorf("convert: read spectrum: %w", err)
		}
		if !ok {
			return batch, true, nil
		}
		batch = append(batch, spec)
		if spec.MSLevel == 1 {
			ms1InBatch++
			if nscans > 0 && ms1SeenBefore+ms1InBatch >= nscans {
				return batch, true, nil
			}
			if ms1InBatch >= dispatchMS1Count {
				return batch, false, nil
			}
		}
	}
}

// pickBatch peak-picks every spectrum in batch concurrently across
// d.workers goroutines and returns the results in original read order.
// A single spectrum's pick failure is recoverable: it is logged and the
// spectrum is still emitted, with zero centroids.
func (d *Driver) pickBatch(ctx context.Context, batch []rawreader.RawSpectrum, stats *Stats) ([]msdata.Scan, error) {
	results := make([]msdata.Scan, len(batch))
	outcomes := make([]struct{ skippedEmpty, pickFailed bool }, len(batch))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	// Resolve every ms_level's data encoding here, on the calling
	// goroutine, so workers only read d.encodingIDs and never touch the
	// database.
	for _, raw := range batch {
		_, _ = d.resolveEncoding(raw.MSLevel)
	}

	for i, raw := range batch {
		i, raw := i, raw
		g.Go(func() error {
			scan, skippedEmpty, pickFailed := d.pickOne(raw)
			results[i] = scan
			outcomes[i].skippedEmpty = skippedEmpty
			outcomes[i].pickFailed = pickFailed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("convert: peak-picking batch: %w", err)
	}

	// Each worker only ever touches its own index in results/outcomes, so
	// the slice writes above need no synchronization; the tally below runs
	// after errgroup's Wait barrier, once every worker has joined.
	for _, o := range outcomes {
		stats.SpectraPicked++
		if o.skippedEmpty {
			stats.SkippedEmpty++
		}
		if o.pickFailed {
			stats.SkippedPickFail++
		}
	}
	return results, nil
}

func (d *Driver) pickOne(raw rawreader.RawSpectrum) (scan msdata.Scan, skippedEmpty, pickFailed bool) {
	enc, err := d.resolveEncoding(raw.MSLevel)
	if err != nil {
		mlog.Recoverable("encoding", raw.ID, err.Error())
		return msdata.Scan{ID: raw.ID, MSLevel: raw.MSLevel, RT: raw.RT, Precursor: raw.Precursor}, false, true
	}

	if len(raw.MZ) == 0 {
		if !d.emptyLogged.Swap(true) {
			mlog.Recoverable("empty-spectrum", raw.ID, mserrors.ErrEmptySpectrum.Error())
		}
		return msdata.Scan{ID: raw.ID, MSLevel: raw.MSLevel, RT: raw.RT, Encoding: enc, Precursor: raw.Precursor}, true, false
	}

	params := d.picker.paramsFor(raw.MSLevel)
	centroids, err := d.picker.findPeaks(raw.ToPeakSpectrum(), nil, params)
	if err != nil {
		mlog.Recoverable("pick-failed", raw.ID, err.Error())
		return msdata.Scan{ID: raw.ID, MSLevel: raw.MSLevel, RT: raw.RT, Encoding: enc, Precursor: raw.Precursor}, false, true
	}
	sort.Slice(centroids, func(i, j int) bool { return centroids[i].MZ < centroids[j].MZ })
	return msdata.Scan{ID: raw.ID, MSLevel: raw.MSLevel, RT: raw.RT, Encoding: enc, Precursor: raw.Precursor, Centroids: centroids}, false, false
}

// resolveEncoding maps the configured data mode for msLevel to a
// msdata.DataEncoding and upserts the matching data_encoding row,
// caching the id so repeat lookups for the same (mode, peak_enc,
// compression) triple don't round-trip the database.
func (d *Driver) resolveEncoding(msLevel int) (msdata.DataEncoding, error) {
	modeStr, err := d.opts.DataModeFor(msLevel)
	if err != nil {
		return msdata.DataEncoding{}, fmt.Errorf("convert: resolve data mode for ms_level %d: %w", msLevel, err)
	}
	mode := archive.ParseDataMode(modeStr)
	peakEnc := msdata.HighRes
	if d.opts.GetNoLoss() {
		peakEnc = msdata.NoLoss
	}
	compression := ""

	key := fmt.Sprintf("%d|%d|%s", mode, peakEnc, compression)
	if id, ok := d.encodingIDs[key]; ok {
		return msdata.DataEncoding{ID: id, Mode: mode, PeakEnc: peakEnc, Compression: compression}, nil
	}
	id, err := d.db.UpsertDataEncoding(msdata.DataEncoding{Mode: mode, PeakEnc: peakEnc, Compression: compression})
	if err != nil {
		return msdata.DataEncoding{}, fmt.Errorf("convert: upsert data_encoding for ms_level %d: %w", msLevel, err)
	}
	d.encodingIDs[key] = id
	return msdata.DataEncoding{ID: id, Mode: mode, PeakEnc: peakEnc, Compression: compression}, nil
}

// foldAndPersist feeds picked scans into the builder in ascending scan-id
// order and persists every catalog row and tile the fold produces.
func (d *Driver) foldAndPersist(picked []msdata.Scan) (int, error) {
	sort.Slice(picked, func(i, j int) bool { return picked[i].ID < picked[j].ID })

	tilesWritten := 0
	for _, scan := range picked {
		if err := d.persistSpectrum(scan); err != nil {
			return tilesWritten, err
		}
		tiles := d.builder.AddScan(scan)
		if len(tiles) > 0 {
			d.currentCycle++
		}
		n, err := d.persistTiles(tiles)
		if err != nil {
			return tilesWritten, err
		}
		tilesWritten += n
	}
	return tilesWritten, nil
}

func (d *Driver) flushFinal() (int, error) {
	tiles := d.builder.Flush()
	return d.persistTiles(tiles)
}

// persistSpectrum writes the catalog row for scan ahead of the tile(s)
// its centroids belong to, so catalog insertions for a cycle become
// durable in scan-id order. bb_first_spectrum_id is provisionally set to
// the scan's own id and corrected by stampBBFirstSpectrumID once the tile
// it belongs to closes and its true first_spectrum_id is known.
func (d *Driver) persistSpectrum(scan msdata.Scan) error {
	row := archive.SpectrumRow{
		ID:                scan.ID,
		InitialID:         scan.ID,
		Cycle:             d.currentCycle,
		MSLevel:           scan.MSLevel,
		RT:                scan.RT,
		DataEncodingID:    scan.Encoding.ID,
		BBFirstSpectrumID: scan.ID,
	}
	if scan.Precursor != nil {
		row.PrecursorMZ = &scan.Precursor.MZ
		row.PrecursorCharge = &scan.Precursor.Charge
	}
	return d.db.InsertSpectrum(row)
}

// persistTiles inserts run_slice rows for any run-slice first referenced
// by these tiles, encodes and inserts each tile's blob and spatial
// extent, and updates bb_first_spectrum_id on every spectrum the tiles
// cover. Run-slice and bounding-box insertion order follows tiles'
// existing (ms_level, run_slice) ascending order; the rtree extent is
// written in the same transaction as the tile, enforced by
// archive.InsertBoundingBox.
//
// All tiles passed in one call came from the same builder cycle closure,
// so they share one first_spectrum_id: the lowest scan id appearing in
// any of them. internal/spectrumiter and internal/region both rely on
// tiles from the same cycle carrying an identical first_spectrum_id to
// batch them together during reconstruction — a tile's own locally
// lowest scan id (bbuilder.Tile.FirstScanID) is not that value whenever
// a run-slice bucket happens to open later than the cycle's first scan.
func (d *Driver) persistTiles(tiles []bbuilder.Tile) (int, error) {
	if len(tiles) == 0 {
		return 0, nil
	}
	cycleFirstID := cycleFirstScanID(tiles)

	for _, tile := range tiles {
		if !d.runSlicePersisted(tile.RunSliceID) {
			if err := d.insertRunSliceFor(tile); err != nil {
				return 0, err
			}
		}

		payloads := make([]blobcodec.ScanPayload, len(tile.Scans))
		minMZ, maxMZ := 0.0, 0.0
		minTime, maxTime := tile.Scans[0].RT, tile.Scans[0].RT
		var enc msdata.DataEncoding
		first := true
		for i, ts := range tile.Scans {
			payloads[i] = blobcodec.ScanPayload{ScanID: ts.ScanID, Centroids: ts.Centroids}
			enc = ts.Encoding
			if ts.RT < minTime {
				minTime = ts.RT
			}
			if ts.RT > maxTime {
				maxTime = ts.RT
			}
			for _, c := range ts.Centroids {
				if first {
					minMZ, maxMZ = c.MZ, c.MZ
					first = false
					continue
				}
				if c.MZ < minMZ {
					minMZ = c.MZ
				}
				if c.MZ > maxMZ {
					maxMZ = c.MZ
				}
			}
		}

		blob, err := blobcodec.EncodeTile(payloads, enc)
		if err != nil {
			return 0, fmt.Errorf("convert: encode tile (run_slice=%d, ms_level=%d): %w", tile.RunSliceID, tile.MSLevel, err)
		}

		_, err = d.db.InsertBoundingBox(archive.BoundingBoxRow{
			RunSliceID:      int64(tile.RunSliceID),
			MSLevel:         tile.MSLevel,
			FirstSpectrumID: int64(cycleFirstID),
			Data:            blob,
			MinMZ:           minMZ,
			MaxMZ:           maxMZ,
			MinTime:         minTime,
			MaxTime:         maxTime,
		})
		if err != nil {
			return 0, fmt.Errorf("convert: insert bounding_box (run_slice=%d, ms_level=%d): %w", tile.RunSliceID, tile.MSLevel, err)
		}
	}

	if err := d.stampBBFirstSpectrumID(tiles, cycleFirstID); err != nil {
		return 0, err
	}
	return len(tiles), nil
}

// cycleFirstScanID returns the lowest scan id appearing in any of the
// given tiles, all produced by one builder cycle closure.
func cycleFirstScanID(tiles []bbuilder.Tile) uint32 {
	var first uint32
	seen := false
	for _, tile := range tiles {
		for _, ts := range tile.Scans {
			if !seen || ts.ScanID < first {
				first = ts.ScanID
				seen = true
			}
		}
	}
	return first
}

// stampBBFirstSpectrumID corrects bb_first_spectrum_id, which
// persistSpectrum provisionally set to each scan's own id, to the shared
// cycleFirstID now that the tiles the scan's centroids landed in have
// closed. A scan contributing to more than one tile in the same cycle is
// only stamped once, since every tile in tiles shares the same
// cycleFirstID.
func (d *Driver) stampBBFirstSpectrumID(tiles []bbuilder.Tile, cycleFirstID uint32) error {
	stamped := make(map[uint32]bool)
	for _, tile := range tiles {
		for _, ts := range tile.Scans {
			if ts.ScanID == cycleFirstID || stamped[ts.ScanID] {
				continue
			}
			stamped[ts.ScanID] = true
			if _, err := d.db.Exec(`UPDATE spectrum SET bb_first_spectrum_id = ? WHERE id = ?`, cycleFirstID, ts.ScanID); err != nil {
				return fmt.Errorf("convert: stamp bb_first_spectrum_id for scan %d: %w", ts.ScanID, err)
			}
		}
	}
	return nil
}

func (d *Driver) runSlicePersisted(id int) bool {
	var exists bool
	err := d.db.QueryRow(`SELECT COUNT(*) > 0 FROM run_slice WHERE id = ?`, id).Scan(&exists)
	return err == nil && exists
}

func (d *Driver) insertRunSliceFor(tile bbuilder.Tile) error {
	for _, rs := range d.builder.RunSlices() {
		if rs.ID == tile.RunSliceID {
			return d.db.InsertRunSlice(int64(rs.ID), rs.MSLevel, rs.BeginMZ, rs.EndMZ)
		}
	}
	return fmt.Errorf("convert: tile references unknown run_slice %d", tile.RunSliceID)
}

// repairRunSlices applies the post-conversion dense-renumbering pass to
// the already-persisted run_slice and bounding_box rows.
func (d *Driver) repairRunSlices() error {
	remap, _ := d.builder.RepairRunSlices()
	if len(remap) == 0 {
		return nil
	}
	remap64 := make(map[int]int64, len(remap))
	for old, new := range remap {
		remap64[old] = int64(new)
	}
	if err := d.db.RenumberRunSlices(remap64); err != nil {
		return fmt.Errorf("convert: repair run-slice numbering: %w", err)
	}
	return nil
}

// stampCompletion records whether the run finished or was cancelled in
// meta_archive.param_tree: the archive stays consistent and queryable
// either way, but a cancelled run is marked unfinished.
func (d *Driver) stampCompletion(cancelled bool) error {
	status := "finished"
	if cancelled {
		status = "unfinished"
	}
	tree := msdata.NewParamTree()
	tree.SetUserParam("status", status, "xsd:string")
	body, err := tree.Marshal()
	if err != nil {
		return fmt.Errorf("convert: encode completion status: %w", err)
	}
	_, err = d.db.Exec(`UPDATE meta_archive SET param_tree = ? WHERE id = 1`, string(body))
	if err != nil {
		return fmt.Errorf("convert: stamp completion status: %w", err)
	}
	return nil
}
