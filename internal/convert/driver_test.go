package convert

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzcore/msarchive/internal/archive"
	"github.com/mzcore/msarchive/internal/blobcodec"
	"github.com/mzcore/msarchive/internal/convertopts"
	"github.com/mzcore/msarchive/internal/mserrors"
	"github.com/mzcore/msarchive/internal/msdata"
	"github.com/mzcore/msarchive/internal/rawreader"
)

// ms1Profile is a zero-bounded profile carrying two well-separated peaks:
// one in [0,5) and one in [5,10), matching internal/bbuilder's default
// 5 Da MS1 run-slice width so a single MS1 scan always spans two tiles.
func ms1Profile() ([]float64, []float64) {
	mz := []float64{1, 1.01, 1.02, 1.03, 1.04, 1.05, 7.00, 7.01, 7.02, 7.03}
	intensity := []float64{100, 200, 100, 0, 0, 0, 200, 300, 200, 0}
	return mz, intensity
}

// ms2Profile is a single isolated peak at m/z 50, inside MSn's default
// 10000 Da run-slice width (one MSn tile for the whole run). The apex needs
// a non-degenerate neighborhood (not one lone nonzero sample) or adaptive
// baseline/noise estimation collapses to noise=0 with baseline equal to the
// apex itself, failing the SNR check.
func ms2Profile() ([]float64, []float64) {
	return []float64{50.00, 50.01, 50.02, 50.03}, []float64{100, 200, 100, 0}
}

func testOptions() *convertopts.ConversionOptions {
	opts := convertopts.Empty()
	opts.CentroidRanges = []string{"1-2"}
	return opts
}

func buildReader() *rawreader.MemoryReader {
	ms1MZ, ms1Int := ms1Profile()
	ms2MZ, ms2Int := ms2Profile()
	return rawreader.NewMemoryReader(rawreader.VendorOrbitrap, []rawreader.RawSpectrum{
		{ID: 1, MSLevel: 1, RT: 1.0, MZ: ms1MZ, Intensity: ms1Int},
		{ID: 2, MSLevel: 2, RT: 1.5, MZ: ms2MZ, Intensity: ms2Int, Precursor: &rawreader.Precursor{MZ: 7.01, Charge: 1}},
		{ID: 3, MSLevel: 1, RT: 2.0, MZ: ms1MZ, Intensity: ms1Int},
		{ID: 4, MSLevel: 2, RT: 2.5, MZ: ms2MZ, Intensity: ms2Int, Precursor: &rawreader.Precursor{MZ: 7.01, Charge: 1}},
		{ID: 5, MSLevel: 1, RT: 3.0, MZ: ms1MZ, Intensity: ms1Int},
		// Orphaned: arrives after the 3-MS1 cycle above has already
		// closed, and carries no data of its own.
		{ID: 6, MSLevel: 2, RT: 3.5},
		{ID: 7, MSLevel: 1, RT: 4.0, MZ: ms1MZ, Intensity: ms1Int},
	})
}

func TestDriverRunBuildsCatalogAndTiles(t *testing.T) {
	db, err := archive.Create(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	d := New(buildReader(), db, testOptions(), Picker{Vendor: rawreader.VendorOrbitrap})
	stats, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 7, stats.SpectraRead)
	assert.Equal(t, 7, stats.SpectraPicked)
	assert.Equal(t, 1, stats.SkippedEmpty) // scan 6
	assert.Equal(t, 0, stats.SkippedPickFail)
	assert.False(t, stats.Cancelled)

	// Cycle 1 (scans 1-5) yields 3 tiles: two MS1 run-slices plus one MSn
	// run-slice. Cycle 2's final flush (scan 7 alone) reuses both MS1
	// run-slices, yielding 2 more tiles.
	assert.Equal(t, 5, stats.TilesWritten)
	assert.Equal(t, 3, stats.RunSlicesFinal)

	var spectrumCount, runSliceCount, bbCount, rtreeCount int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM spectrum`).Scan(&spectrumCount))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM run_slice`).Scan(&runSliceCount))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM bounding_box`).Scan(&bbCount))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM bounding_box_rtree`).Scan(&rtreeCount))
	assert.Equal(t, 7, spectrumCount)
	assert.Equal(t, 3, runSliceCount)
	assert.Equal(t, 5, bbCount)
	assert.Equal(t, 5, rtreeCount)

	// Every scan in cycle 1 (ids 1-5) shares the cycle's first scan id
	// (1), whether or not it was the tile's own locally-lowest id;
	// the orphaned scan 6 never lands in a tile and keeps its
	// self-referential placeholder; scan 7 starts its own cycle.
	wantBBFirst := map[uint32]uint32{1: 1, 2: 1, 3: 1, 4: 1, 5: 1, 6: 6, 7: 7}
	wantCycle := map[uint32]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0, 6: 1, 7: 1}
	wantMSLevel := map[uint32]int{1: 1, 2: 2, 3: 1, 4: 2, 5: 1, 6: 2, 7: 1}

	var firstEncodingID int64
	for id := uint32(1); id <= 7; id++ {
		row, enc, err := db.SpectrumByID(id)
		require.NoError(t, err)
		assert.Equal(t, wantBBFirst[id], row.BBFirstSpectrumID, "scan %d bb_first_spectrum_id", id)
		assert.Equal(t, wantCycle[id], row.Cycle, "scan %d cycle", id)
		assert.Equal(t, wantMSLevel[id], row.MSLevel, "scan %d ms_level", id)
		if firstEncodingID == 0 {
			firstEncodingID = enc.ID
		} else {
			assert.Equal(t, firstEncodingID, enc.ID, "scan %d should share the one data_encoding row", id)
		}
	}

	// MS2 scans carry their precursor through to the catalog.
	row2, _, err := db.SpectrumByID(2)
	require.NoError(t, err)
	require.NotNil(t, row2.PrecursorMZ)
	require.NotNil(t, row2.PrecursorCharge)
	assert.InDelta(t, 7.01, *row2.PrecursorMZ, 1e-6)
	assert.Equal(t, 1, *row2.PrecursorCharge)

	// run_slice 1 ([0,5)) got a cycle-1 tile covering scans 1,3,5 and a
	// second, later tile from cycle 2's flush covering scan 7 alone.
	rows, err := db.Query(`SELECT id, first_spectrum_id, data FROM bounding_box WHERE run_slice_id = 1 ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	var tiles []struct {
		id, firstSpectrumID int64
		data                []byte
	}
	for rows.Next() {
		var tt struct {
			id, firstSpectrumID int64
			data                []byte
		}
		require.NoError(t, rows.Scan(&tt.id, &tt.firstSpectrumID, &tt.data))
		tiles = append(tiles, tt)
	}
	require.NoError(t, rows.Err())
	require.Len(t, tiles, 2)
	assert.Equal(t, int64(1), tiles[0].firstSpectrumID)
	assert.Equal(t, int64(7), tiles[1].firstSpectrumID)

	encMap, err := encodingsByScan(db, []uint32{1, 3, 5})
	require.NoError(t, err)
	entries, err := blobcodec.BuildPositionIndex(tiles[0].data, encMap)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, wantID := range []uint32{1, 3, 5} {
		assert.Equal(t, wantID, entries[i].ScanID)
		assert.Equal(t, uint32(1), entries[i].NPeaks)
		c, err := blobcodec.DecodeScanAt(tiles[0].data, entries[i], encMap[wantID], 0)
		require.NoError(t, err)
		require.Len(t, c, 1)
		assert.InDelta(t, 1.01, c[0].MZ, 1e-6)
		assert.InDelta(t, 200, c[0].Intensity, 1e-6)
	}

	encMap7, err := encodingsByScan(db, []uint32{7})
	require.NoError(t, err)
	entries7, err := blobcodec.BuildPositionIndex(tiles[1].data, encMap7)
	require.NoError(t, err)
	require.Len(t, entries7, 1)
	c7, err := blobcodec.DecodeScanAt(tiles[1].data, entries7[0], encMap7[7], 0)
	require.NoError(t, err)
	require.Len(t, c7, 1)
	assert.InDelta(t, 1.01, c7[0].MZ, 1e-6)

	// Run-slices are renumbered by ascending begin_mz across all
	// ms-levels, not scoped per ms_level: the MS1 slice at [0,5) keeps id
	// 1, the MSn slice also starting at begin_mz 0 sorts right after it
	// (ties broken by creation order) and gets id 2, and the MS1 slice at
	// [5,10) gets id 3 last.
	var msnRunSliceID int64
	require.NoError(t, db.QueryRow(`SELECT id FROM run_slice WHERE ms_level = 2`).Scan(&msnRunSliceID))
	assert.Equal(t, int64(2), msnRunSliceID)

	var runSliceBeginMZs []float64
	rsRows, err := db.Query(`SELECT begin_mz FROM run_slice ORDER BY id`)
	require.NoError(t, err)
	defer rsRows.Close()
	for rsRows.Next() {
		var mz float64
		require.NoError(t, rsRows.Scan(&mz))
		runSliceBeginMZs = append(runSliceBeginMZs, mz)
	}
	require.NoError(t, rsRows.Err())
	assert.Equal(t, []float64{0, 0, 5}, runSliceBeginMZs)

	var msnBlob []byte
	require.NoError(t, db.QueryRow(`SELECT data FROM bounding_box WHERE run_slice_id = ?`, msnRunSliceID).Scan(&msnBlob))
	encMapMSn, err := encodingsByScan(db, []uint32{2, 4})
	require.NoError(t, err)
	msnEntries, err := blobcodec.BuildPositionIndex(msnBlob, encMapMSn)
	require.NoError(t, err)
	require.Len(t, msnEntries, 2)
	assert.Equal(t, []uint32{2, 4}, []uint32{msnEntries[0].ScanID, msnEntries[1].ScanID})

	// meta_archive is stamped finished, not cancelled.
	var paramTree string
	require.NoError(t, db.QueryRow(`SELECT param_tree FROM meta_archive WHERE id = 1`).Scan(&paramTree))
	assert.Contains(t, paramTree, "finished")
	assert.NotContains(t, paramTree, "unfinished")
}

// encodingsByScan looks up each scan's DataEncoding and returns them keyed
// by scan id, the shape internal/blobcodec's decode helpers require.
func encodingsByScan(db *archive.DB, ids []uint32) (map[uint32]msdata.DataEncoding, error) {
	out := make(map[uint32]msdata.DataEncoding, len(ids))
	for _, id := range ids {
		_, enc, err := db.SpectrumByID(id)
		if err != nil {
			return nil, err
		}
		out[id] = enc
	}
	return out, nil
}

func TestDriverCancelStopsBeforeReadingAndMarksUnfinished(t *testing.T) {
	db, err := archive.Create(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	d := New(buildReader(), db, testOptions(), Picker{Vendor: rawreader.VendorOrbitrap})
	d.Cancel()
	stats, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, stats.Cancelled)
	assert.Equal(t, 0, stats.SpectraRead)

	var paramTree string
	require.NoError(t, db.QueryRow(`SELECT param_tree FROM meta_archive WHERE id = 1`).Scan(&paramTree))
	assert.Contains(t, paramTree, "unfinished")
}

// failingReader errors on every read, exercising the hard 3-consecutive-
// failure read abort.
type failingReader struct{ calls int }

func (r *failingReader) Vendor() rawreader.VendorTag { return rawreader.VendorUnknown }

func (r *failingReader) NextSpectrum() (rawreader.RawSpectrum, bool, error) {
	r.calls++
	return rawreader.RawSpectrum{}, false, errors.New("vendor decode failed")
}

func (r *failingReader) Close() error { return nil }

func TestDriverAbortsAfterThreeConsecutiveReadFailures(t *testing.T) {
	db, err := archive.Create(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reader := &failingReader{}
	d := New(reader, db, testOptions(), Picker{Vendor: rawreader.VendorOrbitrap})
	_, err = d.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, mserrors.ErrIOFailed))
	assert.Equal(t, 3, reader.calls)
}
