package region

import (
	"testing"

	"github.com/mzcore/msarchive/internal/archive"
	"github.com/mzcore/msarchive/internal/blobcodec"
	"github.com/mzcore/msarchive/internal/msdata"
	"github.com/mzcore/msarchive/internal/spatialindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFixture(t *testing.T) *Extractor {
	t.Helper()
	db, err := archive.Create(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	enc := msdata.DataEncoding{Mode: msdata.Centroid, PeakEnc: msdata.HighRes}
	encID, err := db.UpsertDataEncoding(enc)
	require.NoError(t, err)
	enc.ID = encID

	require.NoError(t, db.InsertRunSlice(1, 1, 0, 5))
	require.NoError(t, db.InsertRunSlice(2, 1, 5, 10))

	require.NoError(t, db.InsertSpectrum(archive.SpectrumRow{
		ID: 1, InitialID: 1, MSLevel: 1, RT: 10, DataEncodingID: encID, BBFirstSpectrumID: 1,
	}))
	require.NoError(t, db.InsertSpectrum(archive.SpectrumRow{
		ID: 2, InitialID: 2, MSLevel: 1, RT: 100, DataEncodingID: encID, BBFirstSpectrumID: 2,
	}))

	blobA, err := blobcodec.EncodeTile([]blobcodec.ScanPayload{
		{ScanID: 1, Centroids: []msdata.Centroid{{MZ: 1.0, Intensity: 10}, {MZ: 4.9, Intensity: 40}}},
	}, enc)
	require.NoError(t, err)
	blobB, err := blobcodec.EncodeTile([]blobcodec.ScanPayload{
		{ScanID: 2, Centroids: []msdata.Centroid{{MZ: 6.0, Intensity: 60}}},
	}, enc)
	require.NoError(t, err)

	_, err = db.InsertBoundingBox(archive.BoundingBoxRow{
		RunSliceID: 1, MSLevel: 1, FirstSpectrumID: 1, Data: blobA,
		MinMZ: 0, MaxMZ: 5, MinTime: 10, MaxTime: 10,
	})
	require.NoError(t, err)
	_, err = db.InsertBoundingBox(archive.BoundingBoxRow{
		RunSliceID: 2, MSLevel: 1, FirstSpectrumID: 2, Data: blobB,
		MinMZ: 5, MaxMZ: 10, MinTime: 100, MaxTime: 100,
	})
	require.NoError(t, err)

	oracle, err := spatialindex.NewScanOracle(db)
	require.NoError(t, err)
	return New(db, oracle)
}

func TestExtractRegionClipsRTAndMZ(t *testing.T) {
	x := buildFixture(t)
	scans, err := x.ExtractRegion(0, 5, 0, 50, 1, 0, 0)
	require.NoError(t, err)
	require.Len(t, scans, 1) // scan 2 (rt=100) dropped by rt clip
	assert.Equal(t, uint32(1), scans[0].ID)
	require.Len(t, scans[0].Centroids, 2)
}

func TestExtractRegionClipsPeaksWithinRetainedScan(t *testing.T) {
	x := buildFixture(t)
	scans, err := x.ExtractRegion(4, 5, 0, 50, 1, 0, 0)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	require.Len(t, scans[0].Centroids, 1)
	assert.InDelta(t, 4.9, scans[0].Centroids[0].MZ, 1e-6)
}

func TestExtractRunSliceHasNoRTClipping(t *testing.T) {
	x := buildFixture(t)
	scans, err := x.ExtractRunSlice(5, 10, 1)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, uint32(2), scans[0].ID) // rt=100, not clipped
}

func TestExtractRegionEmptyWhenNoOverlap(t *testing.T) {
	x := buildFixture(t)
	scans, err := x.ExtractRegion(1000, 2000, 0, 50, 1, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, scans)
}
