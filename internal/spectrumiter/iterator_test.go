package spectrumiter

import (
	"io"
	"testing"

	"github.com/mzcore/msarchive/internal/archive"
	"github.com/mzcore/msarchive/internal/blobcodec"
	"github.com/mzcore/msarchive/internal/msdata"
	"github.com/mzcore/msarchive/internal/spatialindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFixture(t *testing.T) (*archive.DB, *spatialindex.ScanOracle) {
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
		ID: 1, InitialID: 1, MSLevel: 1, RT: 1.0, DataEncodingID: encID, BBFirstSpectrumID: 1,
	}))
	require.NoError(t, db.InsertSpectrum(archive.SpectrumRow{
		ID: 2, InitialID: 2, MSLevel: 1, RT: 2.0, DataEncodingID: encID, BBFirstSpectrumID: 1,
	}))

	lowBlob, err := blobcodec.EncodeTile([]blobcodec.ScanPayload{
		{ScanID: 1, Centroids: []msdata.Centroid{{MZ: 1.0, Intensity: 10}, {MZ: 2.0, Intensity: 20}}},
		{ScanID: 2, Centroids: []msdata.Centroid{{MZ: 1.5, Intensity: 15}}},
	}, enc)
	require.NoError(t, err)
	highBlob, err := blobcodec.EncodeTile([]blobcodec.ScanPayload{
		{ScanID: 1, Centroids: []msdata.Centroid{{MZ: 7.0, Intensity: 70}}},
		{ScanID: 2, Centroids: []msdata.Centroid{{MZ: 8.0, Intensity: 80}}},
	}, enc)
	require.NoError(t, err)

	_, err = db.InsertBoundingBox(archive.BoundingBoxRow{
		RunSliceID: 1, MSLevel: 1, FirstSpectrumID: 1, Data: lowBlob,
		MinMZ: 0, MaxMZ: 5, MinTime: 1, MaxTime: 2,
	})
	require.NoError(t, err)
	_, err = db.InsertBoundingBox(archive.BoundingBoxRow{
		RunSliceID: 2, MSLevel: 1, FirstSpectrumID: 1, Data: highBlob,
		MinMZ: 5, MaxMZ: 10, MinTime: 1, MaxTime: 2,
	})
	require.NoError(t, err)

	oracle, err := spatialindex.NewScanOracle(db)
	require.NoError(t, err)
	return db, oracle
}

func TestIteratorMergesTilesAcrossRunSlicesInMZOrder(t *testing.T) {
	db, oracle := buildFixture(t)
	it, err := New(db, oracle)
	require.NoError(t, err)
	defer it.Close()

	scan1, err := it.Next(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), scan1.ID)
	require.Len(t, scan1.Centroids, 3)
	assert.InDelta(t, 1.0, scan1.Centroids[0].MZ, 1e-6)
	assert.InDelta(t, 2.0, scan1.Centroids[1].MZ, 1e-6)
	assert.InDelta(t, 7.0, scan1.Centroids[2].MZ, 1e-6)

	scan2, err := it.Next(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), scan2.ID)
	require.Len(t, scan2.Centroids, 2)
	assert.InDelta(t, 1.5, scan2.Centroids[0].MZ, 1e-6)
	assert.InDelta(t, 8.0, scan2.Centroids[1].MZ, 1e-6)

	_, err = it.Next(1)
	assert.True(t, ErrExhausted(err))
	assert.ErrorIs(t, err, io.EOF)
}

func TestIteratorDrainOrdersByAscendingScanID(t *testing.T) {
	db, oracle := buildFixture(t)
	it, err := New(db, oracle)
	require.NoError(t, err)
	defer it.Close()

	all, err := it.Drain()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, uint32(1), all[0].ID)
	assert.Equal(t, uint32(2), all[1].ID)
}
