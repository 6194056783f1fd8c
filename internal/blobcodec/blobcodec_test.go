package blobcodec

import (
	"errors"
	"testing"

	"github.com/mzcore/msarchive/internal/mserrors"
	"github.com/mzcore/msarchive/internal/msdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCentroids() []msdata.Centroid {
	return []msdata.Centroid{
		{MZ: 500.1234, Intensity: 1000, LeftHWHM: 0.01, RightHWHM: 0.012, RT: 12.5},
		{MZ: 501.5, Intensity: 2500.5, LeftHWHM: 0.02, RightHWHM: 0.019, RT: 12.5},
	}
}

func TestEncodeDecodeRoundTripAllEncodingsAndModes(t *testing.T) {
	encs := []msdata.PeakEncoding{msdata.HighRes, msdata.LowRes, msdata.NoLoss}
	modes := []msdata.DataMode{msdata.Profile, msdata.Centroid, msdata.Fitted}

	for _, pe := range encs {
		for _, mode := range modes {
			enc := msdata.DataEncoding{ID: 1, Mode: mode, PeakEnc: pe}
			payloads := []ScanPayload{
				{ScanID: 7, Centroids: sampleCentroids()},
				{ScanID: 9, Centroids: sampleCentroids()[:1]},
			}
			blob, err := EncodeTile(payloads, enc)
			require.NoError(t, err)

			encodings := map[uint32]msdata.DataEncoding{7: enc, 9: enc}
			rts := map[uint32]float64{7: 12.5, 9: 12.5}
			decoded, err := DecodeTile(blob, encodings, rts)
			require.NoError(t, err)
			require.Len(t, decoded, 2)
			require.Len(t, decoded[7], 2)
			require.Len(t, decoded[9], 1)

			for i, want := range sampleCentroids() {
				got := decoded[7][i]
				assert.InDelta(t, want.MZ, got.MZ, precisionFor(pe))
				assert.InDelta(t, want.Intensity, got.Intensity, intensityPrecisionFor(pe))
				if mode == msdata.Fitted {
					assert.InDelta(t, want.LeftHWHM, got.LeftHWHM, 1e-5)
					assert.InDelta(t, want.RightHWHM, got.RightHWHM, 1e-5)
				} else {
					assert.Equal(t, msdata.PlatformMinHWHM, got.LeftHWHM)
					assert.Equal(t, msdata.PlatformMinHWHM, got.RightHWHM)
				}
			}
		}
	}
}

func precisionFor(pe msdata.PeakEncoding) float64 {
	if pe == msdata.LowRes {
		return 1e-3
	}
	return 1e-9
}

func intensityPrecisionFor(pe msdata.PeakEncoding) float64 {
	if pe == msdata.NoLoss {
		return 1e-9
	}
	return 1e-2 // float32 intensity precision
}

func TestBuildPositionIndexTruncatedHeaderIsCorrupt(t *testing.T) {
	blob := []byte{1, 2, 3} // shorter than an 8-byte header
	_, err := BuildPositionIndex(blob, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mserrors.ErrCorruptBlob))
}

func TestBuildPositionIndexOverrunIsCorrupt(t *testing.T) {
	enc := msdata.DataEncoding{Mode: msdata.Centroid, PeakEnc: msdata.HighRes}
	payloads := []ScanPayload{{ScanID: 1, Centroids: sampleCentroids()}}
	blob, err := EncodeTile(payloads, enc)
	require.NoError(t, err)

	truncated := blob[:len(blob)-1]
	_, err = BuildPositionIndex(truncated, map[uint32]msdata.DataEncoding{1: enc})
	require.Error(t, err)
	assert.True(t, errors.Is(err, mserrors.ErrCorruptBlob))
}

func TestBuildPositionIndexMissingEncoding(t *testing.T) {
	enc := msdata.DataEncoding{Mode: msdata.Centroid, PeakEnc: msdata.HighRes}
	payloads := []ScanPayload{{ScanID: 1, Centroids: sampleCentroids()}}
	blob, err := EncodeTile(payloads, enc)
	require.NoError(t, err)

	_, err = BuildPositionIndex(blob, map[uint32]msdata.DataEncoding{2: enc})
	require.Error(t, err)
	assert.True(t, errors.Is(err, mserrors.ErrMissingEncoding))
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	payload := []byte("some tile bytes that are not very compressible but should round trip")

	none, err := Compress(payload, CompressionNone)
	require.NoError(t, err)
	assert.Equal(t, payload, none)

	compressed, err := Compress(payload, CompressionZstd)
	require.NoError(t, err)

	decompressed, err := Decompress(compressed, CompressionZstd)
	require.NoError(t, err)
	assert.Equal(t, payload, decompressed)
}

func TestCompressUnknownTag(t *testing.T) {
	_, err := Compress([]byte("x"), "lz4")
	assert.Error(t, err)
}
