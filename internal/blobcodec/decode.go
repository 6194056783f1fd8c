package blobcodec

import (
	"encoding/binary"
	"fmt"

	"github.com/mzcore/msarchive/internal/mserrors"
	"github.com/mzcore/msarchive/internal/msdata"
)

// PositionEntry locates one scan record within a tile's blob: its byte
// offset (the first point byte, after the 8-byte header), point count,
// and per-point byte size.
type PositionEntry struct {
	ScanID     uint32
	ByteOffset int
	NPeaks     uint32
	PointSize  int
}

// BuildPositionIndex walks a tile's record headers in order, consulting
// encodings for each scan_id to learn its point size, and returns one
// PositionEntry per record. It fails with CorruptBlob if a record's
// declared peak count would read past the blob end, and with
// MissingEncoding if a scan_id has no entry in encodings.
func BuildPositionIndex(blob []byte, encodings map[uint32]msdata.DataEncoding) ([]PositionEntry, error) {
	var entries []PositionEntry
	pos := 0
	for pos < len(blob) {
		if pos+8 > len(blob) {
			return nil, fmt.Errorf("blobcodec: %w: truncated scan header at offset %d", mserrors.ErrCorruptBlob, pos)
		}
		scanID := binary.LittleEndian.Uint32(blob[pos : pos+4])
		nPeaks := binary.LittleEndian.Uint32(blob[pos+4 : pos+8])
		pos += 8

		enc, ok := encodings[scanID]
		if !ok {
			return nil, fmt.Errorf("blobcodec: %w: no data encoding for scan %d", mserrors.ErrMissingEncoding, scanID)
		}
		pointSize, err := enc.PointByteSize()
		if err != nil {
			return nil, fmt.Errorf("blobcodec: %w", err)
		}

		byteLen := int(nPeaks) * pointSize
		if pos+byteLen > len(blob) {
			return nil, fmt.Errorf("blobcodec: %w: scan %d claims %d peaks (%d bytes) past blob end", mserrors.ErrCorruptBlob, scanID, nPeaks, byteLen)
		}

		entries = append(entries, PositionEntry{ScanID: scanID, ByteOffset: pos, NPeaks: nPeaks, PointSize: pointSize})
		pos += byteLen
	}
	return entries, nil
}

// DecodeScanAt decodes the single scan record located by entry, using enc
// for its point layout and rt as the retention time stamped onto every
// decoded centroid.
func DecodeScanAt(blob []byte, entry PositionEntry, enc msdata.DataEncoding, rt float64) ([]msdata.Centroid, error) {
	end := entry.ByteOffset + int(entry.NPeaks)*entry.PointSize
	if end > len(blob) {
		return nil, fmt.Errorf("blobcodec: %w: scan %d position entry reads past blob end", mserrors.ErrCorruptBlob, entry.ScanID)
	}
	centroids := make([]msdata.Centroid, entry.NPeaks)
	off := entry.ByteOffset
	for i := range centroids {
		centroids[i] = getPoint(blob[off:off+entry.PointSize], enc, rt)
		off += entry.PointSize
	}
	return centroids, nil
}

// DecodeTile decodes every scan record in blob, returning a map of
// scan_id to its centroids. encodings and rts must cover every scan_id
// present in the blob.
func DecodeTile(blob []byte, encodings map[uint32]msdata.DataEncoding, rts map[uint32]float64) (map[uint32][]msdata.Centroid, error) {
	entries, err := BuildPositionIndex(blob, encodings)
	if err != nil {
		return nil, err
	}
	out := make(map[uint32][]msdata.Centroid, len(entries))
	for _, e := range entries {
		centroids, err := DecodeScanAt(blob, e, encodings[e.ScanID], rts[e.ScanID])
		if err != nil {
			return nil, err
		}
		out[e.ScanID] = centroids
	}
	return out, nil
}
