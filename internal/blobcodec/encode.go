package blobcodec

import (
	"encoding/binary"
	"fmt"

	"github.com/mzcore/msarchive/internal/msdata"
)

// ScanPayload is one scan's contribution to a tile: its identity and the
// centroids it supplies to this tile (a scan may contribute to several
// tiles, partitioned by run-slice).
type ScanPayload struct {
	ScanID    uint32
	Centroids []msdata.Centroid
}

// EncodeTile packs payloads into the tile byte layout of the data model,
// all scans sharing enc. Scans are written in the order given; callers
// are responsible for scan-id ordering invariants.
func EncodeTile(payloads []ScanPayload, enc msdata.DataEncoding) ([]byte, error) {
	pointSize, err := enc.PointByteSize()
	if err != nil {
		return nil, fmt.Errorf("blobcodec: %w", err)
	}

	size := 0
	for _, p := range payloads {
		size += 8 + len(p.Centroids)*pointSize
	}
	buf := make([]byte, 0, size)

	var hdr [8]byte
	for _, p := range payloads {
		binary.LittleEndian.PutUint32(hdr[0:4], p.ScanID)
		binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(p.Centroids)))
		buf = append(buf, hdr[:]...)
		for _, c := range p.Centroids {
			buf = putPoint(buf, c, enc)
		}
	}
	return buf, nil
}
