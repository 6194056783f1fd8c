// Package blobcodec packs and unpacks bounding-box tile payloads: the
// concatenation of per-scan records described in the data model, each a
// (scan_id, n_peaks) header followed by a tight array of fixed-size peak
// records whose layout depends on the scan's DataEncoding.
package blobcodec

import (
	"encoding/binary"
	"math"

	"github.com/mzcore/msarchive/internal/msdata"
)

// putPoint appends one centroid's on-disk bytes to buf per enc, returning
// the extended slice. mz/intensity width follows the peak encoding;
// Fitted mode appends two float32 half-widths regardless of encoding.
func putPoint(buf []byte, c msdata.Centroid, enc msdata.DataEncoding) []byte {
	switch enc.PeakEnc {
	case msdata.LowRes:
		buf = appendFloat32(buf, c.MZ)
		buf = appendFloat32(buf, c.Intensity)
	case msdata.NoLoss:
		buf = appendFloat64(buf, c.MZ)
		buf = appendFloat64(buf, c.Intensity)
	default: // HighRes
		buf = appendFloat64(buf, c.MZ)
		buf = appendFloat32(buf, c.Intensity)
	}
	if enc.Mode == msdata.Fitted {
		buf = appendFloat32(buf, c.LeftHWHM)
		buf = appendFloat32(buf, c.RightHWHM)
	}
	return buf
}

// getPoint reads one point from buf (exactly pointSize bytes) into a
// Centroid, with rt filled in from the enclosing scan.
func getPoint(buf []byte, enc msdata.DataEncoding, rt float64) msdata.Centroid {
	var c msdata.Centroid
	c.RT = rt
	off := 0
	switch enc.PeakEnc {
	case msdata.LowRes:
		c.MZ = float64(readFloat32(buf[off:]))
		off += 4
		c.Intensity = float64(readFloat32(buf[off:]))
		off += 4
	case msdata.NoLoss:
		c.MZ = readFloat64(buf[off:])
		off += 8
		c.Intensity = readFloat64(buf[off:])
		off += 8
	default: // HighRes
		c.MZ = readFloat64(buf[off:])
		off += 8
		c.Intensity = float64(readFloat32(buf[off:]))
		off += 4
	}
	if enc.Mode == msdata.Fitted {
		c.LeftHWHM = float64(readFloat32(buf[off:]))
		off += 4
		c.RightHWHM = float64(readFloat32(buf[off:]))
	} else {
		c.LeftHWHM = msdata.PlatformMinHWHM
		c.RightHWHM = msdata.PlatformMinHWHM
	}
	return c
}

func appendFloat32(buf []byte, v float64) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(float32(v)))
	return append(buf, tmp[:]...)
}

func appendFloat64(buf []byte, v float64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	return append(buf, tmp[:]...)
}

func readFloat32(buf []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf))
}

func readFloat64(buf []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(buf))
}
