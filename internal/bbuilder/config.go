// Package bbuilder implements the bounding-box cycle state machine: it
// consumes scans in scan-id order, partitions their centroids into
// run-slices, and emits immutable tiles once a cycle closes.
package bbuilder

// Config holds the tile-sizing parameters of the data model. Zero values
// are replaced by the documented defaults in New.
type Config struct {
	// BBTimeWidth is the soft MS1 cycle time-span target in seconds.
	// Default 15.
	BBTimeWidth float64
	// BBTimeWidthMSn is the soft MSn cycle time-span target in seconds.
	// Default 0 (MSn scans never extend a cycle on their own).
	BBTimeWidthMSn float64
	// BBMzWidth is the MS1 run-slice width in Da. Default 5.
	BBMzWidth float64
	// BBMzWidthMSn is the MSn run-slice width in Da. Default 10000.
	BBMzWidthMSn float64
	// CycleSize is N, the number of consecutive MS1 scans per cycle
	// absent an earlier time-width closure. Default 3.
	CycleSize int
	// MZOrigin is the m/z origin run-slice indices are computed from.
	// Default 0.
	MZOrigin float64
}

// WithDefaults returns a copy of c with zero fields replaced by their
// documented defaults.
func (c Config) WithDefaults() Config {
	if c.BBTimeWidth == 0 {
		c.BBTimeWidth = 15
	}
	if c.BBMzWidth == 0 {
		c.BBMzWidth = 5
	}
	if c.BBMzWidthMSn == 0 {
		c.BBMzWidthMSn = 10000
	}
	if c.CycleSize == 0 {
		c.CycleSize = 3
	}
	return c
}

// mzWidthFor returns the configured run-slice width for msLevel.
func (c Config) mzWidthFor(msLevel int) float64 {
	if msLevel == 1 {
		return c.BBMzWidth
	}
	return c.BBMzWidthMSn
}
