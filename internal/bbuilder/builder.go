package bbuilder

import (
	"sort"

	"github.com/mzcore/msarchive/internal/msdata"
)

// Builder is the cycle state machine. Feed it scans in scan-id
// order via AddScan; it accumulates a sliding window of MS1 scans (plus
// any MSn scans observed while that window is open) and, once a cycle
// closes, returns the tiles for that cycle in (ms_level, run_slice)
// ascending order.
type Builder struct {
	cfg Config
	reg *runSliceRegistry

	cycleOpen  bool
	ms1Scans   []msdata.Scan
	msnScans   []msdata.Scan
	cycleStart float64
}

// New creates a Builder with cfg's defaults applied.
func New(cfg Config) *Builder {
	return &Builder{cfg: cfg.WithDefaults(), reg: newRunSliceRegistry()}
}

// AddScan feeds one scan into the builder. It returns the tiles of a
// closed cycle, or nil if the cycle remains open.
func (b *Builder) AddScan(scan msdata.Scan) []Tile {
	if scan.MSLevel != 1 {
		if b.cycleOpen {
			b.msnScans = append(b.msnScans, scan)
		}
		// An MSn scan arriving with no open MS1 cycle is orphaned; there
		// is no cycle for it to attach to, so it is dropped rather than
		// starting a cycle on its own (MSn alone never extends a cycle,
		// BBTimeWidthMSn defaults to 0).
		return nil
	}

	var closed []Tile
	if b.cycleOpen && b.cycleShouldClose() {
		closed = b.closeCycle()
	}
	if !b.cycleOpen {
		b.cycleOpen = true
		b.cycleStart = scan.RT
	}
	b.ms1Scans = append(b.ms1Scans, scan)
	if b.cycleShouldCloseAfterAppend() {
		closed = append(closed, b.closeCycle()...)
	}
	return closed
}

// cycleShouldClose reports whether the currently open cycle should close
// before accepting a new MS1 scan: only the hard scan-count cap matters
// here, since the time-width check needs the candidate scan's rt.
func (b *Builder) cycleShouldClose() bool {
	return len(b.ms1Scans) >= b.cfg.CycleSize
}

// cycleShouldCloseAfterAppend reports whether the cycle should close
// immediately after appending the latest MS1 scan: the scan count has
// reached CycleSize, or the MS1 rt span has reached BBTimeWidth.
func (b *Builder) cycleShouldCloseAfterAppend() bool {
	if len(b.ms1Scans) >= b.cfg.CycleSize {
		return true
	}
	last := b.ms1Scans[len(b.ms1Scans)-1]
	return last.RT-b.cycleStart >= b.cfg.BBTimeWidth
}

// Flush closes any open cycle, returning its tiles. Call this once after
// the last scan has been fed.
func (b *Builder) Flush() []Tile {
	if !b.cycleOpen || len(b.ms1Scans) == 0 {
		return nil
	}
	return b.closeCycle()
}

// RunSlices returns the run-slices created so far, in creation order.
func (b *Builder) RunSlices() []RunSlice {
	return b.reg.Slices()
}

// RepairRunSlices renumbers run-slices dense and ordered by strictly
// ascending begin_mz across all ms-levels. Call once after the final
// Flush; the returned map must be applied to every already emitted
// Tile.RunSliceID and to the persisted run_slice catalog rows.
func (b *Builder) RepairRunSlices() (remap map[int]int, renumbered []RunSlice) {
	return b.reg.Repair()
}

type bucketKey struct {
	msLevel  int
	sliceIdx int
}

func (b *Builder) closeCycle() []Tile {
	scans := make([]msdata.Scan, 0, len(b.ms1Scans)+len(b.msnScans))
	scans = append(scans, b.ms1Scans...)
	scans = append(scans, b.msnScans...)
	sort.Slice(scans, func(i, j int) bool { return scans[i].ID < scans[j].ID })

	buckets := map[bucketKey]*Tile{}
	var order []bucketKey

	for _, scan := range scans {
		width := b.cfg.mzWidthFor(scan.MSLevel)
		perSlice := map[int][]msdata.Centroid{}
		var sliceOrder []int
		for _, c := range scan.Centroids {
			sliceIdx := int((c.MZ - b.cfg.MZOrigin) / width)
			if _, ok := perSlice[sliceIdx]; !ok {
				sliceOrder = append(sliceOrder, sliceIdx)
			}
			perSlice[sliceIdx] = append(perSlice[sliceIdx], c)
		}
		for _, sliceIdx := range sliceOrder {
			runSliceID := b.reg.idFor(scan.MSLevel, perSlice[sliceIdx][0].MZ, b.cfg.MZOrigin, width)
			key := bucketKey{msLevel: scan.MSLevel, sliceIdx: sliceIdx}
			tile, ok := buckets[key]
			if !ok {
				tile = &Tile{RunSliceID: runSliceID, MSLevel: scan.MSLevel, FirstScanID: scan.ID}
				buckets[key] = tile
				order = append(order, key)
			}
			if scan.ID < tile.FirstScanID {
				tile.FirstScanID = scan.ID
			}
			tile.Scans = append(tile.Scans, TileScan{
				ScanID:    scan.ID,
				RT:        scan.RT,
				Encoding:  scan.Encoding,
				Centroids: perSlice[sliceIdx],
			})
		}
	}

	sort.Slice(order, func(i, j int) bool {
		a, c := order[i], order[j]
		if a.msLevel != c.msLevel {
			return a.msLevel < c.msLevel
		}
		return buckets[a].RunSliceID < buckets[c].RunSliceID
	})

	tiles := make([]Tile, 0, len(order))
	for _, key := range order {
		tiles = append(tiles, *buckets[key])
	}

	b.ms1Scans = nil
	b.msnScans = nil
	b.cycleOpen = false
	return tiles
}
