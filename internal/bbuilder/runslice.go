package bbuilder

import "sort"

// RunSlice is a catalog-facing run-slice row: a half-open m/z interval
// scoped to one ms-level.
type RunSlice struct {
	ID      int
	MSLevel int
	BeginMZ float64
	EndMZ   float64
}

type runSliceKey struct {
	msLevel    int
	sliceIndex int
}

// runSliceRegistry assigns monotonically increasing ids to run-slices on
// first use and supports the post-conversion repair pass that renumbers
// them dense and ordered by ascending m/z.
type runSliceRegistry struct {
	ids    map[runSliceKey]int
	slices []RunSlice // indexed by id-1, in creation order
	nextID int
}

func newRunSliceRegistry() *runSliceRegistry {
	return &runSliceRegistry{ids: make(map[runSliceKey]int)}
}

// idFor returns the run-slice id for (msLevel, mz), assigning a new one on
// first use.
func (r *runSliceRegistry) idFor(msLevel int, mz, origin, width float64) int {
	sliceIndex := int((mz - origin) / width)
	key := runSliceKey{msLevel: msLevel, sliceIndex: sliceIndex}
	if id, ok := r.ids[key]; ok {
		return id
	}
	r.nextID++
	id := r.nextID
	begin := origin + float64(sliceIndex)*width
	r.ids[key] = id
	r.slices = append(r.slices, RunSlice{ID: id, MSLevel: msLevel, BeginMZ: begin, EndMZ: begin + width})
	return id
}

// Slices returns a copy of the run-slices created so far, in creation
// (id ascending) order.
func (r *runSliceRegistry) Slices() []RunSlice {
	out := make([]RunSlice, len(r.slices))
	copy(out, r.slices)
	return out
}

// Repair renumbers run-slices to be dense (1..k) and ordered by strictly
// ascending begin_mz across all ms-levels. It returns the old-id -> new-id
// mapping and the renumbered slices; callers must apply the mapping to any
// already-emitted Tile.RunSliceID.
func (r *runSliceRegistry) Repair() (remap map[int]int, renumbered []RunSlice) {
	ordered := r.Slices()
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].BeginMZ < ordered[j].BeginMZ
	})

	remap = make(map[int]int, len(ordered))
	renumbered = make([]RunSlice, len(ordered))
	for i, rs := range ordered {
		newID := i + 1
		remap[rs.ID] = newID
		rs.ID = newID
		renumbered[i] = rs
	}
	return remap, renumbered
}
