package spatialindex

import (
	"fmt"

	"github.com/mzcore/msarchive/internal/archive"
)

// RunSliceQuery returns the bounding_box ids for run-slices of ms_level
// whose [begin_mz, end_mz) interval overlaps [mzMin, mzMax]. Unlike
// RangeQuery this is strictly exact in m/z: a run-slice either overlaps
// the query range or it does not, with no superset slack.
func RunSliceQuery(db *archive.DB, mzMin, mzMax float64, msLevel int) ([]int64, error) {
	rows, err := db.Query(
		`SELECT bb.id FROM bounding_box bb
		 JOIN run_slice rs ON rs.id = bb.run_slice_id
		 WHERE rs.ms_level = ? AND rs.end_mz > ? AND rs.begin_mz <= ?`,
		msLevel, mzMin, mzMax,
	)
	if err != nil {
		return nil, fmt.Errorf("spatialindex: run-slice query: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("spatialindex: run-slice query row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
