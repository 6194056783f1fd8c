package spatialindex

import (
	"fmt"

	"github.com/mzcore/msarchive/internal/archive"
)

// RangeQuery returns the (possibly larger superset of) bounding_box ids
// whose rtree extent overlaps [mzMin, mzMax] x [rtMin, rtMax]. The caller
// MUST re-filter decoded peaks against the exact rectangle; this oracle
// only narrows candidates.
//
// bbMzStep and bbTimeStep are added to each side of the query rectangle
// before the query runs, so tiles whose own extent starts just outside
// the caller's exact rectangle but whose contents still overlap it are
// not missed.
func RangeQuery(db *archive.DB, mzMin, mzMax, rtMin, rtMax, bbMzStep, bbTimeStep float64) ([]int64, error) {
	rows, err := db.Query(
		`SELECT id FROM bounding_box_rtree WHERE max_mz >= ? AND min_mz <= ? AND max_time >= ? AND min_time <= ?`,
		mzMin-bbMzStep, mzMax+bbMzStep, rtMin-bbTimeStep, rtMax+bbTimeStep,
	)
	if err != nil {
		return nil, fmt.Errorf("spatialindex: rtree range query: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("spatialindex: rtree range query row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
