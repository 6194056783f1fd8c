package archive

import (
	"database/sql"
	"fmt"

	"github.com/mzcore/msarchive/internal/msdata"
)

// UpsertDataEncoding returns the id of an existing row matching (mode,
// peak_enc, compression), inserting one if none exists.
func (db *DB) UpsertDataEncoding(enc msdata.DataEncoding) (int64, error) {
	var id int64
	err := db.QueryRow(
		`SELECT id FROM data_encoding WHERE mode = ? AND peak_enc = ? AND compression = ?`,
		enc.Mode.String(), enc.PeakEnc.String(), enc.Compression,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("archive: lookup data_encoding: %w", err)
	}
	res, err := db.Exec(
		`INSERT INTO data_encoding (mode, peak_enc, compression) VALUES (?, ?, ?)`,
		enc.Mode.String(), enc.PeakEnc.String(), enc.Compression,
	)
	if err != nil {
		return 0, fmt.Errorf("archive: insert data_encoding: %w", err)
	}
	return res.LastInsertId()
}

// InsertRunSlice persists a run-slice row under its already-assigned id
// (the id comes from internal/bbuilder's registry, not autoincrement).
func (db *DB) InsertRunSlice(id int64, msLevel int, beginMZ, endMZ float64) error {
	_, err := db.Exec(
		`INSERT INTO run_slice (id, ms_level, begin_mz, end_mz) VALUES (?, ?, ?, ?)`,
		id, msLevel, beginMZ, endMZ,
	)
	if err != nil {
		return fmt.Errorf("archive: insert run_slice %d: %w", id, err)
	}
	return nil
}

// RenumberRunSlices applies a full old-id -> new-id remap inside a single
// transaction, as produced by bbuilder's post-conversion repair pass.
// IDs are remapped via a negative-offset staging pass so that a forward
// remap never collides with an id it has not yet vacated.
func (db *DB) RenumberRunSlices(remap map[int]int64) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("archive: begin renumber tx: %w", err)
	}
	defer tx.Rollback()

	// bounding_box.run_slice_id references run_slice(id), and the staging
	// pass leaves those references dangling until the second loop; check
	// foreign keys at commit instead of per statement.
	if _, err := tx.Exec(`PRAGMA defer_foreign_keys = ON`); err != nil {
		return fmt.Errorf("archive: defer foreign keys: %w", err)
	}

	stage := func(oldID int64) int64 { return -oldID - 1 }
	for oldID := range remap {
		old64 := int64(oldID)
		if _, err := tx.Exec(`UPDATE run_slice SET id = ? WHERE id = ?`, stage(old64), old64); err != nil {
			return fmt.Errorf("archive: stage run_slice %d: %w", oldID, err)
		}
		if _, err := tx.Exec(`UPDATE bounding_box SET run_slice_id = ? WHERE run_slice_id = ?`, stage(old64), old64); err != nil {
			return fmt.Errorf("archive: stage bounding_box for run_slice %d: %w", oldID, err)
		}
	}
	for oldID, newID := range remap {
		old64 := int64(oldID)
		if _, err := tx.Exec(`UPDATE run_slice SET id = ? WHERE id = ?`, newID, stage(old64)); err != nil {
			return fmt.Errorf("archive: commit run_slice %d->%d: %w", oldID, newID, err)
		}
		if _, err := tx.Exec(`UPDATE bounding_box SET run_slice_id = ? WHERE run_slice_id = ?`, newID, stage(old64)); err != nil {
			return fmt.Errorf("archive: commit bounding_box run_slice %d->%d: %w", oldID, newID, err)
		}
	}
	return tx.Commit()
}

// BoundingBoxRow is one persisted tile, ready for the blob column and its
// spatial extent.
type BoundingBoxRow struct {
	ID              int64
	RunSliceID      int64
	MSLevel         int
	FirstSpectrumID int64
	Data            []byte
	MinMZ, MaxMZ    float64
	MinTime, MaxTime float64
}

// InsertBoundingBox persists a tile's blob and its matching rtree extent
// row inside one transaction.
func (db *DB) InsertBoundingBox(row BoundingBoxRow) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("archive: begin insert bounding_box tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO bounding_box (run_slice_id, ms_level, first_spectrum_id, data) VALUES (?, ?, ?, ?)`,
		row.RunSliceID, row.MSLevel, row.FirstSpectrumID, row.Data,
	)
	if err != nil {
		return 0, fmt.Errorf("archive: insert bounding_box: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("archive: bounding_box last insert id: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO bounding_box_rtree (id, min_mz, max_mz, min_time, max_time) VALUES (?, ?, ?, ?, ?)`,
		id, row.MinMZ, row.MaxMZ, row.MinTime, row.MaxTime,
	)
	if err != nil {
		return 0, fmt.Errorf("archive: insert bounding_box_rtree: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("archive: commit bounding_box insert: %w", err)
	}
	return id, nil
}

// SpectrumRow is the catalog-facing spectrum entity: richer than
// msdata.Scan, carrying the precursor and cycle bookkeeping that only the
// persisted archive needs.
type SpectrumRow struct {
	ID                uint32
	InitialID         uint32
	Title             string
	Cycle             int
	MSLevel           int
	RT                float64
	PrecursorMZ       *float64
	PrecursorCharge   *int
	DataEncodingID    int64
	BBFirstSpectrumID uint32
	ParamTree         string
}

// InsertSpectrum persists one catalog row.
func (db *DB) InsertSpectrum(row SpectrumRow) error {
	_, err := db.Exec(
		`INSERT INTO spectrum (id, initial_id, title, cycle, ms_level, rt, precursor_mz, precursor_charge, data_encoding_id, bb_first_spectrum_id, param_tree)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.InitialID, row.Title, row.Cycle, row.MSLevel, row.RT,
		row.PrecursorMZ, row.PrecursorCharge, row.DataEncodingID, row.BBFirstSpectrumID, row.ParamTree,
	)
	if err != nil {
		return fmt.Errorf("archive: insert spectrum %d: %w", row.ID, err)
	}
	return nil
}

// SpectrumByID fetches one spectrum row, its DataEncoding resolved.
func (db *DB) SpectrumByID(id uint32) (SpectrumRow, msdata.DataEncoding, error) {
	var row SpectrumRow
	var enc msdata.DataEncoding
	var mode, peakEnc, compression string
	err := db.QueryRow(
		`SELECT s.id, s.initial_id, s.title, s.cycle, s.ms_level, s.rt, s.precursor_mz, s.precursor_charge,
		        s.data_encoding_id, s.bb_first_spectrum_id, s.param_tree,
		        e.mode, e.peak_enc, e.compression
		 FROM spectrum s JOIN data_encoding e ON e.id = s.data_encoding_id
		 WHERE s.id = ?`, id,
	).Scan(&row.ID, &row.InitialID, &row.Title, &row.Cycle, &row.MSLevel, &row.RT,
		&row.PrecursorMZ, &row.PrecursorCharge, &row.DataEncodingID, &row.BBFirstSpectrumID, &row.ParamTree,
		&mode, &peakEnc, &compression)
	if err != nil {
		return SpectrumRow{}, msdata.DataEncoding{}, fmt.Errorf("archive: spectrum %d: %w", id, err)
	}
	enc.ID = row.DataEncodingID
	enc.Mode = ParseDataMode(mode)
	enc.PeakEnc = ParsePeakEncoding(peakEnc)
	enc.Compression = compression
	return row, enc, nil
}

// ParseDataMode maps a data_encoding.mode column value back to its
// msdata.DataMode. Unrecognized values default to Profile.
func ParseDataMode(s string) msdata.DataMode {
	switch s {
	case "Centroid":
		return msdata.Centroid
	case "Fitted":
		return msdata.Fitted
	default:
		return msdata.Profile
	}
}

// ParsePeakEncoding maps a data_encoding.peak_enc column value back to its
// msdata.PeakEncoding. Unrecognized values default to HighRes.
func ParsePeakEncoding(s string) msdata.PeakEncoding {
	switch s {
	case "LowRes":
		return msdata.LowRes
	case "NoLoss":
		return msdata.NoLoss
	default:
		return msdata.HighRes
	}
}

// InsertChromatogram persists a chromatogram row and returns its id.
func (db *DB) InsertChromatogram(name string, data []byte, paramTree string) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO chromatogram (name, data, param_tree) VALUES (?, ?, ?)`,
		name, data, paramTree,
	)
	if err != nil {
		return 0, fmt.Errorf("archive: insert chromatogram %q: %w", name, err)
	}
	return res.LastInsertId()
}

// InsertSoftware persists a software row and returns its id.
func (db *DB) InsertSoftware(name, version, paramTree string) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO software (name, version, param_tree) VALUES (?, ?, ?)`,
		name, version, paramTree,
	)
	if err != nil {
		return 0, fmt.Errorf("archive: insert software %q: %w", name, err)
	}
	return res.LastInsertId()
}

// InsertSourceFile persists a source_file row and returns its id.
func (db *DB) InsertSourceFile(name, location, paramTree string) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO source_file (name, location, param_tree) VALUES (?, ?, ?)`,
		name, location, paramTree,
	)
	if err != nil {
		return 0, fmt.Errorf("archive: insert source_file %q: %w", name, err)
	}
	return res.LastInsertId()
}

// InsertInstrumentConfiguration persists an instrument_configuration row
// and returns its id.
func (db *DB) InsertInstrumentConfiguration(name string, softwareID *int64, paramTree string) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO instrument_configuration (name, software_id, param_tree) VALUES (?, ?, ?)`,
		name, softwareID, paramTree,
	)
	if err != nil {
		return 0, fmt.Errorf("archive: insert instrument_configuration %q: %w", name, err)
	}
	return res.LastInsertId()
}

// InsertDataProcessing persists a data_processing row and its ordered
// processing_method children.
func (db *DB) InsertDataProcessing(name string, methods []ProcessingMethod) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("archive: begin insert data_processing tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO data_processing (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("archive: insert data_processing %q: %w", name, err)
	}
	dpID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("archive: data_processing last insert id: %w", err)
	}
	for i, m := range methods {
		_, err := tx.Exec(
			`INSERT INTO processing_method (data_processing_id, software_id, "order", param_tree) VALUES (?, ?, ?, ?)`,
			dpID, m.SoftwareID, i, m.ParamTree,
		)
		if err != nil {
			return 0, fmt.Errorf("archive: insert processing_method %d for data_processing %q: %w", i, name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("archive: commit data_processing insert: %w", err)
	}
	return dpID, nil
}

// ProcessingMethod is one ordered step of a data_processing entity.
type ProcessingMethod struct {
	SoftwareID *int64
	ParamTree  string
}
