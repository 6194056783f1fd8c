// Package archive is the RelDB resolution of the data model: schema
// migrations, catalog CRUD, and param-tree persistence over a SQLite file.
package archive

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mzcore/msarchive/internal/mserrors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a SQLite connection holding one archive.
type DB struct {
	*sql.DB
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("archive: failed to execute %q: %w", p, err)
		}
	}
	return nil
}

// OpenDB opens path without touching schema; callers that only need to
// read an existing archive use this plus MigrateVersion to check
// compatibility.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", mserrors.ErrIOFailed, err)
	}
	if err := applyPragmas(sqlDB); err != nil {
		return nil, fmt.Errorf("%w: %v", mserrors.ErrIOFailed, err)
	}
	return &DB{sqlDB}, nil
}

// Create opens a fresh archive at path, applies all migrations, and
// stamps meta_archive with a new conversion run uuid. path must not
// already contain a meta_archive row.
func Create(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		return nil, err
	}
	if err := db.stampMetaArchive(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) stampMetaArchive() error {
	var exists bool
	err := db.QueryRow(`SELECT COUNT(*) > 0 FROM meta_archive WHERE id = 1`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%w: %v", mserrors.ErrIOFailed, err)
	}
	if exists {
		return nil
	}
	_, err = db.Exec(
		`INSERT INTO meta_archive (id, uuid, creation_date, param_tree) VALUES (1, ?, ?, '')`,
		uuid.New().String(), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", mserrors.ErrIOFailed, err)
	}
	return nil
}

// ConversionID returns the uuid stamped into meta_archive at Create time.
func (db *DB) ConversionID() (string, error) {
	var id string
	err := db.QueryRow(`SELECT uuid FROM meta_archive WHERE id = 1`).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("%w: %v", mserrors.ErrSchemaMismatch, err)
	}
	return id, nil
}
