package archive

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/mzcore/msarchive/internal/mserrors"
)

// LatestSchemaVersion is the highest migration version this build knows
// how to apply or read.
const LatestSchemaVersion = 1

func (db *DB) migrationsSource() (fs.FS, error) {
	return fs.Sub(migrationsFS, "migrations")
}

func (db *DB) newMigrate() (*migrate.Migrate, error) {
	src, err := db.migrationsSource()
	if err != nil {
		return nil, fmt.Errorf("archive: failed to open embedded migrations: %w", err)
	}
	sourceDriver, err := iofs.New(src, ".")
	if err != nil {
		return nil, fmt.Errorf("archive: failed to create iofs source driver: %w", err)
	}
	dbDriver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("archive: failed to create sqlite migrate driver: %w", err)
	}
	return migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
}

// MigrateUp applies all pending migrations.
func (db *DB) MigrateUp() error {
	m, err := db.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("archive: migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the applied schema version and dirty state. A
// version newer than LatestSchemaVersion is SchemaMismatch: this build
// cannot safely read or write the archive.
func (db *DB) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := db.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("archive: failed to read migration version: %w", err)
	}
	if version > LatestSchemaVersion {
		return version, dirty, fmt.Errorf("%w: archive is at schema version %d, this build knows up to %d",
			mserrors.ErrSchemaMismatch, version, LatestSchemaVersion)
	}
	return version, dirty, nil
}
