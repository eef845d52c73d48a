package postgres

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/logger"
)

const migrationsTable = "schema_migrations"

// Migrator applies the versioned schema files of one directory. Files follow
// the golang-migrate naming, 000001_name.up.sql and 000001_name.down.sql. A
// run holds a Postgres advisory lock, so concurrent runs apply each version once.
type Migrator struct {
	m      *migrate.Migrate
	src    source.Driver
	logger *logger.Logger
}

// NewMigrator binds the migration files in dir of fsys to db
func NewMigrator(db *DB, fsys fs.FS, dir string) (*Migrator, error) {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Failed to read migrations from %s", dir).
			Mark(ierr.ErrSystem)
	}

	driver, err := migratepg.WithInstance(db.DB.DB, &migratepg.Config{
		MigrationsTable: migrationsTable,
	})
	if err != nil {
		return nil, WrapError(err, "Failed to prepare migration driver")
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, WrapError(err, "Failed to create migrator")
	}
	m.Log = &migrateLogger{log: db.logger}

	return &Migrator{m: m, src: src, logger: db.logger}, nil
}

// Version returns the applied schema version, 0 when nothing is applied
func (mg *Migrator) Version() (uint, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, WrapError(err, "Failed to read schema version")
	}
	if dirty {
		return version, ierr.NewErrorf("schema version %d is dirty", version).
			WithHint("A previous migration failed halfway, fix the schema and force the version").
			Mark(ierr.ErrDatabase)
	}
	return version, nil
}

// Pending returns the versions newer than the applied one
func (mg *Migrator) Pending() ([]uint, error) {
	current, err := mg.Version()
	if err != nil {
		return nil, err
	}
	return pendingVersions(mg.src, current)
}

// Up applies every pending migration and returns the versions it applied
func (mg *Migrator) Up() ([]uint, error) {
	pending, err := mg.Pending()
	if err != nil {
		return nil, err
	}

	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, WrapError(err, "Failed to apply migrations")
	}
	return pending, nil
}

// Close releases the migration lock connection
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

// pendingVersions walks src in order and keeps the versions above current
func pendingVersions(src source.Driver, current uint) ([]uint, error) {
	var pending []uint

	version, err := src.First()
	for err == nil {
		if version > current {
			pending = append(pending, version)
		}
		version, err = src.Next(version)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, ierr.WithError(err).
			WithHint("Failed to list migrations").
			Mark(ierr.ErrSystem)
	}
	return pending, nil
}

type migrateLogger struct {
	log *logger.Logger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.log.Infow(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *migrateLogger) Verbose() bool {
	return false
}
