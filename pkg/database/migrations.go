package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlgen/migrations"
)

// ErrDirtyMigration is returned when a previous run stopped halfway through a
// migration. The schema must be repaired by hand before the service can start.
var ErrDirtyMigration = errors.New("schema migration left dirty")

// Migrate applies the embedded schema to the database at url. golang-migrate
// closes the handle it is given, so it gets its own database/sql connection
// instead of borrowing from the pool.
func Migrate(url string, logger *zap.Logger) error {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	return RunMigrations(db, logger)
}

// RunMigrations applies pending migrations and takes ownership of db.
// Only the catalog, sync summary and call accounting tables are required; the
// vector extension is attempted but optional.
func RunMigrations(db *sql.DB, logger *zap.Logger) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Warn("Failed to close migration source", zap.Error(srcErr))
		}
		if dbErr != nil {
			logger.Warn("Failed to close migration database", zap.Error(dbErr))
		}
	}()

	if version, dirty, err := m.Version(); err == nil && dirty {
		return fmt.Errorf("%w at version %d", ErrDirtyMigration, version)
	}

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Debug("Schema up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info("Applied schema migrations", zap.Uint("version", version))
	return nil
}
