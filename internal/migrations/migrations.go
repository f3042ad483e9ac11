package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed *.sql
var Files embed.FS

// Run applies every pending migration of the stat and dimension tables.
// With autoMigrate false it only reports the current version. The match
// fact tables are owned upstream and never migrated here.
func Run(db *sql.DB, autoMigrate bool) error {
	source, err := iofs.New(Files, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "cruncher_schema_migrations"})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}

	if dirty {
		// Every migration is idempotent (IF [NOT] EXISTS), so re-running the
		// interrupted version is safe.
		prev := int(version) - 1
		if prev < 1 {
			prev = database.NilVersion
		}
		slog.Warn("[Migrations] Dirty schema version, forcing previous version", "version", version, "forced", prev)
		if err := m.Force(prev); err != nil {
			return fmt.Errorf("recover dirty version %d: %w", version, err)
		}
	}

	if !autoMigrate {
		slog.Info("[Migrations] Auto-migration disabled", "version", version, "dirty", dirty)
		return nil
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("[Migrations] Schema is up to date", "version", version)
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	current, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}
	slog.Info("[Migrations] Applied", "from_version", version, "to_version", current)
	return nil
}
