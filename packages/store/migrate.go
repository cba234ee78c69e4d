package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrations embed.FS

// migrate applies every pending up migration
func (s *Store) migrate() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	var (
		driver database.Driver
		name   string
	)

	switch s.driver {
	case DriverSQLite:
		// The sqlite driver holds no resources of its own and closing it
		// would close the shared handle, so m.Close is never called here.
		name = "sqlite3"
		driver, err = migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	case DriverPostgres:
		// The pgx driver pins a connection until closed, so it gets its own handle
		var db *sql.DB
		db, err = sql.Open(DriverPostgres, s.dsn)
		if err != nil {
			return fmt.Errorf("failed to open migration connection: %w", err)
		}
		name = "pgx5"
		driver, err = migratepgx.WithInstance(db, &migratepgx.Config{})
		if err != nil {
			_ = db.Close()
		}
	default:
		return fmt.Errorf("unsupported driver: %s", s.driver)
	}
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, name, driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	if s.driver == DriverPostgres {
		defer func() {
			if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
				s.log.Warnf("failed to close migration instance: source=%v database=%v", srcErr, dbErr)
			}
		}()
	}

	upErr := m.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", upErr)
	}

	version, dirty, vErr := m.Version()
	if vErr != nil && !errors.Is(vErr, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", vErr)
	}
	s.log.WithFields(logrus.Fields{
		"version": version,
		"dirty":   dirty,
		"changed": upErr == nil,
	}).Debug("database schema up to date")

	return nil
}
