package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var dbMigrations embed.FS

// Migrate applies every pending embedded migration and returns the schema version.
func Migrate(pool *pgxpool.Pool) (uint, error) {
	src, err := iofs.New(dbMigrations, "migrations")
	if err != nil {
		return 0, err
	}

	// The *sql.DB shares the pool; closing it does not close the pool.
	db := stdlib.OpenDBFromPool(pool)
	dst, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		db.Close()
		return 0, fmt.Errorf("migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", dst)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		// db already up to date
	case err != nil:
		return 0, fmt.Errorf("migrate up: %w", err)
	}

	version, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, err
	}
	return version, nil
}
