package migrate

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/BerriAI/litellm-sub032/internal/db"
)

// RunMigrations brings the policy schema up to date from the embedded
// migration files (internal/db/schema/*.up.sql). Safe to call on every
// startup: an already-current schema is a no-op.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("migrate: nil pool, configure database_url first")
	}

	src, err := iofs.New(db.SchemaFiles, "schema")
	if err != nil {
		return fmt.Errorf("migrate: read embedded schema: %w", err)
	}

	driver, err := pgxv5.WithInstance(stdlib.OpenDBFromPool(pool), &pgxv5.Config{})
	if err != nil {
		return fmt.Errorf("migrate: create driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("migrate: init: %w", err)
	}
	m.Log = stdLogger{}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: up: %w", err)
	}
	return nil
}

// stdLogger routes golang-migrate output through the standard logger.
type stdLogger struct{}

func (stdLogger) Printf(format string, v ...interface{}) { log.Printf("migrate: "+format, v...) }
func (stdLogger) Verbose() bool                          { return false }
