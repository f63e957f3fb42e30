package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx used by Queries. Satisfied by *pgxpool.Pool,
// pgx.Tx and pgxmock.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// New creates Queries over the given connection or pool.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries holds all hand-written SQL queries for the policy engine.
type Queries struct {
	db DBTX
}
