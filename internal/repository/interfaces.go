package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// LedgerEntry is one row of ledger_entries.
type LedgerEntry struct {
	Ledger     string
	Key        string
	RecordedAt time.Time
}

// LedgerEntryRepository provides access to ledger_entries. Rows are append-only.
type LedgerEntryRepository interface {
	// Exists reports whether key is recorded in the named ledger.
	Exists(ctx context.Context, db DBTX, ledger, key string) (bool, error)

	// InsertIfAbsent appends a row and reports whether it was inserted. A false return
	// with a nil error means the key was already present.
	InsertIfAbsent(ctx context.Context, db DBTX, ledger, key string, at time.Time) (bool, error)

	// List returns the rows of the named ledger ordered by recorded_at.
	List(ctx context.Context, db DBTX, ledger string) ([]LedgerEntry, error)
}
