package repository

import (
	"context"
	"fmt"
	"time"
)

type ledgerEntryRepo struct{}

// NewLedgerEntryRepository returns a pgx-backed LedgerEntryRepository.
func NewLedgerEntryRepository() LedgerEntryRepository {
	return &ledgerEntryRepo{}
}

func (r *ledgerEntryRepo) Exists(ctx context.Context, db DBTX, ledger, key string) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE ledger = $1 AND entry_key = $2)`,
		ledger, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ledger entry: %w", err)
	}
	return exists, nil
}

// InsertIfAbsent relies on the (ledger, entry_key) primary key, so concurrent writers on
// the same key are serialised by the database and exactly one of them inserts.
func (r *ledgerEntryRepo) InsertIfAbsent(ctx context.Context, db DBTX, ledger, key string, at time.Time) (bool, error) {
	tag, err := db.Exec(ctx, `
		INSERT INTO ledger_entries (ledger, entry_key, recorded_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (ledger, entry_key) DO NOTHING`,
		ledger, key, at)
	if err != nil {
		return false, fmt.Errorf("insert ledger entry: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ledgerEntryRepo) List(ctx context.Context, db DBTX, ledger string) ([]LedgerEntry, error) {
	rows, err := db.Query(ctx, `
		SELECT ledger, entry_key, recorded_at
		FROM ledger_entries
		WHERE ledger = $1
		ORDER BY recorded_at ASC, entry_key ASC`, ledger)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.Ledger, &e.Key, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
