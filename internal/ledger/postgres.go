package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/pyladiescon/confops/internal/repository"
)

// PostgresLedger stores records in ledger_entries under a ledger name. Check-and-insert is
// a single statement, so concurrent workers sharing the database record a key once.
type PostgresLedger struct {
	db      repository.DBTX
	entries repository.LedgerEntryRepository
	name    string
	now     Clock
}

// NewPostgres creates a ledger backed by the given pool or transaction.
func NewPostgres(db repository.DBTX, entries repository.LedgerEntryRepository, name string) *PostgresLedger {
	return &PostgresLedger{db: db, entries: entries, name: name, now: time.Now}
}

func (l *PostgresLedger) IsRecorded(ctx context.Context, key string) (bool, error) {
	ok, err := l.entries.Exists(ctx, l.db, l.name, key)
	if err != nil {
		return false, fmt.Errorf("ledger %s: %w", l.name, err)
	}
	return ok, nil
}

func (l *PostgresLedger) Record(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	inserted, err := l.entries.InsertIfAbsent(ctx, l.db, l.name, key, l.now().UTC())
	if err != nil {
		return fmt.Errorf("ledger %s: %w", l.name, err)
	}
	if !inserted {
		return duplicate(key)
	}
	return nil
}
