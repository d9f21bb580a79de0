// Package ledger provides append-only, at-most-once key sets used to remember which
// tickets have been registered and which certificates have been sent.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pyladiescon/confops/internal/domain"
)

// Ledger names used by the durable backends.
const (
	Registrations = "registrations"
	Certificates  = "certificates"
)

// Ledger is a durable set of keys. Records are never mutated or deleted.
//
// Implementations:
//   - FileLedger: one line per key, read fully at open
//   - PostgresLedger: ledger_entries table, atomic across workers
//   - RedisLedger: SETNX per key, atomic across workers
//   - MemoryLedger: tests and dry runs
type Ledger interface {
	// IsRecorded reports whether key has been recorded. It has no side effects.
	IsRecorded(ctx context.Context, key string) (bool, error)

	// Record appends key. It returns domain.ErrDuplicateWrite if key is already present.
	Record(ctx context.Context, key string) error
}

// Clock returns the current time. Overridable in tests.
type Clock func() time.Time

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("ledger: empty key")
	}
	if strings.ContainsAny(key, "\t\r\n") {
		return fmt.Errorf("ledger: key %q contains a tab or line break", key)
	}
	if strings.TrimSpace(key) != key {
		return fmt.Errorf("ledger: key %q has surrounding whitespace", key)
	}
	return nil
}

func duplicate(key string) error {
	return fmt.Errorf("%w: %s", domain.ErrDuplicateWrite, key)
}
